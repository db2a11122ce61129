// Package orchestrator ramps client connections up against an engine in
// throttled batches.
//
// Run negotiates the open-file limit, opens the first connection, starts the
// engine's event loop in its own goroutine, then opens the remaining
// connections, pausing once per batch. It returns when the event loop exits.
package orchestrator
