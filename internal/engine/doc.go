// Package engine defines the client role contract between connection
// handlers and a WebSocket engine, and provides an Endpoint that implements
// it on top of gorilla/websocket.
//
// The Endpoint:
//   - Dials connections asynchronously; dial failures surface through OnFail
//   - Runs a single event loop (Run) that invokes every handler callback
//   - Serializes callbacks for all connections, so handlers need no locking
//   - Drives per-connection one-shot timers on the same loop
//   - Pools received messages; handlers return them with Conn.Recycle
//
// Nothing is delivered for a connection after its OnClose or OnFail.
package engine
