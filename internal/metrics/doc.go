// Package metrics provides Prometheus metrics for a stress run.
//
// Key metrics:
//   - Connect attempts, failures, opens and closes
//   - Messages received and ack reports sent
//   - Timer failures that stopped a connection's reporting
//   - Effective open file descriptor limit
//
// All recording methods are safe on a nil *Metrics, so components can run
// without a registry in tests.
package metrics
