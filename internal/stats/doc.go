// Package stats implements the per-connection statistics aggregator.
//
// An Aggregator is bound to exactly one connection. It counts received
// messages by MD5 digest of their payload and, every reporting interval,
// sends the counts back over the same connection as an ack report:
//
//	{"type":"acks","messages":[{"<md5 hex>":<count>},...]}
//
// Digests are listed in ascending order. Nothing is sent for an interval
// with no messages. All Aggregator methods run on the engine event loop,
// so no locking is needed.
package stats
