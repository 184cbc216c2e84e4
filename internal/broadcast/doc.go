// Package broadcast implements the fan-out registry: the process-local set
// of live WebSocket connections grouped by identity, role, and subject. The
// registry runs as a single actor goroutine; all mutation goes through its
// command channel, so group maps need no locking. Each connection owns a
// writer goroutine with a bounded send buffer; a connection that cannot keep
// up is evicted rather than ever blocking the fan-out path.
package broadcast
