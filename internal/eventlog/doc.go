// Package eventlog implements the durable event log store backing the
// distribution subsystem. PostgresStore is the production implementation;
// InMemoryStore backs unit tests and database-free development runs. The
// Publisher is the best-effort write path used by domain logic.
package eventlog
