// Package domain holds the core model of the event distribution subsystem:
// the append-only Event record, viewer identities and the visibility rule,
// the wire frame types shared by both gateways, and the ports implemented by
// the storage and fan-out layers.
package domain
