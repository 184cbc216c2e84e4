// Package server is the HTTP layer: the WebSocket and event-stream
// gateways, the operational event listing, and the health and metrics
// endpoints.
package server
