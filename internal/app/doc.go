// Package app holds the background jobs and the replay engine of the
// distribution subsystem: the dispatch worker that hands unprocessed events
// to the fan-out layer, the retention sweeper that trims the processed tail
// of the log, and the replay engine both gateways use to catch a
// reconnecting viewer up from its cursor.
//
// Each job exposes Run (a ticker loop bound to a context) and an exported
// per-tick method, so the logic is testable without a scheduler.
package app
