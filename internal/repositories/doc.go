// Package repositories implements the SQLite event journal.
//
// The journal keeps what the live stream delivered so a session can be listed and replayed
// into a fresh store later. It never feeds state back into the dashboard on startup.
//
// Key Implementations:
//   - [SessionRepository] : one row per stream connection
//   - [EventRepository] : raw event payloads indexed by kind and entry id
//   - [Journal] : records a single session from the stream loop and prunes old events
//
// Sequence numbers provide stable arrival ordering independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
