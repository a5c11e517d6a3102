// Package store is the SQLite journal of legs and outcomes.
//
// The journal is append-only. Leg and outcome ids are content-addressed, so
// every write uses ON CONFLICT DO NOTHING and replaying a write is harmless.
// All reads order by seq, the logical clock, and then by id.
//
// The same database also holds service mailboxes (see MailboxStore), so a
// runtime started against a journal keeps its messages across restarts.
//
// Database configuration:
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
