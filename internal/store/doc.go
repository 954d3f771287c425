// Package store provides SQLite-backed durable storage for Lumo editing
// sessions.
//
// The store keeps three tables:
//   - journal: one row per engine command (connect, disconnect, notify, ...)
//     keyed by the engine's logical seq
//   - deliveries: the propagation report of each notify-style command
//   - snapshots: scene documents saved at a journal position
//
// # Ordering
//
// Rows are ordered by seq (and ord within a propagation), never by wall
// time, so replaying a journal is deterministic. Journal reads go through
// queryir/querysql, which always appends ORDER BY.
//
// # Replay
//
// ReplayLinks starts from the newest snapshot at or before a journal
// position and folds the link-changing entries after it, giving the link
// set the graph had at that point.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
