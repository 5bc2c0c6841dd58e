// Package store holds normalized records, one table per entity, namespaced
// by connection.
//
// Two implementations satisfy Store:
//   - Memory: maps guarded by a RWMutex, the default
//   - SQLite: one row per record in a records table (mattn/go-sqlite3)
//
// # Ownership
//
// GetTable returns a copy the caller may mutate freely. SetTable replaces
// the stored table wholesale; last write wins. Nothing handed to or returned
// from a Store aliases its internal state.
//
// # Ordering
//
// Table keys are ordered the way the original object-keyed tables iterate:
// canonical non-negative integer keys first in numeric order, then every
// other key in byte order. Rows and Select results follow that order.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Record data is stored as RFC 8785 canonical JSON alongside a
// domain-separated content hash, so unchanged rows are never rewritten.
package store
