// Package sqlitestore provides a SQLite-backed remote.Store: the durable
// dataset behind the batch API server.
//
// Rows of every dataset share one table. Each row keeps its fields as
// canonical JSON text and gets an INTEGER PRIMARY KEY as identifier, so
// identifiers are numeric strings and new ones always sort after old ones.
//
// # Batches
//
// CreateMany, UpdateMany and DeleteMany each run in one transaction. An
// unknown identifier rolls the whole batch back with remote.ErrNotFound.
//
// # Ordering
//
// ReadAll returns rows ORDER BY id ASC, which is creation order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package sqlitestore
