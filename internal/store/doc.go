// Package store provides SQLite-backed storage for record collections.
//
// A collection is a named, ordered list of records imported from JSON or
// YAML files. The engine never queries the store directly: callers Load a
// collection and hand the records to a view.Manager.
//
// # Identity and Ordering
//
//   - Records are keyed by (collection, id). Records imported without an id
//     receive a UUIDv7.
//   - Each record carries the content fingerprint of its imported form, so
//     re-importing identical content is a no-op.
//   - Load orders by seq (import order), then id, never by wall time, so a
//     collection always loads in the same order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Bodies are stored as canonical JSON (see record.MarshalCanonical).
package store
