// Package store provides the durable storage the delivery engine depends on.
//
// Store is a SQLite database holding two tables:
//   - kv: typed settings such as the installation identifier
//   - blobs: opaque byte blobs, used for the persisted delivery queue
//
// Dir is a plain directory alternative for blobs, one file per key.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Missing keys are reported as ErrNotFound, which matches fs.ErrNotExist.
package store
