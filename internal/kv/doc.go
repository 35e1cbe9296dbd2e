// Package kv provides the flat string key-value backends the record store
// persists into.
//
// Every backend implements Store. The store never interprets keys beyond the
// conventions owned by the repository layer:
//
//   - index_<type>: JSON array of record ids in display order
//   - <type>_<id>: JSON object with the record's fields
//   - ntz_<name>: backend and application preferences
//
// # Drivers
//
//   - memory: map guarded by a mutex, used by tests and --driver memory
//   - sqlite: single kv table in WAL mode (github.com/mattn/go-sqlite3)
//   - pebble: LSM store (github.com/cockroachdb/pebble)
//
// Instrument wraps any driver with prometheus counters and latency
// histograms. Driver errors are returned unchanged (wrapped with %w) so the
// caller can surface them as backend failures.
package kv
