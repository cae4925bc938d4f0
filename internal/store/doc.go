// Package store provides SQLite-backed durable storage for rewind.
//
// The store holds:
//   - Recordings: the latest record snapshot per correlation id
//   - Outcomes: an append-only log of TEST outcome labels with JSON detail
//   - Queue: a durable append-only queue feeding recordings
//
// Store implements engine.Sink and Queue implements engine.DurableQueue.
//
// # Critical Patterns
//
// Logical ordering:
//   - Outcomes and queue rows are ordered by an INTEGER seq, never by timestamp
//
// Idempotent writes:
//   - Rewriting a recording with an identical fingerprint is a no-op
//   - Fingerprints use ir.FingerprintBytes with the record domain, so
//     snapshots that differ only in key order or number spelling match
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
