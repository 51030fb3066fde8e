// Package store provides SQLite-backed durable storage for form drafts and
// the navigation decision log.
//
// Tables:
//   - drafts: one snapshot per key, last write wins, version bumped per write
//   - navigation_decisions: append-only record of resolved dialogs
//
// Decisions are ordered by logical seq, NEVER by timestamps:
// ORDER BY seq ASC, id ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Draft data is stored as RFC 8785 canonical JSON; digests come from
// internal/ir/hash.go.
package store
