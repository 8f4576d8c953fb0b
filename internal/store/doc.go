// Package store provides SQLite-backed durable storage for docket state,
// partitioned per feature.
//
// The store hosts two contracts:
//   - Todo records: keyed (feature, id), upserted atomically, with
//     tier/parent hierarchy validation on save
//   - Change log: an append-only, per-feature sequence of entries with
//     strictly increasing timestamps (seq counter tie-breaks same-instant
//     appends); no update or delete operations exist
//
// plus the persistence behind the citation, rollback, and trigger engines
// (citations, previous states, rollback records, suppression windows).
//
// # Ordering
//
// All change-log queries order by seq ASC so reads and "since" scans are
// deterministic range scans over an immutable sequence.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - single-connection pool: SQLite supports one writer at a time; a lone
//     connection makes each mutation atomic with respect to readers in the
//     same process
//
// Previous-state ids are content-addressed (internal/todo.StateID), so
// snapshot inserts use ON CONFLICT DO NOTHING for idempotency.
package store
