// Package rollback snapshots todo state before risky mutations and
// restores a prior snapshot, fully or per-field, detecting conflicts
// against changes logged since the snapshot.
//
// # Snapshot choreography
//
// Callers append the change-log entry for the upcoming mutation first,
// then call StoreState with that entry's id (capturing the pre-mutation
// state), then save the mutated todo. The snapshot's ChangeLogID names the
// guarded change; conflict detection scans entries logged after the
// snapshot and excludes the guarded change itself, so rolling back the
// guarded mutation is clean while changes layered on top surface as
// conflicts instead of being silently overwritten.
//
// # Conflict severity
//
// Each divergent field becomes a RollbackConflict with severity from the
// field severity table (status and parent changes are high; description
// and tags are low; see DefaultSeverity). A rollback with any conflict at
// or above high is recorded with status "conflict" and the store is left
// untouched; the caller resolves or forces. Forcing restores only the
// non-conflicting fields and records the rollback as partial.
package rollback
