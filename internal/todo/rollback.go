package todo

import "time"

// PreviousState is an immutable snapshot of a todo captured before a risky
// mutation, used as a rollback target. The ID is content-addressed (see
// StateID) so identical snapshots collapse to the same identity.
type PreviousState struct {
	ID          string    `json:"id"`
	TodoID      string    `json:"todo_id"`
	Timestamp   time.Time `json:"timestamp"`
	State       Todo      `json:"state"`
	ChangeLogID string    `json:"changelog_id"`
	Reason      string    `json:"reason,omitempty"`
}

// RollbackType distinguishes how much of a snapshot was restored.
type RollbackType string

const (
	// RollbackFull restores every snapshot field.
	RollbackFull RollbackType = "full"
	// RollbackSelective restores only caller-named fields.
	RollbackSelective RollbackType = "selective"
	// RollbackPartial is a forced rollback that skipped conflicting fields.
	RollbackPartial RollbackType = "partial"
)

// RollbackStatus is the outcome of a rollback attempt.
type RollbackStatus string

const (
	RollbackPending    RollbackStatus = "pending"
	RollbackCompleted  RollbackStatus = "completed"
	RollbackCancelled  RollbackStatus = "cancelled"
	RollbackConflicted RollbackStatus = "conflict"
)

// RollbackConflict reports one field a rollback would silently clobber:
// the field diverged between the snapshot and the current todo, and at
// least one change-log entry touched it after the snapshot was taken.
type RollbackConflict struct {
	Field         string   `json:"field"`
	SnapshotValue any      `json:"snapshot_value"`
	CurrentValue  any      `json:"current_value"`
	ChangeLogIDs  []string `json:"changelog_ids"`
	Severity      Priority `json:"severity"`
	Description   string   `json:"description"`
}

// Rollback records an attempted or completed restoration.
//
// Invariant: a rollback with unresolved conflicts of PriorityHigh or above
// is never marked completed; it lands in RollbackConflicted with the store
// untouched, unless the caller forced it (RollbackPartial).
type Rollback struct {
	ID             string             `json:"id"`
	TodoID         string             `json:"todo_id"`
	RolledBackFrom string             `json:"rolled_back_from"`
	RolledBackTo   string             `json:"rolled_back_to"`
	Type           RollbackType       `json:"type"`
	Fields         []string           `json:"fields,omitempty"`
	Conflicts      []RollbackConflict `json:"conflicts,omitempty"`
	Status         RollbackStatus     `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	Reason         string             `json:"reason,omitempty"`
}

// BlockingConflicts returns the subset of conflicts at or above the
// blocking severity threshold (high).
func (r *Rollback) BlockingConflicts() []RollbackConflict {
	var blocking []RollbackConflict
	for _, c := range r.Conflicts {
		if c.Severity.AtLeast(PriorityHigh) {
			blocking = append(blocking, c)
		}
	}
	return blocking
}
