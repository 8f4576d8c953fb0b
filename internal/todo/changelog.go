package todo

import "time"

// ChangeType categorizes change-log entries. Closed enumeration: the
// citability table in the citation package and the condition dispatcher in
// the trigger package switch over these values, so a new value requires
// updating both.
type ChangeType string

const (
	ChangeCreated            ChangeType = "created"
	ChangeUpdated            ChangeType = "updated"
	ChangeDeleted            ChangeType = "deleted"
	ChangeMoved              ChangeType = "moved"
	ChangeStatusChanged      ChangeType = "status_changed"
	ChangePropagationUpdate  ChangeType = "propagation_update"
	ChangePropagationBlocked ChangeType = "propagation_blocked"
	ChangeRollbackApplied    ChangeType = "rollback_applied"
	ChangeSnapshotTaken      ChangeType = "snapshot_taken"
)

// ValidChangeTypes is the closed set of change types.
var ValidChangeTypes = map[ChangeType]bool{
	ChangeCreated:            true,
	ChangeUpdated:            true,
	ChangeDeleted:            true,
	ChangeMoved:              true,
	ChangeStatusChanged:      true,
	ChangePropagationUpdate:  true,
	ChangePropagationBlocked: true,
	ChangeRollbackApplied:    true,
	ChangeSnapshotTaken:      true,
}

// ChangeLogEntry is an immutable record of one mutation within a feature.
//
// Entries are append-only. Timestamp is strictly increasing per feature
// (the store bumps a colliding wall clock by a nanosecond), and Seq is the
// per-feature logical counter that tie-breaks ordering and backs "since"
// scans during rollback conflict detection.
type ChangeLogEntry struct {
	ID                   string         `json:"id"`
	Seq                  int64          `json:"seq"`
	Timestamp            time.Time      `json:"timestamp"`
	ChangeType           ChangeType     `json:"change_type"`
	Tier                 Tier           `json:"tier"`
	TodoID               string         `json:"todo_id,omitempty"`
	Before               map[string]any `json:"before,omitempty"`
	After                map[string]any `json:"after,omitempty"`
	Reason               string         `json:"reason,omitempty"`
	PropagationTriggered bool           `json:"propagation_triggered,omitempty"`
	RelatedChanges       []string       `json:"related_changes,omitempty"`
}

// ChangedFields returns the field names this entry touched, derived from
// the After partial snapshot (falling back to Before for deletions).
func (e *ChangeLogEntry) ChangedFields() []string {
	snap := e.After
	if len(snap) == 0 {
		snap = e.Before
	}
	fields := make([]string, 0, len(snap))
	for _, f := range SnapshotFields {
		if _, ok := snap[f]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}
