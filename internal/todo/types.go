package todo

import "time"

// Tier identifies a level in the four-level work hierarchy.
// Tiers form a strict containment chain: feature → phase → session → task.
type Tier string

const (
	TierFeature Tier = "feature"
	TierPhase   Tier = "phase"
	TierSession Tier = "session"
	TierTask    Tier = "task"
)

// tierDepths maps each tier to its depth in the hierarchy (feature = 0).
var tierDepths = map[Tier]int{
	TierFeature: 0,
	TierPhase:   1,
	TierSession: 2,
	TierTask:    3,
}

// Depth returns the tier's depth in the hierarchy, feature being 0.
// Returns -1 for unknown tiers.
func (t Tier) Depth() int {
	d, ok := tierDepths[t]
	if !ok {
		return -1
	}
	return d
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	_, ok := tierDepths[t]
	return ok
}

// Child returns the tier one level below t.
// Returns ("", false) for task (the leaf tier) and unknown tiers.
func (t Tier) Child() (Tier, bool) {
	switch t {
	case TierFeature:
		return TierPhase, true
	case TierPhase:
		return TierSession, true
	case TierSession:
		return TierTask, true
	default:
		return "", false
	}
}

// Parent returns the tier one level above t.
// Returns ("", false) for feature (the root tier) and unknown tiers.
func (t Tier) Parent() (Tier, bool) {
	switch t {
	case TierPhase:
		return TierFeature, true
	case TierSession:
		return TierPhase, true
	case TierTask:
		return TierSession, true
	default:
		return "", false
	}
}

// Status is the lifecycle state of a todo. Todos are never hard-deleted
// through normal flows; cancellation is a status value, not removal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusBlocked    Status = "blocked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusBlocked:
		return true
	}
	return false
}

// Priority ranks citations and triggers. It doubles as the severity scale
// for rollback conflicts (a conflict of PriorityHigh or above blocks).
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// priorityRanks orders priorities for threshold comparisons.
var priorityRanks = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank returns the priority's position on the low..critical scale.
// Returns -1 for unknown priorities.
func (p Priority) Rank() int {
	r, ok := priorityRanks[p]
	if !ok {
		return -1
	}
	return r
}

// AtLeast reports whether p ranks at or above min.
// Unknown priorities never satisfy a threshold.
func (p Priority) AtLeast(min Priority) bool {
	pr, mr := p.Rank(), min.Rank()
	return pr >= 0 && mr >= 0 && pr >= mr
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Canonical field names for partial snapshots, rollback conflict reports,
// and selective rollback. These match the JSON tags on Todo.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldParentID    = "parent_id"
	FieldBlockedBy   = "blocked_by"
	FieldBlocks      = "blocks"
	FieldTags        = "tags"
	FieldScope       = "scope"
)

// SnapshotFields lists every field name that can appear in a ChangeLogEntry
// partial snapshot or a rollback field selection.
var SnapshotFields = []string{
	FieldTitle,
	FieldDescription,
	FieldStatus,
	FieldParentID,
	FieldBlockedBy,
	FieldBlocks,
	FieldTags,
	FieldScope,
}

// Todo is a tracked unit of work belonging to exactly one tier and
// (except at the feature root) one parent todo.
//
// ParentID is a plain identifier resolved through store lookups on demand,
// never a live reference. Citations are persisted in their own collection;
// the field here is populated by the citation engine when a caller asks for
// an enriched record.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Tier        Tier       `json:"tier"`
	ParentID    string     `json:"parent_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	BlockedBy   []string   `json:"blocked_by,omitempty"`
	Blocks      []string   `json:"blocks,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Citations   []Citation `json:"citations,omitempty"`
	Scope       *Scope     `json:"scope,omitempty"`
}

// SnapshotField returns the todo's value for one of the canonical snapshot
// field names. Returns (nil, false) for unknown names.
func (t *Todo) SnapshotField(field string) (any, bool) {
	switch field {
	case FieldTitle:
		return t.Title, true
	case FieldDescription:
		return t.Description, true
	case FieldStatus:
		return t.Status, true
	case FieldParentID:
		return t.ParentID, true
	case FieldBlockedBy:
		return t.BlockedBy, true
	case FieldBlocks:
		return t.Blocks, true
	case FieldTags:
		return t.Tags, true
	case FieldScope:
		return t.Scope, true
	default:
		return nil, false
	}
}

// Snapshot returns the todo's mutable fields as a partial-snapshot map,
// suitable for the Before/After fields of a ChangeLogEntry.
func (t *Todo) Snapshot() map[string]any {
	snap := make(map[string]any, len(SnapshotFields))
	for _, f := range SnapshotFields {
		v, _ := t.SnapshotField(f)
		snap[f] = v
	}
	return snap
}
