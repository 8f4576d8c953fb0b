package rollback

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/fernworks/docket/internal/store"
	"github.com/fernworks/docket/internal/todo"
)

// Engine is the rollback engine for one opened store.
type Engine struct {
	store    *store.Store
	now      func() time.Time
	severity map[string]todo.Priority
}

// NewEngine creates a rollback engine with the default field severity table.
func NewEngine(s *store.Store) *Engine {
	return NewEngineWithSeverity(s, nil)
}

// NewEngineWithSeverity creates a rollback engine, overlaying the given
// per-field severities on the defaults.
func NewEngineWithSeverity(s *store.Store, overrides map[string]todo.Priority) *Engine {
	severity := DefaultSeverity()
	for field, sev := range overrides {
		severity[field] = sev
	}
	return &Engine{store: s, now: time.Now, severity: severity}
}

// SetClock replaces the engine's wall clock for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// StoreState captures a todo's current state as an immutable snapshot and
// logs a snapshot_taken entry. changeLogID names the change that prompted
// the snapshot (the guarded mutation); reason is optional.
//
// The snapshot id is content-addressed, so snapshotting the same state for
// the same change twice yields the same record.
func (e *Engine) StoreState(ctx context.Context, feature string, t todo.Todo, changeLogID, reason string) (todo.PreviousState, error) {
	id, err := todo.StateID(t.ID, changeLogID, t)
	if err != nil {
		return todo.PreviousState{}, fmt.Errorf("store state: %w", err)
	}

	ps := todo.PreviousState{
		ID:          id,
		TodoID:      t.ID,
		Timestamp:   e.now().UTC(),
		State:       t,
		ChangeLogID: changeLogID,
		Reason:      reason,
	}

	if err := e.store.InsertState(ctx, feature, ps); err != nil {
		return todo.PreviousState{}, fmt.Errorf("store state: %w", err)
	}

	_, err = e.store.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType:     todo.ChangeSnapshotTaken,
		Tier:           t.Tier,
		TodoID:         t.ID,
		Reason:         reason,
		RelatedChanges: relatedTo(changeLogID),
	})
	if err != nil {
		return todo.PreviousState{}, fmt.Errorf("store state: log: %w", err)
	}

	return ps, nil
}

// GetStates returns a todo's snapshots, newest first.
func (e *Engine) GetStates(ctx context.Context, feature, todoID string) ([]todo.PreviousState, error) {
	return e.store.ListStates(ctx, feature, todoID)
}

// Rollback restores every field of the target snapshot.
//
// If any detected conflict reaches blocking severity (high), the attempt
// is recorded with status "conflict", the store is left untouched, and a
// conflict error carrying the findings is returned.
func (e *Engine) Rollback(ctx context.Context, feature, todoID, stateID, reason string) (todo.Rollback, error) {
	return e.apply(ctx, feature, todoID, stateID, nil, reason, false)
}

// RollbackFields restores only the named fields from the target snapshot,
// leaving all other fields at their current values. Conflict analysis is
// restricted to the named fields.
func (e *Engine) RollbackFields(ctx context.Context, feature, todoID, stateID string, fields []string, reason string) (todo.Rollback, error) {
	if len(fields) == 0 {
		return todo.Rollback{}, todo.NewValidationError(feature, todoID, "fields",
			"selective rollback requires at least one field")
	}
	for _, f := range fields {
		if !validSnapshotField(f) {
			return todo.Rollback{}, todo.NewValidationError(feature, todoID, "fields",
				fmt.Sprintf("unknown field %q", f))
		}
	}
	return e.apply(ctx, feature, todoID, stateID, fields, reason, false)
}

// ForceRollback restores the target snapshot past blocking conflicts:
// conflicting fields keep their current values, everything else reverts,
// and the rollback is recorded as partial with the skipped conflicts.
func (e *Engine) ForceRollback(ctx context.Context, feature, todoID, stateID, reason string) (todo.Rollback, error) {
	return e.apply(ctx, feature, todoID, stateID, nil, reason, true)
}

// GetRollbackHistory returns rollback records for the feature, newest
// first, optionally filtered to one todo (empty todoID means all).
func (e *Engine) GetRollbackHistory(ctx context.Context, feature, todoID string) ([]todo.Rollback, error) {
	return e.store.ListRollbacks(ctx, feature, todoID)
}

func (e *Engine) apply(ctx context.Context, feature, todoID, stateID string, fields []string, reason string, force bool) (todo.Rollback, error) {
	current, ok, err := e.store.GetTodo(ctx, feature, todoID)
	if err != nil {
		return todo.Rollback{}, fmt.Errorf("rollback: %w", err)
	}
	if !ok {
		return todo.Rollback{}, todo.NewNotFound(feature, "todo", todoID)
	}

	target, ok, err := e.store.GetState(ctx, feature, stateID)
	if err != nil {
		return todo.Rollback{}, fmt.Errorf("rollback: %w", err)
	}
	if !ok {
		return todo.Rollback{}, todo.NewNotFound(feature, "previous state", stateID)
	}
	if target.TodoID != todoID {
		return todo.Rollback{}, todo.NewValidationError(feature, todoID, "state_id",
			fmt.Sprintf("state %q belongs to todo %q", stateID, target.TodoID))
	}

	selected := fields
	rbType := todo.RollbackSelective
	if selected == nil {
		selected = todo.SnapshotFields
		rbType = todo.RollbackFull
	}

	conflicts, discarded, err := e.detectConflicts(ctx, feature, &current, &target, selected)
	if err != nil {
		return todo.Rollback{}, err
	}

	rb := todo.Rollback{
		ID:           uuid.NewString(),
		TodoID:       todoID,
		RolledBackTo: stateID,
		Type:         rbType,
		Fields:       fields,
		Conflicts:    conflicts,
		CreatedAt:    e.now().UTC(),
		Reason:       reason,
	}

	blocking := rb.BlockingConflicts()
	if len(blocking) > 0 && !force {
		// Record the attempt; the store's todo state stays untouched.
		rb.Status = todo.RollbackConflicted
		rb.RolledBackFrom = "" // nothing was superseded
		if err := e.store.InsertRollback(ctx, feature, rb); err != nil {
			return todo.Rollback{}, fmt.Errorf("rollback: record conflict: %w", err)
		}
		return rb, todo.NewConflictError(feature, todoID, blocking)
	}

	// Fields with blocking conflicts are skipped under force.
	skip := make(map[string]bool, len(blocking))
	if force && len(blocking) > 0 {
		rb.Type = todo.RollbackPartial
		for _, c := range blocking {
			skip[c.Field] = true
		}
	}

	restored := current
	before := make(map[string]any)
	after := make(map[string]any)
	for _, f := range selected {
		if skip[f] {
			continue
		}
		cur, _ := current.SnapshotField(f)
		snap, _ := target.State.SnapshotField(f)
		if fieldsEqual(cur, snap) {
			continue
		}
		copyField(&restored, &target.State, f)
		before[f] = cur
		after[f] = snap
	}

	// Same choreography as a guarded mutation: log the change, snapshot
	// the superseded state against it, then save. The safety snapshot
	// records the rollback_applied entry as its guarded change, so undoing
	// this rollback excludes the entry from its own conflict scan.
	entry, err := e.store.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType:     todo.ChangeRollbackApplied,
		Tier:           restored.Tier,
		TodoID:         todoID,
		Before:         before,
		After:          after,
		Reason:         fmt.Sprintf("rollback %s to state %s: %s", rb.ID, stateID, reason),
		RelatedChanges: discarded,
	})
	if err != nil {
		return todo.Rollback{}, fmt.Errorf("rollback: log: %w", err)
	}

	fromID, err := todo.StateID(todoID, rb.ID, current)
	if err != nil {
		return todo.Rollback{}, fmt.Errorf("rollback: %w", err)
	}
	from := todo.PreviousState{
		ID:          fromID,
		TodoID:      todoID,
		Timestamp:   e.now().UTC(),
		State:       current,
		ChangeLogID: entry.ID,
		Reason:      fmt.Sprintf("pre-rollback state (rollback %s)", rb.ID),
	}
	if err := e.store.InsertState(ctx, feature, from); err != nil {
		return todo.Rollback{}, fmt.Errorf("rollback: %w", err)
	}
	rb.RolledBackFrom = fromID

	if _, err := e.store.SaveTodo(ctx, feature, restored); err != nil {
		return todo.Rollback{}, fmt.Errorf("rollback: restore: %w", err)
	}

	rb.Status = todo.RollbackCompleted
	if err := e.store.InsertRollback(ctx, feature, rb); err != nil {
		return todo.Rollback{}, fmt.Errorf("rollback: record: %w", err)
	}
	return rb, nil
}

// detectConflicts diffs the target snapshot against the current todo over
// the selected fields, counting only divergence that post-snapshot log
// entries explain. The guarded change (target.ChangeLogID) is excluded;
// rolling it back is the point of the exercise.
//
// Returns the conflicts plus the ids of every intervening entry the
// rollback discards.
func (e *Engine) detectConflicts(ctx context.Context, feature string, current *todo.Todo, target *todo.PreviousState, selected []string) ([]todo.RollbackConflict, []string, error) {
	entries, err := e.store.ReadChangesForTodo(ctx, feature, target.TodoID, target.Timestamp)
	if err != nil {
		return nil, nil, fmt.Errorf("rollback: scan changes: %w", err)
	}

	touched := make(map[string][]string)
	var discarded []string
	for _, entry := range entries {
		if entry.ID == target.ChangeLogID {
			continue
		}
		changed := entry.ChangedFields()
		if len(changed) == 0 {
			continue
		}
		discarded = append(discarded, entry.ID)
		for _, f := range changed {
			touched[f] = append(touched[f], entry.ID)
		}
	}

	var conflicts []todo.RollbackConflict
	for _, f := range selected {
		ids := touched[f]
		if len(ids) == 0 {
			continue
		}
		cur, _ := current.SnapshotField(f)
		snap, _ := target.State.SnapshotField(f)
		if fieldsEqual(cur, snap) {
			continue
		}
		sev := e.severityOf(f)
		conflicts = append(conflicts, todo.RollbackConflict{
			Field:         f,
			SnapshotValue: snap,
			CurrentValue:  cur,
			ChangeLogIDs:  ids,
			Severity:      sev,
			Description: fmt.Sprintf("field %q changed by %d entr(ies) since the snapshot; rollback would discard the changes (severity %s)",
				f, len(ids), sev),
		})
	}
	return conflicts, discarded, nil
}

// copyField moves one snapshot field from src to dst.
func copyField(dst, src *todo.Todo, field string) {
	switch field {
	case todo.FieldTitle:
		dst.Title = src.Title
	case todo.FieldDescription:
		dst.Description = src.Description
	case todo.FieldStatus:
		dst.Status = src.Status
	case todo.FieldParentID:
		dst.ParentID = src.ParentID
	case todo.FieldBlockedBy:
		dst.BlockedBy = src.BlockedBy
	case todo.FieldBlocks:
		dst.Blocks = src.Blocks
	case todo.FieldTags:
		dst.Tags = src.Tags
	case todo.FieldScope:
		dst.Scope = src.Scope
	}
}

// fieldsEqual compares two snapshot field values. Empty and nil string
// lists are the same value: the store round-trips empty lists as nil while
// JSON-decoded snapshot states carry them as non-nil, and that difference
// must not read as divergence.
func fieldsEqual(a, b any) bool {
	if as, ok := a.([]string); ok {
		if bs, ok := b.([]string); ok && len(as) == 0 && len(bs) == 0 {
			return true
		}
	}
	return reflect.DeepEqual(a, b)
}

func validSnapshotField(f string) bool {
	for _, known := range todo.SnapshotFields {
		if f == known {
			return true
		}
	}
	return false
}

func relatedTo(changeLogID string) []string {
	if changeLogID == "" {
		return nil
	}
	return []string{changeLogID}
}
