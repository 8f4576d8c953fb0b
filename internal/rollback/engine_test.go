package rollback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernworks/docket/internal/store"
	"github.com/fernworks/docket/internal/testutil"
	"github.com/fernworks/docket/internal/todo"
)

const feature = "auth"

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewDeterministicClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), time.Second)
	s.SetClock(clock.Now)

	e := NewEngine(s)
	e.SetClock(clock.Now)
	return e, s
}

func saveChain(t *testing.T, s *store.Store) todo.Todo {
	t.Helper()
	ctx := context.Background()
	chain := []todo.Todo{
		{ID: "feature-auth", Title: "auth", Status: todo.StatusInProgress, Tier: todo.TierFeature},
		{ID: "phase-1", Title: "phase", Status: todo.StatusInProgress, Tier: todo.TierPhase, ParentID: "feature-auth"},
		{ID: "session-1.1", Title: "session", Status: todo.StatusPending, Tier: todo.TierSession, ParentID: "phase-1"},
		{ID: "task-1.1.1", Title: "original title", Status: todo.StatusPending, Tier: todo.TierTask, ParentID: "session-1.1"},
	}
	var leaf todo.Todo
	for _, td := range chain {
		saved, err := s.SaveTodo(ctx, feature, td)
		require.NoError(t, err)
		leaf = saved
	}
	return leaf
}

// mutate performs one guarded mutation: log the change, snapshot the
// pre-mutation state against it, save. Returns the snapshot.
func mutate(t *testing.T, e *Engine, s *store.Store, td todo.Todo, apply func(*todo.Todo)) (todo.Todo, todo.PreviousState) {
	t.Helper()
	ctx := context.Background()

	prior := td
	apply(&td)

	entry, err := s.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeUpdated,
		Tier:       td.Tier,
		TodoID:     td.ID,
		Before:     prior.Snapshot(),
		After:      td.Snapshot(),
	})
	require.NoError(t, err)

	ps, err := e.StoreState(ctx, feature, prior, entry.ID, "pre-edit")
	require.NoError(t, err)

	saved, err := s.SaveTodo(ctx, feature, td)
	require.NoError(t, err)
	return saved, ps
}

func TestStoreState_LogsAndDeduplicates(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	ps1, err := e.StoreState(ctx, feature, td, "c-1", "checkpoint")
	require.NoError(t, err)
	ps2, err := e.StoreState(ctx, feature, td, "c-1", "checkpoint")
	require.NoError(t, err)
	assert.Equal(t, ps1.ID, ps2.ID, "identical snapshots collapse to one id")

	states, err := e.GetStates(ctx, feature, td.ID)
	require.NoError(t, err)
	assert.Len(t, states, 1)

	entries, err := s.ReadChangesForTodo(ctx, feature, td.ID, time.Time{})
	require.NoError(t, err)
	var snapshots int
	for _, entry := range entries {
		if entry.ChangeType == todo.ChangeSnapshotTaken {
			snapshots++
			assert.Equal(t, []string{"c-1"}, entry.RelatedChanges)
		}
	}
	assert.Equal(t, 2, snapshots, "every snapshot call is logged, dedupe or not")
}

func TestRollback_RoundTrip(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	// One guarded mutation, then a full rollback of it.
	mutated, ps := mutate(t, e, s, td, func(x *todo.Todo) {
		x.Title = "renamed title"
		x.Status = todo.StatusInProgress
	})
	require.Equal(t, "renamed title", mutated.Title)

	rb, err := e.Rollback(ctx, feature, td.ID, ps.ID, "undo the edit")
	require.NoError(t, err, "rolling back the guarded change itself must not conflict")
	assert.Equal(t, todo.RollbackFull, rb.Type)
	assert.Equal(t, todo.RollbackCompleted, rb.Status)
	assert.Empty(t, rb.Conflicts)

	got, ok, err := s.GetTodo(ctx, feature, td.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "original title", got.Title)
	assert.Equal(t, todo.StatusPending, got.Status)

	// The rollback itself is auditable: a rollback_applied entry and a
	// safety snapshot of the pre-rollback state.
	entries, err := s.ReadChangesForTodo(ctx, feature, td.ID, time.Time{})
	require.NoError(t, err)
	var applied bool
	for _, entry := range entries {
		if entry.ChangeType == todo.ChangeRollbackApplied {
			applied = true
		}
	}
	assert.True(t, applied)

	from, ok, err := s.GetState(ctx, feature, rb.RolledBackFrom)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "renamed title", from.State.Title, "safety snapshot holds the superseded state")
}

func TestRollback_UndoRollback(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	mutated, ps := mutate(t, e, s, td, func(x *todo.Todo) {
		x.Title = "renamed title"
		x.Status = todo.StatusInProgress
	})

	rb, err := e.Rollback(ctx, feature, td.ID, ps.ID, "undo the edit")
	require.NoError(t, err)
	require.Equal(t, todo.RollbackCompleted, rb.Status)

	// With no other writers, rolling back to the safety snapshot must not
	// see the first rollback's own log entry as a conflict.
	undo, err := e.Rollback(ctx, feature, td.ID, rb.RolledBackFrom, "changed my mind")
	require.NoError(t, err, "undoing a clean rollback must not conflict")
	assert.Equal(t, todo.RollbackCompleted, undo.Status)
	assert.Empty(t, undo.Conflicts)

	got, _, err := s.GetTodo(ctx, feature, td.ID)
	require.NoError(t, err)
	assert.Equal(t, mutated.Title, got.Title)
	assert.Equal(t, mutated.Status, got.Status)
}

func TestRollback_EmptyListsAreNotDivergence(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	// The snapshot carries an explicit empty blocked_by list; the store
	// round-trips empty lists as nil. An intervening entry touching the
	// field must not turn that representation gap into a conflict.
	prior := td
	prior.BlockedBy = []string{}
	ps, err := e.StoreState(ctx, feature, prior, "", "checkpoint")
	require.NoError(t, err)

	_, err = s.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeUpdated,
		Tier:       td.Tier,
		TodoID:     td.ID,
		After:      map[string]any{todo.FieldBlockedBy: []string{}},
	})
	require.NoError(t, err)

	rb, err := e.Rollback(ctx, feature, td.ID, ps.ID, "")
	require.NoError(t, err)
	assert.Equal(t, todo.RollbackCompleted, rb.Status)
	assert.Empty(t, rb.Conflicts)
}

func TestRollback_SecondWriterConflictBlocks(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	// Guarded mutation of the status...
	mutated, ps := mutate(t, e, s, td, func(x *todo.Todo) {
		x.Status = todo.StatusInProgress
	})

	// ...then a second writer flips it again after the snapshot.
	_, err := s.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeStatusChanged,
		Tier:       mutated.Tier,
		TodoID:     mutated.ID,
		Before:     map[string]any{todo.FieldStatus: mutated.Status},
		After:      map[string]any{todo.FieldStatus: todo.StatusBlocked},
	})
	require.NoError(t, err)
	mutated.Status = todo.StatusBlocked
	_, err = s.SaveTodo(ctx, feature, mutated)
	require.NoError(t, err)

	rb, err := e.Rollback(ctx, feature, td.ID, ps.ID, "undo")
	require.Error(t, err)
	assert.True(t, todo.IsConflict(err))
	assert.Equal(t, todo.RollbackConflicted, rb.Status)
	require.Len(t, rb.Conflicts, 1)
	assert.Equal(t, todo.FieldStatus, rb.Conflicts[0].Field)
	assert.Equal(t, todo.PriorityHigh, rb.Conflicts[0].Severity)

	// The store is untouched and the failed attempt is recorded.
	got, _, err := s.GetTodo(ctx, feature, td.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusBlocked, got.Status)

	history, err := e.GetRollbackHistory(ctx, feature, td.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, todo.RollbackConflicted, history[0].Status)
}

func TestRollbackFields_SelectiveLeavesOtherFields(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	// Guarded mutation touches title; a later writer touches description.
	mutated, ps := mutate(t, e, s, td, func(x *todo.Todo) {
		x.Title = "renamed title"
	})
	_, err := s.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeUpdated,
		Tier:       mutated.Tier,
		TodoID:     mutated.ID,
		After:      map[string]any{todo.FieldDescription: "added later"},
	})
	require.NoError(t, err)
	mutated.Description = "added later"
	_, err = s.SaveTodo(ctx, feature, mutated)
	require.NoError(t, err)

	// Selective rollback of the title only: the description's divergence
	// is outside the selection, so it neither conflicts nor reverts.
	rb, err := e.RollbackFields(ctx, feature, td.ID, ps.ID, []string{todo.FieldTitle}, "undo rename")
	require.NoError(t, err)
	assert.Equal(t, todo.RollbackSelective, rb.Type)
	assert.Equal(t, todo.RollbackCompleted, rb.Status)

	got, _, err := s.GetTodo(ctx, feature, td.ID)
	require.NoError(t, err)
	assert.Equal(t, "original title", got.Title)
	assert.Equal(t, "added later", got.Description, "unselected fields keep their current values")
}

func TestRollbackFields_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RollbackFields(ctx, feature, "task-1.1.1", "state-1", nil, "")
	assert.True(t, todo.IsValidation(err), "empty selection: %v", err)

	_, err = e.RollbackFields(ctx, feature, "task-1.1.1", "state-1", []string{"created_at"}, "")
	assert.True(t, todo.IsValidation(err), "unknown field: %v", err)
}

func TestForceRollback_PartialSkipsConflictingFields(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	// Guarded mutation touches title and status; a second writer then
	// moves status again, making it a blocking conflict.
	mutated, ps := mutate(t, e, s, td, func(x *todo.Todo) {
		x.Title = "renamed title"
		x.Status = todo.StatusInProgress
	})
	_, err := s.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeStatusChanged,
		Tier:       mutated.Tier,
		TodoID:     mutated.ID,
		After:      map[string]any{todo.FieldStatus: todo.StatusCompleted},
	})
	require.NoError(t, err)
	mutated.Status = todo.StatusCompleted
	_, err = s.SaveTodo(ctx, feature, mutated)
	require.NoError(t, err)

	rb, err := e.ForceRollback(ctx, feature, td.ID, ps.ID, "force it")
	require.NoError(t, err)
	assert.Equal(t, todo.RollbackPartial, rb.Type)
	assert.Equal(t, todo.RollbackCompleted, rb.Status)
	require.Len(t, rb.Conflicts, 1)
	assert.Equal(t, todo.FieldStatus, rb.Conflicts[0].Field)

	got, _, err := s.GetTodo(ctx, feature, td.ID)
	require.NoError(t, err)
	assert.Equal(t, "original title", got.Title, "clean field reverts")
	assert.Equal(t, todo.StatusCompleted, got.Status, "conflicting field keeps the current value")
}

func TestRollback_NotFound(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	_, err := e.Rollback(ctx, feature, "task-9.9.9", "state-1", "")
	assert.True(t, todo.IsNotFound(err), "absent todo: %v", err)

	_, err = e.Rollback(ctx, feature, td.ID, "state-404", "")
	assert.True(t, todo.IsNotFound(err), "absent state: %v", err)
}

func TestRollback_StateMustBelongToTodo(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	td := saveChain(t, s)

	other, err := s.SaveTodo(ctx, feature, todo.Todo{
		ID: "task-1.1.2", Title: "other", Status: todo.StatusPending,
		Tier: todo.TierTask, ParentID: "session-1.1",
	})
	require.NoError(t, err)
	ps, err := e.StoreState(ctx, feature, other, "", "checkpoint")
	require.NoError(t, err)

	_, err = e.Rollback(ctx, feature, td.ID, ps.ID, "")
	assert.True(t, todo.IsValidation(err), "cross-todo state: %v", err)
}

func TestSeverityOverrides(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	clock := testutil.NewDeterministicClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), time.Second)
	s.SetClock(clock.Now)

	// Demote status conflicts below the blocking threshold.
	e := NewEngineWithSeverity(s, map[string]todo.Priority{todo.FieldStatus: todo.PriorityLow})
	e.SetClock(clock.Now)

	ctx := context.Background()
	td := saveChain(t, s)

	mutated, ps := mutate(t, e, s, td, func(x *todo.Todo) {
		x.Status = todo.StatusInProgress
	})
	_, err = s.AppendChange(ctx, feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeStatusChanged,
		Tier:       mutated.Tier,
		TodoID:     mutated.ID,
		After:      map[string]any{todo.FieldStatus: todo.StatusBlocked},
	})
	require.NoError(t, err)
	mutated.Status = todo.StatusBlocked
	_, err = s.SaveTodo(ctx, feature, mutated)
	require.NoError(t, err)

	rb, err := e.Rollback(ctx, feature, td.ID, ps.ID, "undo")
	require.NoError(t, err, "demoted severity must not block")
	assert.Equal(t, todo.RollbackCompleted, rb.Status)
	require.Len(t, rb.Conflicts, 1)
	assert.Equal(t, todo.PriorityLow, rb.Conflicts[0].Severity)
}
