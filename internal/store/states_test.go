package store

import (
	"context"
	"testing"
	"time"

	"github.com/fernworks/docket/internal/todo"
)

func testState(t *testing.T, todoID, changeLogID string, state todo.Todo, ts time.Time) todo.PreviousState {
	t.Helper()
	id, err := todo.StateID(todoID, changeLogID, state)
	if err != nil {
		t.Fatalf("StateID() failed: %v", err)
	}
	return todo.PreviousState{
		ID:          id,
		TodoID:      todoID,
		Timestamp:   ts,
		State:       state,
		ChangeLogID: changeLogID,
	}
}

func TestInsertState_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	state := todo.Todo{
		ID: "task-1.1.1", Title: "original", Status: todo.StatusPending,
		Tier: todo.TierTask, ParentID: "session-1.1",
	}
	ps := testState(t, "task-1.1.1", "c-1", state, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	ps.Reason = "pre-edit checkpoint"

	if err := s.InsertState(ctx, "auth", ps); err != nil {
		t.Fatalf("InsertState() failed: %v", err)
	}

	got, ok, err := s.GetState(ctx, "auth", ps.ID)
	if err != nil {
		t.Fatalf("GetState() failed: %v", err)
	}
	if !ok {
		t.Fatal("state not found")
	}
	if got.State.Title != "original" || got.State.Status != todo.StatusPending {
		t.Errorf("state round trip mismatch: %+v", got.State)
	}
	if got.ChangeLogID != "c-1" || got.Reason != "pre-edit checkpoint" {
		t.Errorf("metadata mismatch: %+v", got)
	}
}

func TestInsertState_IdempotentByContent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	state := todo.Todo{ID: "task-1.1.1", Title: "x", Status: todo.StatusPending, Tier: todo.TierTask}
	ps := testState(t, "task-1.1.1", "c-1", state, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	if err := s.InsertState(ctx, "auth", ps); err != nil {
		t.Fatalf("first InsertState() failed: %v", err)
	}
	if err := s.InsertState(ctx, "auth", ps); err != nil {
		t.Fatalf("second InsertState() should be a no-op, got: %v", err)
	}

	states, err := s.ListStates(ctx, "auth", "task-1.1.1")
	if err != nil {
		t.Fatalf("ListStates() failed: %v", err)
	}
	if len(states) != 1 {
		t.Errorf("got %d states, want 1 (content-addressed dedupe)", len(states))
	}
}

func TestListStates_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"v1", "v2", "v3"} {
		state := todo.Todo{ID: "task-1.1.1", Title: title, Status: todo.StatusPending, Tier: todo.TierTask}
		ps := testState(t, "task-1.1.1", "c-1", state, base.Add(time.Duration(i)*time.Minute))
		if err := s.InsertState(ctx, "auth", ps); err != nil {
			t.Fatalf("InsertState(%s) failed: %v", title, err)
		}
	}

	states, err := s.ListStates(ctx, "auth", "task-1.1.1")
	if err != nil {
		t.Fatalf("ListStates() failed: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("got %d states, want 3", len(states))
	}
	if states[0].State.Title != "v3" || states[2].State.Title != "v1" {
		t.Errorf("order wrong: %s, %s, %s",
			states[0].State.Title, states[1].State.Title, states[2].State.Title)
	}
}

func TestInsertRollback_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rb := todo.Rollback{
		ID:             "rb-1",
		TodoID:         "task-1.1.1",
		RolledBackFrom: "state-from",
		RolledBackTo:   "state-to",
		Type:           todo.RollbackSelective,
		Fields:         []string{todo.FieldStatus},
		Conflicts: []todo.RollbackConflict{{
			Field:        todo.FieldTitle,
			CurrentValue: "newer title",
			ChangeLogIDs: []string{"c-5"},
			Severity:     todo.PriorityMedium,
		}},
		Status:    todo.RollbackCompleted,
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Reason:    "undo accidental edit",
	}
	if err := s.InsertRollback(ctx, "auth", rb); err != nil {
		t.Fatalf("InsertRollback() failed: %v", err)
	}

	records, err := s.ListRollbacks(ctx, "auth", "task-1.1.1")
	if err != nil {
		t.Fatalf("ListRollbacks() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.Type != todo.RollbackSelective || got.Status != todo.RollbackCompleted {
		t.Errorf("record = %+v", got)
	}
	if len(got.Fields) != 1 || got.Fields[0] != todo.FieldStatus {
		t.Errorf("fields = %v", got.Fields)
	}
	if len(got.Conflicts) != 1 || got.Conflicts[0].Field != todo.FieldTitle {
		t.Errorf("conflicts = %+v", got.Conflicts)
	}

	// Unfiltered listing sees the same record; other todos see nothing.
	all, err := s.ListRollbacks(ctx, "auth", "")
	if err != nil {
		t.Fatalf("ListRollbacks(all) failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d records, want 1", len(all))
	}
	other, err := s.ListRollbacks(ctx, "auth", "task-2.2.2")
	if err != nil {
		t.Fatalf("ListRollbacks(other) failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d records for unrelated todo, want 0", len(other))
	}
}

func TestSuppressions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSuppression(ctx, "auth", "session-start-unreviewed")
	if err != nil {
		t.Fatalf("GetSuppression() failed: %v", err)
	}
	if ok {
		t.Error("expected no suppression initially")
	}

	until := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	if err := s.UpsertSuppression(ctx, "auth", "session-start-unreviewed", until); err != nil {
		t.Fatalf("UpsertSuppression() failed: %v", err)
	}
	got, ok, err := s.GetSuppression(ctx, "auth", "session-start-unreviewed")
	if err != nil {
		t.Fatalf("GetSuppression() failed: %v", err)
	}
	if !ok || !got.Equal(until) {
		t.Errorf("suppression = %v/%v, want %v/true", got, ok, until)
	}

	// Upsert extends the window in place.
	later := until.Add(24 * time.Hour)
	if err := s.UpsertSuppression(ctx, "auth", "session-start-unreviewed", later); err != nil {
		t.Fatalf("second UpsertSuppression() failed: %v", err)
	}
	got, _, err = s.GetSuppression(ctx, "auth", "session-start-unreviewed")
	if err != nil {
		t.Fatalf("GetSuppression() failed: %v", err)
	}
	if !got.Equal(later) {
		t.Errorf("suppression = %v, want %v", got, later)
	}
}
