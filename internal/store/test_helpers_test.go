package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fernworks/docket/internal/testutil"
	"github.com/fernworks/docket/internal/todo"
)

// createTestStore creates a file-backed store in a temp directory with a
// deterministic clock (1s step).
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.SetClock(testutil.NewDeterministicClock(
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), time.Second).Now)
	t.Cleanup(func() { s.Close() })
	return s
}

// createHierarchy saves a feature/phase/session/task chain and returns the
// leaf task id.
func createHierarchy(t *testing.T, s *Store, feature string) string {
	t.Helper()
	ctx := context.Background()
	chain := []todo.Todo{
		{ID: "feature-" + feature, Title: feature + " feature", Status: todo.StatusInProgress, Tier: todo.TierFeature},
		{ID: "phase-1", Title: "first phase", Status: todo.StatusInProgress, Tier: todo.TierPhase, ParentID: "feature-" + feature},
		{ID: "session-1.1", Title: "first session", Status: todo.StatusPending, Tier: todo.TierSession, ParentID: "phase-1"},
		{ID: "task-1.1.1", Title: "first task", Status: todo.StatusPending, Tier: todo.TierTask, ParentID: "session-1.1"},
	}
	for _, td := range chain {
		if _, err := s.SaveTodo(ctx, feature, td); err != nil {
			t.Fatalf("SaveTodo(%s) failed: %v", td.ID, err)
		}
	}
	return "task-1.1.1"
}

// appendTestChange appends a minimal entry of the given type for a todo.
func appendTestChange(t *testing.T, s *Store, feature, todoID string, ct todo.ChangeType, after map[string]any) todo.ChangeLogEntry {
	t.Helper()
	entry, err := s.AppendChange(context.Background(), feature, todo.ChangeLogEntry{
		ChangeType: ct,
		Tier:       todo.TierTask,
		TodoID:     todoID,
		After:      after,
	})
	if err != nil {
		t.Fatalf("AppendChange(%s) failed: %v", ct, err)
	}
	return entry
}

// createTestCitation builds a citation with the given id and todo.
func createTestCitation(id, todoID, changeLogID string) todo.Citation {
	return todo.Citation{
		ID:          id,
		TodoID:      todoID,
		ChangeLogID: changeLogID,
		Type:        todo.CitationStatusChange,
		Priority:    todo.PriorityMedium,
		Context:     []todo.CitationContext{todo.ContextSessionStart},
		CreatedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}
