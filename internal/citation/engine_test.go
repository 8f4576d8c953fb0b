package citation

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

func appendChange(t *testing.T, s *store.Store, ct todo.ChangeType, propagated bool) todo.ChangeLogEntry {
	t.Helper()
	entry, err := s.AppendChange(context.Background(), feature, todo.ChangeLogEntry{
		ChangeType:           ct,
		Tier:                 todo.TierTask,
		TodoID:               "task-1.1.1",
		After:                map[string]any{todo.FieldStatus: "in_progress"},
		Reason:               "test change",
		PropagationTriggered: propagated,
	})
	require.NoError(t, err)
	return entry
}

func TestCreate_Valid(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	entry := appendChange(t, s, todo.ChangeStatusChanged, false)

	c, err := e.Create(ctx, feature, "task-1.1.1", entry.ID,
		todo.CitationStatusChange, []todo.CitationContext{todo.ContextSessionStart},
		todo.PriorityHigh, &Metadata{Reason: "needs a look", RequiresReview: true})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, entry.ID, c.ChangeLogID)
	assert.True(t, c.RequiresReview)
	assert.False(t, c.Reviewed())
	assert.False(t, c.Dismissed())

	live, err := e.Lookup(ctx, feature, "task-1.1.1", "")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, c.ID, live[0].ID)
}

func TestCreate_Rejections(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	entry := appendChange(t, s, todo.ChangeStatusChanged, false)

	_, err := e.Create(ctx, feature, "task-1.1.1", entry.ID,
		todo.CitationStatusChange, nil, todo.Priority("urgent"), nil)
	assert.True(t, todo.IsValidation(err), "unknown priority: %v", err)

	_, err = e.Create(ctx, feature, "task-1.1.1", entry.ID,
		todo.CitationStatusChange, []todo.CitationContext{"sprint-start"}, todo.PriorityLow, nil)
	assert.True(t, todo.IsValidation(err), "unknown junction: %v", err)

	_, err = e.Create(ctx, feature, "task-1.1.1", "c-404",
		todo.CitationStatusChange, nil, todo.PriorityLow, nil)
	assert.True(t, todo.IsNotFound(err), "dangling changelog reference: %v", err)
}

func TestCreateFromChange_CitabilityTable(t *testing.T) {
	tests := []struct {
		changeType todo.ChangeType
		citable    bool
		ctype      todo.CitationType
		priority   todo.Priority
	}{
		{todo.ChangeCreated, true, todo.CitationStructureChange, todo.PriorityMedium},
		{todo.ChangeUpdated, true, todo.CitationContentChange, todo.PriorityLow},
		{todo.ChangeDeleted, true, todo.CitationStructureChange, todo.PriorityCritical},
		{todo.ChangeMoved, true, todo.CitationStructureChange, todo.PriorityHigh},
		{todo.ChangeStatusChanged, true, todo.CitationStatusChange, todo.PriorityHigh},
		{todo.ChangePropagationUpdate, true, todo.CitationPropagation, todo.PriorityMedium},
		{todo.ChangePropagationBlocked, true, todo.CitationPropagation, todo.PriorityHigh},
		{todo.ChangeRollbackApplied, true, todo.CitationRollback, todo.PriorityHigh},
		{todo.ChangeSnapshotTaken, false, "", ""},
	}

	// The table must cover every change type the log accepts.
	assert.Len(t, tests, len(todo.ValidChangeTypes))

	for _, tt := range tests {
		t.Run(string(tt.changeType), func(t *testing.T) {
			e, s := newTestEngine(t)
			ctx := context.Background()
			entry := appendChange(t, s, tt.changeType, false)

			c, err := e.CreateFromChange(ctx, feature, "task-1.1.1", entry.ID, nil)
			require.NoError(t, err)

			if !tt.citable {
				assert.Nil(t, c, "%s is bookkeeping, not citation-worthy", tt.changeType)
				return
			}
			require.NotNil(t, c)
			assert.Equal(t, tt.ctype, c.Type)
			assert.Equal(t, tt.priority, c.Priority)
			assert.Equal(t, c.Priority.AtLeast(todo.PriorityHigh), c.RequiresReview)
		})
	}
}

func TestCreateFromChange_PropagationEscalates(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// propagation_update is medium at rest, high when the entry itself
	// was triggered by propagation.
	entry := appendChange(t, s, todo.ChangePropagationUpdate, true)
	c, err := e.CreateFromChange(ctx, feature, "task-1.1.1", entry.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, todo.PriorityHigh, c.Priority)
	assert.True(t, c.RequiresReview)

	// Escalation caps at critical.
	entry = appendChange(t, s, todo.ChangeDeleted, true)
	c, err = e.CreateFromChange(ctx, feature, "task-1.1.1", entry.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, todo.PriorityCritical, c.Priority)
}

func TestLookup_JunctionFilter(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	entry := appendChange(t, s, todo.ChangeStatusChanged, false)

	_, err := e.Create(ctx, feature, "task-1.1.1", entry.ID, todo.CitationStatusChange,
		[]todo.CitationContext{todo.ContextSessionStart}, todo.PriorityLow, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, feature, "task-1.1.1", entry.ID, todo.CitationStatusChange,
		nil, todo.PriorityLow, nil) // no contexts: relevant everywhere
	require.NoError(t, err)

	atSessionStart, err := e.Lookup(ctx, feature, "task-1.1.1", todo.ContextSessionStart)
	require.NoError(t, err)
	assert.Len(t, atSessionStart, 2)

	atTaskStart, err := e.Lookup(ctx, feature, "task-1.1.1", todo.ContextTaskStart)
	require.NoError(t, err)
	assert.Len(t, atTaskStart, 1, "junction-scoped citation stays out of other junctions")
}

func TestDismiss_NeverReappears(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	entry := appendChange(t, s, todo.ChangeStatusChanged, false)

	c, err := e.Create(ctx, feature, "task-1.1.1", entry.ID, todo.CitationStatusChange,
		[]todo.CitationContext{todo.ContextSessionStart}, todo.PriorityHigh, nil)
	require.NoError(t, err)

	require.NoError(t, e.Dismiss(ctx, feature, "task-1.1.1", c.ID))

	for _, junction := range []todo.CitationContext{"", todo.ContextSessionStart} {
		live, err := e.Lookup(ctx, feature, "task-1.1.1", junction)
		require.NoError(t, err)
		assert.Empty(t, live, "dismissed citation surfaced at junction %q", junction)
	}

	// Dismissal is terminal: a later review attempt is rejected.
	err = e.Review(ctx, feature, "task-1.1.1", c.ID)
	assert.True(t, todo.IsValidation(err), "got %v", err)

	// Dismissing again is a no-op, not an error.
	assert.NoError(t, e.Dismiss(ctx, feature, "task-1.1.1", c.ID))
}

func TestReview_Idempotent(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	entry := appendChange(t, s, todo.ChangeStatusChanged, false)

	c, err := e.Create(ctx, feature, "task-1.1.1", entry.ID, todo.CitationStatusChange,
		nil, todo.PriorityHigh, nil)
	require.NoError(t, err)

	require.NoError(t, e.Review(ctx, feature, "task-1.1.1", c.ID))
	live, err := e.Lookup(ctx, feature, "task-1.1.1", "")
	require.NoError(t, err)
	require.Len(t, live, 1)
	first := live[0].ReviewedAt
	require.NotNil(t, first)

	require.NoError(t, e.Review(ctx, feature, "task-1.1.1", c.ID))
	live, err = e.Lookup(ctx, feature, "task-1.1.1", "")
	require.NoError(t, err)
	assert.True(t, live[0].ReviewedAt.Equal(*first), "review instant must not move")
}

func TestReviewDismiss_NotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	assert.True(t, todo.IsNotFound(e.Review(ctx, feature, "task-1.1.1", "nope")))
	assert.True(t, todo.IsNotFound(e.Dismiss(ctx, feature, "task-1.1.1", "nope")))
}

func TestQuery_Filters(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	entry := appendChange(t, s, todo.ChangeStatusChanged, false)

	low, err := e.Create(ctx, feature, "task-1.1.1", entry.ID, todo.CitationContentChange,
		nil, todo.PriorityLow, nil)
	require.NoError(t, err)
	high, err := e.Create(ctx, feature, "task-1.1.2", entry.ID, todo.CitationStatusChange,
		nil, todo.PriorityHigh, nil)
	require.NoError(t, err)
	dismissed, err := e.Create(ctx, feature, "task-1.1.1", entry.ID, todo.CitationStatusChange,
		nil, todo.PriorityCritical, nil)
	require.NoError(t, err)
	require.NoError(t, e.Review(ctx, feature, "task-1.1.2", high.ID))
	require.NoError(t, e.Dismiss(ctx, feature, "task-1.1.1", dismissed.ID))

	all, err := e.Query(ctx, feature, QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "dismissed excluded by default")

	withDismissed, err := e.Query(ctx, feature, QueryFilter{IncludeDismissed: true})
	require.NoError(t, err)
	assert.Len(t, withDismissed, 3)

	byTodo, err := e.Query(ctx, feature, QueryFilter{TodoID: "task-1.1.1"})
	require.NoError(t, err)
	require.Len(t, byTodo, 1)
	assert.Equal(t, low.ID, byTodo[0].ID)

	byPriority, err := e.Query(ctx, feature, QueryFilter{MinPriority: todo.PriorityMedium})
	require.NoError(t, err)
	require.Len(t, byPriority, 1)
	assert.Equal(t, high.ID, byPriority[0].ID)

	unreviewed := false
	byReview, err := e.Query(ctx, feature, QueryFilter{Reviewed: &unreviewed})
	require.NoError(t, err)
	require.Len(t, byReview, 1)
	assert.Equal(t, low.ID, byReview[0].ID)

	byType, err := e.Query(ctx, feature, QueryFilter{Type: todo.CitationContentChange})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, low.ID, byType[0].ID)
}
