package todo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTier_ChildParent(t *testing.T) {
	child, ok := TierFeature.Child()
	assert.True(t, ok)
	assert.Equal(t, TierPhase, child)

	child, ok = TierSession.Child()
	assert.True(t, ok)
	assert.Equal(t, TierTask, child)

	_, ok = TierTask.Child()
	assert.False(t, ok, "task is the leaf tier")

	parent, ok := TierTask.Parent()
	assert.True(t, ok)
	assert.Equal(t, TierSession, parent)

	_, ok = TierFeature.Parent()
	assert.False(t, ok, "feature is the root tier")
}

func TestPriority_Ordering(t *testing.T) {
	assert.True(t, PriorityCritical.AtLeast(PriorityHigh))
	assert.True(t, PriorityHigh.AtLeast(PriorityHigh))
	assert.False(t, PriorityMedium.AtLeast(PriorityHigh))
	assert.False(t, PriorityLow.AtLeast(PriorityMedium))

	// Unknown priorities never satisfy a threshold, in either position.
	assert.False(t, Priority("urgent").AtLeast(PriorityLow))
	assert.False(t, PriorityCritical.AtLeast(Priority("urgent")))

	assert.False(t, Priority("urgent").Valid())
	assert.True(t, PriorityLow.Valid())
}

func TestTodo_Snapshot_CoversAllFields(t *testing.T) {
	td := Todo{
		ID:        "task-1.1.1",
		Title:     "wire the retry loop",
		Status:    StatusInProgress,
		Tier:      TierTask,
		ParentID:  "session-1.1",
		BlockedBy: []string{"task-1.1.2"},
		Tags:      []string{"backend"},
	}

	snap := td.Snapshot()
	assert.Len(t, snap, len(SnapshotFields))
	for _, f := range SnapshotFields {
		_, present := snap[f]
		assert.True(t, present, "snapshot missing field %q", f)
	}
	assert.Equal(t, "wire the retry loop", snap[FieldTitle])
	assert.Equal(t, StatusInProgress, snap[FieldStatus])
}

func TestTodo_SnapshotField_Unknown(t *testing.T) {
	td := Todo{}
	_, ok := td.SnapshotField("created_at")
	assert.False(t, ok, "timestamps are bookkeeping, not snapshot state")
}
