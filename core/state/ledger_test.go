package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/timeline"
)

func TestDeclaredFacts(t *testing.T) {
	l := NewLedger([]model.StateFact{{Time: 5, Value: 2}, {Time: 8, Value: 3}})
	assert.Equal(t, 0, l.Value(0))
	assert.Equal(t, 0, l.Value(4))
	assert.Equal(t, 2, l.Value(5))
	assert.Equal(t, 3, l.Value(100))

	e := l.Entry(l.Find(6))
	assert.Equal(t, Entry{Origin: Scheduled, Index: 1, Activity: -1, Value: 2}, e)
}

func TestChangeAndUndo(t *testing.T) {
	l := NewLedger([]model.StateFact{{Time: 10, Value: 4}})
	before := l.History(timeline.Inf)

	l.Change(3, 7, 1)
	assert.Equal(t, 0, l.Value(2))
	assert.Equal(t, 1, l.Value(3))
	assert.Equal(t, 1, l.Value(9))
	assert.Equal(t, 4, l.Value(10))
	e := l.Entry(l.Find(5))
	assert.Equal(t, RuntimeSet, e.Origin)
	assert.Equal(t, 7, e.Activity)

	l.Change(6, 8, 2)
	assert.Equal(t, 2, l.Value(7))
	l.Undo(6)
	assert.Equal(t, 1, l.Value(7))
	l.Undo(3)
	if diff := cmp.Diff(before, l.History(timeline.Inf)); diff != "" {
		t.Fatalf("history not restored (-want +got):\n%s", diff)
	}
}

func TestUndoIgnoresDeclaredFacts(t *testing.T) {
	l := NewLedger([]model.StateFact{{Time: 4, Value: 1}})
	before := l.History(timeline.Inf)
	l.Undo(4)
	l.Undo(2)
	assert.Equal(t, before, l.History(timeline.Inf))
}

func TestChangeOnSegmentStart(t *testing.T) {
	l := NewLedger([]model.StateFact{{Time: 4, Value: 1}})
	l.Change(4, 3, 9)
	assert.Equal(t, 1, l.Value(4), "declared fact wins")

	l.Change(6, 3, 9)
	assert.Panics(t, func() { l.Change(6, 5, 2) })
	assert.Panics(t, func() { l.Undo(7) })
}

func TestClearDropsRuntimeChanges(t *testing.T) {
	l := NewLedger([]model.StateFact{{Time: 10, Value: 4}, {Time: 20, Value: 5}})
	before := l.History(timeline.Inf)
	l.Change(3, 1, 1)
	l.Change(12, 2, 2)
	l.Change(15, 3, 3)
	require.Equal(t, 3, l.Value(16))

	l.Clear()
	assert.Equal(t, before, l.History(timeline.Inf))
	assert.Len(t, l.entries, 3)
	assert.Equal(t, 4, l.Value(16))
}
