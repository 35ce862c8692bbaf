package resource

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/timeline"
)

type snapshot struct {
	Profile   []timeline.Segment
	Occupancy []Occupancy
	Cells     int
}

func snap(l *Ledger) snapshot {
	return snapshot{Profile: l.profile.Segments(), Occupancy: l.Occupancy(), Cells: l.Cells()}
}

func newLedger(capacity int) *Ledger {
	c := timeline.New(1, timeline.Inf, 0)
	c.SetKey(capacity, 1, timeline.Inf)
	return NewLedger(c)
}

func TestConsumeTracksOccupants(t *testing.T) {
	l := newLedger(3)
	l.Consume(2, 5, 1, 7)
	l.Consume(4, 8, 2, 9)

	assert.Equal(t, 3, l.Free(1))
	assert.Equal(t, 2, l.Free(3))
	assert.Equal(t, 0, l.Free(4))
	assert.Equal(t, 1, l.Free(7))
	assert.Equal(t, 3, l.Free(9))

	want := []Occupancy{
		{From: 1, To: 1},
		{From: 2, To: 3, Activities: []int{7}},
		{From: 4, To: 5, Activities: []int{9, 7}},
		{From: 6, To: 8, Activities: []int{9}},
		{From: 9, To: timeline.Inf},
	}
	if diff := cmp.Diff(want, l.Occupancy()); diff != "" {
		t.Fatalf("occupancy mismatch (-want +got):\n%s", diff)
	}

	var seen []int
	l.Occupants(3, 6, func(a int) { seen = append(seen, a) })
	assert.Equal(t, []int{7, 9, 7, 9}, seen)
}

func TestConsumeRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		setup func(l *Ledger)
		from  int
		to    int
		amt   int
		id    int
	}{
		{name: "empty", setup: func(*Ledger) {}, from: 3, to: 6, amt: 2, id: 4},
		{name: "overlap", setup: func(l *Ledger) { l.Consume(2, 5, 1, 7) }, from: 4, to: 8, amt: 1, id: 9},
		{name: "nested", setup: func(l *Ledger) { l.Consume(1, 20, 1, 3) }, from: 5, to: 6, amt: 1, id: 8},
		{name: "adjacent", setup: func(l *Ledger) { l.Consume(1, 3, 1, 2) }, from: 4, to: 4, amt: 2, id: 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newLedger(5)
			tc.setup(l)
			before := snap(l)
			l.Consume(tc.from, tc.to, tc.amt, tc.id)
			require.NotEqual(t, before.Profile, l.profile.Segments())
			l.Consume(tc.from, tc.to, -tc.amt, tc.id)
			if diff := cmp.Diff(before, snap(l)); diff != "" {
				t.Fatalf("ledger not restored (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConsecutiveExecutionsShareCells(t *testing.T) {
	l := newLedger(2)
	l.Consume(2, 3, 1, 7)
	l.Consume(4, 5, 1, 7)
	assert.Equal(t, 1, l.Cells())
	assert.Equal(t, []Occupancy{
		{From: 1, To: 1},
		{From: 2, To: 5, Activities: []int{7}},
		{From: 6, To: timeline.Inf},
	}, l.Occupancy())

	l.Consume(2, 3, -1, 7)
	l.Consume(4, 5, -1, 7)
	assert.Equal(t, 0, l.Cells())
	assert.Equal(t, []Occupancy{{From: 1, To: timeline.Inf}}, l.Occupancy())
	assert.Equal(t, 2, l.Free(4))
}

func TestFractionOnSameUnitIsAccepted(t *testing.T) {
	l := newLedger(4)
	l.Consume(3, 3, 1, 6)
	l.Consume(3, 3, 1, 6)
	assert.Equal(t, 2, l.Free(3))
	assert.Panics(t, func() { l.Consume(3, 4, 1, 6) })
}

func TestClearRestoresCapacity(t *testing.T) {
	c := timeline.New(1, timeline.Inf, 0)
	c.SetKey(2, 1, timeline.Inf)
	c.SetKey(0, 10, 12)
	l := NewLedger(c)
	l.Consume(1, 4, 2, 3)
	assert.Equal(t, 0, l.Free(2))
	l.Clear()
	assert.Equal(t, 2, l.Free(2))
	assert.Equal(t, 0, l.Free(11))
	assert.Equal(t, 0, l.Cells())
	assert.Equal(t, []timeline.Segment{{From: 1, To: 9, Key: 2}, {From: 10, To: 12, Key: 0}}, l.Residuals(10))
}

func TestConsumeZeroIsNoop(t *testing.T) {
	l := newLedger(1)
	before := snap(l)
	l.Consume(1, 5, 0, 2)
	assert.Equal(t, before, snap(l))
}
