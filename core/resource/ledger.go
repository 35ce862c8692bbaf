// Package resource tracks the free capacity of a renewable resource during a
// scheduling pass together with the activities occupying it.
//
// Occupancy is stored as a second timeline whose key points at the top of a
// stack of cells; each cell names an activity and links to the cell below it.
// Consumption is undone exactly by consuming the negated amount over the same
// range, so no snapshot is ever taken.
package resource

import (
	"fmt"

	"github.com/kilianp07/rcpsched/core/timeline"
)

const (
	noCell  = -1
	endCell = -2
)

// Cell is one entry of an occupancy stack.
type Cell struct {
	Activity int
	Next     int
}

// Ledger is the per-pass view of a resource.
type Ledger struct {
	capacity *timeline.Timeline
	profile  *timeline.Timeline
	occupied *timeline.Timeline
	cells    []Cell
	maxTime  int
}

// NewLedger returns a ledger for the given capacity curve. The curve is shared,
// not copied, and must not change while the ledger is in use.
func NewLedger(capacity *timeline.Timeline) *Ledger {
	l := &Ledger{
		capacity: capacity,
		profile:  timeline.New(1, timeline.Inf, 0),
		occupied: timeline.New(1, timeline.Inf, noCell),
		maxTime:  timeline.Inf,
	}
	l.Clear()
	return l
}

// Clear restores the full capacity and drops every occupancy cell. Only the
// range touched since the previous Clear is rewritten.
func (l *Ledger) Clear() {
	c := l.capacity
	for r := c.Rewind(); r != timeline.Nil && c.From(r) <= l.maxTime; r = c.Next(r) {
		l.profile.SetKey(c.Key(r), c.From(r), c.To(r))
	}
	l.maxTime = 0
	l.cells = l.cells[:0]
	l.occupied.Reset(1, timeline.Inf, noCell)
	l.occupied.SetSegmentKey(l.occupied.End(), endCell)
}

// Profile returns the free capacity curve.
func (l *Ledger) Profile() *timeline.Timeline { return l.profile }

// Free returns the free capacity at time t.
func (l *Ledger) Free(t int) int { return l.profile.Value(t) }

// Consume takes amount units on every time of [from,to] on behalf of activity.
// A negative amount releases what the same activity took on that range.
func (l *Ledger) Consume(from, to, amount, activity int) {
	if amount == 0 {
		return
	}
	l.profile.AddKey(-amount, from, to)
	l.maxTime = max(l.maxTime, to)
	if amount > 0 {
		l.push(from, to, activity)
	} else {
		l.pop(from, activity)
	}
}

func (l *Ledger) push(from, to, activity int) {
	occ := l.occupied
	ptr := occ.Find(from)
	if cid := occ.Key(ptr); cid >= 0 && l.cells[cid].Activity == activity {
		// consecutive fractions of the same work unit land on the same time
		if from != to || occ.To(ptr) != to {
			panic(fmt.Sprintf("resource: activity %d already occupies [%d,%d]", activity, occ.From(ptr), occ.To(ptr)))
		}
		return
	}

	if occ.From(ptr) == from && ptr != occ.Begin() {
		prev := occ.Prev(ptr)
		if cid := occ.Key(prev); cid >= 0 && l.cells[cid].Activity == activity && l.cells[cid].Next == occ.Key(ptr) {
			occ.Remove(ptr)
			ptr = prev
			occ.SetSegmentKey(ptr, l.cells[cid].Next)
			if cid == len(l.cells)-1 {
				l.cells = l.cells[:cid]
			}
			from = occ.From(ptr)
		}
	}

	for ptr = occ.Split(ptr, from); occ.From(ptr) <= to; ptr = occ.Next(ptr) {
		l.cells = append(l.cells, Cell{Activity: activity, Next: occ.Key(ptr)})
		top := len(l.cells) - 1
		occ.SetSegmentKey(ptr, top)
		if to < occ.To(ptr) {
			occ.SetSegmentKey(occ.Split(ptr, to+1), l.cells[top].Next)
		}
	}
}

func (l *Ledger) pop(from, activity int) {
	occ := l.occupied
	first := occ.Find(from)
	ptr := first
	for {
		cid := occ.Key(ptr)
		if cid < 0 || l.cells[cid].Activity != activity {
			break
		}
		occ.SetSegmentKey(ptr, l.cells[cid].Next)
		if cid == len(l.cells)-1 {
			for len(l.cells) > 0 && l.cells[len(l.cells)-1].Activity == activity {
				l.cells = l.cells[:len(l.cells)-1]
			}
		}
		ptr = occ.Next(ptr)
	}
	last := ptr
	if first != occ.Begin() && occ.Key(first) == occ.Key(occ.Prev(first)) {
		occ.Remove(first)
	}
	if last != first && last != occ.Begin() && occ.Key(last) == occ.Key(occ.Prev(last)) {
		occ.Remove(last)
	}
}

// Occupants calls fn for every activity holding units on [from,to], top of
// stack first. An activity spanning several segments is reported once per
// segment.
func (l *Ledger) Occupants(from, to int, fn func(activity int)) {
	occ := l.occupied
	for r := occ.Find(from); occ.From(r) <= to; r = occ.Next(r) {
		for cid := occ.Key(r); cid >= 0; cid = l.cells[cid].Next {
			fn(l.cells[cid].Activity)
		}
		if r == occ.End() {
			break
		}
	}
}

// Occupancy returns a snapshot of the occupancy chain with every stack
// resolved to its activity ids, top first.
func (l *Ledger) Occupancy() []Occupancy {
	var out []Occupancy
	occ := l.occupied
	for r := occ.Begin(); r != occ.End(); r = occ.Next(r) {
		o := Occupancy{From: occ.From(r), To: occ.To(r)}
		for cid := occ.Key(r); cid >= 0; cid = l.cells[cid].Next {
			o.Activities = append(o.Activities, l.cells[cid].Activity)
		}
		out = append(out, o)
	}
	return out
}

// Occupancy is one segment of the occupancy chain.
type Occupancy struct {
	From       int
	To         int
	Activities []int
}

// Residuals returns the free capacity segments starting no later than horizon.
func (l *Ledger) Residuals(horizon int) []timeline.Segment {
	var out []timeline.Segment
	p := l.profile
	for r := p.Rewind(); r != p.End() && p.From(r) <= horizon; r = p.Next(r) {
		out = append(out, p.At(r))
	}
	return out
}

// Cells returns the number of live occupancy cells.
func (l *Ledger) Cells() int { return len(l.cells) }
