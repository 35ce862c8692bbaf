// Package state keeps the value history of a discrete state variable during a
// scheduling pass.
package state

import (
	"fmt"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/timeline"
)

// Origin tells where the value of a segment comes from.
type Origin uint8

const (
	// Scheduled values are declared with the instance.
	Scheduled Origin = iota
	// RuntimeSet values were written by an activity during the pass.
	RuntimeSet
)

// Entry is the value carried by a segment of the history.
type Entry struct {
	Origin Origin
	// Index is the position of the declared fact; 0 is the implicit value at time 0.
	Index    int
	Activity int
	Value    int
}

// Ledger is the per-pass history of one state.
type Ledger struct {
	values   *timeline.Timeline
	entries  []Entry
	declared int
	maxTime  int
}

// NewLedger builds the history from the declared facts applied in order on top
// of the value 0 at time 0.
func NewLedger(facts []model.StateFact) *Ledger {
	l := &Ledger{
		values:  timeline.New(0, timeline.Inf, 0),
		entries: []Entry{{Origin: Scheduled, Activity: -1}},
	}
	for _, f := range facts {
		r := l.values.Find(f.Time)
		l.values.SetKey(len(l.entries), f.Time, l.values.To(r))
		l.entries = append(l.entries, Entry{Origin: Scheduled, Index: len(l.entries), Activity: -1, Value: f.Value})
	}
	l.declared = len(l.entries)
	return l
}

// Clear drops every runtime change.
func (l *Ledger) Clear() {
	v := l.values
	for r := v.Rewind(); v.From(r) <= l.maxTime; {
		n := v.Next(r)
		for l.entries[v.Key(n)].Origin == RuntimeSet {
			n = v.Next(n)
		}
		next := v.From(n)
		v.SetKey(v.Key(r), v.From(r), next-1)
		r = v.Find(next)
	}
	l.maxTime = 0
	l.entries = l.entries[:l.declared]
}

// Change makes activity set the state to value from time on. A change at the
// start of an existing segment is ignored; it panics when that segment was
// itself set at runtime.
func (l *Ledger) Change(time, activity, value int) {
	r := l.values.Find(time)
	if l.values.From(r) == time {
		if l.Entry(r).Origin == RuntimeSet {
			panic(fmt.Sprintf("state: time %d already changed by activity %d", time, l.Entry(r).Activity))
		}
		return
	}
	l.maxTime = max(l.maxTime, time)
	l.entries = append(l.entries, Entry{Origin: RuntimeSet, Activity: activity, Value: value})
	l.values.SetKey(len(l.entries)-1, time, l.values.To(r))
}

// Undo reverts the change made at exactly time. It is a no-op when no runtime
// change starts there.
func (l *Ledger) Undo(time int) {
	v := l.values
	r := v.Find(time)
	if v.From(r) != time {
		if l.Entry(r).Origin == RuntimeSet {
			panic(fmt.Sprintf("state: undo at %d inside a change starting at %d", time, v.From(r)))
		}
		return
	}
	if l.Entry(r).Origin == Scheduled {
		return
	}
	l.maxTime = max(l.maxTime, time)
	prev := v.Prev(r)
	v.SetKey(v.Key(prev), v.From(prev), v.To(r))
}

// Find returns the segment holding time.
func (l *Ledger) Find(time int) timeline.Ref { return l.values.Find(time) }

func (l *Ledger) Next(r timeline.Ref) timeline.Ref { return l.values.Next(r) }
func (l *Ledger) From(r timeline.Ref) int          { return l.values.From(r) }

// Entry returns the value carried by segment r.
func (l *Ledger) Entry(r timeline.Ref) Entry { return l.entries[l.values.Key(r)] }

// Value returns the value at time.
func (l *Ledger) Value(time int) int { return l.Entry(l.Find(time)).Value }

// Segment is a resolved snapshot of the history.
type Segment struct {
	From  int
	To    int
	Entry Entry
}

// History returns the segments up to and including the one holding horizon.
func (l *Ledger) History(horizon int) []Segment {
	var out []Segment
	v := l.values
	for r := v.Begin(); r != v.End() && v.From(r) <= horizon; r = v.Next(r) {
		out = append(out, Segment{From: v.From(r), To: v.To(r), Entry: l.Entry(r)})
	}
	return out
}
