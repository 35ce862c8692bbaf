// Package timeline implements a mutable step function over integer time.
//
// A Timeline is a contiguous chain of closed segments [from,to] each carrying an
// integer key. The chain covers [from,to] of the construction call and ends with a
// one-point sentinel segment at to+1. Segments live in an arena and are linked by
// index, so splitting and removing a segment never allocates once the arena is warm.
package timeline

import (
	"fmt"
	"math"
)

// Inf is the saturating time horizon shared by every scheduling structure.
const Inf = math.MaxInt >> 1

// Ref identifies a segment of a Timeline. Refs stay valid until the segment is
// removed or the timeline is reset.
type Ref int32

// Nil is the absent segment.
const Nil Ref = -1

// Segment is a value snapshot of one segment.
type Segment struct {
	From int
	To   int
	Key  int
}

type segment struct {
	from, to, key int
	prev, next    Ref
}

// Timeline is a piecewise constant function over integer time.
type Timeline struct {
	segs  []segment
	free  []Ref
	begin Ref
	end   Ref
	pos   Ref
}

// New returns a timeline holding key on [from,to] plus the sentinel [to+1,to+1].
func New(from, to, key int) *Timeline {
	tl := &Timeline{}
	tl.Reset(from, to, key)
	return tl
}

// Reset discards every segment and re-initialises the timeline as New does.
func (tl *Timeline) Reset(from, to, key int) {
	tl.segs = tl.segs[:0]
	tl.free = tl.free[:0]
	tl.begin = tl.alloc(segment{from: from, to: to, key: key, prev: Nil, next: Nil})
	tl.end = tl.alloc(segment{from: to + 1, to: to + 1, key: key, prev: tl.begin, next: Nil})
	tl.segs[tl.begin].next = tl.end
	tl.pos = tl.begin
}

// Clone returns an independent copy of the timeline.
func (tl *Timeline) Clone() *Timeline {
	c := &Timeline{
		segs:  append([]segment(nil), tl.segs...),
		free:  append([]Ref(nil), tl.free...),
		begin: tl.begin,
		end:   tl.end,
		pos:   tl.pos,
	}
	return c
}

func (tl *Timeline) alloc(s segment) Ref {
	if n := len(tl.free); n > 0 {
		r := tl.free[n-1]
		tl.free = tl.free[:n-1]
		tl.segs[r] = s
		return r
	}
	tl.segs = append(tl.segs, s)
	return Ref(len(tl.segs) - 1)
}

// Begin returns the first segment.
func (tl *Timeline) Begin() Ref { return tl.begin }

// End returns the sentinel segment.
func (tl *Timeline) End() Ref { return tl.end }

// Cursor returns the segment found by the most recent lookup.
func (tl *Timeline) Cursor() Ref { return tl.pos }

// Rewind moves the cursor to the first segment and returns it.
func (tl *Timeline) Rewind() Ref {
	tl.pos = tl.begin
	return tl.pos
}

func (tl *Timeline) From(r Ref) int { return tl.segs[r].from }
func (tl *Timeline) To(r Ref) int   { return tl.segs[r].to }
func (tl *Timeline) Key(r Ref) int  { return tl.segs[r].key }
func (tl *Timeline) Next(r Ref) Ref { return tl.segs[r].next }
func (tl *Timeline) Prev(r Ref) Ref { return tl.segs[r].prev }

// At returns a snapshot of segment r.
func (tl *Timeline) At(r Ref) Segment {
	s := tl.segs[r]
	return Segment{From: s.from, To: s.to, Key: s.key}
}

// SetSegmentKey overwrites the key of a single segment without merging.
func (tl *Timeline) SetSegmentKey(r Ref, key int) { tl.segs[r].key = key }

// Find returns the segment containing t and moves the cursor there. It panics
// when t lies outside the timeline.
func (tl *Timeline) Find(t int) Ref {
	if t < tl.segs[tl.begin].from || t > tl.segs[tl.end].to {
		panic(fmt.Sprintf("timeline: time %d outside [%d,%d]", t, tl.segs[tl.begin].from, tl.segs[tl.end].to))
	}
	r := tl.pos
	for t < tl.segs[r].from {
		r = tl.segs[r].prev
	}
	for t > tl.segs[r].to {
		r = tl.segs[r].next
	}
	tl.pos = r
	return r
}

// Value returns the key at time t.
func (tl *Timeline) Value(t int) int { return tl.segs[tl.Find(t)].key }

// Split divides segment r so that a segment starts exactly at t and returns it.
// When r already starts at t it is returned unchanged.
func (tl *Timeline) Split(r Ref, t int) Ref {
	s := tl.segs[r]
	if t < s.from || t > s.to {
		panic(fmt.Sprintf("timeline: split at %d outside [%d,%d]", t, s.from, s.to))
	}
	if t == s.from {
		return r
	}
	n := tl.alloc(segment{from: t, to: s.to, key: s.key, prev: r, next: s.next})
	if s.next != Nil {
		tl.segs[s.next].prev = n
	}
	tl.segs[r].to = t - 1
	tl.segs[r].next = n
	if r == tl.end {
		tl.end = n
	}
	return n
}

// Remove unlinks segment r; its predecessor grows to cover r's range.
func (tl *Timeline) Remove(r Ref) {
	if r == tl.begin {
		panic("timeline: cannot remove the first segment")
	}
	s := tl.segs[r]
	tl.segs[s.prev].to = s.to
	tl.segs[s.prev].next = s.next
	if s.next != Nil {
		tl.segs[s.next].prev = s.prev
	}
	if tl.pos == r {
		tl.pos = s.prev
	}
	if tl.end == r {
		tl.end = s.prev
	}
	tl.free = append(tl.free, r)
}

func (tl *Timeline) bounds(from, to int) (first, last Ref) {
	if from > to {
		panic(fmt.Sprintf("timeline: empty range [%d,%d]", from, to))
	}
	first = tl.Split(tl.Find(from), from)
	last = tl.Split(tl.Find(to+1), to+1)
	return first, last
}

func (tl *Timeline) mergeSeams(first, last Ref) {
	if first != tl.begin && tl.segs[tl.segs[first].prev].key == tl.segs[first].key {
		tl.Remove(first)
	}
	if last != tl.end && tl.segs[tl.segs[last].prev].key == tl.segs[last].key {
		tl.Remove(last)
	}
}

// SetKey assigns key to every time in [from,to].
func (tl *Timeline) SetKey(key, from, to int) {
	first, last := tl.bounds(from, to)
	tl.segs[first].key = key
	for r := tl.segs[first].next; r != last; {
		n := tl.segs[r].next
		tl.Remove(r)
		r = n
	}
	tl.pos = first
	tl.mergeSeams(first, last)
}

// AddKey adds delta to every time in [from,to].
func (tl *Timeline) AddKey(delta, from, to int) {
	first, last := tl.bounds(from, to)
	for r := first; r != last; r = tl.segs[r].next {
		tl.segs[r].key += delta
	}
	tl.pos = first
	tl.mergeSeams(first, last)
}

// Segments returns a snapshot of the chain, sentinel included.
func (tl *Timeline) Segments() []Segment {
	var out []Segment
	for r := tl.begin; r != Nil; r = tl.segs[r].next {
		out = append(out, tl.At(r))
	}
	return out
}

// Len returns the number of linked segments, sentinel included.
func (tl *Timeline) Len() int {
	n := 0
	for r := tl.begin; r != Nil; r = tl.segs[r].next {
		n++
	}
	return n
}
