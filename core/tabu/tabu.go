// Package tabu implements a reactive tabu list over integer move attributes.
//
// Time is an internal counter advanced once per Update. An attribute is active
// while the counter has not moved more than the tenure past its last use. The
// tenure grows by one when an attribute is reused in the same cycle and shrinks
// by one when a move undoes a recent one.
package tabu

import "math"

type attribute struct {
	counter int
	f, diff int
	used    int
	ltm     int
}

// List is a tabu list over attributes 0..n-1.
type List struct {
	attrs     []attribute
	counter   int
	tenure    int
	maxTenure int
	lastClear int
	used      int
}

// New returns a list of n attributes with the given initial tenure.
func New(n, tenure int) *List {
	l := &List{attrs: make([]attribute, n), tenure: max(tenure, 1)}
	for i := range l.attrs {
		l.attrs[i].counter = math.MinInt32
	}
	return l
}

// Len returns the number of attributes.
func (l *List) Len() int { return len(l.attrs) }

// Tenure returns the current tenure.
func (l *List) Tenure() int { return l.tenure }

// MaxTenure returns the largest tenure reached so far.
func (l *List) MaxTenure() int { return l.maxTenure }

// LongTermMemory returns how many times attr was committed.
func (l *List) LongTermMemory(attr int) int { return l.attrs[attr].ltm }

// Clear expires every attribute. A positive tenure replaces the current one.
func (l *List) Clear(tenure int) {
	if tenure > 0 {
		l.tenure = tenure
	}
	l.counter += 2 * l.tenure
	l.lastClear = l.counter
	l.used = 0
}

// Active reports whether attr is still tabu.
func (l *List) Active(attr int) bool {
	return l.counter <= l.attrs[attr].counter+l.tenure
}

// Tabu reports whether a move with reverse attribute attr, reaching objective f
// with change diff, is forbidden. A move that improves on the objective
// recorded for the attribute while both steps descend is allowed.
func (l *List) Tabu(attr, f, diff int) bool {
	a := &l.attrs[attr]
	return l.Active(attr) && !(f < a.f && a.diff <= 0 && diff < 0)
}

// Update commits a move with attribute attr and reverse attribute rev.
// perturbation shifts the expiry of attr.
func (l *List) Update(attr, rev, f, diff, perturbation int) {
	a := &l.attrs[attr]
	if a.counter <= l.lastClear {
		l.used++
	}
	if l.used >= len(l.attrs) {
		l.Clear(1)
	}

	delta := 0
	if l.Active(rev) {
		delta--
	} else if a.counter > l.lastClear && a.used == l.used {
		// cycling
		delta++
		l.lastClear = l.counter
		l.used = 0
	}
	l.tenure = max(1, l.tenure+delta)

	a.counter = l.counter + perturbation
	a.f = f
	a.diff = diff
	a.used = l.used
	a.ltm++
	l.counter++
	l.maxTenure = max(l.maxTenure, l.tenure)
}
