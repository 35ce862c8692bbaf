// Package random provides the Park-Miller minimal standard generator used by
// the search. It is deterministic for a given seed on every platform.
package random

const (
	a = 48271
	m = 2147483647
	q = m / a
	r = m % a
)

// Source is a Park-Miller generator. The zero value is not seeded; use New.
type Source struct {
	seed  int64
	saved int64
}

// New returns a generator seeded with seed; a seed of 0 is replaced by 1.
func New(seed int64) *Source {
	s := &Source{}
	s.Seed(seed)
	return s
}

// Seed resets the generator.
func (s *Source) Seed(seed int64) {
	if seed == 0 {
		seed = 1
	}
	s.seed = seed
}

// Intn returns a value in [lo,hi]. When hi < lo it returns lo.
func (s *Source) Intn(lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	hiPart, loPart := s.seed/q, s.seed%q
	test := a*loPart - r*hiPart
	if test > 0 {
		s.seed = test
	} else {
		s.seed = test + m
	}
	span := int64(hi) - int64(lo) + 1
	return lo + int(s.seed/((m-1)/span+1))
}

// Save remembers the current state; Restore rewinds to it.
func (s *Source) Save()    { s.saved = s.seed }
func (s *Source) Restore() { s.seed = s.saved }
