package csp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/model"
)

// twoChoices declares activities a and b with two modes each and the hard
// budget [a in mode 0] + [b in mode 0] <= rhs.
func twoChoices(t *testing.T, rhs int) *model.Problem {
	t.Helper()
	p := model.New()
	c := p.AddNrr("budget", model.Inf)
	c.Rhs = rhs
	for _, name := range []string{"a", "b"} {
		a, err := p.AddActivity(name)
		require.NoError(t, err)
		for _, suffix := range []string{"1", "2"} {
			m, err := p.AddMode(name+suffix, 1)
			require.NoError(t, err)
			_, err = p.AttachMode(a, m)
			require.NoError(t, err)
		}
		m, _ := p.Mode(name + "1")
		require.NoError(t, p.AddTerm(c, 1, a, m))
	}
	return p
}

func TestMakeFeasibleRepairsExcess(t *testing.T) {
	p := twoChoices(t, 1)
	s := New(p)
	assert.Equal(t, 6, s.Limit())

	modes := make([]int, 4)
	require.True(t, s.MakeFeasible(modes, -1))
	assert.Zero(t, p.Nrrs[0].Excess(modes))
	assert.Equal(t, 1, modes[2]+modes[3])
}

func TestMakeFeasibleKeepsFixedActivity(t *testing.T) {
	p := twoChoices(t, 1)
	s := New(p)
	modes := make([]int, 4)
	require.True(t, s.MakeFeasible(modes, 2))
	assert.Equal(t, []int{0, 0, 0, 1}, modes)
}

func TestMakeFeasibleFailureLeavesModes(t *testing.T) {
	p := twoChoices(t, -1)
	s := New(p)
	s.SetLimit(20)
	modes := []int{0, 0, 1, 0}
	assert.False(t, s.MakeFeasible(modes, -1))
	assert.Equal(t, []int{0, 0, 1, 0}, modes)
}

func TestSoftConstraintsAreIgnored(t *testing.T) {
	p := model.New()
	c := p.AddNrr("soft", 3)
	c.Rhs = -5
	s := New(p)
	assert.True(t, s.Empty())
	assert.True(t, s.MakeFeasible([]int{0, 0}, -1))
}
