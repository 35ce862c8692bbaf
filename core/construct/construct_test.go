package construct

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/network"
	"github.com/kilianp07/rcpsched/core/random"
	"github.com/kilianp07/rcpsched/core/solution"
	"github.com/kilianp07/rcpsched/infra/logger"
)

type fixture struct {
	p   *model.Problem
	nw  *network.Network
	s   *Scheduler
	sol *solution.Solution
}

func setup(t *testing.T, p *model.Problem, cfg Config, order []int) *fixture {
	t.Helper()
	require.NoError(t, p.Prepare(logger.NopLogger{}))
	nw, err := network.Build(p)
	require.NoError(t, err)
	s, err := New(p, nw, cfg, random.New(1), logger.NopLogger{})
	require.NoError(t, err)
	sol := solution.New(len(p.Activities), len(p.Resources))
	if order == nil {
		order, err = nw.Order(make([]int, len(p.Activities)))
		require.NoError(t, err)
	}
	sol.SetOrder(order)
	return &fixture{p: p, nw: nw, s: s, sol: sol}
}

// activity declares name with one mode per duration, named name1, name2...
func activity(t *testing.T, p *model.Problem, name string, durations ...int) *model.Activity {
	t.Helper()
	a, err := p.AddActivity(name)
	require.NoError(t, err)
	for i, d := range durations {
		m, err := p.AddMode(name+string(rune('1'+i)), d)
		require.NoError(t, err)
		_, err = p.AttachMode(a, m)
		require.NoError(t, err)
	}
	return a
}

func worked(ex []solution.Execution) int {
	n := 0
	for _, e := range ex {
		n += (e.To - e.From) * e.Parallel
	}
	return n
}

func TestChainIsPlacedBackToBack(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 3)
	b := activity(t, p, "b", 2)
	_, err := p.AddTemporal("", a, b, model.CS, 0, nil, nil)
	require.NoError(t, err)
	f := setup(t, p, DefaultConfig(), nil)

	require.NoError(t, f.s.Schedule(f.sol))
	require.True(t, f.sol.Feasible())
	assert.Zero(t, f.sol.Objective)
	assert.Zero(t, f.sol.Evaluation)
	assert.Equal(t, []solution.Execution{{From: 0, To: 0, Parallel: 0}, {From: 0, To: 3, Parallel: 1}, {From: 3, To: 3, Parallel: 0}}, f.sol.Executions[a.ID])
	assert.Equal(t, []solution.Execution{{From: 3, To: 3, Parallel: 0}, {From: 3, To: 5, Parallel: 1}, {From: 5, To: 5, Parallel: 0}}, f.sol.Executions[b.ID])
	assert.Equal(t, 5, f.sol.Start(model.SinkID))
	for i, act := range p.Activities {
		assert.Equal(t, act.Modes[0].Duration, worked(f.sol.Executions[i]), act.Name)
	}
}

func TestResourceConflictDelaysSecondActivity(t *testing.T) {
	p := model.New()
	r, err := p.AddResource("crane")
	require.NoError(t, err)
	require.NoError(t, r.SetCapacity(1, 1, Inf))
	a := activity(t, p, "a", 2)
	b := activity(t, p, "b", 2)
	for _, act := range []*model.Activity{a, b} {
		require.NoError(t, act.Modes[0].SetRequirement(r.ID, 1, 1, 2, false, false))
	}
	f := setup(t, p, DefaultConfig(), []int{0, a.ID, b.ID, 1})

	require.NoError(t, f.s.Schedule(f.sol))
	require.True(t, f.sol.Feasible())
	assert.Equal(t, []solution.Execution{{From: 0, To: 0, Parallel: 0}, {From: 0, To: 2, Parallel: 1}, {From: 2, To: 2, Parallel: 0}}, f.sol.Executions[a.ID])
	assert.Equal(t, []solution.Execution{{From: 2, To: 2, Parallel: 0}, {From: 2, To: 4, Parallel: 1}, {From: 4, To: 4, Parallel: 0}}, f.sol.Executions[b.ID])

	l := f.s.Ledger(r.ID)
	for tm, free := range map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 1} {
		assert.Equal(t, free, l.Free(tm), "time %d", tm)
	}
}

func TestParallelWidth(t *testing.T) {
	p := model.New()
	r, err := p.AddResource("crew")
	require.NoError(t, err)
	require.NoError(t, r.SetCapacity(2, 1, Inf))
	a := activity(t, p, "a", 4)
	m := a.Modes[0]
	require.NoError(t, m.SetMaxParallel(2, 1, 4))
	require.NoError(t, m.SetRequirement(r.ID, 1, 1, 4, false, false))
	f := setup(t, p, DefaultConfig(), nil)

	require.NoError(t, f.s.Schedule(f.sol))
	assert.Equal(t, []solution.Execution{{From: 0, To: 0, Parallel: 0}, {From: 0, To: 2, Parallel: 2}, {From: 2, To: 2, Parallel: 0}}, f.sol.Executions[a.ID])
	assert.Equal(t, 0, f.s.Ledger(r.ID).Free(2))
	assert.Equal(t, 2, f.s.Ledger(r.ID).Free(3))
}

func TestBreakAroundCapacityHole(t *testing.T) {
	tests := []struct {
		name     string
		maxBreak int
		want     []solution.Execution
	}{
		{"break allowed", 1, []solution.Execution{{From: 0, To: 0, Parallel: 0}, {From: 0, To: 1, Parallel: 1}, {From: 2, To: 3, Parallel: 1}, {From: 3, To: 3, Parallel: 0}}},
		{"no break", 0, []solution.Execution{{From: 2, To: 2, Parallel: 0}, {From: 2, To: 4, Parallel: 1}, {From: 4, To: 4, Parallel: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.New()
			r, err := p.AddResource("line")
			require.NoError(t, err)
			require.NoError(t, r.SetCapacity(1, 1, Inf))
			require.NoError(t, r.SetCapacity(0, 2, 2))
			a := activity(t, p, "a", 2)
			m := a.Modes[0]
			require.NoError(t, m.SetRequirement(r.ID, 1, 1, 2, false, false))
			if tt.maxBreak > 0 {
				require.NoError(t, m.SetMaxBreak(tt.maxBreak, 1, 1))
			}
			f := setup(t, p, DefaultConfig(), nil)

			require.NoError(t, f.s.Schedule(f.sol))
			require.True(t, f.sol.Feasible())
			if diff := cmp.Diff(tt.want, f.sol.Executions[a.ID]); diff != "" {
				t.Errorf("executions mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 2, worked(f.sol.Executions[a.ID]))
		})
	}
}

func TestDueDatePenalty(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 3)
	a.Completion = model.DueDate{Time: 2, Weight: 5}
	f := setup(t, p, DefaultConfig(), nil)

	require.NoError(t, f.s.Schedule(f.sol))
	assert.Equal(t, 5, f.sol.Objective)
	assert.InDelta(t, 5.0, f.sol.Evaluation, 1e-9)
	assert.Equal(t, []solution.Violation{{Kind: solution.DueDate, ID: a.ID, Penalty: 5}}, f.sol.Violations)

	f.s.Weights().Raise(p, f.sol)
	assert.InDelta(t, 6.0, f.s.Weights().Completion[a.ID], 1e-9)
	require.NoError(t, f.s.Schedule(f.sol))
	assert.Equal(t, 5, f.sol.Objective)
	assert.InDelta(t, 6.0, f.sol.Evaluation, 1e-9)
}

func TestTemporalViolationShiftsList(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 2)
	b := activity(t, p, "b", 1)
	_, err := p.AddTemporal("", b, a, model.CS, 0, nil, nil)
	require.NoError(t, err)
	f := setup(t, p, DefaultConfig(), []int{0, a.ID, b.ID, 1})

	require.NoError(t, f.s.Schedule(f.sol))
	require.True(t, f.sol.Feasible())
	assert.Equal(t, []int{0, b.ID, a.ID, 1}, f.sol.Order(0))
	assert.Equal(t, 1, f.sol.Start(a.ID))
	assert.Equal(t, 3, f.sol.Start(model.SinkID))
}

func TestBacktrackLimitStopsPass(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 2)
	b := activity(t, p, "b", 1)
	c, err := p.AddTemporal("", b, a, model.CS, 0, nil, nil)
	require.NoError(t, err)
	f := setup(t, p, Config{MaxBacktracks: 0, MaxViolationCount: 10}, []int{0, a.ID, b.ID, 1})

	require.NoError(t, f.s.Schedule(f.sol))
	assert.False(t, f.sol.Feasible())
	assert.Equal(t, 2, f.sol.Assigned())
	assert.Equal(t, BigM+2, f.sol.Objective)
	assert.InDelta(t, float64(BigM+2)*MaxWeightMultiplier, f.sol.Evaluation, 1)
	assert.Contains(t, f.sol.Violations, solution.Violation{Kind: solution.Temporal, ID: c.ID, Penalty: Inf})
	assert.Empty(t, f.sol.Executions[b.ID])
}

func TestViolationCeilingStopsPass(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 2)
	b := activity(t, p, "b", 1)
	c, err := p.AddTemporal("", b, a, model.CS, 0, nil, nil)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.MaxViolationCount = 0
	f := setup(t, p, cfg, []int{0, a.ID, b.ID, 1})

	require.NoError(t, f.s.Schedule(f.sol))
	assert.False(t, f.sol.Feasible())
	assert.Equal(t, 2, f.sol.Assigned())
	assert.Contains(t, f.sol.Violations, solution.Violation{Kind: solution.Temporal, ID: c.ID, Penalty: Inf})
	assert.Empty(t, f.sol.Executions[b.ID])
	assert.Equal(t, []int{0, a.ID, b.ID, 1}, f.sol.Order(0), "the list is left as is")
}

func TestNoSlotBeforeHorizon(t *testing.T) {
	p := model.New()
	r, err := p.AddResource("line")
	require.NoError(t, err)
	require.NoError(t, r.SetCapacity(1, 1, Inf))
	require.NoError(t, r.SetCapacity(0, 2, Inf))
	a := activity(t, p, "a", 2)
	require.NoError(t, a.Modes[0].SetRequirement(r.ID, 1, 1, 2, false, false))
	f := setup(t, p, DefaultConfig(), nil)

	require.NoError(t, f.s.Schedule(f.sol))
	assert.False(t, f.sol.Feasible())
	assert.Contains(t, f.sol.Violations, solution.Violation{Kind: solution.DueDate, ID: a.ID, Penalty: Inf})
	assert.Empty(t, f.sol.Executions[a.ID])
}

func TestObjectiveCeiling(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 3)
	a.Completion = model.DueDate{Time: 0, Weight: BigM / 2}
	f := setup(t, p, DefaultConfig(), nil)

	require.ErrorIs(t, f.s.Schedule(f.sol), ErrObjectiveCeiling)
	require.True(t, f.sol.Feasible())
	assert.ErrorIs(t, f.s.Evaluate(f.sol), ErrObjectiveCeiling)

	a.Completion.Weight = BigM / 3
	assert.NoError(t, f.s.Evaluate(f.sol))
	assert.Equal(t, BigM/3*3, f.sol.Objective)
}

func TestAutoSelectKeepsEarliestCompletion(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 5, 2)
	a.AutoSelect = model.AutoAll
	f := setup(t, p, DefaultConfig(), nil)

	require.NoError(t, f.s.Schedule(f.sol))
	assert.Equal(t, 1, f.sol.Modes[a.ID])
	assert.Equal(t, 2, f.sol.Completion(a.ID))
}

func TestBackwardActivityEndsAtDueDate(t *testing.T) {
	p := model.New()
	a := activity(t, p, "a", 3)
	a.Completion = model.DueDate{Time: 10, Weight: 1}
	require.NoError(t, p.SetBackward(a, true))
	f := setup(t, p, DefaultConfig(), nil)

	require.NoError(t, f.s.Schedule(f.sol))
	require.True(t, f.sol.Feasible())
	assert.Equal(t, []solution.Execution{{From: 7, To: 7, Parallel: 0}, {From: 7, To: 10, Parallel: 1}, {From: 10, To: 10, Parallel: 0}}, f.sol.Executions[a.ID])
	assert.Zero(t, f.sol.Objective)
	assert.Equal(t, 10, f.sol.Start(model.SinkID))
}

func TestStateTransitionDelaysStart(t *testing.T) {
	p := model.New()
	st, err := p.AddState("oven")
	require.NoError(t, err)
	a := activity(t, p, "a", 2)
	b := activity(t, p, "b", 1)
	require.NoError(t, a.Modes[0].SetStateTransition(st.ID, 0, 1))
	require.NoError(t, b.Modes[0].SetStateTransition(st.ID, 1, 2))
	f := setup(t, p, DefaultConfig(), []int{0, a.ID, b.ID, 1})

	require.NoError(t, f.s.Schedule(f.sol))
	require.True(t, f.sol.Feasible())
	assert.Equal(t, 0, f.sol.Start(a.ID))
	assert.Equal(t, 1, f.sol.Start(b.ID))
	for tm, v := range map[int]int{0: 0, 1: 1, 2: 2, 50: 2} {
		assert.Equal(t, v, f.s.State(st.ID).Value(tm), "time %d", tm)
	}
}

func TestNewRejectsUnpreparedProblem(t *testing.T) {
	_, err := New(model.New(), nil, DefaultConfig(), random.New(1), logger.NopLogger{})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
