// Package network derives the precedence relation between activities from the
// temporal constraints of a problem.
//
// Every activity i contributes a start node 2i and a completion node 2i+1.
// Durations and temporal constraints become weighted arcs between them; strong
// components and all-pairs longest paths over that graph decide which
// activities must come first in any activity list.
package network

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
)

// Inf is the integer horizon; unreachable node pairs are at distance -Inf.
const Inf = model.Inf

var (
	// ErrPositiveCycle reports temporal constraints that no schedule can satisfy.
	ErrPositiveCycle = errors.New("positive cycle detected in the temporal network: no feasible schedule")
	// ErrCyclicOrder reports a precedence relation that admits no activity list.
	ErrCyclicOrder = errors.New("precedence relation has no topological order")
)

type arc struct {
	from, to int64
	length   int
}

// Network is the precedence oracle of a prepared problem.
type Network struct {
	n          int
	scc        []int
	numSccs    int
	components [][]int
	precede    [][]bool
	dist       [][]int
}

// Build analyses p. Activities reachable from a backward activity are marked
// backward on p as a side effect.
func Build(p *model.Problem) (*Network, error) {
	n := len(p.Activities)
	nw := &Network{n: n, scc: make([]int, n)}

	var arcs, ignored []arc
	add := func(from, to, length int) {
		a := arc{from: int64(from), to: int64(to), length: length}
		if to/2 == model.SourceID || to/2 == model.SinkID {
			ignored = append(ignored, a)
			return
		}
		arcs = append(arcs, a)
	}
	for _, a := range p.Activities {
		arcs = append(arcs,
			arc{from: int64(2 * a.ID), to: int64(2*a.ID + 1), length: a.MinDuration},
			arc{from: int64(2*a.ID + 1), to: int64(2 * a.ID), length: -a.MaxDuration},
		)
	}
	for _, g := range groupTemporals(p) {
		from, to := 2*g.pred, 2*g.succ
		switch g.typ {
		case model.SC:
			to++
		case model.CC:
			from++
			to++
		case model.CS:
			from++
		}
		add(from, to, g.length)
	}

	if err := nw.strongComponents(arcs); err != nil {
		return nil, err
	}
	if err := nw.longestPaths(arcs); err != nil {
		return nil, err
	}

	full := simple.NewDirectedGraph()
	reversed := simple.NewDirectedGraph()
	for i := 0; i < 2*n; i++ {
		full.AddNode(simple.Node(i))
		reversed.AddNode(simple.Node(i))
	}
	for _, a := range append(arcs, ignored...) {
		if a.from == a.to {
			continue
		}
		full.SetEdge(simple.Edge{F: simple.Node(a.from), T: simple.Node(a.to)})
		reversed.SetEdge(simple.Edge{F: simple.Node(a.to), T: simple.Node(a.from)})
	}

	var starts []int64
	for _, a := range p.Activities {
		if a.Backward {
			starts = append(starts, int64(2*a.ID))
		}
	}
	for _, id := range closure(full, starts) {
		if a := p.Activities[id/2]; id%2 == 0 && !a.Dummy() && !a.Backward {
			if err := p.SetBackward(a, true); err != nil {
				return nil, err
			}
		}
	}
	toSource := make([]bool, n)
	for _, id := range closure(reversed, []int64{2 * model.SourceID}) {
		if id%2 == 0 {
			toSource[id/2] = true
		}
	}

	nw.precede = make([][]bool, n)
	for i := range nw.precede {
		nw.precede[i] = make([]bool, n)
	}
	for i := 2; i < n; i++ {
		nw.precede[model.SourceID][i] = true
		nw.precede[i][model.SinkID] = true
	}
	nw.precede[model.SourceID][model.SinkID] = true
	set := func(i, j int) {
		if p.Activities[i].Backward && p.Activities[j].Backward {
			nw.precede[j][i] = true
		} else {
			nw.precede[i][j] = true
		}
	}
	for i := 2; i < n; i++ {
		for j := 2; j < n; j++ {
			if nw.dist[i][j] >= 0 && nw.dist[j][i] < 0 {
				set(i, j)
			}
		}
	}
	for c1 := 0; c1 < nw.numSccs; c1++ {
		for c2 := c1 + 1; c2 < nw.numSccs; c2++ {
			g1, g2 := nw.components[c1], nw.components[c2]
			if len(g1) == 0 || len(g2) == 0 {
				continue
			}
			linked := toSource[g1[0]] && !toSource[g2[0]]
			for _, i := range g1 {
				for _, j := range g2 {
					linked = linked || nw.dist[i][j] > -Inf
				}
			}
			if !linked {
				continue
			}
			for _, i := range g1 {
				for _, j := range g2 {
					set(i, j)
				}
			}
		}
	}
	return nw, nil
}

type temporalGroup struct {
	pred, succ int
	typ        model.TempType
	length     int
}

// groupTemporals folds the constraints of each (pred, succ, type) triple into
// one arc. For every pair of modes the binding delay is the largest applying
// one; the arc keeps the smallest over mode pairs so that it holds whatever
// modes are chosen. Mode pairs no constraint covers weigh -Inf/n.
func groupTemporals(p *model.Problem) []temporalGroup {
	type key struct {
		pred, succ int
		typ        model.TempType
	}
	var order []key
	delays := map[key][][]int{}
	unbound := -Inf / len(p.Activities)
	for _, c := range p.Temporals {
		k := key{c.Pred, c.Succ, c.Type}
		np, ns := len(p.Activities[c.Pred].Modes), len(p.Activities[c.Succ].Modes)
		m, ok := delays[k]
		if !ok {
			m = make([][]int, np)
			for i := range m {
				m[i] = make([]int, ns)
				for j := range m[i] {
					m[i][j] = unbound
				}
			}
			delays[k] = m
			order = append(order, k)
		}
		for pm := 0; pm < np; pm++ {
			for sm := 0; sm < ns; sm++ {
				if c.Applies(pm, sm) {
					m[pm][sm] = max(m[pm][sm], c.Delay)
				}
			}
		}
	}
	out := make([]temporalGroup, 0, len(order))
	for _, k := range order {
		length := Inf
		for _, row := range delays[k] {
			for _, d := range row {
				length = min(length, d)
			}
		}
		out = append(out, temporalGroup{pred: k.pred, succ: k.succ, typ: k.typ, length: length})
	}
	return out
}

// strongComponents numbers the strong components of the node graph in topological
// order and assigns each activity the component of its start node.
func (nw *Network) strongComponents(arcs []arc) error {
	g := simple.NewDirectedGraph()
	for i := 0; i < 2*nw.n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, a := range arcs {
		if a.from != a.to {
			g.SetEdge(simple.Edge{F: simple.Node(a.from), T: simple.Node(a.to)})
		}
	}
	sorted, err := topo.SortStabilized(g, nil)
	var cyclic topo.Unorderable
	if err != nil && !errors.As(err, &cyclic) {
		return fmt.Errorf("strong components: %w", err)
	}
	node := make([]int, 2*nw.n)
	for c, v := range sorted {
		if v != nil {
			node[v.ID()] = c
			continue
		}
		for _, u := range cyclic[0] {
			node[u.ID()] = c
		}
		cyclic = cyclic[1:]
	}
	nw.numSccs = len(sorted)
	nw.components = make([][]int, nw.numSccs)
	for i := 0; i < nw.n; i++ {
		nw.scc[i] = node[2*i]
		nw.components[nw.scc[i]] = append(nw.components[nw.scc[i]], i)
	}
	return nil
}

// longestPaths computes the start-to-start distances between activities.
// Arcs of length -Inf never lengthen a path and are left out.
func (nw *Network) longestPaths(arcs []arc) error {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := 0; i < 2*nw.n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, a := range arcs {
		if a.length <= -Inf || a.from == a.to {
			continue
		}
		w := -float64(a.length)
		if e := g.WeightedEdge(a.from, a.to); e != nil && e.Weight() <= w {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a.from), T: simple.Node(a.to), W: w})
	}
	paths, ok := path.FloydWarshall(g)
	if !ok {
		return ErrPositiveCycle
	}
	nw.dist = make([][]int, nw.n)
	for i := range nw.dist {
		nw.dist[i] = make([]int, nw.n)
		for j := range nw.dist[i] {
			w := paths.Weight(int64(2*i), int64(2*j))
			if math.IsInf(w, 1) || -w <= -float64(Inf) {
				nw.dist[i][j] = -Inf
				continue
			}
			nw.dist[i][j] = int(-w)
		}
	}
	return nil
}

// closure returns every node reachable from starts, starts included.
func closure(g *simple.DirectedGraph, starts []int64) []int64 {
	var out []int64
	dfs := traverse.DepthFirst{Visit: func(v graph.Node) { out = append(out, v.ID()) }}
	for _, s := range starts {
		if !dfs.Visited(simple.Node(s)) {
			dfs.Walk(g, simple.Node(s), nil)
		}
	}
	return out
}

// Len returns the number of activities.
func (nw *Network) Len() int { return nw.n }

// Precede reports whether i must come before j in every activity list.
func (nw *Network) Precede(i, j int) bool { return nw.precede[i][j] }

// Scc returns the strong component of activity i, or -1 for solution.None.
func (nw *Network) Scc(i int) int {
	if i == solution.None {
		return -1
	}
	return nw.scc[i]
}

// NumSccs returns the number of strong components of the node graph.
func (nw *Network) NumSccs() int { return nw.numSccs }

// Component returns the activities whose start lies in component c.
func (nw *Network) Component(c int) []int { return nw.components[c] }

// Distance returns the longest start-to-start path from i to j, or -Inf.
func (nw *Network) Distance(i, j int) int { return nw.dist[i][j] }

// Order returns a topological order of the precedence relation in which
// activities of one component are contiguous. Among ready activities the
// highest score goes first; ties go to the lowest id.
func (nw *Network) Order(scores []int) ([]int, error) {
	indeg := make([]int, nw.n)
	for i := 0; i < nw.n; i++ {
		for j := 0; j < nw.n; j++ {
			if nw.precede[i][j] {
				indeg[j]++
			}
		}
	}
	ready := &scoreHeap{scores: scores}
	var spool []int
	for i := 0; i < nw.n; i++ {
		if indeg[i] == 0 {
			spool = append(spool, i)
		}
	}
	order := make([]int, 0, nw.n)
	for len(order) < nw.n {
		if ready.Len() == 0 {
			if len(spool) == 0 {
				return nil, ErrCyclicOrder
			}
			best := 0
			for k := 1; k < len(spool); k++ {
				if ready.before(spool[k], spool[best]) {
					best = k
				}
			}
			group := nw.scc[spool[best]]
			rest := spool[:0]
			for _, i := range spool {
				if nw.scc[i] == group {
					heap.Push(ready, i)
				} else {
					rest = append(rest, i)
				}
			}
			spool = rest
		}
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for j := 0; j < nw.n; j++ {
			if !nw.precede[i][j] {
				continue
			}
			if indeg[j]--; indeg[j] == 0 {
				if nw.scc[j] == nw.scc[i] {
					heap.Push(ready, j)
				} else {
					spool = append(spool, j)
				}
			}
		}
	}
	return order, nil
}

// ShiftForward moves id1 before id2 in the activity list of s, carrying along
// every activity in between that is not bound to precede it. When the two lie
// in different components whole components move.
func (nw *Network) ShiftForward(s *solution.Solution, id1, id2 int) {
	scc1, scc2 := nw.Scc(id1), nw.Scc(id2)
	target, sentinel, ite := id1, s.Prev(id2), s.Prev(id1)
	if scc1 != scc2 {
		for nw.Scc(s.Next(target)) == scc1 {
			target = s.Next(target)
		}
		for nw.Scc(sentinel) == scc2 {
			sentinel = s.Prev(sentinel)
		}
		for nw.Scc(ite) == scc1 {
			ite = s.Prev(ite)
		}
	}
	for ite != sentinel {
		prev := s.Prev(ite)
		if !nw.Precede(ite, target) {
			s.ShiftAfter(ite, target)
		}
		ite = prev
	}
}

type scoreHeap struct {
	scores []int
	items  []int
}

func (h *scoreHeap) before(a, b int) bool {
	if h.scores[a] != h.scores[b] {
		return h.scores[a] > h.scores[b]
	}
	return a < b
}

func (h *scoreHeap) Len() int           { return len(h.items) }
func (h *scoreHeap) Less(i, j int) bool { return h.before(h.items[i], h.items[j]) }
func (h *scoreHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *scoreHeap) Push(x any)         { h.items = append(h.items, x.(int)) }
func (h *scoreHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
