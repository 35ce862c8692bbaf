package solution

import "fmt"

// Role names a slot of the search.
type Role int

const (
	Incumbent Role = iota
	Current
	Neighbor
	BestNeighbor
	numRoles
)

func (r Role) String() string {
	switch r {
	case Incumbent:
		return "incumbent"
	case Current:
		return "current"
	case Neighbor:
		return "neighbor"
	case BestNeighbor:
		return "best neighbor"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Pool owns four solutions and maps roles onto them. Roles are swapped or
// aliased, solutions are never copied. The incumbent may alias the current
// solution.
type Pool struct {
	slots [numRoles]*Solution
	roles [numRoles]int
}

// NewPool allocates the four slots for n activities and r resources.
func NewPool(n, r int) *Pool {
	p := &Pool{}
	for i := range p.slots {
		p.slots[i] = New(n, r)
		p.roles[i] = i
	}
	return p
}

// Get returns the solution holding role.
func (p *Pool) Get(role Role) *Solution { return p.slots[p.roles[role]] }

// Swap exchanges the solutions of two roles.
func (p *Pool) Swap(a, b Role) { p.roles[a], p.roles[b] = p.roles[b], p.roles[a] }

// Alias makes dst refer to the solution of src.
func (p *Pool) Alias(dst, src Role) { p.roles[dst] = p.roles[src] }

// Same reports whether two roles share a solution.
func (p *Pool) Same(a, b Role) bool { return p.roles[a] == p.roles[b] }

// Advance makes the best neighbour current. When the current solution is also
// the incumbent it is left in place and the best neighbour role moves to the
// slot nobody holds.
func (p *Pool) Advance() {
	if !p.Same(Incumbent, Current) {
		p.Swap(Current, BestNeighbor)
		return
	}
	free := 0
	for ; free < len(p.slots); free++ {
		if free != p.roles[Current] && free != p.roles[Neighbor] && free != p.roles[BestNeighbor] {
			break
		}
	}
	p.roles[Current] = p.roles[BestNeighbor]
	p.roles[BestNeighbor] = free
}
