// Package comm provides the bulk-synchronous communication layer for a
// fixed group of cooperating worker ranks running inside one process.
//
// Every collective is synchronous: a rank blocks until all ranks of the
// group have reached the same call. Reductions combine contributions in
// rank order so every rank observes bit-identical results.
package comm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group is the shared state of a fixed set of worker ranks.
type Group struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	gen     uint64

	// One contribution slot per rank, valid between the two barrier
	// phases of a collective.
	slots []any
}

// NewGroup creates communication state for n ranks.
func NewGroup(n int) (*Group, error) {
	if n <= 0 {
		return nil, fmt.Errorf("group size must be positive, got %d", n)
	}
	g := &Group{
		size:  n,
		slots: make([]any, n),
	}
	g.cond = sync.NewCond(&g.mu)
	return g, nil
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int { return g.size }

// Comm returns the communicator handle for one rank.
func (g *Group) Comm(rank int) (*Comm, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("rank %d out of range [0, %d)", rank, g.size)
	}
	return &Comm{group: g, rank: rank}, nil
}

// Run launches fn on n worker ranks and waits for all of them. The
// first non-nil error cancels nothing (collectives are not abortable)
// but is reported once every rank has returned.
func Run(n int, fn func(c *Comm) error) error {
	g, err := NewGroup(n)
	if err != nil {
		return err
	}
	var eg errgroup.Group
	for rank := 0; rank < n; rank++ {
		c, err := g.Comm(rank)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return fn(c)
		})
	}
	return eg.Wait()
}

// Comm is one rank's handle into the group.
type Comm struct {
	group *Group
	rank  int
}

// Rank returns this worker's rank in [0, Size).
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in the group.
func (c *Comm) Size() int { return c.group.size }

// Barrier blocks until every rank of the group has entered it.
func (c *Comm) Barrier() {
	g := c.group
	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.gen
	g.arrived++
	if g.arrived == g.size {
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
		return
	}
	for gen == g.gen {
		g.cond.Wait()
	}
}

// post stores this rank's contribution and waits until all ranks have
// posted. The caller may then read any slot until the closing barrier.
func (c *Comm) post(v any) {
	g := c.group
	g.mu.Lock()
	g.slots[c.rank] = v
	g.mu.Unlock()
	c.Barrier()
}

// finish closes the read phase of a collective. Slots must not be read
// after it returns.
func (c *Comm) finish() {
	c.Barrier()
}
