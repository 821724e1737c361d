// Package tracker detects, identifies and relocates grains represented
// implicitly by order parameter fields on a partitioned mesh.
//
// Each simulation rank runs the same Tracker methods collectively; the
// heavy per-element work touches only locally owned elements while
// grain-level state is replicated on every rank through reductions.
package tracker

import (
	"fmt"
	"log/slog"

	"github.com/notargets/GrainKernel/comm"
	"github.com/notargets/GrainKernel/grains"
	"github.com/notargets/GrainKernel/mesh"
)

// Tracker maintains the grain population of one simulation.
//
// All exported methods are collective: every rank of the communicator
// must call them in the same order with consistent arguments.
type Tracker struct {
	comm   *comm.Comm
	mesh   *mesh.Mesh
	layout *mesh.Layout
	part   *mesh.Part

	cfg Config
	log *slog.Logger

	grains    map[int]*grains.Grain
	oldGrains map[int]*grains.Grain
	activeOPs []int

	// elementIDs holds, per active element, the particle id assigned
	// by the most recent detection sweep. Shared across ranks; each
	// rank writes only its owned entries between barriers.
	elementIDs []int
}

// New creates a tracker bound to one rank of the communicator. The
// mesh and layout must be identical on every rank. A nil logger falls
// back to slog.Default.
func New(c *comm.Comm, m *mesh.Mesh, l *mesh.Layout, cfg Config, logger *slog.Logger) (*Tracker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if c.Size() != l.NumRanks {
		return nil, fmt.Errorf("communicator size %d does not match layout built for %d ranks", c.Size(), l.NumRanks)
	}
	if logger == nil {
		logger = slog.Default()
	}
	var ids []int
	if c.Rank() == 0 {
		ids = make([]int, m.NumActive())
	}
	ids = comm.Broadcast(c, 0, ids)
	return &Tracker{
		comm:       c,
		mesh:       m,
		layout:     l,
		part:       l.Part(c.Rank()),
		cfg:        cfg,
		log:        logger,
		grains:     map[int]*grains.Grain{},
		oldGrains:  map[int]*grains.Grain{},
		elementIDs: ids,
	}, nil
}

// Grains returns the current grain population keyed by grain id. The
// map is shared; callers must not mutate it.
func (t *Tracker) Grains() map[int]*grains.Grain { return t.grains }

// OldGrains returns the population recorded before the latest Track
// call.
func (t *Tracker) OldGrains() map[int]*grains.Grain { return t.oldGrains }

// ActiveOrderParameters lists the order parameter indices currently in
// use, ascending.
func (t *Tracker) ActiveOrderParameters() []int {
	out := make([]int, len(t.activeOPs))
	copy(out, t.activeOPs)
	return out
}
