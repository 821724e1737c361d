package tracker

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/GrainKernel/comm"
	"github.com/notargets/GrainKernel/grains"
	"github.com/notargets/GrainKernel/mesh"
)

// Remap migrates order parameter data inside the given fields so each
// block reflects the labels decided by the latest tracking step.
// Remappings whose source and destination regions interfere are
// ordered by a dependency analysis; circular dependencies are broken
// by routing each cycle member through a private scratch block.
// Collective; all ranks must pass the same fields.
func (t *Tracker) Remap(fields ...*mesh.Field) error {
	var logLines []string

	// Grains absent from the current population leave stale data
	// under their last label; zero it first.
	for _, oid := range sortedGrainIDs(t.oldGrains) {
		if _, ok := t.grains[oid]; ok {
			continue
		}
		og := t.oldGrains[oid]
		logLines = append(logLines, fmt.Sprintf(
			"Grain %d having order parameter %d has disappeared", oid, og.OrderParameter()))
		for _, f := range fields {
			blk := f.OPBlock(og.OrderParameter())
			t.forEachGrainElement(og, func(idx int) { blk[idx] = 0 })
		}
	}
	t.comm.Barrier()

	var remappings []grains.Remapping
	for _, id := range sortedGrainIDs(t.grains) {
		g := t.grains[id]
		if g.OrderParameter() != g.OldOrderParameter() {
			remappings = append(remappings, grains.Remapping{
				GrainID: id,
				From:    g.OldOrderParameter(),
				To:      g.OrderParameter(),
			})
		}
	}
	if len(remappings) == 0 {
		t.flushLog(logLines)
		return nil
	}

	// Dependency edge i -> j when the two regions interfere and i
	// writes the label j still reads: j has to run first.
	n := len(remappings)
	dep := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		dep.AddNode(simple.Node(int64(i)))
	}
	numEdges := 0
	for i := 0; i < n; i++ {
		gi := t.grains[remappings[i].GrainID]
		for j := i + 1; j < n; j++ {
			gj := t.grains[remappings[j].GrainID]
			if gi.Distance(gj)-gi.TransferBuffer()-gj.TransferBuffer() >= 0 {
				continue
			}
			ri, rj := remappings[i], remappings[j]
			if ri.To == rj.To {
				return fmt.Errorf("%w: %s and %s write the same order parameter over interfering regions",
					ErrRemapCollision, ri, rj)
			}
			if ri.To == rj.From {
				dep.SetEdge(dep.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
				numEdges++
			}
			if rj.To == ri.From {
				dep.SetEdge(dep.NewEdge(simple.Node(int64(j)), simple.Node(int64(i))))
				numEdges++
			}
		}
	}
	if numEdges > 0 {
		logLines = append(logLines, "Remapping dependencies have been detected and resolved")
	}

	// Every member of a non-trivial strongly connected component moves
	// through a scratch block.
	cyclic := map[int]bool{}
	for _, scc := range topo.TarjanSCC(dep) {
		if len(scc) < 2 {
			continue
		}
		for _, node := range scc {
			cyclic[int(node.ID())] = true
		}
	}

	direct := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		if !cyclic[i] {
			direct.AddNode(simple.Node(int64(i)))
		}
	}
	for it := dep.Edges(); it.Next(); {
		e := it.Edge()
		from, to := int(e.From().ID()), int(e.To().ID())
		if !cyclic[from] && !cyclic[to] {
			direct.SetEdge(direct.NewEdge(simple.Node(int64(from)), simple.Node(int64(to))))
		}
	}
	order, err := topo.SortStabilized(direct, func(ns []graph.Node) {
		sort.Slice(ns, func(a, b int) bool { return ns[a].ID() < ns[b].ID() })
	})
	if err != nil {
		return fmt.Errorf("remapping order: %w", err)
	}

	var tempOrder []int
	tempIdx := map[int]int{}
	for i := 0; i < n; i++ {
		if cyclic[i] {
			tempIdx[i] = len(tempOrder)
			tempOrder = append(tempOrder, i)
		}
	}
	temps := make([][][]float64, len(fields))
	if len(tempOrder) > 0 {
		if t.comm.Rank() == 0 {
			for fi := range fields {
				temps[fi] = make([][]float64, len(tempOrder))
				for k := range temps[fi] {
					temps[fi][k] = make([]float64, t.mesh.NumActive())
				}
			}
		}
		temps = comm.Broadcast(t.comm, 0, temps)
	}

	// Cycle members first park their data aside.
	for _, i := range tempOrder {
		r := remappings[i]
		g := t.grains[r.GrainID]
		logLines = append(logLines, fmt.Sprintf(
			"Remap order parameter for grain id = %d: from %d to temp", r.GrainID, r.From))
		for fi, f := range fields {
			scratch := temps[fi][tempIdx[i]]
			src := f.OPBlock(r.From)
			t.forEachGrainElement(g, func(idx int) {
				scratch[idx] = src[idx]
				src[idx] = 0
			})
		}
	}
	t.comm.Barrier()

	// Direct migrations, dependencies first.
	for k := len(order) - 1; k >= 0; k-- {
		i := int(order[k].ID())
		r := remappings[i]
		g := t.grains[r.GrainID]
		logLines = append(logLines, fmt.Sprintf(
			"Remap order parameter for grain id = %d: from %d to %d", r.GrainID, r.From, r.To))
		for _, f := range fields {
			src, dst := f.OPBlock(r.From), f.OPBlock(r.To)
			t.forEachGrainElement(g, func(idx int) {
				dst[idx] = src[idx]
				src[idx] = 0
			})
		}
	}
	t.comm.Barrier()

	// Parked data lands on its destination.
	for _, i := range tempOrder {
		r := remappings[i]
		g := t.grains[r.GrainID]
		logLines = append(logLines, fmt.Sprintf(
			"Remap order parameter for grain id = %d: from temp to %d", r.GrainID, r.To))
		for fi, f := range fields {
			scratch := temps[fi][tempIdx[i]]
			dst := f.OPBlock(r.To)
			t.forEachGrainElement(g, func(idx int) { dst[idx] = scratch[idx] })
		}
	}
	t.comm.Barrier()

	t.flushLog(logLines)
	return nil
}

// forEachGrainElement calls fn for every locally owned element whose
// barycenter lies within the transfer region of one of the grain's
// segments.
func (t *Tracker) forEachGrainElement(g *grains.Grain, fn func(activeIdx int)) {
	buffer := g.TransferBuffer()
	segs := g.Segments()
	for _, idx := range t.part.Owned {
		c := t.mesh.Active(idx).Barycenter()
		for _, s := range segs {
			if r3.Norm(r3.Sub(c, s.Center)) < s.Radius+buffer {
				fn(idx)
				break
			}
		}
	}
}
