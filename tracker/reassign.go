package tracker

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/notargets/GrainKernel/comm"
	"github.com/notargets/GrainKernel/grains"
)

// reassignGrains recolors the grain population so that no two
// overlapping grains share an order parameter, rebuilds nearest
// neighbor distances, and compacts the active order parameter set.
// When force is true a recoloring runs even without a detected
// overlap. Reports whether any grain changed label.
func (t *Tracker) reassignGrains(force bool) (bool, error) {
	ids := sortedGrainIDs(t.grains)

	// Overlap graph over dense node ids; edges for every overlapping
	// pair, same label or not, so the coloring keeps margins between
	// close grains too.
	g := simple.NewUndirectedGraph()
	for i := range ids {
		g.AddNode(simple.Node(int64(i)))
	}
	overlapDetected := false
	var logLines []string
	for i, idA := range ids {
		a := t.grains[idA]
		for j := i + 1; j < len(ids); j++ {
			idB := ids[j]
			b := t.grains[idB]
			if !a.Overlaps(b, t.cfg.BufferDistanceRatio, t.cfg.BufferDistanceFixed) {
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
			if a.OrderParameter() == b.OrderParameter() {
				overlapDetected = true
				logLines = append(logLines, fmt.Sprintf(
					"Found an overlap between grain %d and grain %d with order parameter %d",
					idA, idB, a.OrderParameter()))
			}
		}
	}

	reassigned := false
	if overlapDetected || force {
		colors, k, err := t.colorGrains(g, len(ids))
		if err != nil {
			return false, fmt.Errorf("grain coloring: %w", err)
		}
		if k > t.cfg.MaxOrderParameters {
			return false, fmt.Errorf("%w: coloring requires %d order parameters, limit is %d",
				ErrOrderParameterLimit, k, t.cfg.MaxOrderParameters)
		}
		for i, id := range ids {
			gr := t.grains[id]
			if c := colors[i]; c != gr.OrderParameter() {
				gr.SetOrderParameter(c)
				reassigned = true
			}
		}
	}

	// Nearest neighbor distances among grains sharing a current or a
	// previous label; they bound the transfer buffers used by Remap.
	for _, id := range ids {
		t.grains[id].ResetNeighbors()
	}
	for _, idA := range ids {
		a := t.grains[idA]
		for _, idB := range ids {
			if idA == idB {
				continue
			}
			b := t.grains[idB]
			if a.OrderParameter() == b.OrderParameter() ||
				a.OldOrderParameter() == b.OldOrderParameter() {
				a.AddNeighbor(b)
			}
		}
	}

	// Compact labels to a dense range so unused order parameters free
	// their storage blocks.
	active := grains.ActiveOrderParameterIDs(t.grains)
	if len(active) > 0 && active[len(active)-1] != len(active)-1 {
		pos := make(map[int]int, len(active))
		for i, op := range active {
			pos[op] = i
		}
		for _, id := range ids {
			gr := t.grains[id]
			if np := pos[gr.OrderParameter()]; np != gr.OrderParameter() {
				gr.SetOrderParameter(np)
				reassigned = true
			}
		}
		active = grains.ActiveOrderParameterIDs(t.grains)
	}
	t.activeOPs = active

	t.flushLog(logLines)
	return reassigned, nil
}

// colorGrains colors the overlap graph once on rank 0 and broadcasts
// the result, since coloring heuristics promise no determinism across
// independent runs. Colors are returned densely indexed like the node
// ids.
func (t *Tracker) colorGrains(g *simple.UndirectedGraph, n int) ([]int, int, error) {
	type result struct {
		Colors []int
		K      int
		Err    error
	}
	var res result
	if t.comm.Rank() == 0 {
		k, colors, err := coloring.Dsatur(g, nil)
		res = result{K: k, Err: err}
		if err == nil {
			res.Colors = make([]int, n)
			for i := 0; i < n; i++ {
				res.Colors[i] = colors[int64(i)]
			}
		}
	}
	res = comm.Broadcast(t.comm, 0, res)
	return res.Colors, res.K, res.Err
}

func sortedGrainIDs(all map[int]*grains.Grain) []int {
	ids := make([]int, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
