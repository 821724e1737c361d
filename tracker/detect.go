package tracker

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/GrainKernel/comm"
	"github.com/notargets/GrainKernel/grains"
	"github.com/notargets/GrainKernel/mesh"
)

// detectGrains sweeps every order parameter of f and returns the fresh
// grain population keyed by provisional grain id. When assignIndices
// is false the grains' own ids stay unset (-1) for later matching.
//
// Collective; the returned map is identical on every rank.
func (t *Tracker) detectGrains(f *mesh.Field, assignIndices bool) (map[int]*grains.Grain, error) {
	my := t.comm.Rank()
	newGrains := map[int]*grains.Grain{}
	numerator := 0

	for op := 0; op < f.NumOrderParameters(); op++ {
		t.resetElementIDs()

		// Local flooding, seeded in ascending element order.
		localCount := 0
		var localMax []float64
		for _, idx := range t.part.Owned {
			count, maxVal := t.flood(t.mesh.Active(idx).ID, f, op, localCount)
			if count > 0 {
				localCount++
				localMax = append(localMax, maxVal)
			}
		}

		// Shift local ids into a globally unique (still per-rank
		// clustered) id space.
		offset := t.comm.ExScanInt(localCount)
		if offset > 0 {
			for _, idx := range t.part.Owned {
				if t.elementIDs[idx] != invalidParticleID {
					t.elementIDs[idx] += offset
				}
			}
		}
		t.comm.Barrier()

		// Cross-rank adjacency observed through ghost elements.
		conn := make([][]link, localCount)
		for _, gidx := range t.part.Ghosts {
			pid := t.elementIDs[gidx]
			if pid == invalidParticleID {
				continue
			}
			owner := t.layout.Owner(gidx)
			for _, nidx := range t.mesh.ActiveNeighbors(gidx) {
				if t.layout.Owner(nidx) != my {
					continue
				}
				nid := t.elementIDs[nidx]
				if nid == invalidParticleID {
					continue
				}
				conn[nid-offset], _ = mergeLinks(conn[nid-offset], []link{{Rank: owner, ID: pid}})
			}
		}

		unique := t.stitch(conn, offset)
		maxClique := -1
		for _, u := range unique {
			if u > maxClique {
				maxClique = u
			}
		}
		numParticles := t.comm.AllReduceIntMax(maxClique + 1)
		if numParticles == 0 {
			continue
		}

		// Measures and measure-weighted centers, replicated everywhere.
		info := make([]float64, 4*numParticles)
		for _, idx := range t.part.Owned {
			pid := t.elementIDs[idx]
			if pid == invalidParticleID {
				continue
			}
			u := unique[pid-offset]
			e := t.mesh.Active(idx)
			m := e.Measure()
			c := e.Barycenter()
			info[4*u] += m
			info[4*u+1] += m * c.X
			info[4*u+2] += m * c.Y
			info[4*u+3] += m * c.Z
		}
		info = t.comm.AllReduceFloatSum(info)

		measures := make([]float64, numParticles)
		centers := make([]r3.Vec, numParticles)
		for u := 0; u < numParticles; u++ {
			m := info[4*u]
			measures[u] = m
			centers[u] = r3.Scale(1/m, r3.Vec{X: info[4*u+1], Y: info[4*u+2], Z: info[4*u+3]})
		}

		// Publish the stitched ids so neighbors read consistent labels.
		for _, idx := range t.part.Owned {
			if pid := t.elementIDs[idx]; pid != invalidParticleID {
				t.elementIDs[idx] = unique[pid-offset]
			}
		}
		t.comm.Barrier()

		// Bounding radii and per-particle value maxima.
		radii := make([]float64, numParticles)
		maxVals := make([]float64, numParticles)
		for u := range maxVals {
			maxVals[u] = math.Inf(-1)
		}
		for _, idx := range t.part.Owned {
			u := t.elementIDs[idx]
			if u == invalidParticleID {
				continue
			}
			e := t.mesh.Active(idx)
			if r := r3.Norm(r3.Sub(centers[u], e.Barycenter())) + e.Diameter()/2; r > radii[u] {
				radii[u] = r
			}
		}
		for i, v := range localMax {
			if u := unique[i]; v > maxVals[u] {
				maxVals[u] = v
			}
		}
		radii = t.comm.AllReduceFloatMax(radii)
		maxVals = t.comm.AllReduceFloatMax(maxVals)

		var shapes []ellipsoid
		if t.cfg.Representation == RepresentationEllipsoidal {
			shapes = t.particleEllipsoids(numParticles, centers, measures)
		}

		// Particles joined across periodic faces form one grain with
		// several segments.
		grainOf := t.groupPeriodic(numParticles, &numerator)

		for u := 0; u < numParticles; u++ {
			gid := grainOf[u]
			gr, ok := newGrains[gid]
			if !ok {
				id := gid
				if !assignIndices {
					id = -1
				}
				gr = grains.NewGrain(id, op)
				newGrains[gid] = gr
			}

			seg, err := grains.NewSphericalSegment(centers[u], radii[u], measures[u], maxVals[u])
			if err != nil {
				return nil, fmt.Errorf("order parameter %d, particle %d: %w", op, u, err)
			}
			if shapes != nil && shapes[u].ok {
				es, err := grains.NewEllipsoidalSegment(centers[u], shapes[u].semiAxes,
					shapes[u].axes, measures[u], maxVals[u])
				if err != nil {
					return nil, fmt.Errorf("order parameter %d, particle %d: %w", op, u, err)
				}
				if radii[u] > es.Radius {
					es.Radius = radii[u]
				}
				seg = es
			}
			gr.AddSegment(seg)
		}
	}
	return newGrains, nil
}

// groupPeriodic maps each stitched particle id of the current order
// parameter to a grain id, joining particles that touch through
// periodic faces. Grouped grains are numbered first, by smallest
// member, then the remaining particles ascending. numerator advances
// past the ids consumed.
func (t *Tracker) groupPeriodic(numParticles int, numerator *int) []int {
	var pairs []pair
	for _, idx := range t.part.Owned {
		u := t.elementIDs[idx]
		if u == invalidParticleID {
			continue
		}
		e := t.mesh.Active(idx)
		for _, peid := range e.Periodic {
			for _, aidx := range activeDescendants(t.mesh, peid) {
				v := t.elementIDs[aidx]
				if v == invalidParticleID || v == u {
					continue
				}
				if v < u {
					pairs = append(pairs, pair{A: v, B: u})
				} else {
					pairs = append(pairs, pair{A: u, B: v})
				}
			}
		}
	}

	g := simple.NewUndirectedGraph()
	for u := 0; u < numParticles; u++ {
		g.AddNode(simple.Node(int64(u)))
	}
	for _, part := range comm.AllGather(t.comm, pairs) {
		for _, p := range part {
			g.SetEdge(g.NewEdge(simple.Node(int64(p.A)), simple.Node(int64(p.B))))
		}
	}

	var groups [][]int
	for _, comp := range topo.ConnectedComponents(g) {
		if len(comp) < 2 {
			continue
		}
		ids := make([]int, len(comp))
		for j, n := range comp {
			ids[j] = int(n.ID())
		}
		sort.Ints(ids)
		groups = append(groups, ids)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	grainOf := make([]int, numParticles)
	for u := range grainOf {
		grainOf[u] = -1
	}
	for gi, ids := range groups {
		for _, u := range ids {
			grainOf[u] = *numerator + gi
		}
	}
	*numerator += len(groups)
	for u := 0; u < numParticles; u++ {
		if grainOf[u] == -1 {
			grainOf[u] = *numerator
			*numerator++
		}
	}
	return grainOf
}

// activeDescendants returns the active indices of the element with the
// given ID, descending through refinement.
func activeDescendants(m *mesh.Mesh, id int) []int {
	e := m.Elem(id)
	if !e.Refined() {
		return []int{e.ActiveIndex}
	}
	var out []int
	stack := append([]int(nil), e.Children...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ce := m.Elem(c)
		if ce.Refined() {
			stack = append(stack, ce.Children...)
			continue
		}
		out = append(out, ce.ActiveIndex)
	}
	return out
}
