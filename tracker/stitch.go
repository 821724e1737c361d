package tracker

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/notargets/GrainKernel/comm"
)

// link identifies a particle on a remote rank: the owning rank and the
// particle's globally shifted (non-unique) id.
type link struct {
	Rank int
	ID   int
}

func linkLess(a, b link) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.ID < b.ID
}

func sortLinks(s []link) {
	sort.Slice(s, func(i, j int) bool { return linkLess(s[i], s[j]) })
}

// mergeLinks inserts members into the sorted, deduplicated slice dst
// and reports whether anything was added.
func mergeLinks(dst, members []link) ([]link, bool) {
	changed := false
	for _, m := range members {
		pos := sort.Search(len(dst), func(i int) bool { return !linkLess(dst[i], m) })
		if pos < len(dst) && dst[pos] == m {
			continue
		}
		dst = append(dst, link{})
		copy(dst[pos+1:], dst[pos:])
		dst[pos] = m
		changed = true
	}
	return dst, changed
}

// cliqueUpdate carries one rank's view of the clique a remote particle
// belongs to.
type cliqueUpdate struct {
	Target  int // shifted id of the particle on the receiving rank
	Members []link
}

// idAssign delivers the final clique id of one particle to its owner.
type idAssign struct {
	Particle int
	Clique   int
}

// pair is one undirected cross-rank adjacency in shifted id space.
type pair struct {
	A, B int
}

// stitch merges per-rank particle labels into globally consistent
// clique ids, dense in [0, numCliques). conn holds, per local
// particle, the sorted remote adjacencies; offset is this rank's
// shifted id base. Both strategies produce identical numbering:
// cliques are ordered by their smallest member id.
func (t *Tracker) stitch(conn [][]link, offset int) []int {
	if t.cfg.Stitching == StitchGraph {
		return t.stitchGraph(conn, offset)
	}
	return t.stitchConsensus(conn, offset)
}

// stitchConsensus runs the iterative membership exchange. Each round,
// every rank tells each remote clique partner everything it knows
// about the clique; the protocol terminates when no rank learns
// anything new.
func (t *Tracker) stitchConsensus(conn [][]link, offset int) []int {
	my := t.comm.Rank()
	input := conn

	for {
		out := map[int][]cliqueUpdate{}
		for i, links := range input {
			for j, e := range links {
				if e.Rank == my {
					continue
				}
				members := make([]link, 0, len(links))
				members = append(members, link{Rank: my, ID: i + offset})
				for k, o := range links {
					if k != j {
						members = append(members, o)
					}
				}
				sortLinks(members)
				out[e.Rank] = append(out[e.Rank], cliqueUpdate{Target: e.ID, Members: members})
			}
		}

		finished := true
		for _, msgs := range comm.Exchange(t.comm, out) {
			for _, msg := range msgs {
				idx := msg.Target - offset
				merged, changed := mergeLinks(input[idx], msg.Members)
				input[idx] = merged
				if changed {
					finished = false
				}
			}
		}

		done := 0
		if finished {
			done = 1
		}
		if t.comm.AllReduceIntSum(done) == t.comm.Size() {
			break
		}
	}

	// A particle is its clique's root when it is lexicographically
	// smaller than every other member. Lists never contain the
	// particle itself.
	roots := make([]int, 0, len(input))
	for i, links := range input {
		self := link{Rank: my, ID: i + offset}
		if len(links) == 0 || linkLess(self, links[0]) {
			roots = append(roots, i)
		}
	}

	cliqueBase := t.comm.ExScanInt(len(roots))
	result := make([]int, len(input))
	for i := range result {
		result[i] = -1
	}

	notify := map[int][]idAssign{}
	for n, i := range roots {
		cid := cliqueBase + n
		result[i] = cid
		for _, e := range input[i] {
			if e.Rank == my {
				result[e.ID-offset] = cid
				continue
			}
			notify[e.Rank] = append(notify[e.Rank], idAssign{Particle: e.ID, Clique: cid})
		}
	}
	for _, msgs := range comm.Exchange(t.comm, notify) {
		for _, a := range msgs {
			result[a.Particle-offset] = a.Clique
		}
	}
	return result
}

// stitchGraph gathers every cross-rank adjacency on all ranks and
// labels connected components of the resulting graph. Components are
// numbered by their smallest member to match stitchConsensus.
func (t *Tracker) stitchGraph(conn [][]link, offset int) []int {
	total := t.comm.AllReduceIntSum(len(conn))

	edges := make([]pair, 0)
	for i, links := range conn {
		for _, e := range links {
			edges = append(edges, pair{A: i + offset, B: e.ID})
		}
	}

	g := simple.NewUndirectedGraph()
	for n := 0; n < total; n++ {
		g.AddNode(simple.Node(int64(n)))
	}
	for _, part := range comm.AllGather(t.comm, edges) {
		for _, e := range part {
			if e.A == e.B {
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(int64(e.A)), simple.Node(int64(e.B))))
		}
	}

	comps := topo.ConnectedComponents(g)
	members := make([][]int, len(comps))
	for i, comp := range comps {
		ids := make([]int, len(comp))
		for j, n := range comp {
			ids[j] = int(n.ID())
		}
		sort.Ints(ids)
		members[i] = ids
	}
	sort.Slice(members, func(i, j int) bool { return members[i][0] < members[j][0] })

	cliqueOf := make([]int, total)
	for cid, ids := range members {
		for _, id := range ids {
			cliqueOf[id] = cid
		}
	}

	result := make([]int, len(conn))
	for i := range result {
		result[i] = cliqueOf[i+offset]
	}
	return result
}
