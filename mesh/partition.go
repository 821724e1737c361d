package mesh

import (
	"fmt"
	"sort"
)

// Strategy defines how active elements are assigned to ranks.
type Strategy int

const (
	// BlockPartition assigns consecutive active elements to each rank.
	BlockPartition Strategy = iota
	// RoundRobin distributes active elements cyclically.
	RoundRobin
)

// Part is one rank's view of the mesh: the active elements it owns and
// the read-only ghost copies of boundary-adjacent elements owned by
// neighboring ranks. Both lists hold active indices in ascending order.
type Part struct {
	Rank   int
	Owned  []int
	Ghosts []int
}

// Layout manages the complete mesh decomposition across ranks.
type Layout struct {
	NumRanks int
	EToP     []int // active index -> owning rank
	Parts    []Part
}

// NewLayout partitions the active elements of m across numRanks ranks
// and builds the per-rank owned and ghost element views.
func NewLayout(m *Mesh, numRanks int, strategy Strategy) (*Layout, error) {
	if numRanks <= 0 {
		return nil, fmt.Errorf("number of ranks must be positive, got %d", numRanks)
	}
	n := m.NumActive()
	if n < numRanks {
		return nil, fmt.Errorf("cannot partition %d elements across %d ranks", n, numRanks)
	}

	eToP := make([]int, n)
	switch strategy {
	case BlockPartition:
		perRank := (n + numRanks - 1) / numRanks
		for i := 0; i < n; i++ {
			r := i / perRank
			if r >= numRanks {
				r = numRanks - 1
			}
			eToP[i] = r
		}
	case RoundRobin:
		for i := 0; i < n; i++ {
			eToP[i] = i % numRanks
		}
	default:
		return nil, fmt.Errorf("unknown partition strategy %d", strategy)
	}

	l := &Layout{
		NumRanks: numRanks,
		EToP:     eToP,
		Parts:    make([]Part, numRanks),
	}
	for r := range l.Parts {
		l.Parts[r].Rank = r
	}
	for i, r := range eToP {
		l.Parts[r].Owned = append(l.Parts[r].Owned, i)
	}

	// Ghost layer: every active element owned elsewhere that is
	// face-adjacent (through refinement levels) to an owned element.
	ghostSets := make([]map[int]struct{}, numRanks)
	for r := range ghostSets {
		ghostSets[r] = make(map[int]struct{})
	}
	for i := 0; i < n; i++ {
		owner := eToP[i]
		for _, nb := range m.ActiveNeighbors(i) {
			if eToP[nb] != owner {
				ghostSets[owner][nb] = struct{}{}
			}
		}
	}
	for r := range l.Parts {
		for g := range ghostSets[r] {
			l.Parts[r].Ghosts = append(l.Parts[r].Ghosts, g)
		}
		sort.Ints(l.Parts[r].Ghosts)
	}

	if err := l.Validate(m); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return l, nil
}

// Owner returns the rank owning the given active element.
func (l *Layout) Owner(activeIdx int) int { return l.EToP[activeIdx] }

// Part returns rank r's view of the mesh.
func (l *Layout) Part(r int) *Part { return &l.Parts[r] }

// Validate checks partition consistency: every element owned exactly
// once and the ghost relation symmetric (if rank a ghosts an element of
// rank b, some element of rank a is ghosted by rank b).
func (l *Layout) Validate(m *Mesh) error {
	counts := make([]int, m.NumActive())
	for _, p := range l.Parts {
		for _, i := range p.Owned {
			counts[i]++
		}
	}
	for i, c := range counts {
		if c != 1 {
			return fmt.Errorf("active element %d owned by %d ranks", i, c)
		}
	}

	sees := make(map[[2]int]bool) // (ghosting rank, owner rank)
	for _, p := range l.Parts {
		for _, g := range p.Ghosts {
			sees[[2]int{p.Rank, l.EToP[g]}] = true
		}
	}
	for pair := range sees {
		if !sees[[2]int{pair[1], pair[0]}] {
			return fmt.Errorf("asymmetric ghost relation: rank %d sees rank %d but not vice versa",
				pair[0], pair[1])
		}
	}
	return nil
}

// Stats summarizes load balance across ranks.
type Stats struct {
	NumRanks    int
	MinElements int
	MaxElements int
	AvgElements float64
	Imbalance   float64 // MaxElements / AvgElements
}

// Statistics computes load balance metrics for the layout.
func (l *Layout) Statistics() Stats {
	s := Stats{
		NumRanks:    l.NumRanks,
		MinElements: int(^uint(0) >> 1),
	}
	total := 0
	for _, p := range l.Parts {
		n := len(p.Owned)
		total += n
		if n < s.MinElements {
			s.MinElements = n
		}
		if n > s.MaxElements {
			s.MaxElements = n
		}
	}
	s.AvgElements = float64(total) / float64(l.NumRanks)
	s.Imbalance = float64(s.MaxElements) / s.AvgElements
	return s
}
