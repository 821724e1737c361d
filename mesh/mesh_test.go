package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestUniformGrid(t *testing.T) {
	m, err := NewGridMesh(GridSpec{Nx: 4, Ny: 3, Nz: 2, Lx: 4, Ly: 3, Lz: 2})
	require.NoError(t, err)
	require.Equal(t, 24, m.NumActive())

	total := 0.0
	for idx := 0; idx < m.NumActive(); idx++ {
		total += m.Active(idx).Measure()
	}
	assert.InDelta(t, 24.0, total, 1e-12)

	// Corner cell touches three faces of the domain.
	corner := m.Elem(0)
	assert.Len(t, corner.Neighbors, 3)
	assert.Empty(t, corner.Periodic)

	// Unit cells have unit measure and a sqrt(3) space diagonal.
	assert.InDelta(t, 1.0, corner.Measure(), 1e-12)
	assert.InDelta(t, math.Sqrt(3), corner.Diameter(), 1e-12)
}

func TestGridRejectsBadSpecs(t *testing.T) {
	_, err := NewGridMesh(GridSpec{Nx: 0, Ny: 1, Nz: 1, Lx: 1, Ly: 1, Lz: 1})
	require.Error(t, err)
	_, err = NewGridMesh(GridSpec{Nx: 1, Ny: 1, Nz: 1, Lx: 0, Ly: 1, Lz: 1})
	require.Error(t, err)
}

func TestPeriodicWrap(t *testing.T) {
	m, err := NewGridMesh(GridSpec{
		Nx: 4, Ny: 2, Nz: 1, Lx: 4, Ly: 2, Lz: 1,
		Periodic: [3]bool{true, false, false},
	})
	require.NoError(t, err)

	// Cell (0,0,0) wraps to cell (3,0,0) in x; the wrap partner is kept
	// out of the plain neighbor list.
	left := m.Elem(0)
	require.Len(t, left.Periodic, 1)
	assert.Equal(t, 3, left.Periodic[0])
	assert.NotContains(t, left.Neighbors, 3)

	// And symmetrically.
	right := m.Elem(3)
	require.Len(t, right.Periodic, 1)
	assert.Equal(t, 0, right.Periodic[0])
}

func TestRefinement(t *testing.T) {
	target := r3.Vec{X: 1.5, Y: 0.5, Z: 0.5}
	m, err := NewGridMesh(GridSpec{
		Nx: 3, Ny: 1, Nz: 1, Lx: 3, Ly: 1, Lz: 1,
		Refine: func(c r3.Vec) bool { return r3.Norm(r3.Sub(c, target)) < 1e-9 },
	})
	require.NoError(t, err)

	// One coarse cell replaced by 8 children.
	require.Equal(t, 3-1+8, m.NumActive())

	parent := m.Elem(1)
	assert.True(t, parent.Refined())
	assert.Equal(t, -1, parent.ActiveIndex)
	require.Len(t, parent.Children, 8)

	total := 0.0
	for idx := 0; idx < m.NumActive(); idx++ {
		total += m.Active(idx).Measure()
	}
	assert.InDelta(t, 3.0, total, 1e-12)

	// Children occupy consecutive IDs appended after the coarse cells,
	// and each sees three siblings plus its external side neighbors.
	for c, cid := range parent.Children {
		require.Equal(t, 3+c, cid)
		child := m.Elem(cid)
		assert.Equal(t, cid, child.ID)
		assert.Equal(t, parent.ID, child.Parent)
		assert.GreaterOrEqual(t, len(child.Neighbors), 3)
	}

	// The unrefined neighbor of the refined cell expands to children.
	coarse := m.Elem(0)
	expanded := m.ActiveNeighbors(coarse.ActiveIndex)
	assert.Len(t, expanded, 8)
	for _, idx := range expanded {
		assert.Equal(t, parent.ID, m.Active(idx).Parent)
	}
}

func TestLayoutBlockPartition(t *testing.T) {
	m, err := NewGridMesh(GridSpec{Nx: 6, Ny: 2, Nz: 1, Lx: 6, Ly: 2, Lz: 1})
	require.NoError(t, err)

	l, err := NewLayout(m, 3, BlockPartition)
	require.NoError(t, err)
	require.NoError(t, l.Validate(m))

	owned := 0
	for r := 0; r < 3; r++ {
		p := l.Part(r)
		owned += len(p.Owned)
		for _, i := range p.Owned {
			assert.Equal(t, r, l.Owner(i))
		}
		// Rank interiors touch, so every rank carries ghosts.
		assert.NotEmpty(t, p.Ghosts)
		for _, g := range p.Ghosts {
			assert.NotEqual(t, r, l.Owner(g))
		}
	}
	assert.Equal(t, m.NumActive(), owned)

	s := l.Statistics()
	assert.Equal(t, 3, s.NumRanks)
	assert.Equal(t, 4, s.MinElements)
	assert.Equal(t, 4, s.MaxElements)
	assert.InDelta(t, 1.0, s.Imbalance, 1e-12)
}

func TestLayoutRoundRobin(t *testing.T) {
	m, err := NewGridMesh(GridSpec{Nx: 4, Ny: 1, Nz: 1, Lx: 4, Ly: 1, Lz: 1})
	require.NoError(t, err)

	l, err := NewLayout(m, 2, RoundRobin)
	require.NoError(t, err)
	for i := 0; i < m.NumActive(); i++ {
		assert.Equal(t, i%2, l.Owner(i))
	}
}

func TestLayoutRejectsTooManyRanks(t *testing.T) {
	m, err := NewGridMesh(GridSpec{Nx: 2, Ny: 1, Nz: 1, Lx: 2, Ly: 1, Lz: 1})
	require.NoError(t, err)
	_, err = NewLayout(m, 3, BlockPartition)
	require.Error(t, err)
}

func TestFieldBlocks(t *testing.T) {
	f, err := NewField("eta", 5, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, f.NumBlocks())
	assert.Equal(t, 3, f.NumOrderParameters())

	f.OPBlock(1)[7] = 0.5
	assert.Equal(t, 0.5, f.Sample(1, 7))
	assert.Equal(t, 0.5, f.Block(3)[7])

	_, err = NewField("eta", 2, 2, 10)
	require.Error(t, err)
}
