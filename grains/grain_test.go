package grains

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func sphere(t *testing.T, x, y, z, radius float64) Segment {
	t.Helper()
	s, err := NewSphericalSegment(r3.Vec{X: x, Y: y, Z: z}, radius, 1, 1)
	require.NoError(t, err)
	return s
}

func TestSegmentValidation(t *testing.T) {
	_, err := NewSphericalSegment(r3.Vec{}, -1, 1, 1)
	require.Error(t, err)
	_, err = NewSphericalSegment(r3.Vec{}, 1, 0, 1)
	require.Error(t, err)
	_, err = NewEllipsoidalSegment(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, mat.NewDense(2, 2, nil), 1, 1)
	require.Error(t, err)
}

func TestSphereDistance(t *testing.T) {
	a := sphere(t, 0, 0, 0, 3)
	b := sphere(t, 2, 0, 0, 3)
	// Centers 2 apart, radii 3 each: deeply interpenetrating.
	assert.InDelta(t, -4.0, SphereDistance(a, b), 1e-12)
	assert.InDelta(t, SphereDistance(a, b), a.Distance(b), 1e-12)

	c := sphere(t, 10, 0, 0, 3)
	assert.InDelta(t, 4.0, SphereDistance(a, c), 1e-12)

	// Coincident centers.
	d := sphere(t, 0, 0, 0, 1)
	assert.InDelta(t, -4.0, a.Distance(d), 1e-12)
}

func TestEllipsoidExtent(t *testing.T) {
	axes := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	a, err := NewEllipsoidalSegment(r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, axes, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, a.Radius)

	b, err := NewEllipsoidalSegment(r3.Vec{X: 6}, r3.Vec{X: 2, Y: 1, Z: 1}, axes, 1, 1)
	require.NoError(t, err)

	// Along the major axis both extents are 2.
	assert.InDelta(t, 2.0, b.Distance(a), 1e-12)

	// Along the minor axis the extents shrink to 1; the sphere bound
	// stays pessimistic.
	c, err := NewEllipsoidalSegment(r3.Vec{Y: 6}, r3.Vec{X: 2, Y: 1, Z: 1}, axes, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, c.Distance(a), 1e-12)
	assert.InDelta(t, 2.0, SphereDistance(c, a), 1e-12)
}

func TestGrainAggregates(t *testing.T) {
	g := NewGrain(0, 1)
	assert.Equal(t, 1, g.OrderParameter())
	assert.Equal(t, 1, g.OldOrderParameter())

	s1, err := NewSphericalSegment(r3.Vec{}, 2, 5, 0.9)
	require.NoError(t, err)
	s2, err := NewSphericalSegment(r3.Vec{X: 10}, 3, 7, 0.95)
	require.NoError(t, err)
	g.AddSegment(s1)
	g.AddSegment(s2)

	assert.Equal(t, 2, g.NumSegments())
	assert.Equal(t, 3.0, g.MaxRadius())
	assert.Equal(t, 0.95, g.MaxValue())
	assert.InDelta(t, 12.0, g.Measure(), 1e-12)
}

func TestGrainDistanceUsesClosestSegments(t *testing.T) {
	a := NewGrain(0, 0)
	a.AddSegment(sphere(t, 0, 0, 0, 1))
	a.AddSegment(sphere(t, 100, 0, 0, 1))

	b := NewGrain(1, 1)
	b.AddSegment(sphere(t, 104, 0, 0, 1))

	assert.InDelta(t, 2.0, a.Distance(b), 1e-12)
	assert.InDelta(t, 2.0, a.DistanceLowerBound(b), 1e-12)
}

func TestOverlaps(t *testing.T) {
	a := NewGrain(0, 0)
	a.AddSegment(sphere(t, 0, 0, 0, 3))
	b := NewGrain(1, 0)
	b.AddSegment(sphere(t, 2, 0, 0, 3))
	c := NewGrain(2, 0)
	c.AddSegment(sphere(t, 20, 0, 0, 3))

	assert.True(t, a.Overlaps(b, 0, 0))
	assert.False(t, a.Overlaps(c, 0, 0))

	// A gap of 14 closes once the fixed buffer covers it.
	assert.True(t, a.Overlaps(c, 0, 15))
	// Ratio buffer scales with the larger radii: 3*r + 3*r > 14 for r > 2.34.
	assert.True(t, a.Overlaps(c, 2.5, 0))
	assert.False(t, a.Overlaps(c, 0.1, 0))
}

func TestTransferBuffer(t *testing.T) {
	g := NewGrain(0, 0)
	g.AddSegment(sphere(t, 0, 0, 0, 1))
	assert.True(t, math.IsInf(g.TransferBuffer(), 1))
	assert.True(t, math.IsInf(g.DistanceToNearestNeighbor(), 1))

	far := NewGrain(1, 0)
	far.AddSegment(sphere(t, 10, 0, 0, 1))
	g.AddNeighbor(far)
	assert.InDelta(t, 4.0, g.TransferBuffer(), 1e-12)

	// Interpenetrating neighbors clamp the buffer at zero.
	near := NewGrain(2, 0)
	near.AddSegment(sphere(t, 1, 0, 0, 1))
	g.AddNeighbor(near)
	assert.Equal(t, 0.0, g.TransferBuffer())

	g.ResetNeighbors()
	assert.True(t, math.IsInf(g.TransferBuffer(), 1))
}

func TestOrderParameterIDs(t *testing.T) {
	all := map[int]*Grain{
		0: NewGrainWithHistory(0, 2, 0),
		1: NewGrainWithHistory(1, 0, 0),
		2: NewGrainWithHistory(2, 2, 1),
	}
	assert.Equal(t, []int{0, 2}, ActiveOrderParameterIDs(all))
	assert.Equal(t, []int{0, 1}, OldOrderParameterIDs(all))
}

func TestRemappingString(t *testing.T) {
	r := Remapping{GrainID: 7, From: 1, To: 3}
	assert.Equal(t, "grain 7: 1 -> 3", r.String())
}
