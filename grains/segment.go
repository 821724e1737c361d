// Package grains holds the geometric data model of the tracker: a
// Segment is one connected spatial piece of a physical region, a Grain
// aggregates segments under a stable identity and a current label, and
// a Remapping describes a pending label-to-label data migration.
package grains

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ShapeKind tags the representation a segment carries for precise
// distance queries.
type ShapeKind uint8

const (
	// Spherical segments are fully described by center and radius.
	Spherical ShapeKind = iota
	// Ellipsoidal segments carry principal semi-axes and directions.
	Ellipsoidal
)

// Segment is a connected spatial region within one label.
type Segment struct {
	Center   r3.Vec
	Radius   float64 // bounding radius
	Measure  float64
	MaxValue float64

	Kind ShapeKind

	// Ellipsoidal representation only.
	SemiAxes r3.Vec     // principal semi-axis lengths
	Axes     *mat.Dense // 3x3, row d is the unit direction of axis d
}

// NewSphericalSegment builds a sphere-represented segment.
func NewSphericalSegment(center r3.Vec, radius, measure, maxValue float64) (Segment, error) {
	if radius < 0 {
		return Segment{}, fmt.Errorf("segment radius must be non-negative, got %g", radius)
	}
	if measure <= 0 {
		return Segment{}, fmt.Errorf("segment measure must be positive, got %g", measure)
	}
	return Segment{
		Center:   center,
		Radius:   radius,
		Measure:  measure,
		MaxValue: maxValue,
		Kind:     Spherical,
	}, nil
}

// NewEllipsoidalSegment builds an ellipsoid-represented segment. The
// bounding radius is the largest semi-axis.
func NewEllipsoidalSegment(center r3.Vec, semiAxes r3.Vec, axes *mat.Dense, measure, maxValue float64) (Segment, error) {
	if semiAxes.X < 0 || semiAxes.Y < 0 || semiAxes.Z < 0 {
		return Segment{}, fmt.Errorf("semi-axes must be non-negative, got %v", semiAxes)
	}
	if measure <= 0 {
		return Segment{}, fmt.Errorf("segment measure must be positive, got %g", measure)
	}
	if r, c := axes.Dims(); r != 3 || c != 3 {
		return Segment{}, fmt.Errorf("axes must be 3x3, got %dx%d", r, c)
	}
	return Segment{
		Center:   center,
		Radius:   math.Max(semiAxes.X, math.Max(semiAxes.Y, semiAxes.Z)),
		Measure:  measure,
		MaxValue: maxValue,
		Kind:     Ellipsoidal,
		SemiAxes: semiAxes,
		Axes:     axes,
	}, nil
}

// Trivial reports whether the sphere bound is already the exact shape.
func (s Segment) Trivial() bool { return s.Kind == Spherical }

// SphereDistance returns the surface gap of the two segments' bounding
// spheres. Negative when the spheres overlap. Exact for spherical
// segments, a lower bound otherwise.
func SphereDistance(a, b Segment) float64 {
	return r3.Norm(r3.Sub(b.Center, a.Center)) - a.Radius - b.Radius
}

// Distance returns the precise surface gap between two segments. For
// spherical segments this equals SphereDistance; for ellipsoidal ones
// the extents are evaluated along the center line, exact for spheres
// and a tight approximation for moderately eccentric ellipsoids.
func (s Segment) Distance(other Segment) float64 {
	d := r3.Sub(other.Center, s.Center)
	sep := r3.Norm(d)
	if sep == 0 {
		return -s.Radius - other.Radius
	}
	n := r3.Scale(1/sep, d)
	return sep - s.extent(n) - other.extent(r3.Scale(-1, n))
}

// extent returns the distance from the segment center to its surface
// along the unit direction n.
func (s Segment) extent(n r3.Vec) float64 {
	if s.Kind == Spherical {
		return s.Radius
	}
	sum := 0.0
	for d := 0; d < 3; d++ {
		u := r3.Vec{X: s.Axes.At(d, 0), Y: s.Axes.At(d, 1), Z: s.Axes.At(d, 2)}
		a := axisLen(s.SemiAxes, d)
		if a == 0 {
			continue
		}
		p := r3.Dot(n, u) / a
		sum += p * p
	}
	if sum == 0 {
		return 0
	}
	return 1 / math.Sqrt(sum)
}

func axisLen(v r3.Vec, d int) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
