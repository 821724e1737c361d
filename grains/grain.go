package grains

import (
	"math"
)

// Dynamics tags how a grain is evolving. The tag is analyzed and set by
// an external collaborator; the tracker only stores it.
type Dynamics int

const (
	Shrinking Dynamics = -1
	None      Dynamics = 0
	Growing   Dynamics = 1
)

// Grain is a physical region tracked across time steps. A grain
// normally consists of a single segment; periodic boundary conditions
// may split one physical region into several disconnected images, one
// segment each. The grain id is stable across time steps, while several
// grains may share one order parameter; keeping that sharing free of
// spatial conflicts is the tracker's job.
type Grain struct {
	id                int
	orderParameter    int
	oldOrderParameter int

	segments []Segment

	maxRadius  float64
	maxValue   float64
	sumMeasure float64

	// Minimum lower-bound distance to any grain sharing the current or
	// old order parameter; drives the transfer buffer.
	distanceToNearestNeighbor float64

	dynamics Dynamics
}

// NewGrain creates a grain whose old order parameter equals the
// current one.
func NewGrain(id, orderParameter int) *Grain {
	return NewGrainWithHistory(id, orderParameter, orderParameter)
}

// NewGrainWithHistory creates a grain with distinct current and old
// order parameters.
func NewGrainWithHistory(id, orderParameter, oldOrderParameter int) *Grain {
	return &Grain{
		id:                        id,
		orderParameter:            orderParameter,
		oldOrderParameter:         oldOrderParameter,
		maxValue:                  math.Inf(-1),
		distanceToNearestNeighbor: math.Inf(1),
	}
}

// ID returns the grain id.
func (g *Grain) ID() int { return g.id }

// SetID assigns the grain id.
func (g *Grain) SetID(id int) { g.id = id }

// OrderParameter returns the current order parameter id.
func (g *Grain) OrderParameter() int { return g.orderParameter }

// SetOrderParameter assigns the current order parameter. If the new
// value differs from the old one, the remapping stage must later move
// the grain's field data from the old label to the new one.
func (g *Grain) SetOrderParameter(op int) { g.orderParameter = op }

// OldOrderParameter returns the order parameter recorded at the last
// conflict resolution.
func (g *Grain) OldOrderParameter() int { return g.oldOrderParameter }

// Segments returns the grain's segments.
func (g *Grain) Segments() []Segment { return g.segments }

// NumSegments returns the number of segments.
func (g *Grain) NumSegments() int { return len(g.segments) }

// MaxRadius returns the radius of the largest segment. Mainly used as
// the reference value for the buffer zone during reassignment.
func (g *Grain) MaxRadius() float64 { return g.maxRadius }

// MaxValue returns the maximum order parameter value over the grain.
func (g *Grain) MaxValue() float64 { return g.maxValue }

// Measure returns the summed measure of all segments.
func (g *Grain) Measure() float64 { return g.sumMeasure }

// Dynamics returns the grain's dynamics tag.
func (g *Grain) Dynamics() Dynamics { return g.dynamics }

// SetDynamics assigns the dynamics tag.
func (g *Grain) SetDynamics(d Dynamics) { g.dynamics = d }

// AddSegment appends a segment and updates the derived aggregates.
func (g *Grain) AddSegment(s Segment) {
	g.segments = append(g.segments, s)
	if s.Radius > g.maxRadius {
		g.maxRadius = s.Radius
	}
	if s.MaxValue > g.maxValue {
		g.maxValue = s.MaxValue
	}
	g.sumMeasure += s.Measure
}

// Distance returns the minimum precise distance over all segment pairs
// of the two grains.
func (g *Grain) Distance(other *Grain) float64 {
	min := math.Inf(1)
	for _, a := range g.segments {
		for _, b := range other.segments {
			if d := a.Distance(b); d < min {
				min = d
			}
		}
	}
	return min
}

// DistanceLowerBound returns the minimum sphere-bound distance over all
// segment pairs of the two grains.
func (g *Grain) DistanceLowerBound(other *Grain) float64 {
	min := math.Inf(1)
	for _, a := range g.segments {
		for _, b := range other.segments {
			if d := SphereDistance(a, b); d < min {
				min = d
			}
		}
	}
	return min
}

// AddNeighbor records another grain sharing the current or old order
// parameter. Only the distance to the nearest such neighbor is kept.
func (g *Grain) AddNeighbor(neighbor *Grain) {
	if d := g.DistanceLowerBound(neighbor); d < g.distanceToNearestNeighbor {
		g.distanceToNearestNeighbor = d
	}
}

// ResetNeighbors forgets previously recorded neighbors.
func (g *Grain) ResetNeighbors() {
	g.distanceToNearestNeighbor = math.Inf(1)
}

// DistanceToNearestNeighbor returns the recorded minimum neighbor
// distance, +Inf when no neighbor has been added.
func (g *Grain) DistanceToNearestNeighbor() float64 {
	return g.distanceToNearestNeighbor
}

// Overlaps reports whether the two grains come closer to each other
// than the sum of their buffer zones. The cheap sphere bound is checked
// first; the precise distance is only evaluated when the bound is
// inconclusive and one of the grains has a non-trivial segment shape.
func (g *Grain) Overlaps(other *Grain, bufferRatio, bufferFixed float64) bool {
	buffer := bufferRatio*g.maxRadius + bufferRatio*other.maxRadius + bufferFixed

	if g.DistanceLowerBound(other) > buffer {
		return false
	}
	if g.hasNonTrivialSegments() || other.hasNonTrivialSegments() {
		return g.Distance(other) < buffer
	}
	// For trivial shapes the precise distance equals the bound already
	// known to be within the buffer.
	return true
}

func (g *Grain) hasNonTrivialSegments() bool {
	for _, s := range g.segments {
		if !s.Trivial() {
			return true
		}
	}
	return false
}

// TransferBuffer returns the zone around the grain whose field data
// moves together with the grain during a label change: half the gap to
// the nearest neighbor, so two simultaneous buffers never overlap.
func (g *Grain) TransferBuffer() float64 {
	if math.IsInf(g.distanceToNearestNeighbor, 1) {
		return math.Inf(1)
	}
	return math.Max(0, g.distanceToNearestNeighbor/2)
}
