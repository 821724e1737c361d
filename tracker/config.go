package tracker

import "fmt"

// StitchStrategy selects the algorithm used to merge per-rank region
// labels into globally consistent ones.
type StitchStrategy string

const (
	// StitchConsensus runs the iterative message-passing protocol:
	// ranks exchange clique membership lists until a global fixed
	// point is reached.
	StitchConsensus StitchStrategy = "consensus"

	// StitchGraph gathers all cross-rank adjacencies everywhere and
	// labels connected components of the resulting graph. Produces
	// identical numbering to StitchConsensus.
	StitchGraph StitchStrategy = "graph"
)

// Representation selects the geometric shape fitted to each detected
// segment.
type Representation string

const (
	RepresentationSpherical   Representation = "sphere"
	RepresentationEllipsoidal Representation = "ellipsoid"
)

// Config carries the tunable parameters of a Tracker.
type Config struct {
	// ThresholdLower is the detection threshold: an element belongs to
	// a region when its sampled value strictly exceeds it.
	ThresholdLower float64 `yaml:"threshold_lower"`

	// ThresholdUpper caps physically meaningful values. It is carried
	// for diagnostics only; detection does not clip against it.
	ThresholdUpper float64 `yaml:"threshold_upper"`

	// BufferDistanceRatio scales the larger of two grain radii into a
	// safety margin for overlap tests.
	BufferDistanceRatio float64 `yaml:"buffer_distance_ratio"`

	// BufferDistanceFixed is an absolute safety margin added on top of
	// the ratio-derived one.
	BufferDistanceFixed float64 `yaml:"buffer_distance_fixed"`

	// MaxOrderParameters bounds how many labels conflict resolution
	// may use. Must be positive.
	MaxOrderParameters int `yaml:"max_order_parameters"`

	// AllowNewGrains permits unmatched regions during tracking to
	// receive fresh grain ids instead of failing.
	AllowNewGrains bool `yaml:"allow_new_grains"`

	// GreedyInit forces a full recoloring during initial setup even
	// when no overlap is present.
	GreedyInit bool `yaml:"greedy_init"`

	// Stitching selects the label stitching algorithm.
	Stitching StitchStrategy `yaml:"stitching"`

	// Representation selects spherical or ellipsoidal segment shapes.
	Representation Representation `yaml:"representation"`
}

// DefaultConfig returns the parameter set used by the sintering demos.
func DefaultConfig() Config {
	return Config{
		ThresholdLower:      0.01,
		ThresholdUpper:      1.01,
		BufferDistanceRatio: 0.05,
		BufferDistanceFixed: 0,
		MaxOrderParameters:  8,
		AllowNewGrains:      false,
		GreedyInit:          false,
		Stitching:           StitchConsensus,
		Representation:      RepresentationSpherical,
	}
}

func (c Config) validate() error {
	if c.MaxOrderParameters <= 0 {
		return fmt.Errorf("max_order_parameters must be positive, got %d", c.MaxOrderParameters)
	}
	if c.ThresholdLower < 0 {
		return fmt.Errorf("threshold_lower must be non-negative, got %g", c.ThresholdLower)
	}
	if c.BufferDistanceRatio < 0 || c.BufferDistanceFixed < 0 {
		return fmt.Errorf("buffer distances must be non-negative, got ratio=%g fixed=%g",
			c.BufferDistanceRatio, c.BufferDistanceFixed)
	}
	switch c.Stitching {
	case StitchConsensus, StitchGraph:
	default:
		return fmt.Errorf("unknown stitching strategy %q", c.Stitching)
	}
	switch c.Representation {
	case RepresentationSpherical, RepresentationEllipsoidal:
	default:
		return fmt.Errorf("unknown representation %q", c.Representation)
	}
	return nil
}
