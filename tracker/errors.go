package tracker

import "errors"

// Fatal tracker failures. All of them abort the simulation step; none
// are retried.
var (
	// ErrGrainsInconsistency signals that a detected region cannot be
	// reconciled with the previous step's grains: either no match was
	// found while new grains are disallowed, or a matched grain's
	// recorded order parameter disagrees with the label the region was
	// detected under.
	ErrGrainsInconsistency = errors.New("grains inconsistency detected")

	// ErrOrderParameterLimit signals that conflict resolution requires
	// more order parameters than permitted.
	ErrOrderParameterLimit = errors.New("maximum number of order parameters exceeded")

	// ErrRemapCollision signals a remapping dependency that temp-buffer
	// rerouting cannot resolve: two migrations write the same
	// destination label over overlapping regions.
	ErrRemapCollision = errors.New("unresolvable remapping collision")
)
