package tracker

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/GrainKernel/grains"
	"github.com/notargets/GrainKernel/mesh"
)

// InitialSetup detects the starting grain population of f and assigns
// grain ids in detection order. Collective.
//
// Reports whether conflict resolution relabeled any grain and whether
// the number of active order parameters differs from the layout the
// field was supplied with.
func (t *Tracker) InitialSetup(f *mesh.Field) (reassigned, opNumberChanged bool, err error) {
	detected, err := t.detectGrains(f, true)
	if err != nil {
		return false, false, err
	}
	t.oldGrains = t.grains
	t.grains = detected

	reassigned, err = t.reassignGrains(t.cfg.GreedyInit)
	if err != nil {
		return false, false, err
	}
	opNumberChanged = len(t.activeOPs) != len(grains.OldOrderParameterIDs(t.grains))
	return reassigned, opNumberChanged, nil
}

// Track detects the current grain population of f and carries the
// previous step's identities over to it. A detected region inherits
// the id of the closest previous grain whose segment center lies
// within the region's own radius; each previous grain matches at most
// once. Unmatched regions become new grains when the configuration
// allows it and fail the step otherwise. Collective.
func (t *Tracker) Track(f *mesh.Field) (reassigned, opNumberChanged bool, err error) {
	detected, err := t.detectGrains(f, false)
	if err != nil {
		return false, false, err
	}
	old := t.grains

	numberer := 0
	candidates := sortedGrainIDs(old)
	if n := len(candidates); n > 0 {
		numberer = candidates[n-1] + 1
	}

	result := make(map[int]*grains.Grain, len(detected))
	for _, pid := range sortedGrainIDs(detected) {
		ng := detected[pid]
		minDist := math.Inf(1)
		match := -1
		for _, seg := range ng.Segments() {
			for _, oid := range candidates {
				if oid < 0 {
					continue
				}
				for _, oseg := range old[oid].Segments() {
					d := r3.Norm(r3.Sub(oseg.Center, seg.Center))
					if d < seg.Radius && d < minDist {
						minDist = d
						match = oid
					}
				}
			}
		}

		switch {
		case match >= 0:
			og := old[match]
			if og.OrderParameter() != ng.OrderParameter() {
				return false, false, fmt.Errorf(
					"%w: grain %d carries order parameter %d but its region was detected under %d (min distance %g)",
					ErrGrainsInconsistency, match, og.OrderParameter(), ng.OrderParameter(), minDist)
			}
			ng.SetID(match)
			switch {
			case ng.Measure() > og.Measure():
				ng.SetDynamics(grains.Growing)
			case ng.Measure() < og.Measure():
				ng.SetDynamics(grains.Shrinking)
			}
			for k, v := range candidates {
				if v == match {
					candidates[k] = -1
					break
				}
			}
		case t.cfg.AllowNewGrains:
			ng.SetID(numberer)
			numberer++
		default:
			return false, false, fmt.Errorf(
				"%w: region detected under order parameter %d matches no previous grain and new grains are not allowed",
				ErrGrainsInconsistency, ng.OrderParameter())
		}
		result[ng.ID()] = ng
	}

	t.oldGrains = old
	t.grains = result

	reassigned, err = t.reassignGrains(false)
	if err != nil {
		return false, false, err
	}
	opNumberChanged = len(t.activeOPs) != len(grains.OldOrderParameterIDs(t.grains)) ||
		len(t.activeOPs) != len(grains.ActiveOrderParameterIDs(t.oldGrains))
	return reassigned, opNumberChanged, nil
}
