package tracker

import "github.com/notargets/GrainKernel/mesh"

// invalidParticleID marks elements not assigned to any detected region.
const invalidParticleID = -1

// flood assigns id to every locally owned element connected to the
// seed element whose sampled value for op exceeds the detection
// threshold. Refined elements delegate to their children. Returns the
// number of elements claimed and the maximum value seen among them.
func (t *Tracker) flood(seed int, f *mesh.Field, op, id int) (count int, maxValue float64) {
	stack := []int{seed}
	for len(stack) > 0 {
		eid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e := t.mesh.Elem(eid)
		if e.Refined() {
			stack = append(stack, e.Children...)
			continue
		}
		idx := e.ActiveIndex
		if t.layout.Owner(idx) != t.comm.Rank() {
			continue
		}
		if t.elementIDs[idx] != invalidParticleID {
			continue
		}
		v := f.Sample(op, idx)
		if v <= t.cfg.ThresholdLower {
			continue
		}

		t.elementIDs[idx] = id
		count++
		if count == 1 || v > maxValue {
			maxValue = v
		}
		stack = append(stack, e.Neighbors...)
	}
	return count, maxValue
}

// resetElementIDs clears the owned entries of the shared particle id
// array. Collective: ends with a barrier so ghost entries written by
// other ranks are visible afterwards.
func (t *Tracker) resetElementIDs() {
	for _, idx := range t.part.Owned {
		t.elementIDs[idx] = invalidParticleID
	}
	t.comm.Barrier()
}
