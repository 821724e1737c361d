package tracker

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/GrainKernel/grains"
)

// PrintCurrentGrains writes the current population to w. When
// invariant is true the listing is ordered by segment coordinates and
// omits grain ids, which keeps it comparable across runs with
// different rank counts.
func (t *Tracker) PrintCurrentGrains(w io.Writer, invariant bool) {
	if invariant {
		grains.PrintGrainsInvariant(w, t.grains)
		return
	}
	grains.PrintGrains(w, t.grains)
}

// PrintOldGrains writes the population recorded before the latest
// Track call.
func (t *Tracker) PrintOldGrains(w io.Writer, invariant bool) {
	if invariant {
		grains.PrintGrainsInvariant(w, t.oldGrains)
		return
	}
	grains.PrintGrains(w, t.oldGrains)
}

// OverlayExport writes one line per active element: the barycenter,
// the id of the first grain whose segment covers it (-1 when none),
// and that grain's order parameter. Grain state is replicated, so any
// single rank may export without communication.
func (t *Tracker) OverlayExport(w io.Writer) error {
	ids := sortedGrainIDs(t.grains)
	for idx := 0; idx < t.mesh.NumActive(); idx++ {
		c := t.mesh.Active(idx).Barycenter()
		gid, op := -1, -1
		for _, id := range ids {
			g := t.grains[id]
			for _, s := range g.Segments() {
				if r3.Norm(r3.Sub(c, s.Center)) < s.Radius {
					gid, op = id, g.OrderParameter()
					break
				}
			}
			if gid >= 0 {
				break
			}
		}
		if _, err := fmt.Fprintf(w, "%g %g %g %d %d\n", c.X, c.Y, c.Z, gid, op); err != nil {
			return err
		}
	}
	return nil
}
