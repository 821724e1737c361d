// Package mesh provides the spatial collaborator consumed by the grain
// tracker: an axis-aligned element mesh with optional local refinement
// and periodic wrap, a rank partition layout with owned and ghost
// element views, and per-label field storage blocks.
package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Element is one box-shaped mesh element. Refined elements keep their
// children and drop out of the active set; traversal reaching a refined
// element is expected to descend into its children.
type Element struct {
	ID          int // index into Mesh.Elems
	ActiveIndex int // stable index among active elements, -1 when refined

	Lo, Hi r3.Vec
	Level  int

	Parent   int   // element ID of the parent, -1 on the coarse level
	Children []int // element IDs, non-empty iff refined

	// Face neighbors as element IDs. A neighbor that is refined appears
	// here as its parent; each of its children is tested individually
	// during traversal.
	Neighbors []int

	// Periodic face neighbors, kept apart from Neighbors: flooding does
	// not cross periodic faces, segment grouping does.
	Periodic []int
}

// Refined reports whether the element has been replaced by children.
func (e *Element) Refined() bool { return len(e.Children) > 0 }

// Center returns the element's geometric center.
func (e *Element) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(e.Lo, e.Hi))
}

// Barycenter is the center of mass; identical to Center for boxes.
func (e *Element) Barycenter() r3.Vec { return e.Center() }

// Measure returns the element volume.
func (e *Element) Measure() float64 {
	d := r3.Sub(e.Hi, e.Lo)
	return d.X * d.Y * d.Z
}

// Diameter returns the length of the element's space diagonal.
func (e *Element) Diameter() float64 {
	return r3.Norm(r3.Sub(e.Hi, e.Lo))
}

// Mesh holds every element of the mesh, active and refined.
type Mesh struct {
	Elems []Element

	// ActiveIDs maps an active index to the element ID carrying it.
	ActiveIDs []int
}

// NumActive returns the number of active (leaf) elements.
func (m *Mesh) NumActive() int { return len(m.ActiveIDs) }

// Elem returns the element with the given ID.
func (m *Mesh) Elem(id int) *Element { return &m.Elems[id] }

// Active returns the active element with the given active index.
func (m *Mesh) Active(idx int) *Element { return &m.Elems[m.ActiveIDs[idx]] }

// ActiveNeighbors returns the active indices face-adjacent to the given
// active element, with refined neighbors expanded into their children.
func (m *Mesh) ActiveNeighbors(idx int) []int {
	e := m.Active(idx)
	var out []int
	for _, nb := range e.Neighbors {
		n := m.Elem(nb)
		if n.Refined() {
			for _, child := range n.Children {
				out = append(out, m.Elems[child].ActiveIndex)
			}
		} else {
			out = append(out, n.ActiveIndex)
		}
	}
	return out
}

// GridSpec describes a uniform box mesh with optional one-level
// isotropic refinement of selected cells.
type GridSpec struct {
	Nx, Ny, Nz int
	Lx, Ly, Lz float64

	// Periodic enables wrap-around adjacency per axis.
	Periodic [3]bool

	// Refine selects coarse cells to split into 2x2x2 children. May be
	// nil for a uniform mesh.
	Refine func(center r3.Vec) bool
}

// NewGridMesh builds a mesh from a grid specification.
func NewGridMesh(spec GridSpec) (*Mesh, error) {
	if spec.Nx <= 0 || spec.Ny <= 0 || spec.Nz <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions: %dx%dx%d", spec.Nx, spec.Ny, spec.Nz)
	}
	if spec.Lx <= 0 || spec.Ly <= 0 || spec.Lz <= 0 {
		return nil, fmt.Errorf("invalid domain extents: %g x %g x %g", spec.Lx, spec.Ly, spec.Lz)
	}

	nx, ny, nz := spec.Nx, spec.Ny, spec.Nz
	hx := spec.Lx / float64(nx)
	hy := spec.Ly / float64(ny)
	hz := spec.Lz / float64(nz)

	m := &Mesh{Elems: make([]Element, 0, nx*ny*nz)}

	cellID := func(i, j, k int) int { return i + nx*(j+ny*k) }

	// Coarse level.
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				lo := r3.Vec{X: float64(i) * hx, Y: float64(j) * hy, Z: float64(k) * hz}
				e := Element{
					ID:     cellID(i, j, k),
					Lo:     lo,
					Hi:     r3.Add(lo, r3.Vec{X: hx, Y: hy, Z: hz}),
					Parent: -1,
				}
				// Face neighbors, periodic wrap handled separately.
				type step struct{ di, dj, dk int }
				for _, s := range []step{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}} {
					ni, nj, nk := i+s.di, j+s.dj, k+s.dk
					wrapped := false
					if ni < 0 || ni >= nx {
						if !spec.Periodic[0] {
							continue
						}
						ni = (ni + nx) % nx
						wrapped = true
					}
					if nj < 0 || nj >= ny {
						if !spec.Periodic[1] {
							continue
						}
						nj = (nj + ny) % ny
						wrapped = true
					}
					if nk < 0 || nk >= nz {
						if !spec.Periodic[2] {
							continue
						}
						nk = (nk + nz) % nz
						wrapped = true
					}
					nb := cellID(ni, nj, nk)
					if nb == e.ID {
						continue // single-cell axis wraps onto itself
					}
					if wrapped {
						e.Periodic = append(e.Periodic, nb)
					} else {
						e.Neighbors = append(e.Neighbors, nb)
					}
				}
				m.Elems = append(m.Elems, e)
			}
		}
	}

	// Refinement pass: split selected coarse cells into 8 children.
	if spec.Refine != nil {
		nCoarse := len(m.Elems)
		for id := 0; id < nCoarse; id++ {
			if !spec.Refine(m.Elems[id].Center()) {
				continue
			}
			refine(m, id)
		}
	}

	// Stable active indices in element-ID order.
	for id := range m.Elems {
		e := &m.Elems[id]
		if e.Refined() {
			e.ActiveIndex = -1
			continue
		}
		e.ActiveIndex = len(m.ActiveIDs)
		m.ActiveIDs = append(m.ActiveIDs, id)
	}

	return m, nil
}

// refine splits element id into 2x2x2 children appended to the mesh.
func refine(m *Mesh, id int) {
	parent := m.Elems[id]
	half := r3.Scale(0.5, r3.Sub(parent.Hi, parent.Lo))
	base := len(m.Elems)

	children := make([]int, 0, 8)
	for c := 0; c < 8; c++ {
		a, b, d := c&1, (c>>1)&1, (c>>2)&1
		lo := r3.Add(parent.Lo, r3.Vec{
			X: float64(a) * half.X,
			Y: float64(b) * half.Y,
			Z: float64(d) * half.Z,
		})
		child := Element{
			ID:     base + c,
			Lo:     lo,
			Hi:     r3.Add(lo, half),
			Level:  parent.Level + 1,
			Parent: id,
		}
		children = append(children, child.ID)
		m.Elems = append(m.Elems, child)
	}

	// Sibling faces plus the parent's neighbor on each external face,
	// recovered geometrically from the parent's neighbor list.
	for c := 0; c < 8; c++ {
		child := &m.Elems[children[c]]
		a, b, d := c&1, (c>>1)&1, (c>>2)&1

		child.Neighbors = append(child.Neighbors,
			children[c^1], children[c^2], children[c^4])

		for axis := 0; axis < 3; axis++ {
			bit := []int{a, b, d}[axis]
			dir := 2*bit - 1 // -1 on the low side, +1 on the high side
			if nb, periodic, ok := sideNeighbor(m, id, axis, dir); ok {
				if periodic {
					child.Periodic = append(child.Periodic, nb)
				} else {
					child.Neighbors = append(child.Neighbors, nb)
				}
			}
		}
	}

	m.Elems[id].Children = children
}

// sideNeighbor finds the parent's neighbor on the given side by
// comparing box faces; reports whether the adjacency is periodic.
func sideNeighbor(m *Mesh, id, axis, dir int) (nb int, periodic bool, ok bool) {
	parent := &m.Elems[id]
	face := axisCoord(parent.Lo, axis)
	if dir > 0 {
		face = axisCoord(parent.Hi, axis)
	}
	for _, cand := range parent.Neighbors {
		n := &m.Elems[cand]
		opposite := axisCoord(n.Hi, axis)
		if dir > 0 {
			opposite = axisCoord(n.Lo, axis)
		}
		if math.Abs(opposite-face) < 1e-12 {
			return cand, false, true
		}
	}
	for _, cand := range parent.Periodic {
		n := &m.Elems[cand]
		// A periodic neighbor on this axis sits at the far end of the
		// domain; it is the wrap partner iff it is not a plain neighbor
		// and differs from the parent only along this axis.
		if sameExceptAxis(parent, n, axis) {
			return cand, true, true
		}
	}
	return 0, false, false
}

func axisCoord(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func sameExceptAxis(a, b *Element, axis int) bool {
	for ax := 0; ax < 3; ax++ {
		if ax == axis {
			continue
		}
		if math.Abs(axisCoord(a.Lo, ax)-axisCoord(b.Lo, ax)) > 1e-12 {
			return false
		}
	}
	return math.Abs(axisCoord(a.Lo, axis)-axisCoord(b.Lo, axis)) > 1e-12
}
