package tracker

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ellipsoid holds a fitted segment shape. ok is false when the moment
// matrix was degenerate and the spherical fallback should be used.
type ellipsoid struct {
	semiAxes r3.Vec
	axes     *mat.Dense
	ok       bool
}

// particleEllipsoids fits an ellipsoid to every particle from its
// measure-weighted second moments about the particle center. For a
// solid ellipsoid the normalized moment matrix has eigenvalues a_i²/5,
// so the semi-axes follow directly from an eigendecomposition.
//
// Collective: moments are sum-reduced before the local decomposition,
// so every rank fits identical shapes.
func (t *Tracker) particleEllipsoids(numParticles int, centers []r3.Vec, measures []float64) []ellipsoid {
	moments := make([]float64, 6*numParticles)
	for _, idx := range t.part.Owned {
		u := t.elementIDs[idx]
		if u == invalidParticleID {
			continue
		}
		e := t.mesh.Active(idx)
		m := e.Measure()
		d := r3.Sub(e.Barycenter(), centers[u])
		moments[6*u] += m * d.X * d.X
		moments[6*u+1] += m * d.Y * d.Y
		moments[6*u+2] += m * d.Z * d.Z
		moments[6*u+3] += m * d.X * d.Y
		moments[6*u+4] += m * d.X * d.Z
		moments[6*u+5] += m * d.Y * d.Z
	}
	moments = t.comm.AllReduceFloatSum(moments)

	shapes := make([]ellipsoid, numParticles)
	for u := 0; u < numParticles; u++ {
		shapes[u] = fitEllipsoid(moments[6*u:6*u+6], measures[u])
	}
	return shapes
}

func fitEllipsoid(m []float64, mass float64) ellipsoid {
	if mass <= 0 {
		return ellipsoid{}
	}
	sym := mat.NewSymDense(3, []float64{
		m[0] / mass, m[3] / mass, m[4] / mass,
		m[3] / mass, m[1] / mass, m[5] / mass,
		m[4] / mass, m[5] / mass, m[2] / mass,
	})

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return ellipsoid{}
	}
	vals := es.Values(nil)
	for _, v := range vals {
		if v <= 0 || math.IsNaN(v) {
			return ellipsoid{}
		}
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Eigenvalues ascend; keep that order for axes and directions.
	// Direction d is the d-th eigenvector, stored as row d.
	axes := mat.NewDense(3, 3, nil)
	for d := 0; d < 3; d++ {
		for k := 0; k < 3; k++ {
			axes.Set(d, k, vecs.At(k, d))
		}
	}
	return ellipsoid{
		semiAxes: r3.Vec{
			X: math.Sqrt(5 * vals[0]),
			Y: math.Sqrt(5 * vals[1]),
			Z: math.Sqrt(5 * vals[2]),
		},
		axes: axes,
		ok:   true,
	}
}
