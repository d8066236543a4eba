package finder

import (
	"math"

	"github.com/banshee-data/simplefinder/internal/kf"
	"gonum.org/v1/gonum/spatial/r3"
)

// motherProperties returns the decay length from the primary vertex, its
// error, the significance l/dl and whether the mother is compatible with
// the PV itself. A zero error with a non-zero length saturates the
// significance at kf.SingularChi2.
func (f *Finder) motherProperties(mother kf.Particle) (l, dl, ldl float64, fromPV bool) {
	l, dl, fromPV = f.algebra.DistanceToVertexLine(mother, f.pv)
	switch {
	case math.IsNaN(l) || math.IsNaN(dl):
		return l, dl, 0, true
	case dl > 0:
		ldl = l / dl
	case l > 0:
		ldl = kf.SingularChi2
	}
	return l, dl, ldl, fromPV
}

// cosTopo is the cosine between the mother momentum and the vector from
// the primary vertex to the decay point.
func (f *Finder) cosTopo(mother kf.Particle) float64 {
	return cosAngle(mother.Momentum(), r3.Sub(mother.Position(), f.pv.Position))
}

// chi2Topo is the chi-square of the mother's track relative to the PV.
func (f *Finder) chi2Topo(mother kf.Particle) float64 {
	c := f.algebra.Deviation(mother, f.pv)
	if math.IsNaN(c) || c < 0 {
		return kf.SingularChi2
	}
	return c
}

// chiToPrimaryVertex is the chi-square of a daughter's track relative to
// the PV.
func (f *Finder) chiToPrimaryVertex(p kf.Particle) float64 {
	c := f.algebra.Deviation(p, f.pv)
	if math.IsNaN(c) || c < 0 {
		return kf.SingularChi2
	}
	return c
}
