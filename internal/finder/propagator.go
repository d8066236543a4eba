package finder

import (
	"math"

	"github.com/banshee-data/simplefinder/internal/kf"
	"gonum.org/v1/gonum/spatial/r3"
)

// PCAParams is a daughter's parameter vector (x, y, z, px, py, pz, E, S)
// at its point of closest approach.
type PCAParams [kf.NParams]float64

func (p PCAParams) position() r3.Vec { return r3.Vec{X: p[kf.IX], Y: p[kf.IY], Z: p[kf.IZ]} }
func (p PCAParams) momentum() r3.Vec { return r3.Vec{X: p[kf.IPx], Y: p[kf.IPy], Z: p[kf.IPz]} }

// paramsInPCA transports a pair of daughters to their point of closest
// approach.
func (f *Finder) paramsInPCA(a, b kf.Particle) (kf.Particle, kf.Particle) {
	return f.algebra.ClosestApproach(a, b)
}

// distanceBetween is the separation of two daughters at their PCA. A
// non-finite separation is reported as +Inf so an upper cut rejects it.
func distanceBetween(p1, p2 PCAParams) float64 {
	d := r3.Norm(r3.Sub(p1.position(), p2.position()))
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

// cosMomentumSum returns, per daughter, the cosine between its momentum
// and the summed momentum of all daughters.
func cosMomentumSum(pars ...PCAParams) [MaxDaughters]float64 {
	var out [MaxDaughters]float64
	var sum r3.Vec
	for _, p := range pars {
		sum = r3.Add(sum, p.momentum())
	}
	for i, p := range pars {
		if i < MaxDaughters {
			out[i] = cosAngle(p.momentum(), sum)
		}
	}
	return out
}

// cosAngle returns the cosine between a and b, or -1 when either is a
// zero vector.
func cosAngle(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 || math.IsNaN(na) || math.IsNaN(nb) {
		return -1
	}
	c := r3.Dot(a, b) / (na * nb)
	return math.Max(-1, math.Min(1, c))
}
