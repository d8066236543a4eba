package kf

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// NParams is the size of the particle parameter vector.
const NParams = 8

// Parameter offsets.
const (
	IX = iota
	IY
	IZ
	IPx
	IPy
	IPz
	IE
	IS
)

// Internal numerical stability constants.
const (
	// SingularChi2 is the chi-square reported when a covariance cannot be
	// inverted or the geometry is undefined. Any sane cut rejects it.
	SingularChi2 = 1e9
	// MaxConditionNumber bounds the Cholesky condition number accepted as
	// invertible.
	MaxConditionNumber = 1e14
	// parallelEpsilon is the relative |p1×p2|² below which two directions
	// are treated as parallel.
	parallelEpsilon = 1e-12
)

// Particle is an 8-parameter state with covariance.
type Particle struct {
	Params [NParams]float64
	Cov    *mat.SymDense
	Charge int
	Chi2   float64
	NDF    int
	PDG    int
}

// NewParticle builds a particle from a track under a mass hypothesis.
// The energy row of the covariance is derived from the momentum block;
// S starts at zero with zero variance.
func NewParticle(t Track, mass float64) Particle {
	p := Particle{
		Cov:    mat.NewSymDense(NParams, nil),
		Charge: t.Charge,
		PDG:    t.PDG,
	}
	p.Params[IX], p.Params[IY], p.Params[IZ] = t.Position.X, t.Position.Y, t.Position.Z
	p.Params[IPx], p.Params[IPy], p.Params[IPz] = t.Momentum.X, t.Momentum.Y, t.Momentum.Z
	e := math.Sqrt(r3.Norm2(t.Momentum) + mass*mass)
	p.Params[IE] = e

	for i := 0; i < 6; i++ {
		for j := 0; j <= i; j++ {
			p.Cov.SetSym(i, j, t.Cov[packedIndex(i, j)])
		}
	}
	if e > 0 {
		// dE/dp_k = p_k / E
		var jac [3]float64
		jac[0], jac[1], jac[2] = t.Momentum.X/e, t.Momentum.Y/e, t.Momentum.Z/e
		var cEE float64
		for j := 0; j < 6; j++ {
			var v float64
			for k := 0; k < 3; k++ {
				v += jac[k] * t.Cov[packedIndex(3+k, j)]
			}
			p.Cov.SetSym(IE, j, v)
			if j >= 3 {
				cEE += jac[j-3] * v
			}
		}
		p.Cov.SetSym(IE, IE, cEE)
	}
	return p
}

// Clone returns a deep copy.
func (p Particle) Clone() Particle {
	out := p
	if p.Cov != nil {
		out.Cov = mat.NewSymDense(NParams, nil)
		out.Cov.CopySym(p.Cov)
	}
	return out
}

// Position returns (x, y, z).
func (p Particle) Position() r3.Vec {
	return r3.Vec{X: p.Params[IX], Y: p.Params[IY], Z: p.Params[IZ]}
}

// Momentum returns (px, py, pz).
func (p Particle) Momentum() r3.Vec {
	return r3.Vec{X: p.Params[IPx], Y: p.Params[IPy], Z: p.Params[IPz]}
}

// Energy returns E.
func (p Particle) Energy() float64 { return p.Params[IE] }

// PositionCov returns the 3x3 position block of the covariance. A particle
// without a covariance gives a zero block.
func (p Particle) PositionCov() *mat.SymDense {
	s := mat.NewSymDense(3, nil)
	if p.Cov == nil {
		return s
	}
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			s.SetSym(i, j, p.Cov.At(i, j))
		}
	}
	return s
}

// Mass returns the invariant mass and its error. A negative m² yields a
// negative mass, following the usual convention for unphysical states.
// Without a covariance the error is zero.
func (p Particle) Mass() (m, sigma float64) {
	mom := p.Momentum()
	e := p.Energy()
	m2 := e*e - r3.Norm2(mom)
	if m2 >= 0 {
		m = math.Sqrt(m2)
	} else {
		m = -math.Sqrt(-m2)
	}
	if p.Cov == nil {
		return m, 0
	}
	if math.Abs(m) < 1e-12 {
		return m, math.Sqrt(math.Max(p.Cov.At(IE, IE), 0))
	}
	jac := mat.NewVecDense(NParams, nil)
	jac.SetVec(IPx, -mom.X/m)
	jac.SetVec(IPy, -mom.Y/m)
	jac.SetVec(IPz, -mom.Z/m)
	jac.SetVec(IE, e/m)
	v := mat.Inner(jac, p.Cov, jac)
	return m, math.Sqrt(math.Max(v, 0))
}
