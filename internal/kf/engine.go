package kf

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	maxNewtonIterations = 20
	newtonTolerance     = 1e-10
)

// Engine performs transport, closest-approach and combination operations
// under a single field model. It is stateless and safe for concurrent use.
type Engine struct {
	Field Field
}

// NewEngine returns an engine for the given field; nil means StraightLine.
func NewEngine(field Field) *Engine {
	if field == nil {
		field = StraightLine{}
	}
	return &Engine{Field: field}
}

// FromTrack builds a particle from a track under a mass hypothesis.
func (e *Engine) FromTrack(t Track, mass float64) Particle { return NewParticle(t, mass) }

// TransportToDS moves the particle by the path parameter ds, propagating
// its covariance through the transport Jacobian.
func (e *Engine) TransportToDS(p Particle, ds float64) Particle {
	params, jac := propagate(p.Params, e.Field.Kappa(p.Charge), ds)
	out := p
	out.Params = params
	if p.Cov != nil {
		out.Cov = similarity(jac, p.Cov)
	}
	return out
}

// DSToPoint returns the path parameter of the particle's point of closest
// approach to pt. Zero momentum yields zero.
func (e *Engine) DSToPoint(p Particle, pt r3.Vec) float64 {
	mom := p.Momentum()
	pp := r3.Norm2(mom)
	if pp <= 0 || !isFinite(pp) {
		return 0
	}
	seed := r3.Dot(mom, r3.Sub(pt, p.Position())) / pp
	k := e.Field.Kappa(p.Charge)
	if k == 0 {
		return seed
	}

	best, bestDist := seed, pointDistance2(p.Params, k, seed, pt)
	s := seed
	for i := 0; i < maxNewtonIterations; i++ {
		q, _ := propagate(p.Params, k, s)
		d := r3.Vec{X: q[IX] - pt.X, Y: q[IY] - pt.Y, Z: q[IZ] - pt.Z}
		dpx, dpy := momentumDerivative(q, k)
		g := d.X*q[IPx] + d.Y*q[IPy] + d.Z*q[IPz]
		h := q[IPx]*q[IPx] + q[IPy]*q[IPy] + q[IPz]*q[IPz] + d.X*dpx + d.Y*dpy
		if h <= 0 || !isFinite(h) {
			break
		}
		step := g / h
		s -= step
		if !isFinite(s) {
			break
		}
		if dist := pointDistance2(p.Params, k, s, pt); dist < bestDist {
			best, bestDist = s, dist
		}
		if math.Abs(step) < newtonTolerance*(1+math.Abs(s)) {
			break
		}
	}
	return best
}

func pointDistance2(params [NParams]float64, k, s float64, pt r3.Vec) float64 {
	q, _ := propagate(params, k, s)
	dx, dy, dz := q[IX]-pt.X, q[IY]-pt.Y, q[IZ]-pt.Z
	return dx*dx + dy*dy + dz*dz
}

// TransportToPoint moves the particle to its closest approach to pt.
func (e *Engine) TransportToPoint(p Particle, pt r3.Vec) Particle {
	return e.TransportToDS(p, e.DSToPoint(p, pt))
}

// DSToParticle returns the path parameters (s1, s2) minimising the
// separation of a and b. Nearly parallel directions keep a in place and
// project its position onto b, so the result is always finite.
func (e *Engine) DSToParticle(a, b Particle) (float64, float64) {
	s1, s2 := straightLineDS(a, b)
	k1, k2 := e.Field.Kappa(a.Charge), e.Field.Kappa(b.Charge)
	if k1 == 0 && k2 == 0 {
		return s1, s2
	}

	best1, best2 := s1, s2
	bestDist := pairDistance2(a.Params, b.Params, k1, k2, s1, s2)
	for i := 0; i < maxNewtonIterations; i++ {
		q1, _ := propagate(a.Params, k1, s1)
		q2, _ := propagate(b.Params, k2, s2)
		d := [3]float64{q1[IX] - q2[IX], q1[IY] - q2[IY], q1[IZ] - q2[IZ]}
		p1 := [3]float64{q1[IPx], q1[IPy], q1[IPz]}
		p2 := [3]float64{q2[IPx], q2[IPy], q2[IPz]}
		d1x, d1y := momentumDerivative(q1, k1)
		d2x, d2y := momentumDerivative(q2, k2)

		g1 := dot3(d, p1)
		g2 := -dot3(d, p2)
		h11 := dot3(p1, p1) + d[0]*d1x + d[1]*d1y
		h22 := dot3(p2, p2) - d[0]*d2x - d[1]*d2y
		h12 := -dot3(p1, p2)
		det := h11*h22 - h12*h12
		if math.Abs(det) <= parallelEpsilon*math.Abs(h11*h22) || !isFinite(det) {
			break
		}
		step1 := (h22*g1 - h12*g2) / det
		step2 := (h11*g2 - h12*g1) / det
		s1 -= step1
		s2 -= step2
		if !isFinite(s1) || !isFinite(s2) {
			break
		}
		if dist := pairDistance2(a.Params, b.Params, k1, k2, s1, s2); dist < bestDist {
			best1, best2, bestDist = s1, s2, dist
		}
		if math.Abs(step1)+math.Abs(step2) < newtonTolerance*(1+math.Abs(s1)+math.Abs(s2)) {
			break
		}
	}
	return best1, best2
}

func straightLineDS(a, b Particle) (float64, float64) {
	p1, p2 := a.Momentum(), b.Momentum()
	d := r3.Sub(a.Position(), b.Position())
	aa := r3.Dot(p1, p1)
	bb := r3.Dot(p1, p2)
	cc := r3.Dot(p2, p2)
	ee := r3.Dot(p1, d)
	ff := r3.Dot(p2, d)
	det := aa*cc - bb*bb
	if det <= parallelEpsilon*aa*cc || !isFinite(det) {
		if cc <= 0 || !isFinite(cc) {
			return 0, 0
		}
		return 0, ff / cc
	}
	return (bb*ff - cc*ee) / det, (aa*ff - bb*ee) / det
}

func pairDistance2(a, b [NParams]float64, k1, k2, s1, s2 float64) float64 {
	q1, _ := propagate(a, k1, s1)
	q2, _ := propagate(b, k2, s2)
	dx, dy, dz := q1[IX]-q2[IX], q1[IY]-q2[IY], q1[IZ]-q2[IZ]
	return dx*dx + dy*dy + dz*dz
}

func dot3(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// ClosestApproach transports both particles to their mutual point of
// closest approach.
func (e *Engine) ClosestApproach(a, b Particle) (Particle, Particle) {
	s1, s2 := e.DSToParticle(a, b)
	return e.TransportToDS(a, s1), e.TransportToDS(b, s2)
}

// Combine builds the mother of the given daughters, which should already
// sit at (or near) their common vertex. The vertex is the inverse-covariance
// weighted mean of the daughter positions; momenta and energies add. Each
// daughter enters the mother covariance through its own linear weight, so
// no daughter's uncertainty is dropped. Chi2 is the weighted scatter of the
// daughter positions around the vertex with NDF = 2n-3.
//
// If any position covariance is singular the positions are averaged with
// equal weights and Chi2 is SingularChi2.
func (e *Engine) Combine(daughters ...Particle) Particle {
	n := len(daughters)
	mother := Particle{Cov: mat.NewSymDense(NParams, nil), Chi2: SingularChi2, NDF: 2*n - 3}
	if n == 0 {
		mother.NDF = 0
		return mother
	}

	weights := make([]*mat.SymDense, n)
	wSum := mat.NewSymDense(3, nil)
	singular := false
	for i, d := range daughters {
		w, ok := invertSym(d.PositionCov())
		if !ok {
			singular = true
			break
		}
		weights[i] = w
		wSum.AddSym(wSum, w)
	}

	var vcov *mat.SymDense
	if !singular {
		var ok bool
		if vcov, ok = invertSym(wSum); !ok {
			singular = true
		}
	}

	// gains[i] maps daughter i's position into the vertex estimate.
	gains := make([]*mat.Dense, n)
	for i := range daughters {
		g := mat.NewDense(3, 3, nil)
		if singular {
			for j := 0; j < 3; j++ {
				g.Set(j, j, 1/float64(n))
			}
		} else {
			g.Mul(vcov, weights[i])
		}
		gains[i] = g
	}

	var vertex [3]float64
	for i, d := range daughters {
		pos := d.Position()
		r := mat.NewVecDense(3, []float64{pos.X, pos.Y, pos.Z})
		var gr mat.VecDense
		gr.MulVec(gains[i], r)
		for j := 0; j < 3; j++ {
			vertex[j] += gr.AtVec(j)
		}
		for j := IPx; j <= IE; j++ {
			mother.Params[j] += d.Params[j]
		}
		mother.Charge += d.Charge
	}
	mother.Params[IX], mother.Params[IY], mother.Params[IZ] = vertex[0], vertex[1], vertex[2]

	cov := mat.NewSymDense(NParams, nil)
	for i, d := range daughters {
		a := mat.NewDense(NParams, NParams, nil)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				a.Set(r, c, gains[i].At(r, c))
			}
		}
		for j := IPx; j <= IE; j++ {
			a.Set(j, j, 1)
		}
		cov.AddSym(cov, similarity(a, d.Cov))
	}
	mother.Cov = cov

	if singular {
		return mother
	}
	var chi2 float64
	for i, d := range daughters {
		pos := d.Position()
		res := mat.NewVecDense(3, []float64{pos.X - vertex[0], pos.Y - vertex[1], pos.Z - vertex[2]})
		chi2 += mat.Inner(res, weights[i], res)
	}
	if !isFinite(chi2) || chi2 < 0 {
		chi2 = SingularChi2
	}
	mother.Chi2 = chi2
	return mother
}

// Deviation returns the chi-square of the particle's closest approach to
// the vertex, using the summed particle and vertex position covariances.
func (e *Engine) Deviation(p Particle, v Vertex) float64 {
	t := e.TransportToPoint(p, v.Position)
	d := r3.Sub(t.Position(), v.Position)
	c := t.PositionCov()
	c.AddSym(c, v.CovMatrix())
	inv, ok := invertSym(c)
	if !ok {
		return SingularChi2
	}
	res := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
	chi2 := mat.Inner(res, inv, res)
	if !isFinite(chi2) || chi2 < 0 {
		return SingularChi2
	}
	return chi2
}

// DistanceToVertexLine returns the distance l between the particle's
// position and the vertex, its error dl, and whether the particle is
// compatible with coming from the vertex: l < 3·dl, or the particle sits
// behind the vertex relative to its own momentum.
func (e *Engine) DistanceToVertexLine(p Particle, v Vertex) (l, dl float64, fromVertex bool) {
	d := r3.Sub(p.Position(), v.Position)
	c := p.PositionCov()
	c.AddSym(c, v.CovMatrix())
	l = r3.Norm(d)
	if l < 1e-12 || !isFinite(l) {
		tr := c.At(0, 0) + c.At(1, 1) + c.At(2, 2)
		return 0, math.Sqrt(math.Max(tr, 0) / 3), true
	}
	res := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
	dl = math.Sqrt(math.Max(mat.Inner(res, c, res), 0)) / l
	fromVertex = l < 3*dl || r3.Dot(d, p.Momentum()) < 0
	return l, dl, fromVertex
}
