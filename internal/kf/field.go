package kf

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CLight converts charge × field (e × kG) into GeV/cm curvature units.
const CLight = 0.000299792458

// Field describes the magnetic field model tracks propagate in.
type Field interface {
	// Kappa returns the curvature constant c·q·Bz for a particle of the
	// given charge. Zero means straight-line propagation.
	Kappa(charge int) float64
}

// StraightLine is a field-free model; closest approaches are analytic.
type StraightLine struct{}

// Kappa is always zero.
func (StraightLine) Kappa(int) float64 { return 0 }

// UniformField is a homogeneous solenoidal field along z, in kG.
type UniformField struct {
	Bz float64
}

// Kappa returns c·q·Bz.
func (f UniformField) Kappa(charge int) float64 { return CLight * float64(charge) * f.Bz }

// propagate moves params by the path parameter ds on a helix with
// curvature k (dp/ds = k·(py, -px, 0), dr/ds = p) and returns the
// transported params with the 8x8 Jacobian. k == 0 is the straight line.
func propagate(p [NParams]float64, k, ds float64) ([NParams]float64, *mat.Dense) {
	theta := k * ds
	var sk, ck float64 // sin(θ)/k and (1-cos θ)/k
	if math.Abs(theta) < 1e-8 {
		sk = ds * (1 - theta*theta/6)
		ck = ds * theta / 2
	} else {
		sk = math.Sin(theta) / k
		ck = (1 - math.Cos(theta)) / k
	}
	c, s := math.Cos(theta), math.Sin(theta)
	px, py := p[IPx], p[IPy]

	out := p
	out[IX] = p[IX] + px*sk + py*ck
	out[IY] = p[IY] + py*sk - px*ck
	out[IZ] = p[IZ] + p[IPz]*ds
	out[IPx] = px*c + py*s
	out[IPy] = py*c - px*s
	out[IS] = p[IS] + ds

	jac := mat.NewDense(NParams, NParams, nil)
	for i := 0; i < NParams; i++ {
		jac.Set(i, i, 1)
	}
	jac.Set(IX, IPx, sk)
	jac.Set(IX, IPy, ck)
	jac.Set(IY, IPx, -ck)
	jac.Set(IY, IPy, sk)
	jac.Set(IZ, IPz, ds)
	jac.Set(IPx, IPx, c)
	jac.Set(IPx, IPy, s)
	jac.Set(IPy, IPx, -s)
	jac.Set(IPy, IPy, c)
	return out, jac
}

// momentumDerivative returns dp/ds at the given params.
func momentumDerivative(p [NParams]float64, k float64) (dpx, dpy float64) {
	return k * p[IPy], -k * p[IPx]
}

// similarity returns J·C·Jᵀ as a symmetric matrix.
func similarity(jac mat.Matrix, c mat.Symmetric) *mat.SymDense {
	r, _ := jac.Dims()
	var tmp, full mat.Dense
	tmp.Mul(jac, c)
	full.Mul(&tmp, jac.T())
	out := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j <= i; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out
}

// invertSym inverts a symmetric positive-definite matrix. It reports false
// for indefinite or badly conditioned input.
func invertSym(m mat.Symmetric) (*mat.SymDense, bool) {
	var ch mat.Cholesky
	if ok := ch.Factorize(m); !ok {
		return nil, false
	}
	if ch.Cond() > MaxConditionNumber {
		return nil, false
	}
	inv := mat.NewSymDense(m.SymmetricDim(), nil)
	if err := ch.InverseTo(inv); err != nil {
		return nil, false
	}
	return inv, true
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
