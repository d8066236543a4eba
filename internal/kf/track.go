package kf

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Track is a reconstructed charged track state: a point on the trajectory,
// the momentum at that point and the 6x6 covariance of
// (x, y, z, px, py, pz) packed as a lower triangle.
type Track struct {
	Position r3.Vec
	Momentum r3.Vec
	Cov      [21]float64
	Charge   int
	PDG      int // species hypothesis from PID
}

// Vertex is a fitted interaction point with its packed 3x3 covariance.
type Vertex struct {
	Position      r3.Vec
	Cov           [6]float64
	Chi2          float64
	NDF           int
	NContributors int
}

// packedIndex returns the offset of element (i, j) in a packed lower triangle.
func packedIndex(i, j int) int {
	if j > i {
		i, j = j, i
	}
	return i*(i+1)/2 + j
}

// SymFromPacked expands a packed lower triangle into an n×n SymDense.
func SymFromPacked(n int, packed []float64) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			s.SetSym(i, j, packed[packedIndex(i, j)])
		}
	}
	return s
}

// PackSym flattens a symmetric matrix into its packed lower triangle.
func PackSym(s mat.Symmetric) []float64 {
	n := s.SymmetricDim()
	out := make([]float64, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out[packedIndex(i, j)] = s.At(i, j)
		}
	}
	return out
}

// CovMatrix returns the track covariance as a 6x6 symmetric matrix.
func (t Track) CovMatrix() *mat.SymDense { return SymFromPacked(6, t.Cov[:]) }

// CovMatrix returns the vertex covariance as a 3x3 symmetric matrix.
func (v Vertex) CovMatrix() *mat.SymDense { return SymFromPacked(3, v.Cov[:]) }

// DiagonalTrackCov builds a packed track covariance with independent
// position (sigmaPos²) and momentum (sigmaMom²) errors.
func DiagonalTrackCov(sigmaPos, sigmaMom float64) [21]float64 {
	var c [21]float64
	for i := 0; i < 3; i++ {
		c[packedIndex(i, i)] = sigmaPos * sigmaPos
		c[packedIndex(i+3, i+3)] = sigmaMom * sigmaMom
	}
	return c
}

// DiagonalVertexCov builds a packed vertex covariance with isotropic error.
func DiagonalVertexCov(sigma float64) [6]float64 {
	s2 := sigma * sigma
	return [6]float64{s2, 0, s2, 0, 0, s2}
}
