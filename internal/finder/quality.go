package finder

import (
	"math"

	"github.com/banshee-data/simplefinder/internal/kf"
	"gonum.org/v1/gonum/spatial/r3"
)

// chi2Geo is the vertex-fit chi-square of the mother's daughters.
func chi2Geo(mother kf.Particle) float64 {
	if math.IsNaN(mother.Chi2) || math.IsInf(mother.Chi2, 0) || mother.Chi2 < 0 {
		return kf.SingularChi2
	}
	return mother.Chi2
}

// distanceToSecondaryVertex is how far the third daughter, at its closest
// approach, passes from the two-body vertex.
func distanceToSecondaryVertex(p PCAParams, sv r3.Vec) float64 {
	d := r3.Norm(r3.Sub(p.position(), sv))
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}
