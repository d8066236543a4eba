package finder

import (
	"github.com/banshee-data/simplefinder/internal/kf"
	"gonum.org/v1/gonum/spatial/r3"
)

// Algebra is the particle-state capability the search runs on. The finder
// only sequences these operations and applies cuts; how states propagate
// and combine is up to the implementation. *kf.Engine is the default.
type Algebra interface {
	// FromTrack builds a particle state from a track and a mass hypothesis.
	FromTrack(t kf.Track, mass float64) kf.Particle
	// ClosestApproach transports both particles to their mutual point of
	// closest approach.
	ClosestApproach(a, b kf.Particle) (kf.Particle, kf.Particle)
	// TransportToPoint transports a particle to its closest approach to pt.
	TransportToPoint(p kf.Particle, pt r3.Vec) kf.Particle
	// Combine builds a mother from daughters at a common vertex, setting
	// Chi2 and NDF of the vertex fit.
	Combine(daughters ...kf.Particle) kf.Particle
	// Deviation is the chi-square of the particle's track relative to v.
	Deviation(p kf.Particle, v kf.Vertex) float64
	// DistanceToVertexLine returns the decay length, its error and whether
	// the particle is compatible with originating at v.
	DistanceToVertexLine(p kf.Particle, v kf.Vertex) (l, dl float64, fromVertex bool)
}

// Verify at compile time that *kf.Engine implements Algebra.
var _ Algebra = (*kf.Engine)(nil)
