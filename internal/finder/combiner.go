package finder

import (
	"github.com/banshee-data/simplefinder/internal/kf"
	"gonum.org/v1/gonum/spatial/r3"
)

// constructMother combines two daughters already at their PCA.
func (f *Finder) constructMother(pdgCode int, a, b kf.Particle) kf.Particle {
	m := f.algebra.Combine(a, b)
	m.PDG = pdgCode
	return m
}

// secondaryVertex is the midpoint of the first two daughters at their PCA.
func secondaryVertex(p1, p2 PCAParams) r3.Vec {
	return r3.Scale(0.5, r3.Add(p1.position(), p2.position()))
}

// paramsInSecondaryVertex moves the third daughter to its closest approach
// to the two-body secondary vertex.
func (f *Finder) paramsInSecondaryVertex(p kf.Particle, sv r3.Vec) kf.Particle {
	return f.algebra.TransportToPoint(p, sv)
}

// constructMotherThree combines three daughters, the third already
// re-propagated to the secondary vertex of the first two.
func (f *Finder) constructMotherThree(pdgCode int, a, b, c kf.Particle) kf.Particle {
	m := f.algebra.Combine(a, b, c)
	m.PDG = pdgCode
	return m
}
