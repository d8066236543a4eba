// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simplefinder/internal/kf"
	"github.com/banshee-data/simplefinder/internal/pdg"
)

// Default fixture resolutions.
const (
	SigmaPos = 0.01 // cm
	SigmaMom = 0.01 // GeV/c
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertNear fails the test if got differs from want by more than tol.
func AssertNear(t testing.TB, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g ± %g", name, got, want, tol)
	}
}

// TrackThrough builds a track of the given species that passes through
// point with momentum mom. The reference point is shifted by offset along
// the direction of flight so propagation is exercised.
func TrackThrough(point, mom r3.Vec, offset float64, species pdg.Species) kf.Track {
	dir := r3.Unit(mom)
	return kf.Track{
		Position: r3.Add(point, r3.Scale(offset, dir)),
		Momentum: mom,
		Cov:      kf.DiagonalTrackCov(SigmaPos, SigmaMom),
		Charge:   species.Charge(),
		PDG:      species.PDG(),
	}
}

// Origin returns a primary vertex at (0, 0, 0) with isotropic error sigma.
func Origin(sigma float64) kf.Vertex {
	return kf.Vertex{Cov: kf.DiagonalVertexCov(sigma)}
}

// V0 returns two tracks of species a and b that cross exactly at decay,
// with momenta pa and pb.
func V0(decay, pa, pb r3.Vec, a, b pdg.Species) []kf.Track {
	return []kf.Track{
		TrackThrough(decay, pa, 2, a),
		TrackThrough(decay, pb, 3, b),
	}
}
