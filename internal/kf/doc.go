// Package kf implements the particle-state algebra used by the V0 finder:
// track and vertex containers, an 8-parameter particle state
// (x, y, z, px, py, pz, E, S) with full covariance, propagation along
// straight lines or helices in a uniform Bz field, closest-approach
// solvers, error-weighted combination of daughters into a mother, and
// chi-square deviations from a vertex.
//
// Units follow the usual offline-reconstruction convention: lengths in cm,
// momenta and energies in GeV, magnetic field in kG. S is the path
// parameter (path length divided by |p|) accumulated by transport.
//
// Numerically degenerate input (parallel tracks, zero momenta, singular
// covariances) never produces an error or a NaN. The solvers fall back to a
// bounded geometric answer and chi-squares saturate at SingularChi2.
package kf
