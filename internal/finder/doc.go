// Package finder reconstructs short-lived neutral particles (V0s such as
// Lambda or K0s, and three-body decays such as the hypertriton) from the
// charged tracks of one event and its primary vertex.
//
// A Finder holds exactly one event at a time. Init loads the tracks and
// primary vertex and partitions the tracks by species; FindParticles walks
// every daughter combination allowed by the configured Decay, propagates
// the daughters to their point of closest approach, builds the mother,
// evaluates the vertex-quality and topological discriminators and keeps
// the candidates that pass every cut in the CutSet.
//
// The search is quadratic in the track counts of the two daughter species
// for two-body decays and cubic for three-body decays. There is no cap on
// the number of combinations.
//
// A Finder is not safe for concurrent use. Process events in parallel with
// one Finder per goroutine; Decay and CutSet values can be shared.
package finder
