package finder

import (
	"github.com/banshee-data/simplefinder/internal/kf"
	"github.com/banshee-data/simplefinder/internal/pdg"
)

// TrackIndex partitions track indices by species hypothesis. Every track
// lands in exactly one bucket; unrecognised PDG codes go to pdg.Unknown.
// Within a bucket indices keep input order.
type TrackIndex [pdg.NumSpecies][]int

// BuildIndex sorts the tracks of one event into species buckets.
func BuildIndex(tracks []kf.Track) TrackIndex {
	var ix TrackIndex
	for i, t := range tracks {
		s := pdg.FromPDG(t.PDG)
		ix[s] = append(ix[s], i)
	}
	return ix
}

// Of returns the bucket for s. Out-of-range species yield nil.
func (ix TrackIndex) Of(s pdg.Species) []int {
	if s >= pdg.NumSpecies {
		return nil
	}
	return ix[s]
}

// Len returns the total number of indexed tracks.
func (ix TrackIndex) Len() int {
	n := 0
	for _, b := range ix {
		n += len(b)
	}
	return n
}

// Counts returns the number of tracks per recognised species with at least
// one track.
func (ix TrackIndex) Counts() map[pdg.Species]int {
	out := make(map[pdg.Species]int)
	for s, b := range ix {
		if len(b) > 0 {
			out[pdg.Species(s)] = len(b)
		}
	}
	return out
}
