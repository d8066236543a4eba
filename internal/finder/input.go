package finder

import "github.com/banshee-data/simplefinder/internal/kf"

// Input bundles one event for InitFromInput.
type Input struct {
	EventID       string
	Tracks        []kf.Track
	PrimaryVertex kf.Vertex
}
