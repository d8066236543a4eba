// Package event reads and writes event files: JSON bundles of tracks and a
// primary vertex, one entry per collision.
package event

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/simplefinder/internal/finder"
	"github.com/banshee-data/simplefinder/internal/kf"
)

// MaxFileSize bounds the event files Load accepts.
const MaxFileSize = 256 * 1024 * 1024

// File is the on-disk layout.
type File struct {
	Events []Event `json:"events"`
}

// Event is one collision.
type Event struct {
	ID            string  `json:"id"`
	PrimaryVertex Vertex  `json:"primary_vertex"`
	Tracks        []Track `json:"tracks"`
}

// Track is the JSON form of kf.Track. Cov is the packed lower triangle of
// the (x, y, z, px, py, pz) covariance.
type Track struct {
	Position [3]float64  `json:"position"`
	Momentum [3]float64  `json:"momentum"`
	Cov      [21]float64 `json:"cov"`
	Charge   int         `json:"charge"`
	PDG      int         `json:"pdg"`
}

// Vertex is the JSON form of kf.Vertex.
type Vertex struct {
	Position      [3]float64 `json:"position"`
	Cov           [6]float64 `json:"cov"`
	Chi2          float64    `json:"chi2,omitempty"`
	NDF           int        `json:"ndf,omitempty"`
	NContributors int        `json:"n_contributors,omitempty"`
}

func toVec(a [3]float64) r3.Vec   { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
func fromVec(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Input converts the event for finder.InitFromInput.
func (e Event) Input() finder.Input {
	in := finder.Input{
		EventID: e.ID,
		PrimaryVertex: kf.Vertex{
			Position:      toVec(e.PrimaryVertex.Position),
			Cov:           e.PrimaryVertex.Cov,
			Chi2:          e.PrimaryVertex.Chi2,
			NDF:           e.PrimaryVertex.NDF,
			NContributors: e.PrimaryVertex.NContributors,
		},
		Tracks: make([]kf.Track, len(e.Tracks)),
	}
	for i, t := range e.Tracks {
		in.Tracks[i] = kf.Track{
			Position: toVec(t.Position),
			Momentum: toVec(t.Momentum),
			Cov:      t.Cov,
			Charge:   t.Charge,
			PDG:      t.PDG,
		}
	}
	return in
}

// FromInput is the inverse of Event.Input.
func FromInput(in finder.Input) Event {
	e := Event{
		ID: in.EventID,
		PrimaryVertex: Vertex{
			Position:      fromVec(in.PrimaryVertex.Position),
			Cov:           in.PrimaryVertex.Cov,
			Chi2:          in.PrimaryVertex.Chi2,
			NDF:           in.PrimaryVertex.NDF,
			NContributors: in.PrimaryVertex.NContributors,
		},
		Tracks: make([]Track, len(in.Tracks)),
	}
	for i, t := range in.Tracks {
		e.Tracks[i] = Track{
			Position: fromVec(t.Position),
			Momentum: fromVec(t.Momentum),
			Cov:      t.Cov,
			Charge:   t.Charge,
			PDG:      t.PDG,
		}
	}
	return e
}

// Load reads an event file. The file must have a .json extension.
func Load(path string) ([]finder.Input, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("event file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat event file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("event file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse event JSON: %w", err)
	}
	out := make([]finder.Input, len(f.Events))
	for i, e := range f.Events {
		if e.ID == "" {
			e.ID = fmt.Sprintf("%d", i)
		}
		out[i] = e.Input()
	}
	return out, nil
}

// Save writes events to path, replacing any existing file.
func Save(path string, events []finder.Input) error {
	f := File{Events: make([]Event, len(events))}
	for i, in := range events {
		f.Events[i] = FromInput(in)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write event file: %w", err)
	}
	return nil
}
