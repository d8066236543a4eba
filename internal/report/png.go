package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WritePNGs renders each non-empty histogram to <dir>/<name>.png and
// returns the written paths.
func WritePNGs(dir, prefix string, hs []Histogram) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}
	var written []string
	for _, h := range hs {
		if len(h.Values) == 0 {
			continue
		}
		p := plot.New()
		p.Title.Text = h.Title
		if prefix != "" {
			p.Title.Text = prefix + ": " + h.Title
		}
		p.X.Label.Text = h.XLabel
		p.Y.Label.Text = "Candidates"

		bins := h.Bins
		if bins <= 0 {
			bins = DefaultBins
		}
		hist, err := plotter.NewHist(plotter.Values(h.Values), bins)
		if err != nil {
			return written, fmt.Errorf("histogram %s: %w", h.Name, err)
		}
		p.Add(hist)

		path := filepath.Join(dir, h.Name+".png")
		if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
