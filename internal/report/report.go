// Package report turns accepted candidates into distributions: summary
// statistics, PNG histograms and an HTML page of bar charts.
package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/simplefinder/internal/finder"
)

// DefaultBins is the histogram binning used when a Histogram has none.
const DefaultBins = 50

// Histogram is one candidate quantity to plot.
type Histogram struct {
	Name   string // file-safe identifier
	Title  string
	XLabel string
	Bins   int
	Values []float64
}

// Summary holds descriptive statistics of a Histogram.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Median float64
	Min    float64
	Max    float64
}

// Collect extracts the standard set of distributions from cands. Values
// that are not finite are dropped.
func Collect(cands []finder.Candidate) []Histogram {
	hs := []Histogram{
		{Name: "mass", Title: "Invariant mass", XLabel: "m (GeV/c²)"},
		{Name: "chi2_geo", Title: "Vertex fit χ²", XLabel: "χ²"},
		{Name: "ldl", Title: "Decay length significance", XLabel: "L/ΔL"},
		{Name: "cos_topo", Title: "Pointing angle", XLabel: "cos θ"},
		{Name: "chi2_topo", Title: "Mother χ² to PV", XLabel: "χ²"},
		{Name: "distance", Title: "Daughter DCA", XLabel: "DCA (cm)"},
	}
	for _, c := range cands {
		for i, v := range []float64{c.Mass, c.Chi2Geo, c.LdL, c.CosTopo, c.Chi2Topo, c.Distance} {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				hs[i].Values = append(hs[i].Values, v)
			}
		}
	}
	return hs
}

// Summarise computes statistics over h.Values. An empty histogram yields
// a zero Summary.
func (h Histogram) Summarise() Summary {
	if len(h.Values) == 0 {
		return Summary{}
	}
	x := append([]float64(nil), h.Values...)
	sort.Float64s(x)
	mean, std := stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		std = 0
	}
	return Summary{
		N:      len(x),
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		Min:    x[0],
		Max:    x[len(x)-1],
	}
}

// Counts bins h.Values uniformly between the minimum and maximum. It
// returns the bin edges (len bins+1) and the counts (len bins).
func (h Histogram) Counts() (edges, counts []float64) {
	bins := h.Bins
	if bins <= 0 {
		bins = DefaultBins
	}
	if len(h.Values) == 0 {
		return nil, nil
	}
	x := append([]float64(nil), h.Values...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}
	edges = floats.Span(make([]float64, bins+1), lo, hi)
	// stat.Histogram needs the last divider strictly above the maximum.
	edges[bins] = math.Nextafter(hi, math.Inf(1))
	counts = stat.Histogram(nil, edges, x, nil)
	return edges, counts
}
