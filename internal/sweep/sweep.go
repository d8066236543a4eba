package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/simplefinder/internal/finder"
	"github.com/banshee-data/simplefinder/internal/monitoring"
)

// Runner re-runs the finder over a fixed event sample for every point of a
// threshold grid. Each worker owns its own Finder; the events are shared
// read-only.
type Runner struct {
	Decay   finder.Decay
	Base    finder.CutSet
	Events  []finder.Input
	Options []finder.Option

	// Truth optionally lists, per event, the track indices of the true
	// decay. When set, accepted candidates are split into signal and
	// background.
	Truth [][]int

	// Workers caps concurrency; 0 uses GOMAXPROCS.
	Workers int
}

// Result is the outcome for one grid point.
type Result struct {
	Values       []float64
	Combinations int
	Accepted     int
	Signal       int
	Background   int
	MeanMass     float64
}

// Efficiency is the fraction of true decays recovered, or NaN without truth.
func (r Result) Efficiency(nTrue int) float64 {
	if nTrue == 0 {
		return math.NaN()
	}
	return float64(r.Signal) / float64(nTrue)
}

// Significance is S/sqrt(S+B), zero when nothing was accepted.
func (r Result) Significance() float64 {
	if r.Signal+r.Background == 0 {
		return 0
	}
	return float64(r.Signal) / math.Sqrt(float64(r.Signal+r.Background))
}

// TrueDecays counts events with a non-empty truth entry.
func (r *Runner) TrueDecays() int {
	n := 0
	for _, t := range r.Truth {
		if len(t) > 0 {
			n++
		}
	}
	return n
}

// Run evaluates every grid point. Results are returned in grid order.
func (r *Runner) Run(ctx context.Context, params []Param) ([]Result, error) {
	if len(r.Events) == 0 {
		return nil, errors.New("sweep: no events")
	}
	if r.Truth != nil && len(r.Truth) != len(r.Events) {
		return nil, fmt.Errorf("sweep: %d truth entries for %d events", len(r.Truth), len(r.Events))
	}
	if err := r.Decay.Validate(); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	grid, err := Expand(params)
	if err != nil {
		return nil, err
	}
	cuts := make([]finder.CutSet, len(grid))
	for i, point := range grid {
		cs := r.Base
		for j, p := range params {
			if cs, err = cs.With(p.Cut, p.Slot, point[j]); err != nil {
				return nil, fmt.Errorf("sweep %s: %w", p.Label(), err)
			}
		}
		cuts[i] = cs
	}
	monitoring.Logf("sweep: %d grid points over %d events", len(grid), len(r.Events))

	results := make([]Result, len(grid))
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range grid {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.evaluate(ctx, cuts[i])
			if err != nil {
				return err
			}
			res.Values = grid[i]
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) evaluate(ctx context.Context, cuts finder.CutSet) (Result, error) {
	f := finder.New(r.Options...)
	if err := f.SetDecay(r.Decay); err != nil {
		return Result{}, err
	}
	f.SetCuts(cuts)

	var res Result
	var massSum float64
	for i, in := range r.Events {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		f.InitFromInput(in)
		if err := f.FindParticles(); err != nil {
			return Result{}, fmt.Errorf("event %s: %w", in.EventID, err)
		}
		st := f.Stats()
		res.Combinations += st.Combinations
		var truth []int
		if r.Truth != nil {
			truth = sortedCopy(r.Truth[i])
		}
		for _, c := range f.MotherCandidates() {
			res.Accepted++
			massSum += c.Mass
			if r.Truth == nil {
				continue
			}
			if len(truth) > 0 && slices.Equal(sortedCopy(c.Daughters), truth) {
				res.Signal++
			} else {
				res.Background++
			}
		}
	}
	if res.Accepted > 0 {
		res.MeanMass = massSum / float64(res.Accepted)
	}
	return res, nil
}

func sortedCopy(xs []int) []int {
	out := slices.Clone(xs)
	slices.Sort(out)
	return out
}
