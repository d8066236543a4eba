package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/banshee-data/simplefinder/internal/api"
	"github.com/banshee-data/simplefinder/internal/config"
	"github.com/banshee-data/simplefinder/internal/db"
	"github.com/banshee-data/simplefinder/internal/event"
	"github.com/banshee-data/simplefinder/internal/finder"
	"github.com/banshee-data/simplefinder/internal/kf"
	"github.com/banshee-data/simplefinder/internal/report"
	"github.com/banshee-data/simplefinder/internal/sweep"
)

// runConfig is stored with each run for provenance.
type runConfig struct {
	Decay      finder.Decay
	Cuts       finder.CutSet
	FieldBz    float64
	Duplicates string
	Source     string
}

// totals accumulates finder statistics over events.
type totals struct {
	events, tracks, combinations, accepted, duplicates int
	rejected                                           map[finder.CutName]int
}

func (t *totals) add(nTracks int, s finder.Stats) {
	t.events++
	t.tracks += nTracks
	t.combinations += s.Combinations
	t.accepted += s.Accepted
	t.duplicates += s.Duplicates
	if t.rejected == nil {
		t.rejected = make(map[finder.CutName]int)
	}
	for k, v := range s.Rejected {
		t.rejected[k] += v
	}
}

func (t *totals) log() {
	log.Printf("processed %d events, %d tracks: %d combinations, %d accepted, %d duplicates",
		t.events, t.tracks, t.combinations, t.accepted, t.duplicates)
	names := make([]string, 0, len(t.rejected))
	for k := range t.rejected {
		names = append(names, string(k))
	}
	sort.Strings(names)
	for _, n := range names {
		log.Printf("  rejected by %-15s %d", n, t.rejected[finder.CutName(n)])
	}
}

func run(ctx context.Context, o *options, stdout io.Writer) error {
	var store *db.DB
	if o.dbPath != "" {
		var err error
		if store, err = db.NewDB(o.dbPath); err != nil {
			return fmt.Errorf("failed to open results database: %w", err)
		}
		defer store.Close()
	}

	if o.eventsPath != "" || o.generate > 0 {
		if err := process(ctx, o, store, stdout); err != nil {
			return err
		}
	}
	if o.listen != "" {
		return serve(ctx, o.listen, store)
	}
	return nil
}

func process(ctx context.Context, o *options, store *db.DB, stdout io.Writer) error {
	cfg, err := config.LoadFinderConfig(o.configPath)
	if err != nil {
		return err
	}
	decay, cuts, err := finder.Channel(cfg, o.decay)
	if err != nil {
		return err
	}
	opts, err := finder.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	events, truth, source, err := loadEvents(o, decay, cfg.GetFieldBz())
	if err != nil {
		return err
	}
	log.Printf("loaded %d events from %s", len(events), source)
	if o.saveEvents != "" {
		if err := event.Save(o.saveEvents, events); err != nil {
			return err
		}
	}

	if len(o.sweeps) > 0 {
		return runSweep(ctx, o, decay, cuts, opts, events, truth, stdout)
	}

	var runID string
	if store != nil {
		r, err := store.CreateRun(decay.Name, runConfig{
			Decay: decay, Cuts: cuts, FieldBz: cfg.GetFieldBz(), Duplicates: cfg.GetDuplicates(), Source: source,
		})
		if err != nil {
			return err
		}
		runID = r.ID
		log.Printf("recording run %s to %s", runID, store.Path())
	}

	f := finder.New(opts...)
	if err := f.SetDecay(decay); err != nil {
		return err
	}
	f.SetCuts(cuts)

	var all []finder.Candidate
	var t totals
	for _, in := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.InitFromInput(in)
		if err := f.FindParticles(); err != nil {
			return fmt.Errorf("event %s: %w", in.EventID, err)
		}
		cands := f.MotherCandidates()
		stats := f.Stats()
		t.add(len(in.Tracks), stats)
		all = append(all, cands...)
		if store != nil {
			if err := store.RecordEvent(runID, in.EventID, len(in.Tracks), stats, cands); err != nil {
				return err
			}
		}
	}
	t.log()
	return writeReports(o, decay.Name, all)
}

func loadEvents(o *options, decay finder.Decay, bz float64) ([]finder.Input, [][]int, string, error) {
	if o.eventsPath != "" {
		events, err := event.Load(o.eventsPath)
		return events, nil, o.eventsPath, err
	}
	gc := event.DefaultGeneratorConfig(decay)
	gc.Seed = o.seed
	if bz != 0 {
		gc.Field = kf.UniformField{Bz: bz}
	}
	gen, err := event.NewGenerator(gc)
	if err != nil {
		return nil, nil, "", err
	}
	events, truth := gen.Generate(o.generate)
	return events, truth, fmt.Sprintf("toy generator (seed %d)", o.seed), nil
}

func runSweep(ctx context.Context, o *options, decay finder.Decay, base finder.CutSet, opts []finder.Option,
	events []finder.Input, truth [][]int, stdout io.Writer) error {
	r := &sweep.Runner{Decay: decay, Base: base, Events: events, Options: opts, Truth: truth, Workers: o.workers}
	results, err := r.Run(ctx, o.sweeps)
	if err != nil {
		return err
	}
	out := stdout
	if o.sweepOut != "" {
		f, err := os.Create(o.sweepOut)
		if err != nil {
			return fmt.Errorf("failed to create sweep output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return sweep.NewCSVWriter(out, o.sweeps, r.TrueDecays()).WriteAll(results)
}

func writeReports(o *options, name string, cands []finder.Candidate) error {
	if o.plotsDir == "" && o.htmlPath == "" {
		return nil
	}
	hs := report.Collect(cands)
	if o.plotsDir != "" {
		paths, err := report.WritePNGs(o.plotsDir, name, hs)
		if err != nil {
			return err
		}
		log.Printf("wrote %d plots to %s", len(paths), o.plotsDir)
	}
	if o.htmlPath != "" {
		f, err := os.Create(o.htmlPath)
		if err != nil {
			return fmt.Errorf("failed to create html report: %w", err)
		}
		if err := report.WriteHTML(f, name+" candidates", hs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote %s", o.htmlPath)
	}
	return nil
}

// serve exposes the stored runs and the admin pages until ctx is done.
func serve(ctx context.Context, addr string, store *db.DB) error {
	mux := api.NewServer(store).ServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return err
	}
	server := &http.Server{Addr: addr, Handler: api.LoggingMiddleware(mux)}

	errc := make(chan error, 1)
	go func() {
		log.Printf("serving results on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return server.Close()
	}
	return nil
}
