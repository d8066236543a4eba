package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simplefinder/internal/db"
	"github.com/banshee-data/simplefinder/internal/event"
	"github.com/banshee-data/simplefinder/internal/finder"
	"github.com/banshee-data/simplefinder/internal/monitoring"
)

const testConfig = "../../config/finder.defaults.json"

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-generate", "10", "-sweep", "ldl=0:2:1", "-sweep", "chi2_prim[1]=3,5"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "lambda", o.decay)
	assert.Equal(t, 10, o.generate)
	require.Len(t, o.sweeps, 2)
	assert.Equal(t, finder.CutLdL, o.sweeps[0].Cut)
	assert.Equal(t, 1, o.sweeps[1].Slot)

	o, err = parseFlags([]string{"-version"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, o.version)

	o, err = parseFlags([]string{"-listen", ":0", "-db", "x.db"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, ":0", o.listen)

	bad := [][]string{
		{},
		{"-events", "a.json", "-generate", "3"},
		{"-generate", "3", "extra"},
		{"-generate", "3", "-sweep", "bogus=1"},
		{"-listen", ":0"},
		{"-nope"},
	}
	for _, args := range bad {
		_, err := parseFlags(args, io.Discard)
		assert.Error(t, err, "%v", args)
	}
}

func TestRun_GenerateStoreAndReport(t *testing.T) {
	dir := t.TempDir()
	o := &options{
		configPath: testConfig,
		decay:      "lambda",
		generate:   15,
		seed:       3,
		saveEvents: filepath.Join(dir, "events.json"),
		dbPath:     filepath.Join(dir, "results.db"),
		plotsDir:   filepath.Join(dir, "plots"),
		htmlPath:   filepath.Join(dir, "report.html"),
	}
	require.NoError(t, run(context.Background(), o, io.Discard))

	events, err := event.Load(o.saveEvents)
	require.NoError(t, err)
	assert.Len(t, events, 15)

	store, err := db.NewDB(o.dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "lambda", runs[0].Decay)
	assert.Contains(t, runs[0].ConfigJSON, "toy generator")
	sum, err := store.Summary(runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 15, sum.Events)
	assert.Positive(t, sum.Combinations)

	html, err := os.ReadFile(o.htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "lambda candidates")

	// Re-running over the saved file gives the same candidates.
	o2 := &options{configPath: testConfig, decay: "lambda", eventsPath: o.saveEvents, dbPath: o.dbPath}
	require.NoError(t, run(context.Background(), o2, io.Discard))
	runs, err = store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	a, err := store.Summary(runs[0].ID)
	require.NoError(t, err)
	b, err := store.Summary(runs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, a.Candidates, b.Candidates)
	assert.Equal(t, a.Combinations, b.Combinations)
}

func TestRun_Sweep(t *testing.T) {
	var out bytes.Buffer
	o := &options{
		configPath: testConfig,
		decay:      "k0short",
		generate:   10,
		seed:       5,
		workers:    2,
	}
	p, err := parseFlags([]string{"-generate", "10", "-sweep", "ldl=0:10:5"}, io.Discard)
	require.NoError(t, err)
	o.sweeps = p.sweeps
	require.NoError(t, run(context.Background(), o, &out))

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ldl", rows[0][0])
	assert.Equal(t, []string{"0", "5", "10"}, []string{rows[1][0], rows[2][0], rows[3][0]})
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, run(ctx, &options{configPath: "missing.json", generate: 1, decay: "lambda"}, io.Discard))
	assert.Error(t, run(ctx, &options{configPath: testConfig, generate: 1, decay: "omega"}, io.Discard))
	err := run(ctx, &options{configPath: testConfig, eventsPath: "nope.json", decay: "lambda"}, io.Discard)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "event file"))
}
