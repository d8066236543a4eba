// Command simplefinder reconstructs decay candidates from track files or
// toy events, optionally storing the results, rendering distributions,
// scanning cut thresholds or serving the stored runs over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/simplefinder/internal/config"
	"github.com/banshee-data/simplefinder/internal/monitoring"
	"github.com/banshee-data/simplefinder/internal/sweep"
	"github.com/banshee-data/simplefinder/internal/version"
)

// options is the parsed command line.
type options struct {
	configPath string
	decay      string
	eventsPath string
	generate   int
	seed       uint64
	saveEvents string
	dbPath     string
	plotsDir   string
	htmlPath   string
	sweeps     []sweep.Param
	sweepOut   string
	workers    int
	listen     string
	debug      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("simplefinder", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", config.DefaultConfigPath, "Finder configuration (JSON)")
	fs.StringVar(&o.decay, "decay", "lambda", "Decay channel to search for")
	fs.StringVar(&o.eventsPath, "events", "", "Event file (JSON)")
	fs.IntVar(&o.generate, "generate", 0, "Generate N toy events instead of reading -events")
	fs.Uint64Var(&o.seed, "seed", 1, "Toy generator seed")
	fs.StringVar(&o.saveEvents, "save-events", "", "Write the processed events to this JSON file")
	fs.StringVar(&o.dbPath, "db", "", "Results database (sqlite); empty disables storage")
	fs.StringVar(&o.plotsDir, "plots", "", "Directory for PNG distributions")
	fs.StringVar(&o.htmlPath, "html", "", "Interactive HTML report path")
	fs.Func("sweep", "Scan a cut, e.g. ldl=0:10:1 or chi2_prim[1]=3,5,10 (repeatable)", func(s string) error {
		p, err := sweep.ParseParam(s)
		if err != nil {
			return err
		}
		o.sweeps = append(o.sweeps, p)
		return nil
	})
	fs.StringVar(&o.sweepOut, "sweep-out", "", "Sweep CSV output (default stdout)")
	fs.IntVar(&o.workers, "workers", 0, "Sweep workers (0 = GOMAXPROCS)")
	fs.StringVar(&o.listen, "listen", "", "Serve the results API and admin pages on this address after processing")
	fs.BoolVar(&o.debug, "debug", false, "Log per-event finder detail")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.version {
		return o, nil
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if (o.eventsPath == "") == (o.generate <= 0) && o.listen == "" {
		return nil, fmt.Errorf("exactly one of -events or -generate is required")
	}
	if o.eventsPath != "" && o.generate > 0 {
		return nil, fmt.Errorf("-events and -generate are mutually exclusive")
	}
	if o.listen != "" && o.dbPath == "" {
		return nil, fmt.Errorf("-listen requires -db")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err == flag.ErrHelp {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("simplefinder: %v", err)
	}
	if o.version {
		fmt.Println(version.Current())
		return
	}
	if o.debug {
		monitoring.SetDebugLogger(log.Printf)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		log.Fatalf("simplefinder: %v", err)
	}
}
