// Command render writes a PNG plot and an HTML chart for every event of one
// or more recording files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/trace.report/internal/config"
	"github.com/banshee-data/trace.report/internal/fsutil"
	"github.com/banshee-data/trace.report/internal/render"
	"github.com/banshee-data/trace.report/internal/session"
	"github.com/banshee-data/trace.report/internal/signal"
)

type options struct {
	configPath string
	outDir     string
	name       string
	initial    float64
}

func parseFlags(args []string, stderr io.Writer) (options, []string, error) {
	var o options
	fset := flag.NewFlagSet("render", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&o.configPath, "config", "", "display config JSON file")
	fset.StringVar(&o.outDir, "out", "events", "output directory")
	fset.StringVar(&o.name, "name", "", "file name prefix (defaults to the input file name)")
	fset.Float64Var(&o.initial, "initial", 0, "initial brush width in seconds (defaults to the config value)")
	if err := fset.Parse(args); err != nil {
		return o, nil, err
	}
	if fset.NArg() == 0 {
		return o, nil, fmt.Errorf("at least one recording file is required")
	}
	if o.name != "" && fset.NArg() > 1 {
		return o, nil, fmt.Errorf("-name needs exactly one recording file")
	}
	return o, fset.Args(), nil
}

func run(ctx context.Context, args []string, fsys fsutil.FileSystem, stdout, stderr io.Writer) error {
	o, inputs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg := config.DefaultDisplayConfig()
	if o.configPath != "" {
		if cfg, err = config.LoadDisplayConfig(o.configPath); err != nil {
			return err
		}
	}
	initial := o.initial
	if initial <= 0 {
		initial = cfg.GetBrushInitDuration()
	}

	ropts := render.DefaultOptions()
	ropts.SamplingRate = cfg.GetSamplingRate()
	ropts.LeadNames = cfg.GetLeadNames()
	exp := &render.Exporter{FS: fsys, Options: ropts, InitialWindow: initial}

	for _, in := range inputs {
		raw, err := fsys.ReadFile(in)
		if err != nil {
			return fmt.Errorf("read %s: %w", in, err)
		}
		rec, err := signal.ParseRecording(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		cfg.ApplyDefaults(&rec.Predictions)
		prepared, err := session.Prepare(ctx, rec, cfg.Timing())
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}

		name := o.name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		}
		paths, err := exp.ExportEvents(prepared.Events, name, o.outDir)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		for _, p := range paths {
			fmt.Fprintln(stdout, p)
		}
		if len(prepared.Events) == 0 {
			fmt.Fprintf(stderr, "%s: no events\n", in)
		}
	}
	return nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], fsutil.OSFileSystem{}, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("render: %v", err)
	}
}
