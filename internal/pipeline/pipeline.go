// Package pipeline drives the per-event work: load the six channels,
// process them and write the figure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/events"
	"github.com/lox/etna6c/internal/figure"
	"github.com/lox/etna6c/internal/metrics"
	"github.com/lox/etna6c/internal/models"
	"github.com/lox/etna6c/internal/mseed"
	"github.com/lox/etna6c/internal/preview"
	"github.com/lox/etna6c/internal/process"
	"github.com/lox/etna6c/internal/stationxml"
	"github.com/lox/etna6c/internal/waveform"
	"gonum.org/v1/plot"
)

var (
	// ErrNoChannel is returned when a requested channel is not in the stream.
	ErrNoChannel = errors.New("channel not found")
	// ErrFigureExists marks an event skipped because its figure is present.
	ErrFigureExists = errors.New("figure already exists")
)

// Single-channel plots keep the figure width and a third of its height.
const singleHeightFraction = 1.0 / 3

type Options struct {
	SkipExisting bool
	// PreviewWidth in pixels; zero disables previews.
	PreviewWidth int
	// Export writes the processed stream as miniSEED next to the figure.
	Export bool
}

// Runner processes event windows one after another.
type Runner struct {
	cfg    config.Config
	opts   Options
	loader *waveform.Loader
	proc   *process.Processor
	store  *preview.Store
}

// New validates cfg and prepares the output directory.
func New(cfg config.Config, responses process.ResponseSource, opts Options) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := preview.NewStore(cfg.Figure.OutputDir)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		opts:   opts,
		loader: waveform.NewLoader(cfg.Data),
		proc:   process.New(cfg.Processing, responses),
		store:  store,
	}, nil
}

// Open reads the StationXML inventory named in cfg and returns a Runner
// using it.
func Open(cfg config.Config, opts Options) (*Runner, error) {
	inv, err := stationxml.ReadFile(cfg.Data.InventoryPath())
	if err != nil {
		return nil, err
	}
	return New(cfg, inv, opts)
}

// Summary counts the outcome of a run.
type Summary struct {
	Written int
	Skipped int
}

// Run processes evs in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, evs []events.Event) (Summary, error) {
	var sum Summary
	for i, ev := range evs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		log.Printf("Event %d/%d: %s", i+1, len(evs), ev)

		path, err := r.Event(ev)
		switch {
		case errors.Is(err, ErrFigureExists):
			sum.Skipped++
			continue
		case err != nil:
			return sum, fmt.Errorf("event %d (%s): %w", i+1, ev.Start.UTC().Format(time.RFC3339), err)
		}
		log.Printf("Wrote %s", path)
		sum.Written++
	}
	return sum, nil
}

// Event writes the six-component figure for one window and returns its path.
// With SkipExisting set, an existing figure yields ErrFigureExists.
func (r *Runner) Event(ev events.Event) (path string, err error) {
	kind := string(ev.Kind)
	defer func() {
		status := "ok"
		switch {
		case errors.Is(err, ErrFigureExists):
			status = "skipped"
		case err != nil:
			status = "failed"
		}
		metrics.EventsProcessed.WithLabelValues(kind, status).Inc()
	}()

	name := ev.FigureName(r.cfg.Processing.FMin, r.cfg.Processing.FMax)
	if r.opts.SkipExisting && r.store.Exists(name) {
		log.Printf("Skipping %s: already exists", name)
		return "", ErrFigureExists
	}

	st, scale, err := r.prepare(ev)
	if err != nil {
		return "", err
	}

	done := stage("compose")
	fig, err := figure.Compose(st, scale, ev.Start, ev.End(), r.cfg.Processing, r.cfg.Figure)
	if err != nil {
		return "", err
	}
	path = r.store.Path(name)
	if err := fig.Save(path); err != nil {
		return "", err
	}
	done()
	metrics.FiguresWritten.WithLabelValues("figure").Inc()

	if err := r.finish(ev, name, st); err != nil {
		return "", err
	}
	return path, nil
}

// Trace writes the seismogram and spectrogram of a single channel of ev and
// returns the files written.
func (r *Runner) Trace(ev events.Event, channel string) ([]string, error) {
	st, scale, err := r.prepare(ev)
	if err != nil {
		return nil, err
	}
	var tr *models.Trace
	for _, t := range st {
		if strings.EqualFold(t.Channel, channel) {
			tr = t
			break
		}
	}
	if tr == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoChannel, channel, st)
	}

	seis, spec, err := figure.Pair(tr, scale.For(tr.Group()), ev.Start, ev.End(), r.cfg.Processing, r.cfg.Figure, true)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(ev.FigureName(r.cfg.Processing.FMin, r.cfg.Processing.FMax), ".png")
	fc := r.cfg.Figure
	var paths []string
	for _, out := range []struct {
		kind string
		p    *plot.Plot
	}{
		{"seismogram", seis},
		{"spectrogram", spec},
	} {
		path := r.store.Path(fmt.Sprintf("%s_%s_%s.png", base, tr.Channel, out.kind))
		if err := figure.SavePlot(out.p, fc.WidthInches, fc.HeightInches*singleHeightFraction, fc.DPI, path); err != nil {
			return nil, err
		}
		metrics.FiguresWritten.WithLabelValues(out.kind).Inc()
		log.Printf("Wrote %s", path)
		paths = append(paths, path)
	}

	if r.opts.Export {
		path := r.store.Path(fmt.Sprintf("%s_%s.mseed", base, tr.Channel))
		if err := mseed.WriteFile(path, models.Stream{tr}); err != nil {
			return nil, err
		}
		metrics.FiguresWritten.WithLabelValues("mseed").Inc()
		paths = append(paths, path)
	}
	return paths, nil
}

// prepare loads, processes and merges the two sensor groups of ev.
func (r *Runner) prepare(ev events.Event) (models.Stream, models.AmplitudeScale, error) {
	var scale models.AmplitudeScale

	done := stage("load")
	trans, rot, err := r.loader.Load(ev.Start, ev.End())
	if err != nil {
		return nil, scale, err
	}
	done()

	done = stage("translational")
	trans, err = r.proc.Translational(trans, ev.Start, ev.End())
	if err != nil {
		return nil, scale, err
	}
	done()

	done = stage("rotational")
	rot, err = r.proc.Rotational(rot, ev.Start, ev.End())
	if err != nil {
		return nil, scale, err
	}
	done()

	st, scale := process.Merge(trans, rot)
	return st, scale, nil
}

// finish writes the optional preview and miniSEED export of a figure.
func (r *Runner) finish(ev events.Event, name string, st models.Stream) error {
	if r.opts.PreviewWidth > 0 {
		if _, err := r.store.WritePreview(name, ev.String(), r.opts.PreviewWidth); err != nil {
			return err
		}
		metrics.FiguresWritten.WithLabelValues("preview").Inc()
	}
	if r.opts.Export {
		path := r.store.Path(strings.TrimSuffix(name, ".png") + ".mseed")
		if err := mseed.WriteFile(path, st); err != nil {
			return err
		}
		metrics.FiguresWritten.WithLabelValues("mseed").Inc()
	}
	return nil
}

func stage(name string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}
