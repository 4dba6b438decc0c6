// Package waveform locates and reads the translational and rotational
// channel files for an event window.
package waveform

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/metrics"
	"github.com/lox/etna6c/internal/models"
	"github.com/lox/etna6c/internal/mseed"
)

var (
	ErrNoData        = errors.New("no waveform data")
	ErrInvalidStream = errors.New("invalid stream")
)

type Loader struct {
	cfg config.Data
}

func NewLoader(cfg config.Data) *Loader {
	return &Loader{cfg: cfg}
}

// Read decodes every file in the data directory matching pattern, keeping
// samples between start and end.
func (l *Loader) Read(pattern string, start, end time.Time) (models.Stream, error) {
	paths, err := filepath.Glob(filepath.Join(l.cfg.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files match %s in %s", ErrNoData, pattern, l.cfg.Dir)
	}

	var st models.Stream
	for _, path := range paths {
		part, err := mseed.Read(path, start, end)
		if err != nil {
			return nil, err
		}
		st = append(st, part...)
	}
	if len(st) == 0 {
		return nil, fmt.Errorf("%w: %s has nothing between %s and %s", ErrNoData, pattern,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	st.Sort()

	for _, tr := range st {
		metrics.SamplesRead.WithLabelValues(tr.Group().String()).Add(float64(len(tr.Data)))
	}
	return st, nil
}

// Load reads both sensor groups for [start, end]. Translational data is
// widened by the configured padding so filter edge effects fall outside the
// window; rotational data is read for the exact window.
func (l *Loader) Load(start, end time.Time) (trans, rot models.Stream, err error) {
	pad := l.cfg.TranslationalPad
	trans, err = l.Read(l.cfg.TranslationalGlob, start.Add(-pad), end.Add(pad))
	if err != nil {
		return nil, nil, fmt.Errorf("read translational: %w", err)
	}
	log.Print(trans)
	if err := check(trans, models.Translational, start.Add(-pad), end.Add(pad)); err != nil {
		return nil, nil, err
	}

	rot, err = l.Read(l.cfg.RotationalGlob, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("read rotational: %w", err)
	}
	log.Print(rot)
	if err := check(rot, models.Rotational, start, end); err != nil {
		return nil, nil, err
	}
	return trans, rot, nil
}

func check(st models.Stream, g models.Group, start, end time.Time) error {
	flags := ValidateStream(st, g, start, end)
	if len(flags) == 0 {
		return nil
	}
	for _, f := range flags {
		metrics.ValidationFlags.WithLabelValues(g.String(), f).Inc()
	}
	if fatal := FatalFlags(flags); len(fatal) > 0 {
		return fmt.Errorf("%w: %s stream: %s", ErrInvalidStream, g, formatFlags(fatal))
	}
	log.Printf("Warning: %s stream: %s", g, formatFlags(flags))
	return nil
}
