// Package process turns raw sensor streams into calibrated, filtered traces
// ready for plotting.
package process

import (
	"fmt"
	"log"
	"time"

	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/dsp"
	"github.com/lox/etna6c/internal/models"
	"github.com/lox/etna6c/internal/stationxml"
)

// ResponseSource finds the instrument response of a channel at a time.
type ResponseSource interface {
	Response(network, station, location, channel string, t time.Time) (*stationxml.Response, error)
}

type Processor struct {
	cfg       config.Processing
	responses ResponseSource
}

func New(cfg config.Processing, responses ResponseSource) *Processor {
	return &Processor{cfg: cfg, responses: responses}
}

// prepare removes mean and trend and applies the cosine taper.
func (p *Processor) prepare(x []float64) {
	dsp.Demean(x)
	dsp.DetrendLinear(x)
	dsp.CosineTaper(x, p.cfg.TaperPercentage)
}

// finish bandpasses tr and trims it to [start, end].
func (p *Processor) finish(tr *models.Trace, start, end time.Time) (*models.Trace, error) {
	if err := dsp.Bandpass(tr.Data, tr.SampleRate, p.cfg.FMin, p.cfg.FMax, p.cfg.Corners, true); err != nil {
		return nil, fmt.Errorf("%s: bandpass: %w", tr.ID(), err)
	}
	trimmed := tr.Slice(start, end)
	if trimmed == nil {
		return nil, fmt.Errorf("%s: nothing left after trimming to %s - %s", tr.ID(),
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	return trimmed, nil
}

// Translational converts seismometer counts to ground velocity (m/s):
// detrend and taper twice, deconvolve the instrument response with the
// pre-filter, detrend and taper again, bandpass and trim.
func (p *Processor) Translational(st models.Stream, start, end time.Time) (models.Stream, error) {
	out := make(models.Stream, 0, len(st))
	for _, raw := range st {
		tr := raw.Copy()
		p.prepare(tr.Data)
		dsp.CosineTaper(tr.Data, p.cfg.TaperPercentage)

		resp, err := p.responses.Response(tr.Network, tr.Station, tr.Location, tr.Channel, tr.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tr.ID(), err)
		}
		opts := dsp.DefaultRemoveResponseOptions()
		opts.PreFilter = &p.cfg.PreFilter
		opts.WaterLevel = p.cfg.WaterLevel
		velocity := func(freqs []float64) ([]complex128, error) {
			return resp.Eval(freqs, stationxml.Velocity)
		}
		tr.Data, err = dsp.RemoveResponse(tr.Data, tr.SampleRate, velocity, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: remove response: %w", tr.ID(), err)
		}

		p.prepare(tr.Data)
		trimmed, err := p.finish(tr, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, trimmed)
	}
	out.Sort()
	return out, nil
}

// Rotational converts rotation-rate counts to rotation angle (rad). The
// sensor output is taken as nrad/s, so no response is deconvolved; samples
// are scaled to rad/s and integrated after filtering.
func (p *Processor) Rotational(st models.Stream, start, end time.Time) (models.Stream, error) {
	out := make(models.Stream, 0, len(st))
	for _, raw := range st {
		tr := raw.Copy()
		p.prepare(tr.Data)
		dsp.CosineTaper(tr.Data, p.cfg.TaperPercentage)
		p.prepare(tr.Data)

		trimmed, err := p.finish(tr, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, trimmed)
	}
	out.Sort()
	for _, tr := range out {
		dsp.Scale(tr.Data, p.cfg.RotationScale)
		tr.Data = dsp.Integrate(tr.Data, tr.Delta())
	}
	return out, nil
}

// Merge places the translational traces before the rotational ones and
// records each group's peak absolute amplitude.
func Merge(trans, rot models.Stream) (models.Stream, models.AmplitudeScale) {
	all := make(models.Stream, 0, len(trans)+len(rot))
	all = append(all, trans...)
	all = append(all, rot...)

	// One peak per sensor group, so all three components share a y-range.
	var scale models.AmplitudeScale
	for _, tr := range trans {
		scale.Translational = max(scale.Translational, dsp.MaxAbs(tr.Data))
	}
	for _, tr := range rot {
		scale.Rotational = max(scale.Rotational, dsp.MaxAbs(tr.Data))
	}
	log.Printf("merged %d traces, peak %.3g m/s, %.3g rad", len(all), scale.Translational, scale.Rotational)
	return all, scale
}
