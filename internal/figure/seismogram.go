// Package figure renders seismograms, spectrograms and the combined
// six-component event figure.
package figure

import (
	"fmt"
	"time"

	"github.com/lox/etna6c/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Options are shared by every panel.
type Options struct {
	FontSize     vg.Length
	TickInterval time.Duration
	// HideTickLabels keeps x tick marks but drops their labels.
	HideTickLabels bool
	Theme          Theme
}

func newPlot(fontSize vg.Length) *plot.Plot {
	p := plot.New()
	p.Title.TextStyle.Font.Size = fontSize
	p.X.Label.TextStyle.Font.Size = fontSize
	p.Y.Label.TextStyle.Font.Size = fontSize
	p.X.Tick.Label.Font.Size = fontSize
	p.Y.Tick.Label.Font.Size = fontSize
	return p
}

// Seismogram plots tr against seconds since origin over [0, span], with the
// y axis fixed to ±ylim.
func Seismogram(tr *models.Trace, origin time.Time, span time.Duration, ylim float64, opts Options) (*plot.Plot, error) {
	if len(tr.Data) == 0 {
		return nil, fmt.Errorf("%s: no samples to plot", tr.ID())
	}
	pts := make(plotter.XYs, len(tr.Data))
	for i, v := range tr.Data {
		pts[i].X = tr.SampleTime(i).Sub(origin).Seconds()
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tr.ID(), err)
	}
	col, err := parseHex(opts.Theme.Trace)
	if err != nil {
		return nil, err
	}
	line.Color = col
	line.Width = vg.Points(0.4)

	p := newPlot(opts.FontSize)
	p.Add(line)
	if ylim <= 0 {
		ylim = 1
	}
	p.Y.Min, p.Y.Max = -ylim, ylim
	p.X.Min, p.X.Max = 0, span.Seconds()
	p.X.Tick.Marker = clockTicks(origin, opts.TickInterval, opts.HideTickLabels)
	p.Y.Label.Text = ChannelLabel(tr)
	return p, nil
}
