package figure

import (
	"fmt"
	"time"

	"github.com/lox/etna6c/internal/dsp"
	"github.com/lox/etna6c/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
)

type SpectrogramOptions struct {
	FMin, FMax   float64
	WindowLength int
	Overlap      int
	LogFrequency bool
	// Colour bounds, (units)²/Hz. Values outside saturate.
	VMin, VMax float64
}

// psdGrid adapts a spectrogram to plotter.GridXYZ: columns are segment
// times, rows frequencies.
type psdGrid struct {
	sg *dsp.Spectrogram
}

func (g psdGrid) Dims() (c, r int)   { return len(g.sg.Times), len(g.sg.Freqs) }
func (g psdGrid) Z(c, r int) float64 { return g.sg.Power[r][c] }
func (g psdGrid) X(c int) float64    { return g.sg.Times[c] }
func (g psdGrid) Y(r int) float64    { return g.sg.Freqs[r] }

// PSD computes the clipped spectrogram of tr with segment times measured
// from origin.
func PSD(tr *models.Trace, origin time.Time, so SpectrogramOptions) (*dsp.Spectrogram, error) {
	sg, err := dsp.ComputeSpectrogram(tr.Data, tr.SampleRate, so.WindowLength, so.Overlap)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tr.ID(), err)
	}
	sg = sg.Clip(so.FMin, so.FMax)
	if len(sg.Freqs) == 0 || len(sg.Times) == 0 {
		return nil, fmt.Errorf("%s: no spectrogram bins between %g and %g Hz", tr.ID(), so.FMin, so.FMax)
	}
	sg.Shift(tr.StartTime.Sub(origin).Seconds())
	return sg, nil
}

// heatPalette returns the palette for [vmin, vmax] with saturating ends.
func heatPalette(theme Theme, vmin, vmax float64) (palette.ColorMap, palette.Palette, error) {
	cm, err := theme.ColourMap(vmin, vmax)
	if err != nil {
		return nil, nil, err
	}
	return cm, cm.Palette(256), nil
}

// Spectrogram renders the PSD of tr as a heat map over [0, span] seconds
// and exactly [FMin, FMax] Hz.
func Spectrogram(tr *models.Trace, origin time.Time, span time.Duration, so SpectrogramOptions, opts Options) (*plot.Plot, error) {
	sg, err := PSD(tr, origin, so)
	if err != nil {
		return nil, err
	}
	_, pal, err := heatPalette(opts.Theme, so.VMin, so.VMax)
	if err != nil {
		return nil, err
	}
	missing, err := parseHex(opts.Theme.Missing)
	if err != nil {
		return nil, err
	}

	hm := plotter.NewHeatMap(psdGrid{sg}, pal)
	hm.Min, hm.Max = so.VMin, so.VMax
	colours := pal.Colors()
	hm.Underflow = colours[0]
	hm.Overflow = colours[len(colours)-1]
	hm.NaN = missing

	p := newPlot(opts.FontSize)
	p.Add(hm)
	p.X.Min, p.X.Max = 0, span.Seconds()
	p.X.Tick.Marker = offsetTicks(origin, opts.TickInterval, opts.HideTickLabels)
	p.Y.Min, p.Y.Max = sg.Bounds()
	if so.LogFrequency {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	p.Y.Label.Text = frequencyLabel
	return p, nil
}

// ColourBar draws a vertical colour scale for [vmin, vmax].
func ColourBar(g models.Group, vmin, vmax float64, opts Options) (*plot.Plot, error) {
	cm, _, err := heatPalette(opts.Theme, vmin, vmax)
	if err != nil {
		return nil, err
	}
	p := newPlot(opts.FontSize)
	p.HideX()
	p.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	p.Y.Label.Text = colourBarLabel(g)
	return p, nil
}
