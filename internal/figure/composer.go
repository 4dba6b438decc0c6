package figure

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	// Rows is the number of channels in a figure.
	Rows = 6
	// Columns holds the seismogram and the spectrogram of a channel.
	Columns = 2
)

// box is a figure-relative rectangle: left, bottom, width, height.
type box [4]float64

var (
	gridBox = box{0.01, 0.03, 0.87, 0.86}
	// One colour bar per sensor group, beside its three rows.
	colourBarBoxes = [2]box{
		{0.885, 0.505, 0.1, 0.37},
		{0.885, 0.11, 0.1, 0.37},
	}
)

func region(c draw.Canvas, b box) draw.Canvas {
	w := c.Max.X - c.Min.X
	h := c.Max.Y - c.Min.Y
	lo := vg.Point{X: c.Min.X + vg.Length(b[0])*w, Y: c.Min.Y + vg.Length(b[1])*h}
	return draw.Canvas{
		Canvas:    c.Canvas,
		Rectangle: vg.Rectangle{Min: lo, Max: vg.Point{X: lo.X + vg.Length(b[2])*w, Y: lo.Y + vg.Length(b[3])*h}},
	}
}

// Figure is a composed six-component figure: one row per channel, with
// the seismogram on the left and the spectrogram on the right, plus one
// colour bar per sensor group.
type Figure struct {
	Panels     [][]*plot.Plot
	ColourBars []*plot.Plot

	width, height vg.Length
	dpi           int
}

// PanelCount is the number of seismogram and spectrogram panels.
func (f *Figure) PanelCount() int {
	n := 0
	for _, row := range f.Panels {
		n += len(row)
	}
	return n
}

// Compose lays out a six-trace stream (translational first) for the window
// [start, end]. Seismogram y-limits come from scale.
func Compose(st models.Stream, scale models.AmplitudeScale, start, end time.Time, proc config.Processing, cfg config.Figure) (*Figure, error) {
	if len(st) != Rows {
		return nil, fmt.Errorf("figure needs %d traces, got %d", Rows, len(st))
	}
	f := &Figure{
		width:  vg.Length(cfg.WidthInches) * vg.Inch,
		height: vg.Length(cfg.HeightInches) * vg.Inch,
		dpi:    cfg.DPI,
	}
	for i, tr := range st {
		seis, spec, err := Pair(tr, scale.For(tr.Group()), start, end, proc, cfg, i == len(st)-1)
		if err != nil {
			return nil, err
		}
		f.Panels = append(f.Panels, []*plot.Plot{seis, spec})
	}

	opts := Options{FontSize: vg.Points(cfg.FontSize), Theme: DefaultTheme}
	for _, g := range []models.Group{models.Translational, models.Rotational} {
		vmin, vmax := cfg.ColourRange(g)
		cb, err := ColourBar(g, vmin, vmax, opts)
		if err != nil {
			return nil, err
		}
		f.ColourBars = append(f.ColourBars, cb)
	}
	return f, nil
}

// Pair builds the seismogram and spectrogram of one channel. Tick labels
// and the time axis labels are only drawn when labelled is set.
func Pair(tr *models.Trace, ylim float64, start, end time.Time, proc config.Processing, cfg config.Figure, labelled bool) (seis, spec *plot.Plot, err error) {
	span := end.Sub(start)
	opts := Options{
		FontSize:       vg.Points(cfg.FontSize),
		TickInterval:   cfg.TickInterval,
		HideTickLabels: !labelled,
		Theme:          DefaultTheme,
	}

	seis, err = Seismogram(tr, start, span, ylim, opts)
	if err != nil {
		return nil, nil, err
	}
	vmin, vmax := cfg.ColourRange(tr.Group())
	spec, err = Spectrogram(tr, start, span, SpectrogramOptions{
		FMin:         proc.FMin,
		FMax:         proc.FMax,
		WindowLength: cfg.WindowLength,
		Overlap:      cfg.Overlap,
		LogFrequency: cfg.LogFrequency,
		VMin:         vmin,
		VMax:         vmax,
	}, opts)
	if err != nil {
		return nil, nil, err
	}
	if labelled {
		seis.X.Label.Text = clockAxisLabel(tr.StartTime)
		spec.X.Label.Text = offsetAxisLabel(tr.StartTime)
	}
	return seis, spec, nil
}

// Render draws the figure as PNG.
func (f *Figure) Render(w io.Writer) error {
	img := vgimg.NewWith(vgimg.UseWH(f.width, f.height), vgimg.UseDPI(f.dpi))
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      len(f.Panels),
		Cols:      Columns,
		PadX:      vg.Points(24),
		PadY:      vg.Points(4),
		PadLeft:   vg.Points(2),
		PadRight:  vg.Points(2),
		PadTop:    vg.Points(2),
		PadBottom: vg.Points(2),
	}
	canvases := plot.Align(f.Panels, tiles, region(dc, gridBox))
	for i, row := range f.Panels {
		for j, p := range row {
			p.Draw(canvases[i][j])
		}
	}
	for i, cb := range f.ColourBars {
		cb.Draw(region(dc, colourBarBoxes[i]))
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Save renders the figure to path.
func (f *Figure) Save(path string) error {
	return savePNG(path, f.Render)
}

func savePNG(path string, render func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(out); err != nil {
		out.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return out.Close()
}

// SavePlot renders a single plot of the given size in inches.
func SavePlot(p *plot.Plot, widthInches, heightInches float64, dpi int, path string) error {
	return savePNG(path, func(w io.Writer) error {
		img := vgimg.NewWith(
			vgimg.UseWH(vg.Length(widthInches)*vg.Inch, vg.Length(heightInches)*vg.Inch),
			vgimg.UseDPI(dpi),
		)
		p.Draw(draw.New(img))
		_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
		return err
	})
}
