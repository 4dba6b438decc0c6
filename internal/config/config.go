// Package config holds the processing and plotting parameters of a run.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lox/etna6c/internal/dsp"
	"github.com/lox/etna6c/internal/models"
)

// Data locates the input files.
type Data struct {
	Dir               string
	TranslationalGlob string
	RotationalGlob    string
	Inventory         string
	TranslationalPad  time.Duration
}

// InventoryPath is the StationXML path inside the data directory.
func (d Data) InventoryPath() string {
	if filepath.IsAbs(d.Inventory) {
		return d.Inventory
	}
	return filepath.Join(d.Dir, d.Inventory)
}

// Processing controls the signal chain.
type Processing struct {
	FMin, FMax      float64
	Corners         int
	TaperPercentage float64
	PreFilter       dsp.PreFilter
	WaterLevel      float64
	RotationScale   float64 // raw rotational units to rad/s
}

// Figure controls rendering.
type Figure struct {
	OutputDir    string
	WidthInches  float64
	HeightInches float64
	DPI          int
	FontSize     float64
	TickInterval time.Duration
	WindowLength int
	Overlap      int
	LogFrequency bool
	// Colour bounds of the spectrograms, (units)²/Hz.
	TranslationalRange [2]float64
	RotationalRange    [2]float64
}

// ColourRange returns the colour bounds for a group.
func (f Figure) ColourRange(g models.Group) (vmin, vmax float64) {
	if g == models.Rotational {
		return f.RotationalRange[0], f.RotationalRange[1]
	}
	return f.TranslationalRange[0], f.TranslationalRange[1]
}

type Config struct {
	Data       Data
	Processing Processing
	Figure     Figure
}

func Default() Config {
	return Config{
		Data: Data{
			Dir:               "2019_Etna",
			TranslationalGlob: "ZR.RS1..HH*",
			RotationalGlob:    "ZR.RS1..HJ*",
			Inventory:         "Stations_Etna_2019_seis.xml",
			TranslationalPad:  30 * time.Second,
		},
		Processing: Processing{
			FMin:            0.5,
			FMax:            20,
			Corners:         2,
			TaperPercentage: 0.01,
			PreFilter:       dsp.PreFilter{0.008, 0.01, 95, 99},
			WaterLevel:      dsp.DefaultWaterLevel,
			RotationScale:   1e-9,
		},
		Figure: Figure{
			OutputDir:          "figure_output",
			WidthInches:        7.48,
			HeightInches:       8.48,
			DPI:                500,
			FontSize:           8,
			TickInterval:       30 * time.Second,
			WindowLength:       128,
			Overlap:            64,
			TranslationalRange: [2]float64{2e-15, 1e-10},
			RotationalRange:    [2]float64{2e-17, 3e-16},
		},
	}
}

var ErrInvalid = errors.New("invalid configuration")

// Validate checks the parameters that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	p, f := c.Processing, c.Figure
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Data.Dir != "", "data directory is empty")
	check(c.Data.TranslationalGlob != "" && c.Data.RotationalGlob != "", "channel patterns are empty")
	check(c.Data.TranslationalPad >= 0, "negative padding %s", c.Data.TranslationalPad)
	check(p.FMin > 0 && p.FMin < p.FMax, "band %g-%g Hz", p.FMin, p.FMax)
	check(p.Corners > 0, "corners %d", p.Corners)
	check(p.TaperPercentage >= 0 && p.TaperPercentage <= 0.5, "taper %g", p.TaperPercentage)
	check(p.RotationScale != 0, "rotation scale is zero")
	if err := p.PreFilter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	check(f.OutputDir != "", "output directory is empty")
	check(f.WidthInches > 0 && f.HeightInches > 0, "figure size %gx%g in", f.WidthInches, f.HeightInches)
	check(f.DPI > 0, "dpi %d", f.DPI)
	check(f.FontSize > 0, "font size %g", f.FontSize)
	check(f.TickInterval > 0, "tick interval %s", f.TickInterval)
	check(f.WindowLength > 0 && f.WindowLength&(f.WindowLength-1) == 0, "window length %d is not a power of two", f.WindowLength)
	check(f.Overlap >= 0 && f.Overlap < f.WindowLength, "overlap %d", f.Overlap)
	check(f.TranslationalRange[0] > 0 && f.TranslationalRange[0] < f.TranslationalRange[1], "translational colour range %v", f.TranslationalRange)
	check(f.RotationalRange[0] > 0 && f.RotationalRange[0] < f.RotationalRange[1], "rotational colour range %v", f.RotationalRange)

	return errors.Join(errs...)
}
