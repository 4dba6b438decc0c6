package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/etna6c/internal/dsp"
	"github.com/lox/etna6c/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, dsp.PreFilter{0.008, 0.01, 95, 99}, c.Processing.PreFilter)
	assert.Equal(t, 0.5, c.Processing.FMin)
	assert.Equal(t, 20.0, c.Processing.FMax)
	assert.Equal(t, 30*time.Second, c.Data.TranslationalPad)
	assert.Equal(t, 128, c.Figure.WindowLength)
	assert.Equal(t, 64, c.Figure.Overlap)
	assert.Equal(t, 500, c.Figure.DPI)
}

func TestInventoryPath(t *testing.T) {
	d := Data{Dir: "data", Inventory: "inv.xml"}
	assert.Equal(t, filepath.Join("data", "inv.xml"), d.InventoryPath())

	d.Inventory = "/abs/inv.xml"
	assert.Equal(t, "/abs/inv.xml", d.InventoryPath())
}

func TestColourRange(t *testing.T) {
	f := Default().Figure
	lo, hi := f.ColourRange(models.Translational)
	assert.Equal(t, 2e-15, lo)
	assert.Equal(t, 1e-10, hi)
	lo, hi = f.ColourRange(models.Rotational)
	assert.Equal(t, 2e-17, lo)
	assert.Equal(t, 3e-16, hi)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"inverted band", func(c *Config) { c.Processing.FMin, c.Processing.FMax = 20, 0.5 }},
		{"zero fmin", func(c *Config) { c.Processing.FMin = 0 }},
		{"no corners", func(c *Config) { c.Processing.Corners = 0 }},
		{"pre-filter order", func(c *Config) { c.Processing.PreFilter = dsp.PreFilter{1, 0.1, 95, 99} }},
		{"window not power of two", func(c *Config) { c.Figure.WindowLength = 100 }},
		{"overlap too large", func(c *Config) { c.Figure.Overlap = 128 }},
		{"empty output", func(c *Config) { c.Figure.OutputDir = "" }},
		{"colour range", func(c *Config) { c.Figure.RotationalRange = [2]float64{1, 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}
