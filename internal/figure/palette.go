package figure

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// Theme holds the fixed colours of a figure.
type Theme struct {
	// Trace is the seismogram line colour
	Trace string
	// Missing fills spectrogram cells without a value
	Missing string
	// Viridis control points, dark to light
	Controls []string
}

var DefaultTheme = Theme{
	Trace:   "#000000",
	Missing: "#ffffff",
	Controls: []string{
		"#440154", "#482475", "#414487", "#355f8d", "#2a788e", "#21918c",
		"#22a884", "#44bf70", "#7ad151", "#bddf26", "#fde725",
	},
}

// parseHex reads #rrggbb.
func parseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("colour %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// ColourMap interpolates the theme's control points in perceptual
// luminance, scaled to [vmin, vmax].
func (t Theme) ColourMap(vmin, vmax float64) (palette.ColorMap, error) {
	controls := make([]color.Color, len(t.Controls))
	for i, s := range t.Controls {
		c, err := parseHex(s)
		if err != nil {
			return nil, err
		}
		controls[i] = c
	}
	cm, err := moreland.NewLuminance(controls)
	if err != nil {
		return nil, fmt.Errorf("colour map: %w", err)
	}
	cm.SetMin(vmin)
	cm.SetMax(vmax)
	return cm, nil
}
