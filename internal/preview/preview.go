// Package preview writes small labelled copies of rendered figures and
// keeps track of what the output directory already holds.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultWidth is the preview width in pixels.
const DefaultWidth = 640

const bannerHeight = 22

// Generate scales a PNG figure to width pixels, keeping its aspect ratio,
// and stamps label on a banner along the bottom edge.
func Generate(figure []byte, label string, width int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(figure))
	if err != nil {
		return nil, fmt.Errorf("decode figure: %w", err)
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return nil, fmt.Errorf("figure is empty")
	}
	if width <= 0 || width > sb.Dx() {
		width = sb.Dx()
	}
	height := sb.Dy() * width / sb.Dx()

	dst := image.NewRGBA(image.Rect(0, 0, width, height+bannerHeight))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, image.Rect(0, 0, width, height), src, sb, draw.Over, nil)

	banner := image.Rect(0, height, width, height+bannerHeight)
	draw.Draw(dst, banner, image.NewUniform(color.RGBA{0x44, 0x01, 0x54, 0xff}), image.Point{}, draw.Src)
	drawText(dst, label, 6, height+bannerHeight-6, color.White, basicfont.Face7x13)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
