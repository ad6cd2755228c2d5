package media

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

// PlaceholderColors are the slide backgrounds, chosen by slide position.
var PlaceholderColors = []color.RGBA{
	{R: 30, G: 60, B: 114, A: 255},
	{R: 20, G: 80, B: 100, A: 255},
	{R: 70, G: 35, B: 100, A: 255},
	{R: 100, G: 50, B: 30, A: 255},
	{R: 40, G: 70, B: 90, A: 255},
	{R: 60, G: 30, B: 80, A: 255},
}

// titleTop is the distance of the title from the top of a 1080 line frame.
const titleTop = 200

// PlaceholderColor returns the background used for the 1-based slide index.
func PlaceholderColor(index int) color.RGBA {
	i := (index - 1) % len(PlaceholderColors)
	if i < 0 {
		i += len(PlaceholderColors)
	}
	return PlaceholderColors[i]
}

// RenderPlaceholder draws a solid slide with its title in white, centred
// horizontally near the top, and returns it PNG encoded. It never fails.
func RenderPlaceholder(title string, index, width, height int) []byte {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(PlaceholderColor(index)), image.Point{}, draw.Src)

	top := titleTop * height / 1080
	scale := max(1, height/216)
	if h := drawText(img, title, top, scale); h > 0 {
		drawText(img, fmt.Sprintf("Slide %d", index), top+h+h/2, max(1, scale/2))
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// drawText renders s with the built-in bitmap face, magnified by scale and
// shrunk until it fits the frame width. It returns the drawn height.
func drawText(dst *image.RGBA, s string, top, scale int) int {
	face := basicfont.Face7x13
	margin := dst.Bounds().Dx() / 20

	runes := []rune(s)
	for len(runes) > 0 {
		w := font.MeasureString(face, string(runes)).Ceil()
		for scale > 1 && w*scale > dst.Bounds().Dx()-2*margin {
			scale--
		}
		if w*scale <= dst.Bounds().Dx()-2*margin {
			break
		}
		runes = runes[:len(runes)-1]
	}
	if len(runes) == 0 {
		return 0
	}
	text := string(runes)

	w := font.MeasureString(face, text).Ceil()
	h := face.Height
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  src,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	sw, sh := w*scale, h*scale
	x := (dst.Bounds().Dx() - sw) / 2
	rect := image.Rect(x, top, x+sw, top+sh)
	draw.NearestNeighbor.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)
	return sh
}
