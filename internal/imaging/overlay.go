package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Marker is a feature location drawn on a debug overlay.
type Marker struct {
	X      float64 // Centre X in frame pixels
	Y      float64 // Centre Y in frame pixels
	Radius float64 // Circle radius in pixels
	Angle  float64 // Orientation in radians, drawn as a tick from the centre
	Level  int     // Pyramid level; selects the marker colour
}

// OverlayPoint is a vertex of an outline polygon.
type OverlayPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OverlayResult contains a debug overlay encoded as base64 PNG.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Markers     int    `json:"markers"`
}

// DrawOverlay renders feature markers and an optional closed outline on top of a
// grayscale frame.
//
// Each marker is a circle with an orientation tick, coloured by pyramid level
// (hue steps of 55° starting at red). The outline, usually the projected target
// quad, is drawn in white. A short label in the top-left corner reports the
// marker count.
func DrawOverlay(f *Frame, markers []Marker, outline []OverlayPoint, label string) (*OverlayResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, f.Width, f.Height)
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, f.Gray(), image.Point{}, draw.Src)

	for _, m := range markers {
		c := levelColor(m.Level)
		drawCircle(result, m.X, m.Y, m.Radius, c)
		drawLine(result, m.X, m.Y, m.X+m.Radius*math.Cos(m.Angle), m.Y+m.Radius*math.Sin(m.Angle), c)
	}

	if len(outline) > 1 {
		white := color.RGBA{255, 255, 255, 255}
		for i := range outline {
			a := outline[i]
			b := outline[(i+1)%len(outline)]
			drawLine(result, a.X, a.Y, b.X, b.Y, white)
		}
	}

	if label == "" {
		label = fmt.Sprintf("%d features", len(markers))
	}
	drawLabel(result, 2, 2, label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}

	return &OverlayResult{
		Width:       f.Width,
		Height:      f.Height,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Markers:     len(markers),
	}, nil
}

func levelColor(level int) color.RGBA {
	c := colorful.Hsv(math.Mod(float64(level)*55, 360), 0.9, 1.0).Clamped()
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func drawCircle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	if r < 1 {
		r = 1
	}
	steps := int(2*math.Pi*r) + 8
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		setPixel(img, int(math.Round(cx+r*math.Cos(a))), int(math.Round(cy+r*math.Sin(a))), c)
	}
}

func drawLine(img *image.RGBA, x1, y1, x2, y2 float64, c color.RGBA) {
	dx := x2 - x1
	dy := y2 - y1
	steps := int(math.Max(math.Abs(dx), math.Abs(dy))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		setPixel(img, int(math.Round(x1+dx*t)), int(math.Round(y1+dy*t)), c)
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel draws white text on a dark box using the basic 7x13 bitmap face.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	box := image.Rect(x, y, x+width+4, y+face.Height+2).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
		Dot:  fixed.P(x+2, y+face.Ascent+1),
	}
	d.DrawString(text)
}
