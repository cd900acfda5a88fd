package imaging

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"testing"
)

func TestDrawOverlay(t *testing.T) {
	f := NewFrame(120, 90)
	for i := range f.Pix {
		f.Pix[i] = 60
	}

	markers := []Marker{
		{X: 30, Y: 30, Radius: 4, Angle: 0, Level: 0},
		{X: 80, Y: 50, Radius: 8, Angle: 1.2, Level: 1},
	}
	outline := []OverlayPoint{{10, 10}, {110, 10}, {110, 80}, {10, 80}}

	result, err := DrawOverlay(f, markers, outline, "")
	if err != nil {
		t.Fatalf("DrawOverlay failed: %v", err)
	}
	if result.Width != 120 || result.Height != 90 {
		t.Errorf("dimensions: got %dx%d, want 120x90", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.Markers != 2 {
		t.Errorf("Markers: got %d, want 2", result.Markers)
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(decoded))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}

	// Outline is white on a gray frame
	r, g, b, _ := img.At(60, 80).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("outline pixel: got (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}

	// Level 0 marker is red dominated
	r, g, b, _ = img.At(34, 30).RGBA()
	if r>>8 < 200 || g>>8 > 100 || b>>8 > 100 {
		t.Errorf("level 0 marker pixel: got (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
}

func TestDrawOverlay_EmptyFrame(t *testing.T) {
	if _, err := DrawOverlay(&Frame{}, nil, nil, ""); err == nil {
		t.Error("DrawOverlay should fail on an empty frame")
	}
}

func TestLevelColor_Distinct(t *testing.T) {
	seen := map[[3]uint8]bool{}
	for level := 0; level < 5; level++ {
		c := levelColor(level)
		key := [3]uint8{c.R, c.G, c.B}
		if seen[key] {
			t.Errorf("level %d reuses colour %v", level, key)
		}
		seen[key] = true
	}
}
