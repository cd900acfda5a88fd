package imaging

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestFrameFromBytes(t *testing.T) {
	pix := []byte{0, 64, 128, 255, 10, 20}
	f, err := FrameFromBytes(pix, 3, 2)
	if err != nil {
		t.Fatalf("FrameFromBytes failed: %v", err)
	}
	if f.At(2, 0) != 128 || f.At(0, 1) != 255 {
		t.Errorf("unexpected pixels: %v", f.Pix)
	}
}

func TestFrameFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		pix           []byte
		width, height int
	}{
		{"zero width", make([]byte, 4), 0, 4},
		{"zero height", make([]byte, 4), 4, 0},
		{"short buffer", make([]byte, 3), 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FrameFromBytes(tt.pix, tt.width, tt.height)
			if !errors.Is(err, ErrEmptyFrame) {
				t.Errorf("got %v, want ErrEmptyFrame", err)
			}
		})
	}
}

func TestFrameFromImage_Color(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	img.Set(1, 1, color.RGBA{0, 0, 0, 255})

	f, err := FrameFromImage(img)
	if err != nil {
		t.Fatalf("FrameFromImage failed: %v", err)
	}
	if f.Width != 4 || f.Height != 4 {
		t.Fatalf("dimensions: got %dx%d, want 4x4", f.Width, f.Height)
	}
	if f.At(0, 0) < 250 {
		t.Errorf("white pixel: got %.1f", f.At(0, 0))
	}
	if f.At(1, 1) > 5 {
		t.Errorf("black pixel: got %.1f", f.At(1, 1))
	}
}

func TestFrameFromImage_NRGBA(t *testing.T) {
	img := image.NewNRGBA(image.Rect(2, 3, 6, 6))
	for y := 3; y < 6; y++ {
		for x := 2; x < 6; x++ {
			img.SetNRGBA(x, y, color.NRGBA{100, 100, 100, 255})
		}
	}
	img.SetNRGBA(3, 4, color.NRGBA{200, 0, 0, 255})
	img.SetNRGBA(5, 5, color.NRGBA{0, 0, 200, 255})

	f, err := FrameFromImage(img)
	if err != nil {
		t.Fatalf("FrameFromImage failed: %v", err)
	}
	if f.Width != 4 || f.Height != 3 {
		t.Fatalf("dimensions: got %dx%d, want 4x3", f.Width, f.Height)
	}

	tests := []struct {
		x, y int
		want float32
	}{
		{0, 0, 100},
		{1, 1, 60}, // 0.3 * 200
		{3, 2, 20}, // 0.1 * 200
		{2, 1, 100},
	}
	for _, tt := range tests {
		if got := f.At(tt.x, tt.y); got != tt.want {
			t.Errorf("At(%d, %d): got %.1f, want %.1f", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestFrameFromImage_SubImage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	gray.SetGray(5, 5, color.Gray{200})
	sub := gray.SubImage(image.Rect(4, 4, 8, 8)).(*image.Gray)

	f, err := FrameFromImage(sub)
	if err != nil {
		t.Fatalf("FrameFromImage failed: %v", err)
	}
	if f.Width != 4 || f.Height != 4 {
		t.Fatalf("dimensions: got %dx%d, want 4x4", f.Width, f.Height)
	}
	if f.At(1, 1) != 200 {
		t.Errorf("sub-image origin not honoured: got %.1f, want 200", f.At(1, 1))
	}
}

func TestFrame_Bilinear(t *testing.T) {
	f, _ := FrameFromFloats([]float32{0, 10, 20, 30}, 2, 2)

	tests := []struct {
		x, y float64
		want float32
	}{
		{0, 0, 0},
		{1, 0, 10},
		{0.5, 0, 5},
		{0.5, 0.5, 15},
		{0, 1, 20},
		{-3, -3, 0},  // clamped
		{5, 5, 30},   // clamped
	}
	for _, tt := range tests {
		got := f.Bilinear(tt.x, tt.y)
		if math.Abs(float64(got-tt.want)) > 1e-5 {
			t.Errorf("Bilinear(%.1f, %.1f): got %.3f, want %.3f", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestFrame_GrayRoundTrip(t *testing.T) {
	f, _ := FrameFromFloats([]float32{-5, 12.4, 12.6, 300}, 2, 2)
	g := f.Gray()
	want := []uint8{0, 12, 13, 255}
	for i, v := range want {
		if g.Pix[i] != v {
			t.Errorf("pixel %d: got %d, want %d", i, g.Pix[i], v)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, min, max, want int
	}{
		{5, 0, 10, 5},   // within range
		{-1, 0, 10, 0},  // below min
		{15, 0, 10, 10}, // above max
		{0, 0, 10, 0},   // at min
		{10, 0, 10, 10}, // at max
	}

	for _, tt := range tests {
		got := clamp(tt.val, tt.min, tt.max)
		if got != tt.want {
			t.Errorf("clamp(%d, %d, %d): got %d, want %d",
				tt.val, tt.min, tt.max, got, tt.want)
		}
	}
}
