package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// ErrEmptyFrame is returned when a frame has zero width or height, or when the
// pixel buffer is shorter than width*height.
var ErrEmptyFrame = errors.New("frame is empty or buffer is short")

// Frame is a grayscale pixel buffer.
//
// Pixels are stored row-major without padding, one float32 per pixel, in the
// 0-255 intensity range. A Frame is never modified by the detection, matching or
// tracking code; callers may share one Frame across goroutines for reading.
type Frame struct {
	Width  int
	Height int
	Pix    []float32
}

// NewFrame allocates a zero-filled frame.
func NewFrame(width, height int) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// FrameFromFloats wraps an existing float buffer. The buffer is not copied.
//
// Returns ErrEmptyFrame if either dimension is zero or the buffer is too short.
func FrameFromFloats(pix []float32, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 || len(pix) < width*height {
		return nil, fmt.Errorf("%dx%d frame with %d pixels: %w", width, height, len(pix), ErrEmptyFrame)
	}
	return &Frame{Width: width, Height: height, Pix: pix[:width*height]}, nil
}

// FrameFromBytes converts an 8-bit grayscale buffer into a Frame.
//
// Returns ErrEmptyFrame if either dimension is zero or the buffer is too short.
func FrameFromBytes(pix []byte, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 || len(pix) < width*height {
		return nil, fmt.Errorf("%dx%d frame with %d bytes: %w", width, height, len(pix), ErrEmptyFrame)
	}
	f := NewFrame(width, height)
	for i := range f.Pix {
		f.Pix[i] = float32(pix[i])
	}
	return f, nil
}

// FrameFromImage converts any image into a grayscale Frame.
//
// Color images are reduced to luminance with bild's grayscale effect. The frame
// origin is always (0,0) regardless of the source bounds.
func FrameFromImage(img image.Image) (*Frame, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("image bounds %v: %w", bounds, ErrEmptyFrame)
	}

	f := NewFrame(bounds.Dx(), bounds.Dy())
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < f.Height; y++ {
			off := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			dst := f.Pix[y*f.Width : (y+1)*f.Width]
			for x, v := range gray.Pix[off : off+f.Width] {
				dst[x] = float32(v)
			}
		}
		return f, nil
	}

	// Grayscale writes the luminance to all three channels; R is enough.
	rgba := effect.Grayscale(img)
	rb := rgba.Bounds()
	for y := 0; y < f.Height; y++ {
		off := rgba.PixOffset(rb.Min.X, rb.Min.Y+y)
		dst := f.Pix[y*f.Width : (y+1)*f.Width]
		for x := range dst {
			dst[x] = float32(rgba.Pix[off+x*4])
		}
	}
	return f, nil
}

// Validate reports ErrEmptyFrame for zero-sized or inconsistent frames.
func (f *Frame) Validate() error {
	if f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height {
		return ErrEmptyFrame
	}
	return nil
}

// At returns the pixel at (x, y) with coordinates clamped to the frame.
func (f *Frame) At(x, y int) float32 {
	x = clamp(x, 0, f.Width-1)
	y = clamp(y, 0, f.Height-1)
	return f.Pix[y*f.Width+x]
}

// Bilinear samples the frame at a sub-pixel location.
//
// Samples outside the frame are clamped to the nearest border pixel.
func (f *Frame) Bilinear(x, y float64) float32 {
	if x < 0 {
		x = 0
	} else if x > float64(f.Width-1) {
		x = float64(f.Width - 1)
	}
	if y < 0 {
		y = 0
	} else if y > float64(f.Height-1) {
		y = float64(f.Height - 1)
	}

	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= f.Width {
		x1 = f.Width - 1
	}
	if y1 >= f.Height {
		y1 = f.Height - 1
	}
	fx := float32(x - float64(x0))
	fy := float32(y - float64(y0))

	w := f.Width
	v00 := f.Pix[y0*w+x0]
	v10 := f.Pix[y0*w+x1]
	v01 := f.Pix[y1*w+x0]
	v11 := f.Pix[y1*w+x1]

	top := v00 + (v10-v00)*fx
	bottom := v01 + (v11-v01)*fx
	return top + (bottom-top)*fy
}

// Inside reports whether a sub-pixel location lies within the frame.
func (f *Frame) Inside(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= float64(f.Width-1) && y <= float64(f.Height-1)
}

// Gray converts the frame back into an 8-bit image, rounding and saturating.
func (f *Frame) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := math.Round(float64(f.Pix[y*f.Width+x]))
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.Pix[y*img.Stride+x] = uint8(v)
		}
	}
	return img
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := NewFrame(f.Width, f.Height)
	copy(c.Pix, f.Pix)
	return c
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
