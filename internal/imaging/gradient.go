package imaging

import "math"

// Gradient holds per-pixel Sobel derivatives of a frame.
//
// All three slices are row-major with the same dimensions as the source frame.
// Magnitude is sqrt(Dx² + Dy²) in intensity units per pixel (0-255 scale, Sobel
// normalised by 8 so a unit step edge reads as roughly half its height).
type Gradient struct {
	Width     int
	Height    int
	Dx        []float32
	Dy        []float32
	Magnitude []float32
}

// ComputeGradient smooths a frame with a 5x5 Gaussian and applies the Sobel
// operator.
//
// Border pixels use clamped (replicated) edge values, so the result has the same
// size as the input. Set smooth to false to skip the Gaussian step.
func ComputeGradient(f *Frame, smooth bool) *Gradient {
	src := f
	if smooth {
		src = GaussianBlur(f)
	}

	w, h := f.Width, f.Height
	g := &Gradient{
		Width:     w,
		Height:    h,
		Dx:        make([]float32, w*h),
		Dy:        make([]float32, w*h),
		Magnitude: make([]float32, w*h),
	}

	for y := 0; y < h; y++ {
		ym := clamp(y-1, 0, h-1) * w
		y0 := y * w
		yp := clamp(y+1, 0, h-1) * w
		for x := 0; x < w; x++ {
			xm := clamp(x-1, 0, w-1)
			xp := clamp(x+1, 0, w-1)

			gx := (src.Pix[ym+xp] - src.Pix[ym+xm]) +
				2*(src.Pix[y0+xp]-src.Pix[y0+xm]) +
				(src.Pix[yp+xp] - src.Pix[yp+xm])
			gy := (src.Pix[yp+xm] - src.Pix[ym+xm]) +
				2*(src.Pix[yp+x]-src.Pix[ym+x]) +
				(src.Pix[yp+xp] - src.Pix[ym+xp])
			gx /= 8
			gy /= 8

			i := y0 + x
			g.Dx[i] = gx
			g.Dy[i] = gy
			g.Magnitude[i] = float32(math.Sqrt(float64(gx*gx + gy*gy)))
		}
	}
	return g
}

// MagnitudeAt returns the gradient magnitude at (x, y), clamped to the frame.
func (g *Gradient) MagnitudeAt(x, y int) float32 {
	x = clamp(x, 0, g.Width-1)
	y = clamp(y, 0, g.Height-1)
	return g.Magnitude[y*g.Width+x]
}

// GaussianBlur applies a 5x5 Gaussian blur to a frame.
//
// Uses the standard 5x5 kernel with sigma ≈ 1.4:
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
//
// Total kernel sum = 273. Border pixels use clamped edge values.
func GaussianBlur(f *Frame) *Frame {
	kernel := [5][5]float32{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0

	w, h := f.Width, f.Height
	out := NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float32
			for ky := -2; ky <= 2; ky++ {
				py := clamp(y+ky, 0, h-1) * w
				for kx := -2; kx <= 2; kx++ {
					px := clamp(x+kx, 0, w-1)
					sum += f.Pix[py+px] * kernel[ky+2][kx+2]
				}
			}
			out.Pix[y*w+x] = sum / kernelSum
		}
	}
	return out
}
