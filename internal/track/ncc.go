package track

import (
	"math"
	"sync"
)

// buffers holds the per-call warp, mask, integral images and patch scratch.
// They are pooled across frames and targets.
type buffers struct {
	warped []float32
	valid  []bool
	// Integral images with a one-pixel zero border: (w+1) x (h+1)
	sum     []float64
	sumSq   []float64
	invalid []int32
	tracked []bool
	patch   []float64
}

var bufferPool = sync.Pool{
	New: func() any { return new(buffers) },
}

func (b *buffers) reset(w, h, points, patchRadius int) {
	n := w * h
	ni := (w + 1) * (h + 1)
	b.warped = grow(b.warped, n)
	b.valid = grow(b.valid, n)
	b.sum = grow(b.sum, ni)
	b.sumSq = grow(b.sumSq, ni)
	b.invalid = grow(b.invalid, ni)
	b.tracked = grow(b.tracked, points)
	side := 2*patchRadius + 1
	b.patch = grow(b.patch, side*side)

	clear(b.valid)
	clear(b.tracked)
}

// grow returns s resliced to n, reallocating only when the capacity is short.
func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// integrate fills the integral images from warped and the validity mask.
func (b *buffers) integrate(w, h int) {
	valid := b.valid
	stride := w + 1
	for x := 0; x <= w; x++ {
		b.sum[x], b.sumSq[x], b.invalid[x] = 0, 0, 0
	}
	for y := 0; y < h; y++ {
		row := (y + 1) * stride
		prev := y * stride
		b.sum[row], b.sumSq[row], b.invalid[row] = 0, 0, 0
		var rs, rq float64
		var ri int32
		for x := 0; x < w; x++ {
			v := float64(b.warped[y*w+x])
			rs += v
			rq += v * v
			if !valid[y*w+x] {
				ri++
			}
			b.sum[row+x+1] = b.sum[prev+x+1] + rs
			b.sumSq[row+x+1] = b.sumSq[prev+x+1] + rq
			b.invalid[row+x+1] = b.invalid[prev+x+1] + ri
		}
	}
}

// box returns the sum, sum of squares and invalid count over the square of
// radius r centred at (cx, cy).
func (b *buffers) box(w, cx, cy, r int) (sum, sumSq float64, invalid int32) {
	stride := w + 1
	x0, y0 := cx-r, cy-r
	x1, y1 := cx+r+1, cy+r+1
	a := y0*stride + x0
	bb := y0*stride + x1
	c := y1*stride + x0
	d := y1*stride + x1
	return b.sum[d] - b.sum[bb] - b.sum[c] + b.sum[a],
		b.sumSq[d] - b.sumSq[bb] - b.sumSq[c] + b.sumSq[a],
		b.invalid[d] - b.invalid[bb] - b.invalid[c] + b.invalid[a]
}

// patch describes the template side of a correlation: zero-mean intensities
// and their energy.
type patch struct {
	values []float64
	energy float64
}

// templatePatch extracts the zero-mean patch of radius r around (px, py).
// ok is false for a flat patch.
func templatePatch(pix []float32, w, px, py, r int, dst []float64) (patch, bool) {
	n := 0
	mean := 0.0
	for y := py - r; y <= py+r; y++ {
		for x := px - r; x <= px+r; x++ {
			v := float64(pix[y*w+x])
			dst[n] = v
			mean += v
			n++
		}
	}
	mean /= float64(n)
	energy := 0.0
	for i := 0; i < n; i++ {
		dst[i] -= mean
		energy += dst[i] * dst[i]
	}
	if energy < 1e-6 {
		return patch{}, false
	}
	return patch{values: dst[:n], energy: energy}, true
}

// ncc scores the template patch against the warped image at (cx, cy). ok is
// false when the window leaves the image or touches invalid pixels.
func (b *buffers) ncc(t patch, w, h, cx, cy, r int) (float64, bool) {
	if cx-r < 0 || cy-r < 0 || cx+r >= w || cy+r >= h {
		return 0, false
	}
	sum, sumSq, invalid := b.box(w, cx, cy, r)
	if invalid > 0 {
		return 0, false
	}
	n := float64(len(t.values))
	varW := sumSq - sum*sum/n
	if varW < 1e-6 {
		return 0, true
	}

	// The template is zero-mean, so the warped mean drops out of the cross term
	cross := 0.0
	i := 0
	for y := cy - r; y <= cy+r; y++ {
		row := b.warped[y*w+cx-r : y*w+cx+r+1]
		for _, v := range row {
			cross += t.values[i] * float64(v)
			i++
		}
	}
	return cross / math.Sqrt(t.energy*varW), true
}

// search finds the best NCC location around (px, py): a coarse pass on a
// grid centred on the point, then a stride-1 pass around the coarse winner.
func (b *buffers) search(t patch, w, h, px, py int, o Options) (bx, by int, score float64, ok bool) {
	r := o.PatchRadius
	score = math.Inf(-1)
	steps := o.SearchRadius / o.CoarseStride
	for ky := -steps; ky <= steps; ky++ {
		for kx := -steps; kx <= steps; kx++ {
			dx, dy := kx*o.CoarseStride, ky*o.CoarseStride
			if s, valid := b.ncc(t, w, h, px+dx, py+dy, r); valid && s > score {
				bx, by, score, ok = px+dx, py+dy, s, true
			}
		}
	}
	if !ok {
		return 0, 0, 0, false
	}

	cx, cy := bx, by
	for dy := -o.FineRadius; dy <= o.FineRadius; dy++ {
		for dx := -o.FineRadius; dx <= o.FineRadius; dx++ {
			x, y := cx+dx, cy+dy
			if abs(x-px) > o.SearchRadius || abs(y-py) > o.SearchRadius {
				continue
			}
			if s, valid := b.ncc(t, w, h, x, y, r); valid && s > score {
				bx, by, score = x, y, s
			}
		}
	}
	return bx, by, score, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
