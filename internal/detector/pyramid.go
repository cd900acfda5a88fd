package detector

import (
	"runtime"
	"sync"

	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
)

// Octave is one level of the scale pyramid.
//
// Blur1 and Blur2 are the two binomial blur levels of the octave and DoG is
// their pixel-wise difference (Blur1 - Blur2). All three share the octave's
// dimensions, which halve from one octave to the next.
type Octave struct {
	Width  int
	Height int
	Blur1  *imaging.Frame
	Blur2  *imaging.Frame
	DoG    []float32
}

// PyramidBuilder builds the difference-of-Gaussians pyramid for a frame.
//
// Implementations must be deterministic and produce identical output for the
// same frame; the detector treats them as interchangeable.
type PyramidBuilder interface {
	Build(f *imaging.Frame, numOctaves int) []Octave
}

// CPUPyramid builds the pyramid on the calling goroutine.
type CPUPyramid struct{}

// Build implements PyramidBuilder.
func (CPUPyramid) Build(f *imaging.Frame, numOctaves int) []Octave {
	return buildPyramid(f, numOctaves, 1)
}

// ParallelPyramid splits every filter pass into row bands processed by a fixed
// number of goroutines. Output is bit-identical to CPUPyramid.
type ParallelPyramid struct {
	// Workers is the number of goroutines; zero means GOMAXPROCS.
	Workers int
}

// Build implements PyramidBuilder.
func (p ParallelPyramid) Build(f *imaging.Frame, numOctaves int) []Octave {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return buildPyramid(f, numOctaves, workers)
}

// NumOctaves returns how many octaves a frame supports: halve both dimensions
// until either drops below minSize, capped at maxOctaves.
func NumOctaves(width, height, minSize, maxOctaves int) int {
	n := 0
	for width >= minSize && height >= minSize {
		width /= 2
		height /= 2
		n++
		if n == maxOctaves {
			break
		}
	}
	return n
}

func buildPyramid(f *imaging.Frame, numOctaves, workers int) []Octave {
	octaves := make([]Octave, 0, numOctaves)
	for i := 0; i < numOctaves; i++ {
		var blur1 *imaging.Frame
		if i == 0 {
			blur1 = binomialFilter(f, workers)
		} else {
			blur1 = downsample(octaves[i-1].Blur2)
		}
		blur2 := binomialFilter(blur1, workers)

		dog := make([]float32, len(blur1.Pix))
		for j := range dog {
			dog[j] = blur1.Pix[j] - blur2.Pix[j]
		}

		octaves = append(octaves, Octave{
			Width:  blur1.Width,
			Height: blur1.Height,
			Blur1:  blur1,
			Blur2:  blur2,
			DoG:    dog,
		})
	}
	return octaves
}

// binomialFilter applies the separable 5-tap binomial kernel [1 4 6 4 1]/16
// horizontally then vertically. Borders are clamped.
func binomialFilter(src *imaging.Frame, workers int) *imaging.Frame {
	w, h := src.Width, src.Height
	tmp := imaging.NewFrame(w, h)
	out := imaging.NewFrame(w, h)

	rows(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			in := src.Pix[y*w : (y+1)*w]
			dst := tmp.Pix[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				xm2 := clampIndex(x-2, w)
				xm1 := clampIndex(x-1, w)
				xp1 := clampIndex(x+1, w)
				xp2 := clampIndex(x+2, w)
				dst[x] = (in[xm2] + 4*in[xm1] + 6*in[x] + 4*in[xp1] + in[xp2]) / 16
			}
		}
	})

	rows(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			ym2 := clampIndex(y-2, h) * w
			ym1 := clampIndex(y-1, h) * w
			yc := y * w
			yp1 := clampIndex(y+1, h) * w
			yp2 := clampIndex(y+2, h) * w
			dst := out.Pix[yc : yc+w]
			for x := 0; x < w; x++ {
				dst[x] = (tmp.Pix[ym2+x] + 4*tmp.Pix[ym1+x] + 6*tmp.Pix[yc+x] + 4*tmp.Pix[yp1+x] + tmp.Pix[yp2+x]) / 16
			}
		}
	})
	return out
}

// downsample halves both dimensions by averaging 2x2 blocks.
func downsample(src *imaging.Frame) *imaging.Frame {
	w := src.Width / 2
	h := src.Height / 2
	out := imaging.NewFrame(w, h)
	sw := src.Width
	for y := 0; y < h; y++ {
		r0 := 2 * y * sw
		r1 := r0 + sw
		for x := 0; x < w; x++ {
			c := 2 * x
			out.Pix[y*w+x] = (src.Pix[r0+c] + src.Pix[r0+c+1] + src.Pix[r1+c] + src.Pix[r1+c+1]) * 0.25
		}
	}
	return out
}

// rows runs fn over [0, height) split into at most workers contiguous bands.
func rows(height, workers int, fn func(y0, y1 int)) {
	if workers <= 1 || height < 2*workers {
		fn(0, height)
		return
	}
	band := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < height; y0 += band {
		y1 := y0 + band
		if y1 > height {
			y1 = height
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
