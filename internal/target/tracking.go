package target

import (
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blur"
	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
)

// cornerRadius is the half-size of the structure tensor window.
const cornerRadius = 2

// cornerRelativeThreshold drops corners weaker than this fraction of the
// strongest response in the octave.
const cornerRelativeThreshold = 0.01

type corner struct {
	x, y     int
	response float64
}

// selectTrackingPoints picks well-textured template locations.
//
// # Algorithm
//
//  1. Smooth with bild's Gaussian blur
//  2. Score each pixel by the smaller eigenvalue of the gradient structure
//     tensor over a 5x5 window (Shi-Tomasi)
//  3. Keep 3x3 local maxima away from the border
//  4. Greedily accept the strongest, enforcing a minimum spacing
func selectTrackingPoints(f *imaging.Frame, opts CompileOptions) ([]r2.Point, error) {
	smoothed, err := imaging.FrameFromImage(blur.Gaussian(f.Gray(), opts.TrackingBlur))
	if err != nil {
		return nil, err
	}
	g := imaging.ComputeGradient(smoothed, false)

	w, h := f.Width, f.Height
	margin := opts.TrackingMargin
	if margin < cornerRadius+1 {
		margin = cornerRadius + 1
	}

	resp := make([]float64, w*h)
	maxResp := 0.0
	for y := margin; y < h-margin; y++ {
		for x := margin; x < w-margin; x++ {
			var sxx, syy, sxy float64
			for dy := -cornerRadius; dy <= cornerRadius; dy++ {
				row := (y + dy) * w
				for dx := -cornerRadius; dx <= cornerRadius; dx++ {
					gx := float64(g.Dx[row+x+dx])
					gy := float64(g.Dy[row+x+dx])
					sxx += gx * gx
					syy += gy * gy
					sxy += gx * gy
				}
			}
			half := (sxx - syy) / 2
			r := (sxx+syy)/2 - math.Sqrt(half*half+sxy*sxy)
			resp[y*w+x] = r
			if r > maxResp {
				maxResp = r
			}
		}
	}
	if maxResp <= 0 {
		return []r2.Point{}, nil
	}

	threshold := maxResp * cornerRelativeThreshold
	var candidates []corner
	for y := margin; y < h-margin; y++ {
		for x := margin; x < w-margin; x++ {
			r := resp[y*w+x]
			if r < threshold || !localMax(resp, w, x, y) {
				continue
			}
			candidates = append(candidates, corner{x, y, r})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.response != b.response {
			return a.response > b.response
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.x < b.x
	})

	minDist2 := opts.TrackingSpacing * opts.TrackingSpacing
	points := []r2.Point{}
	for _, c := range candidates {
		if opts.MaxTrackingPoints > 0 && len(points) >= opts.MaxTrackingPoints {
			break
		}
		p := r2.Point{X: float64(c.x), Y: float64(c.y)}
		ok := true
		for _, q := range points {
			d := p.Sub(q)
			if d.Dot(d) < minDist2 {
				ok = false
				break
			}
		}
		if ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func localMax(resp []float64, w, x, y int) bool {
	v := resp[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx != 0 || dy != 0) && resp[(y+dy)*w+x+dx] > v {
				return false
			}
		}
	}
	return true
}
