package match

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
)

// boundaryAnchors samples perSide points along each side of a keyframe,
// away from the corners.
func boundaryAnchors(width, height, perSide int) []r2.Point {
	w := float64(width - 1)
	h := float64(height - 1)
	anchors := make([]r2.Point, 0, 4*perSide)
	for i := 0; i < perSide; i++ {
		t := (float64(i) + 0.5) / float64(perSide)
		anchors = append(anchors,
			r2.Point{X: t * w, Y: 0},
			r2.Point{X: w, Y: t * h},
			r2.Point{X: (1 - t) * w, Y: h},
			r2.Point{X: 0, Y: (1 - t) * h},
		)
	}
	return anchors
}

// strongestEdge returns the pixel of maximum gradient magnitude within radius
// of p, and that magnitude. ok is false when p falls outside the frame.
func strongestEdge(g *imaging.Gradient, p r2.Point, radius int) (best r2.Point, mag float64, ok bool) {
	cx := int(math.Round(p.X))
	cy := int(math.Round(p.Y))
	if cx < 0 || cy < 0 || cx >= g.Width || cy >= g.Height {
		return r2.Point{}, 0, false
	}
	for y := cy - radius; y <= cy+radius; y++ {
		if y < 0 || y >= g.Height {
			continue
		}
		for x := cx - radius; x <= cx+radius; x++ {
			if x < 0 || x >= g.Width {
				continue
			}
			if v := float64(g.Magnitude[y*g.Width+x]); v > mag {
				mag = v
				best = r2.Point{X: float64(x), Y: float64(y)}
			}
		}
	}
	return best, mag, true
}

// edgeSnap pulls the keyframe boundary onto image edges.
//
// Each round projects the boundary anchors through h, pairs every anchor with
// the strongest gradient pixel near its projection when that pixel is strong
// enough, re-solves a weighted homography from the inliers (weight 1) and the
// anchors (weight proportional to the clamped magnitude), and mixes the result
// into h with EdgeSnapBlend. It returns the refined homography and the number
// of anchors used in the last round.
func (m *Matcher) edgeSnap(h homography.Matrix, inl []Correspondence, keyWidth, keyHeight int, g *imaging.Gradient) (homography.Matrix, int) {
	anchors := boundaryAnchors(keyWidth, keyHeight, m.opts.EdgeSnapAnchors)
	used := 0

	for it := 0; it < m.opts.EdgeSnapIterations; it++ {
		src, dst := correspondencePoints(inl)
		weights := make([]float64, len(src), len(src)+len(anchors))
		for i := range weights {
			weights[i] = 1
		}

		used = 0
		for _, a := range anchors {
			p, ok := h.Project(a)
			if !ok {
				continue
			}
			edge, mag, ok := strongestEdge(g, p, m.opts.EdgeSnapWindow)
			if !ok || mag < m.opts.EdgeSnapThreshold {
				continue
			}
			src = append(src, a)
			dst = append(dst, edge)
			weights = append(weights, math.Min(mag/m.opts.EdgeSnapSaturation, 1))
			used++
		}
		if used == 0 {
			break
		}

		fit, ok := homography.Fit(src, dst, weights)
		if !ok {
			break
		}
		h = h.Blend(fit, m.opts.EdgeSnapBlend)
	}
	return h, used
}
