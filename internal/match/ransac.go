package match

import (
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
)

// robustHomography estimates the keyframe-to-query homography from matches
// that may still contain outliers.
//
// # Algorithm
//
//  1. Draw random four-point samples whose triangles keep their orientation
//     between keyframe and query, fit each exactly, and keep the fits that map
//     the keyframe rectangle onto a convex quadrilateral of the same
//     orientation, until Hypotheses fits or MaxTrials draws
//  2. Score all hypotheses preemptively: accumulate a Cauchy reprojection cost
//     over ScoreChunk correspondences at a time, halving the set after each
//     chunk
//  3. Refit the survivor by least squares on its inliers
//
// The boolean is false when no plausible hypothesis exists or the fit is
// ill-conditioned.
func (m *Matcher) robustHomography(matches []Correspondence, keyWidth, keyHeight int) (homography.Matrix, bool) {
	n := len(matches)
	if n < 4 {
		return homography.Matrix{}, false
	}
	rng := rand.New(rand.NewSource(m.opts.Seed))
	corners := []r2.Point{
		{X: 0, Y: 0},
		{X: float64(keyWidth), Y: 0},
		{X: float64(keyWidth), Y: float64(keyHeight)},
		{X: 0, Y: float64(keyHeight)},
	}

	perm := rng.Perm(n)
	src := make([]r2.Point, 4)
	dst := make([]r2.Point, 4)
	var hyps []homography.Matrix
	for trial := 0; trial < m.opts.MaxTrials && len(hyps) < m.opts.Hypotheses; trial++ {
		for i := 0; i < 4; i++ {
			j := i + rng.Intn(n-i)
			perm[i], perm[j] = perm[j], perm[i]
			src[i] = matches[perm[i]].Keyframe
			dst[i] = matches[perm[i]].Query
		}
		if !consistentOrientation(src, dst) {
			continue
		}
		h, ok := homography.Fit(src, dst, nil)
		if !ok || !plausible(h, corners) {
			continue
		}
		hyps = append(hyps, h)
	}
	if len(hyps) == 0 {
		return homography.Matrix{}, false
	}

	best := preemptiveBest(hyps, matches, rng.Perm(n), m.opts.ScoreChunk, m.opts.InlierThreshold)

	inl := inliers(best, matches, m.opts.InlierThreshold)
	if len(inl) >= 4 {
		s, d := correspondencePoints(inl)
		if refit, ok := homography.Fit(s, d, nil); ok && plausible(refit, corners) {
			best = refit
		}
	}
	return best, true
}

// preemptiveBest returns the hypothesis with the lowest accumulated robust
// cost, discarding the worse half after every chunk of correspondences.
func preemptiveBest(hyps []homography.Matrix, matches []Correspondence, order []int, chunk int, scale float64) homography.Matrix {
	type scored struct {
		idx  int
		cost float64
	}
	alive := make([]scored, len(hyps))
	for i := range alive {
		alive[i].idx = i
	}
	scale2 := scale * scale

	for start := 0; start < len(order) && len(alive) > 1; start += chunk {
		end := start + chunk
		if end > len(order) {
			end = len(order)
		}
		for a := range alive {
			h := hyps[alive[a].idx]
			for _, mi := range order[start:end] {
				alive[a].cost += cauchyCost(h, matches[mi], scale2)
			}
		}
		sort.SliceStable(alive, func(i, j int) bool { return alive[i].cost < alive[j].cost })
		alive = alive[:(len(alive)+1)/2]
	}

	bestIdx := 0
	for i := range alive {
		if alive[i].cost < alive[bestIdx].cost {
			bestIdx = i
		}
	}
	return hyps[alive[bestIdx].idx]
}

func cauchyCost(h homography.Matrix, m Correspondence, scale2 float64) float64 {
	p, ok := h.Project(m.Keyframe)
	if !ok {
		return math.Log(1 + 1e12)
	}
	d := p.Sub(m.Query)
	return math.Log(1 + d.Dot(d)/scale2)
}

// inliers returns the matches whose keyframe point projects within threshold
// pixels of its query point.
func inliers(h homography.Matrix, matches []Correspondence, threshold float64) []Correspondence {
	t2 := threshold * threshold
	var out []Correspondence
	for _, m := range matches {
		p, ok := h.Project(m.Keyframe)
		if !ok {
			continue
		}
		d := p.Sub(m.Query)
		if d.Dot(d) < t2 {
			out = append(out, m)
		}
	}
	return out
}

func correspondencePoints(matches []Correspondence) (src, dst []r2.Point) {
	src = make([]r2.Point, len(matches))
	dst = make([]r2.Point, len(matches))
	for i, m := range matches {
		src[i] = m.Keyframe
		dst[i] = m.Query
	}
	return src, dst
}

func cross(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// consistentOrientation reports whether every triangle of the four-point
// sample has the same, non-zero winding in both images.
func consistentOrientation(src, dst []r2.Point) bool {
	for i := 0; i < 4; i++ {
		a, b, c := i, (i+1)%4, (i+2)%4
		s := cross(src[a], src[b], src[c])
		d := cross(dst[a], dst[b], dst[c])
		if s == 0 || d == 0 || (s > 0) != (d > 0) {
			return false
		}
	}
	return true
}

// plausible reports whether h maps the keyframe rectangle onto a convex
// quadrilateral with the same winding and a non-trivial area.
func plausible(h homography.Matrix, corners []r2.Point) bool {
	projected := make([]r2.Point, len(corners))
	for i, c := range corners {
		p, ok := h.Project(c)
		if !ok {
			return false
		}
		projected[i] = p
	}

	n := len(corners)
	area := 0.0
	for i := 0; i < n; i++ {
		a, b, c := i, (i+1)%n, (i+2)%n
		want := cross(corners[a], corners[b], corners[c])
		got := cross(projected[a], projected[b], projected[c])
		if (want > 0) != (got > 0) || got == 0 {
			return false
		}
		area += projected[a].Cross(projected[b])
	}
	return math.Abs(area)/2 > 1
}
