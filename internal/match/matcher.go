// Package match finds a target's keyframes in a query frame's feature points
// and verifies them geometrically.
package match

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
	"github.com/rs/zerolog"
)

// Matcher matches query points against precompiled targets.
//
// A Matcher holds only configuration and is safe for concurrent use; candidate
// buffers are per call.
type Matcher struct {
	opts Options
	log  zerolog.Logger
}

// New creates a matcher. Zero-valued options fall back to defaults.
func New(opts Options) *Matcher {
	opts = opts.withDefaults()
	return &Matcher{
		opts: opts,
		log:  opts.Logger.With().Str("component", "matcher").Logger(),
	}
}

// Match tries every keyframe of t and returns the one with the most inliers
// after the guided second pass. Ties go to the earlier (larger) keyframe.
//
// No match is an ordinary result: Result.Keyframe is -1 and H is nil.
func (m *Matcher) Match(q Query, t *target.Target) Result {
	res := Result{Keyframe: -1}
	var best KeyframeResult

	for k := range t.Keyframes {
		kr := m.MatchKeyframe(q, t, k)
		if kr.Debug != nil {
			res.Debug = append(res.Debug, *kr.Debug)
		}
		if kr.H != nil && len(kr.Inliers) > len(best.Inliers) {
			best = kr
		}
	}
	if best.H == nil {
		m.log.Debug().Str("target", t.ID).Int("points", len(q.Points)).Msg("no match")
		return res
	}

	kf := t.Keyframes[best.Keyframe]
	planeH := best.H.Mul(homography.Scale(kf.Scale, kf.Scale))
	res.Keyframe = best.Keyframe
	res.H = best.H
	res.PlaneH = &planeH
	res.Inliers = best.Inliers

	m.log.Debug().
		Str("target", t.ID).
		Int("keyframe", best.Keyframe).
		Float64("scale", kf.Scale).
		Int("inliers", len(best.Inliers)).
		Msg("match")
	return res
}

// MatchKeyframe runs the full verification chain against one keyframe.
//
// # Algorithm
//
//  1. Tree search and ratio test per query point
//  2. Hough voting on the implied similarity transforms
//  3. Robust homography and inlier filter
//  4. Guided second pass around the inverse-projected query points, followed
//     by Hough voting, a fresh homography and inlier filter
//  5. Optional edge snapping of the final homography
//
// Each stage must keep at least MinInliers correspondences.
func (m *Matcher) MatchKeyframe(q Query, t *target.Target, k int) KeyframeResult {
	kf := t.Keyframes[k]
	res := KeyframeResult{Keyframe: k}
	var dbg *KeyframeDebug
	if m.opts.Debug {
		dbg = &KeyframeDebug{Keyframe: k, Scale: kf.Scale}
		res.Debug = dbg
	}
	reject := func(reason string) KeyframeResult {
		if dbg != nil {
			dbg.Rejected = reason
		}
		res.H = nil
		res.Inliers = nil
		return res
	}

	matches := m.treeMatches(q, kf)
	if dbg != nil {
		dbg.Matches = len(matches)
		dbg.Candidates = matches
	}
	if len(matches) < m.opts.MinInliers {
		return reject("too few matches")
	}

	hough := houghFilter(matches, kf.Width, kf.Height, q.Width, q.Height, m.opts.MinHoughVotes)
	if dbg != nil {
		dbg.Hough = len(hough)
	}
	if len(hough) < m.opts.MinInliers {
		return reject("hough")
	}

	h, ok := m.robustHomography(hough, kf.Width, kf.Height)
	if !ok {
		return reject("homography")
	}
	inl := inliers(h, hough, m.opts.InlierThreshold)
	if dbg != nil {
		dbg.Inliers = len(inl)
	}
	if len(inl) < m.opts.MinInliers {
		return reject("inliers")
	}

	hInv, ok := h.Inverse()
	if !ok {
		return reject("singular homography")
	}
	matches2 := m.guidedMatches(q, kf, hInv)
	if dbg != nil {
		dbg.SecondMatches = len(matches2)
	}
	hough2 := houghFilter(matches2, kf.Width, kf.Height, q.Width, q.Height, m.opts.MinHoughVotes)
	if dbg != nil {
		dbg.SecondHough = len(hough2)
	}
	if len(hough2) < m.opts.MinInliers {
		return reject("second pass hough")
	}
	h2, ok := m.robustHomography(hough2, kf.Width, kf.Height)
	if !ok {
		return reject("second pass homography")
	}
	inl2 := inliers(h2, hough2, m.opts.InlierThreshold)
	if dbg != nil {
		dbg.SecondInliers = len(inl2)
	}
	if len(inl2) < m.opts.MinInliers {
		return reject("second pass inliers")
	}

	if m.opts.EdgeSnap && q.Gradient != nil {
		snapped, used := m.edgeSnap(h2, inl2, kf.Width, kf.Height, q.Gradient)
		if dbg != nil {
			dbg.EdgeAnchors = used
		}
		// Keep the snap only if the feature evidence still agrees with it
		if len(inliers(snapped, inl2, m.opts.InlierThreshold)) >= m.opts.MinInliers {
			h2 = snapped
		}
	}

	res.H = &h2
	res.Inliers = inl2
	return res
}

func (m *Matcher) ratioFor(kind feature.Kind) float64 {
	if kind == feature.KindSignature {
		return m.opts.SignatureRatioThreshold
	}
	return m.opts.RatioThreshold
}

// passesRatio applies the ambiguity test. A lone candidate always passes.
func passesRatio(best, second int, ratio float64) bool {
	if second == math.MaxInt {
		return true
	}
	return float64(best) < ratio*float64(second)
}

func (m *Matcher) treeMatches(q Query, kf *target.KeyframeIndex) []Correspondence {
	ratio := m.ratioFor(kf.Kind)
	var out []Correspondence
	var cands []int32

	for qi, p := range q.Points {
		set := kf.Points(p.Maxima)
		if set.Len() == 0 || set.Tree == nil {
			continue
		}
		cands = set.Tree.Search(set.Descriptors, p.Descriptor, m.opts.MaxPops, cands[:0])

		bestIdx, best, second := -1, math.MaxInt, math.MaxInt
		for _, c := range cands {
			d := feature.Distance(p.Descriptor, set.Descriptors[c])
			if d < best {
				second = best
				best, bestIdx = d, int(c)
			} else if d < second {
				second = d
			}
		}
		if bestIdx < 0 || !passesRatio(best, second, ratio) {
			continue
		}
		out = append(out, newCorrespondence(qi, p, kf, bestIdx, best))
	}
	return out
}

// guidedMatches repeats the ratio test, restricted to keyframe points within
// SecondPassRadius of each query point mapped back through hInv.
func (m *Matcher) guidedMatches(q Query, kf *target.KeyframeIndex, hInv homography.Matrix) []Correspondence {
	ratio := m.ratioFor(kf.Kind)
	r2max := m.opts.SecondPassRadius * m.opts.SecondPassRadius
	var out []Correspondence

	for qi, p := range q.Points {
		mapped, ok := hInv.Project(r2.Point{X: p.X, Y: p.Y})
		if !ok {
			continue
		}
		set := kf.Points(p.Maxima)

		bestIdx, best, second := -1, math.MaxInt, math.MaxInt
		for i := 0; i < set.Len(); i++ {
			dx := set.X[i] - mapped.X
			dy := set.Y[i] - mapped.Y
			if dx*dx+dy*dy > r2max {
				continue
			}
			d := feature.Distance(p.Descriptor, set.Descriptors[i])
			if d < best {
				second = best
				best, bestIdx = d, i
			} else if d < second {
				second = d
			}
		}
		if bestIdx < 0 || !passesRatio(best, second, ratio) {
			continue
		}
		out = append(out, newCorrespondence(qi, p, kf, bestIdx, best))
	}
	return out
}

func newCorrespondence(qi int, p feature.Point, kf *target.KeyframeIndex, idx, dist int) Correspondence {
	set := kf.Points(p.Maxima)
	key := r2.Point{X: set.X[idx], Y: set.Y[idx]}
	return Correspondence{
		QueryIndex:  qi,
		PointIndex:  idx,
		Maxima:      p.Maxima,
		Query:       r2.Point{X: p.X, Y: p.Y},
		Keyframe:    key,
		Plane:       key.Mul(1 / kf.Scale),
		Distance:    dist,
		Reliability: 1 - float64(dist)/float64(kf.Kind.Bits()),
		queryScale:  p.Scale,
		queryAngle:  p.Angle,
		keyScale:    set.Scale[idx],
		keyAngle:    set.Angle[idx],
	}
}
