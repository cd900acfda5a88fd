package match

import (
	"github.com/ironsheep/target-tracker-mcp/internal/index"
	"github.com/rs/zerolog"
)

// Options configures a Matcher.
type Options struct {
	// RatioThreshold is the best/second-best distance ratio a match must stay
	// below, for LSH and FREAK descriptors.
	RatioThreshold float64

	// SignatureRatioThreshold is the ratio for folded signature descriptors,
	// which are coarser and need a looser test.
	SignatureRatioThreshold float64

	// MaxPops bounds the deferred branches reopened per tree search.
	MaxPops int

	// MinInliers is the correspondence count every stage must keep for a
	// keyframe to stay in the running.
	MinInliers int

	// InlierThreshold is the reprojection error, in query pixels, below which
	// a correspondence is an inlier.
	InlierThreshold float64

	// SecondPassRadius is the keyframe-pixel radius of the guided search
	// around each inverse-projected query point.
	SecondPassRadius float64

	// MinHoughVotes is the least support the winning Hough bin needs.
	MinHoughVotes int

	// Hypotheses and MaxTrials bound the random four-point homography
	// hypotheses: stop after Hypotheses valid ones or MaxTrials draws.
	Hypotheses int
	MaxTrials  int

	// ScoreChunk is the number of correspondences scored between each halving
	// of the hypothesis set.
	ScoreChunk int

	// Seed fixes hypothesis sampling so matching is reproducible.
	Seed int64

	// EdgeSnap enables boundary refinement of the final homography.
	EdgeSnap bool

	// EdgeSnapAnchors is the number of anchors sampled along each side of
	// the keyframe.
	EdgeSnapAnchors int

	// EdgeSnapWindow is the radius, in query pixels, of the search for the
	// strongest gradient around each projected anchor.
	EdgeSnapWindow int

	// EdgeSnapThreshold is the gradient magnitude an anchor's best pixel must
	// reach to be used.
	EdgeSnapThreshold float64

	// EdgeSnapSaturation is the magnitude at which an anchor's weight reaches 1.
	EdgeSnapSaturation float64

	// EdgeSnapIterations is the number of snap-refit-blend rounds.
	EdgeSnapIterations int

	// EdgeSnapBlend is the share of each refit mixed into the running
	// homography.
	EdgeSnapBlend float64

	// Debug attaches per-keyframe stage counts and candidate sets to results.
	Debug bool

	Logger zerolog.Logger
}

// DefaultOptions returns the matcher configuration.
func DefaultOptions() Options {
	return Options{
		RatioThreshold:          0.7,
		SignatureRatioThreshold: 0.8,
		MaxPops:                 index.DefaultMaxPops,
		MinInliers:              6,
		InlierThreshold:         3,
		SecondPassRadius:        10,
		MinHoughVotes:           3,
		Hypotheses:              20,
		MaxTrials:               40,
		ScoreChunk:              10,
		Seed:                    1,
		EdgeSnap:                false,
		EdgeSnapAnchors:         8,
		EdgeSnapWindow:          4,
		EdgeSnapThreshold:       20,
		EdgeSnapSaturation:      80,
		EdgeSnapIterations:      3,
		EdgeSnapBlend:           0.5,
		Logger:                  zerolog.Nop(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.RatioThreshold <= 0 {
		o.RatioThreshold = def.RatioThreshold
	}
	if o.SignatureRatioThreshold <= 0 {
		o.SignatureRatioThreshold = def.SignatureRatioThreshold
	}
	if o.MaxPops <= 0 {
		o.MaxPops = def.MaxPops
	}
	if o.MinInliers < 4 {
		o.MinInliers = def.MinInliers
	}
	if o.InlierThreshold <= 0 {
		o.InlierThreshold = def.InlierThreshold
	}
	if o.SecondPassRadius <= 0 {
		o.SecondPassRadius = def.SecondPassRadius
	}
	if o.MinHoughVotes <= 0 {
		o.MinHoughVotes = def.MinHoughVotes
	}
	if o.Hypotheses <= 0 {
		o.Hypotheses = def.Hypotheses
	}
	if o.MaxTrials < o.Hypotheses {
		o.MaxTrials = 2 * o.Hypotheses
	}
	if o.ScoreChunk <= 0 {
		o.ScoreChunk = def.ScoreChunk
	}
	if o.EdgeSnapAnchors <= 0 {
		o.EdgeSnapAnchors = def.EdgeSnapAnchors
	}
	if o.EdgeSnapWindow <= 0 {
		o.EdgeSnapWindow = def.EdgeSnapWindow
	}
	if o.EdgeSnapThreshold <= 0 {
		o.EdgeSnapThreshold = def.EdgeSnapThreshold
	}
	if o.EdgeSnapSaturation <= 0 {
		o.EdgeSnapSaturation = def.EdgeSnapSaturation
	}
	if o.EdgeSnapIterations <= 0 {
		o.EdgeSnapIterations = def.EdgeSnapIterations
	}
	if o.EdgeSnapBlend <= 0 || o.EdgeSnapBlend > 1 {
		o.EdgeSnapBlend = def.EdgeSnapBlend
	}
	return o
}
