package track

import "github.com/rs/zerolog"

// Options configures a Tracker.
type Options struct {
	// PatchRadius is the half-size of the correlation patch, in template
	// pixels.
	PatchRadius int

	// SearchRadius bounds the displacement searched around each point.
	SearchRadius int

	// CoarseStride is the step of the first search pass.
	CoarseStride int

	// FineRadius is the stride-1 neighbourhood searched around the coarse
	// best.
	FineRadius int

	// SimilarityThreshold is the NCC score a point needs to count as tracked.
	SimilarityThreshold float64

	// MinPoints is the fewest tracked points for a usable result.
	MinPoints int

	// MinSpread is the smallest ratio of the tracked points' screen bounding
	// box diagonal to the projected target diagonal.
	MinSpread float64

	// HysteresisMargin is the factor by which another octave's width must
	// fit the projected width better before the tracker switches to it.
	HysteresisMargin float64

	// StabilityDecay is the weight of the previous value in the per-point
	// stability moving average.
	StabilityDecay float64

	// NonRigid enables mass-spring relaxation of the template mesh.
	NonRigid bool

	// MeshIterations, MeshStiffness and MeshAttraction control the
	// relaxation: spring constant along mesh edges and pull toward tracked
	// positions.
	MeshIterations int
	MeshStiffness  float64
	MeshAttraction float64

	Logger zerolog.Logger
}

// DefaultOptions returns the tracker configuration.
func DefaultOptions() Options {
	return Options{
		PatchRadius:         6,
		SearchRadius:        10,
		CoarseStride:        3,
		FineRadius:          2,
		SimilarityThreshold: 0.8,
		MinPoints:           6,
		MinSpread:           0.25,
		HysteresisMargin:    1.25,
		StabilityDecay:      0.7,
		MeshIterations:      10,
		MeshStiffness:       0.3,
		MeshAttraction:      0.5,
		Logger:              zerolog.Nop(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PatchRadius <= 0 {
		o.PatchRadius = def.PatchRadius
	}
	if o.SearchRadius <= 0 {
		o.SearchRadius = def.SearchRadius
	}
	if o.CoarseStride <= 0 {
		o.CoarseStride = def.CoarseStride
	}
	if o.FineRadius <= 0 {
		o.FineRadius = def.FineRadius
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = def.SimilarityThreshold
	}
	if o.MinPoints <= 0 {
		o.MinPoints = def.MinPoints
	}
	if o.MinSpread <= 0 {
		o.MinSpread = def.MinSpread
	}
	if o.HysteresisMargin < 1 {
		o.HysteresisMargin = def.HysteresisMargin
	}
	if o.StabilityDecay <= 0 || o.StabilityDecay >= 1 {
		o.StabilityDecay = def.StabilityDecay
	}
	if o.MeshIterations <= 0 {
		o.MeshIterations = def.MeshIterations
	}
	if o.MeshStiffness <= 0 {
		o.MeshStiffness = def.MeshStiffness
	}
	if o.MeshAttraction <= 0 {
		o.MeshAttraction = def.MeshAttraction
	}
	return o
}
