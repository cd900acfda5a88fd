package detector

import (
	"fmt"
	"math"

	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/rs/zerolog"
)

// Detector turns grayscale frames into oriented, described interest points.
//
// A Detector holds only its configuration and is safe for concurrent use.
type Detector struct {
	opts Options
	log  zerolog.Logger
}

// New creates a detector. Zero-valued numeric options fall back to defaults.
func New(opts Options) *Detector {
	def := DefaultOptions()
	if opts.DoGThreshold <= 0 {
		opts.DoGThreshold = def.DoGThreshold
	}
	if opts.EdgeRatio <= 0 {
		opts.EdgeRatio = def.EdgeRatio
	}
	if opts.Buckets <= 0 {
		opts.Buckets = def.Buckets
	}
	if opts.MaxPerBucket <= 0 {
		opts.MaxPerBucket = def.MaxPerBucket
	}
	if opts.MinPyramidSize <= 0 {
		opts.MinPyramidSize = def.MinPyramidSize
	}
	if opts.MaxOctaves <= 0 {
		opts.MaxOctaves = def.MaxOctaves
	}
	if opts.Pyramid == nil {
		opts.Pyramid = CPUPyramid{}
	}
	return &Detector{
		opts: opts,
		log:  opts.Logger.With().Str("component", "detector").Logger(),
	}
}

// Kind returns the descriptor kind this detector produces.
func (d *Detector) Kind() feature.Kind { return d.opts.Kind }

// Detect finds interest points in a frame.
//
// Returns imaging.ErrEmptyFrame for a zero-sized frame. A frame smaller than the
// minimum pyramid size has no octaves and yields an empty, non-nil slice.
//
// # Algorithm
//
//  1. Pyramid: per octave, two binomial blur levels and their difference
//  2. Extrema: strict 26-neighbour DoG extrema above the response threshold,
//     with Hessian edge rejection
//  3. Pruning: strongest extrema per normalised spatial bucket
//  4. Orientation: peak of a 36-bin Gaussian-weighted gradient histogram
//  5. Description: rotated constellation samples compared pairwise
func (d *Detector) Detect(f *imaging.Frame) ([]feature.Point, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	n := NumOctaves(f.Width, f.Height, d.opts.MinPyramidSize, d.opts.MaxOctaves)
	if n == 0 {
		return []feature.Point{}, nil
	}
	octaves := d.opts.Pyramid.Build(f, n)

	var candidates []extremum
	for k := range octaves {
		candidates = findExtrema(octaves, k, d.opts, candidates)
	}
	kept := prune(octaves, candidates, d.opts.Buckets, d.opts.MaxPerBucket)

	points := make([]feature.Point, 0, len(kept))
	samples := make([]float32, len(freakPoints))
	for _, e := range kept {
		o := octaves[e.octave]
		angle := dominantOrientation(o.Blur2, e.x, e.y)
		sampleConstellation(o.Blur2, float64(e.x), float64(e.y), angle, samples)

		scale := math.Pow(2, float64(e.octave))
		points = append(points, feature.Point{
			X:          float64(e.x)*scale + scale/2 - 0.5,
			Y:          float64(e.y)*scale + scale/2 - 0.5,
			Scale:      scale,
			Angle:      angle,
			Maxima:     e.response > 0,
			Response:   float64(e.response),
			Octave:     e.octave,
			Descriptor: computeDescriptor(d.opts.Kind, samples),
		})
	}

	d.log.Debug().
		Int("width", f.Width).
		Int("height", f.Height).
		Int("octaves", n).
		Int("extrema", len(candidates)).
		Int("points", len(points)).
		Msg("detect")

	return points, nil
}
