package detector

import (
	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/rs/zerolog"
)

// Options configures a Detector.
type Options struct {
	// Kind selects the descriptor layout.
	Kind feature.Kind

	// DoGThreshold is the minimum absolute DoG response (0-255 intensity units).
	DoGThreshold float64

	// EdgeRatio bounds the ratio of principal curvatures; responses whose
	// Hessian trace²/det exceeds (r+1)²/r are rejected as edges.
	EdgeRatio float64

	// Buckets is the number of pruning cells along each image dimension.
	Buckets int

	// MaxPerBucket is the number of strongest extrema kept per cell.
	MaxPerBucket int

	// MinPyramidSize stops the pyramid once either dimension drops below it.
	MinPyramidSize int

	// MaxOctaves caps the pyramid depth.
	MaxOctaves int

	// Pyramid builds the DoG pyramid. Nil means CPUPyramid.
	Pyramid PyramidBuilder

	// Logger receives per-call debug counts. The zero value discards output.
	Logger zerolog.Logger
}

// DefaultOptions returns the detector configuration used for both target
// compilation and live frames.
func DefaultOptions() Options {
	return Options{
		Kind:           feature.KindLSH,
		DoGThreshold:   3.0,
		EdgeRatio:      4.0,
		Buckets:        10,
		MaxPerBucket:   5,
		MinPyramidSize: 8,
		MaxOctaves:     5,
		Pyramid:        CPUPyramid{},
		Logger:         zerolog.Nop(),
	}
}
