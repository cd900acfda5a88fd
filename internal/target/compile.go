package target

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/target-tracker-mcp/internal/detector"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/ironsheep/target-tracker-mcp/internal/index"
	"github.com/rs/zerolog"
)

// CompileOptions configures offline target compilation.
type CompileOptions struct {
	// Detector configures feature detection on every keyframe. Its Kind is
	// recorded on each KeyframeIndex.
	Detector detector.Options

	// Index configures the cluster trees.
	Index index.BuildOptions

	// Scales overrides the keyframe scale series when non-empty.
	Scales []float64

	// MinKeyframeSize is the smallest dimension, in pixels, of the smallest
	// keyframe in the default scale series.
	MinKeyframeSize int

	// TrackingWidths are the template widths, largest first.
	TrackingWidths []int

	// TrackingSpacing is the minimum distance between tracking points, in
	// template pixels.
	TrackingSpacing float64

	// MaxTrackingPoints caps the points per tracking octave.
	MaxTrackingPoints int

	// TrackingBlur is the Gaussian radius applied before corner scoring.
	TrackingBlur float64

	// TrackingMargin keeps tracking points away from the template border.
	TrackingMargin int

	Logger zerolog.Logger
}

// DefaultCompileOptions returns the compiler configuration.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		Detector:          detector.DefaultOptions(),
		Index:             index.DefaultBuildOptions(),
		MinKeyframeSize:   100,
		TrackingWidths:    []int{256, 128},
		TrackingSpacing:   8,
		MaxTrackingPoints: 256,
		TrackingBlur:      1.0,
		TrackingMargin:    8,
		Logger:            zerolog.Nop(),
	}
}

// KeyframeScales returns the default keyframe scale series for an image:
// 1, then successive divisions by the cube root of two down to the scale at
// which the smaller dimension reaches minSize. The list is ordered largest
// first and always contains 1.
func KeyframeScales(width, height, minSize int) []float64 {
	smaller := width
	if height < smaller {
		smaller = height
	}
	if smaller <= minSize || minSize <= 0 {
		return []float64{1}
	}

	step := math.Pow(2, 1.0/3.0)
	minScale := float64(minSize) / float64(smaller)
	var ascending []float64
	for c := minScale; c < 0.95; c *= step {
		ascending = append(ascending, c)
	}

	scales := []float64{1}
	for i := len(ascending) - 1; i >= 0; i-- {
		scales = append(scales, ascending[i])
	}
	return scales
}

// CompileImage converts an image to grayscale and compiles it.
func CompileImage(id string, img image.Image, opts CompileOptions) (*Target, error) {
	f, err := imaging.FrameFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", id, err)
	}
	return Compile(id, f, opts)
}

// Compile builds a target from a grayscale frame.
//
// For every keyframe scale the frame is resized, features are detected and
// split by polarity, and one cluster tree is built per polarity. For every
// tracking width the frame is resized, corner points are selected on a
// Gaussian-smoothed copy and a Delaunay mesh is built over them.
//
// Returns imaging.ErrEmptyFrame for an empty frame. An image without texture
// compiles into keyframes with no points; such a target never matches.
func Compile(id string, f *imaging.Frame, opts CompileOptions) (*Target, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("compile %q: %w", id, err)
	}
	if opts.MinKeyframeSize <= 0 {
		opts.MinKeyframeSize = DefaultCompileOptions().MinKeyframeSize
	}
	if opts.TrackingWidths == nil {
		opts.TrackingWidths = DefaultCompileOptions().TrackingWidths
	}
	log := opts.Logger.With().Str("component", "compiler").Str("target", id).Logger()

	scales := opts.Scales
	if len(scales) == 0 {
		scales = KeyframeScales(f.Width, f.Height, opts.MinKeyframeSize)
	}

	t := &Target{
		ID:     id,
		Width:  f.Width,
		Height: f.Height,
	}

	det := detector.New(opts.Detector)
	for _, s := range scales {
		k, err := buildKeyframe(det, f, s, opts.Index)
		if err != nil {
			return nil, fmt.Errorf("compile %q keyframe at scale %.3f: %w", id, s, err)
		}
		log.Debug().
			Float64("scale", k.Scale).
			Int("maxima", k.Maxima.Len()).
			Int("minima", k.Minima.Len()).
			Int("treeDepth", k.Maxima.Tree.Depth()).
			Msg("keyframe")
		t.Keyframes = append(t.Keyframes, k)
	}

	for _, w := range opts.TrackingWidths {
		o, err := buildTrackingOctave(f, w, opts)
		if err != nil {
			return nil, fmt.Errorf("compile %q tracking width %d: %w", id, w, err)
		}
		log.Debug().
			Int("width", o.Width).
			Int("points", len(o.Points)).
			Int("triangles", len(o.Triangles)).
			Msg("tracking octave")
		t.Tracking = append(t.Tracking, o)
	}

	log.Info().
		Int("keyframes", len(t.Keyframes)).
		Int("trackingOctaves", len(t.Tracking)).
		Msg("target compiled")
	return t, nil
}

func resizeTo(f *imaging.Frame, scale float64) (*imaging.Frame, error) {
	if scale == 1 {
		return f, nil
	}
	return imaging.ResizeFrame(f, scale)
}

func buildKeyframe(det *detector.Detector, f *imaging.Frame, scale float64, opts index.BuildOptions) (*KeyframeIndex, error) {
	kf, err := resizeTo(f, scale)
	if err != nil {
		return nil, err
	}
	points, err := det.Detect(kf)
	if err != nil {
		return nil, err
	}

	k := &KeyframeIndex{
		Width:  kf.Width,
		Height: kf.Height,
		Scale:  float64(kf.Width) / float64(f.Width),
		Kind:   det.Kind(),
	}
	for _, p := range points {
		k.Points(p.Maxima).add(p)
	}
	k.Maxima.Tree = index.Build(k.Maxima.Descriptors, opts)
	k.Minima.Tree = index.Build(k.Minima.Descriptors, opts)
	return k, nil
}

func buildTrackingOctave(f *imaging.Frame, width int, opts CompileOptions) (TrackingOctave, error) {
	if width <= 0 {
		return TrackingOctave{}, fmt.Errorf("tracking width %d: %w", width, ErrDimensionMismatch)
	}
	tf, err := resizeTo(f, float64(width)/float64(f.Width))
	if err != nil {
		return TrackingOctave{}, err
	}

	points, err := selectTrackingPoints(tf, opts)
	if err != nil {
		return TrackingOctave{}, err
	}
	return TrackingOctave{
		Width:     tf.Width,
		Height:    tf.Height,
		Scale:     float64(tf.Width) / float64(f.Width),
		Pix:       tf.Pix,
		Points:    points,
		Triangles: triangulate(points),
	}, nil
}
