package pose

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
	"gonum.org/v1/gonum/mat"
)

// RefineOptions configures iterative pose refinement.
type RefineOptions struct {
	// MaxIterations bounds the Gauss-Newton steps.
	MaxIterations int

	// MinStep stops iterating once the update norm falls below it.
	MinStep float64

	// MinTukeyScale is the smallest robust cutoff, in pixels.
	MinTukeyScale float64
}

// DefaultRefineOptions returns the refinement configuration.
func DefaultRefineOptions() RefineOptions {
	return RefineOptions{
		MaxIterations: 20,
		MinStep:       1e-10,
		MinTukeyScale: 2,
	}
}

// Estimator solves camera poses for a fixed camera.
//
// An Estimator is immutable and safe for concurrent use.
type Estimator struct {
	K    Intrinsics
	opts RefineOptions
}

// NewEstimator creates an estimator for camera k.
func NewEstimator(k Intrinsics, opts RefineOptions) *Estimator {
	def := DefaultRefineOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.MinStep <= 0 {
		opts.MinStep = def.MinStep
	}
	if opts.MinTukeyScale <= 0 {
		opts.MinTukeyScale = def.MinTukeyScale
	}
	return &Estimator{K: k, opts: opts}
}

// Estimate solves the pose that projects the target-plane points onto the
// screen points.
//
// Returns ErrTooFewCorrespondences for fewer than four pairs. A degenerate
// configuration (collinear points, a singular plane-to-image homography, or a
// solution behind the camera) is an ordinary outcome: the result is nil with a
// nil error.
//
// # Algorithm
//
//  1. Fit the plane-to-image homography H
//  2. Take M = K⁻¹H; its first two columns are the scaled rotation columns
//     and the third the scaled translation
//  3. Fix the scale from the column norms and its sign so the target is in
//     front of the camera; complete r3 = r1 × r2
//  4. Project the rotation onto SO(3) via SVD
//  5. Polish with Refine
func (e *Estimator) Estimate(plane, screen []r2.Point) (*ModelViewTransform, error) {
	if len(plane) < 4 || len(screen) != len(plane) {
		return nil, fmt.Errorf("estimate with %d plane and %d screen points: %w", len(plane), len(screen), ErrTooFewCorrespondences)
	}

	h, ok := homography.Fit(plane, screen, nil)
	if !ok {
		return nil, nil
	}

	k := e.K
	kinv := func(x, y, z float64) r3.Vector {
		return r3.Vector{
			X: (x - k.Cx*z) / k.Fx,
			Y: (y - k.Cy*z) / k.Fy,
			Z: z,
		}
	}
	h1 := kinv(h[0], h[3], h[6])
	h2 := kinv(h[1], h[4], h[7])
	h3 := kinv(h[2], h[5], h[8])

	n1, n2 := h1.Norm(), h2.Norm()
	if n1 < 1e-12 || n2 < 1e-12 {
		return nil, nil
	}
	lambda := 2 / (n1 + n2)
	if h3.Z < 0 {
		lambda = -lambda
	}

	r1 := h1.Mul(lambda)
	r2v := h2.Mul(lambda)
	rot, ok := orthonormalize(r1, r2v, r1.Cross(r2v))
	if !ok {
		return nil, nil
	}
	t := h3.Mul(lambda)

	initial := NewModelViewTransform(rot[0], rot[1], rot[2], t)
	refined := e.Refine(initial, plane, screen, nil)
	if refined.Translation().Z <= 0 || !finite(refined) {
		return nil, nil
	}
	return &refined, nil
}

// orthonormalize returns the rotation closest to the matrix with the given
// columns, as columns.
func orthonormalize(c1, c2, c3 r3.Vector) ([3]r3.Vector, bool) {
	a := mat.NewDense(3, 3, []float64{
		c1.X, c2.X, c3.X,
		c1.Y, c2.Y, c3.Y,
		c1.Z, c2.Z, c3.Z,
	})
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return [3]r3.Vector{}, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// Flip the axis of the smallest singular value
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}

	var cols [3]r3.Vector
	for j := 0; j < 3; j++ {
		cols[j] = r3.Vector{X: r.At(0, j), Y: r.At(1, j), Z: r.At(2, j)}
	}
	return cols, true
}

// InFront reports whether m is finite and places the target origin in front
// of the camera.
func (m ModelViewTransform) InFront() bool {
	return finite(m) && m.Translation().Z > 0
}

func finite(m ModelViewTransform) bool {
	for i := range m {
		for j := range m[i] {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// Project maps a target-plane point to pixels under pose m.
func (e *Estimator) Project(m ModelViewTransform, p r2.Point) (r2.Point, bool) {
	return e.K.Project(m.Apply(p))
}

// ReprojectionError returns the mean pixel distance between the projected
// plane points and the screen points. Points behind the camera count as
// infinitely far.
func (e *Estimator) ReprojectionError(m ModelViewTransform, plane, screen []r2.Point) float64 {
	if len(plane) == 0 {
		return 0
	}
	sum := 0.0
	for i := range plane {
		p, ok := e.Project(m, plane[i])
		if !ok {
			return math.Inf(1)
		}
		sum += p.Sub(screen[i]).Norm()
	}
	return sum / float64(len(plane))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s[len(s)/2]
}
