package pose

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

var identity = ModelViewTransform{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 1, 0},
}

func truthPose() ModelViewTransform {
	return identity.withUpdate(r3.Vector{X: 0.2, Y: -0.3, Z: 0.1}, r3.Vector{X: -50, Y: -40, Z: 600})
}

func planeGrid() []r2.Point {
	var pts []r2.Point
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			pts = append(pts, r2.Point{X: float64(x) * 25, Y: float64(y) * 25})
		}
	}
	return pts
}

func projectAll(t *testing.T, e *Estimator, m ModelViewTransform, plane []r2.Point) []r2.Point {
	t.Helper()
	out := make([]r2.Point, len(plane))
	for i, p := range plane {
		q, ok := e.Project(m, p)
		if !ok {
			t.Fatalf("point %v is behind the camera", p)
		}
		out[i] = q
	}
	return out
}

func newTestEstimator() *Estimator {
	return NewEstimator(NewIntrinsics(640, 480, 45), DefaultRefineOptions())
}

func TestNewIntrinsics(t *testing.T) {
	k := NewIntrinsics(640, 480, 90)
	if math.Abs(k.Fx-240) > 1e-9 || math.Abs(k.Fy-240) > 1e-9 {
		t.Errorf("focal: got %g, %g, want 240", k.Fx, k.Fy)
	}
	if k.Cx != 320 || k.Cy != 240 {
		t.Errorf("principal point: got (%g, %g)", k.Cx, k.Cy)
	}
	p, ok := k.Project(r3.Vector{X: 0, Y: 0, Z: 10})
	if !ok || p != (r2.Point{X: 320, Y: 240}) {
		t.Errorf("optical axis projects to %v", p)
	}
	if _, ok := k.Project(r3.Vector{X: 1, Y: 1, Z: -1}); ok {
		t.Error("point behind the camera projected")
	}
}

func TestEstimate_RecoversPose(t *testing.T) {
	e := newTestEstimator()
	truth := truthPose()
	plane := planeGrid()
	screen := projectAll(t, e, truth, plane)

	got, err := e.Estimate(plane, screen)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got == nil {
		t.Fatal("Estimate returned no pose")
	}
	if errPx := e.ReprojectionError(*got, plane, screen); errPx > 0.01 {
		t.Errorf("reprojection error %.4f px", errPx)
	}
	if d := got.MaxDifference(truth); d > 1e-3*600 {
		t.Errorf("pose differs from truth by %g", d)
	}
	if got.Translation().Z <= 0 {
		t.Errorf("target behind camera: t=%v", got.Translation())
	}
}

func TestEstimate_MinimalSet(t *testing.T) {
	e := newTestEstimator()
	truth := truthPose()
	plane := []r2.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 80}, {X: 0, Y: 80}}
	screen := projectAll(t, e, truth, plane)

	got, err := e.Estimate(plane, screen)
	if err != nil || got == nil {
		t.Fatalf("Estimate: pose=%v err=%v", got, err)
	}
	if errPx := e.ReprojectionError(*got, plane, screen); errPx > 0.01 {
		t.Errorf("reprojection error %.4f px", errPx)
	}
}

func TestEstimate_TooFew(t *testing.T) {
	e := newTestEstimator()
	plane := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	_, err := e.Estimate(plane, plane)
	if !errors.Is(err, ErrTooFewCorrespondences) {
		t.Errorf("got %v, want ErrTooFewCorrespondences", err)
	}
}

func TestEstimate_Degenerate(t *testing.T) {
	e := newTestEstimator()
	plane := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}, {X: 40, Y: 40}}
	screen := []r2.Point{{X: 300, Y: 200}, {X: 310, Y: 210}, {X: 320, Y: 220}, {X: 330, Y: 230}, {X: 340, Y: 240}}
	got, err := e.Estimate(plane, screen)
	if err != nil {
		t.Fatalf("degenerate input is not an error: %v", err)
	}
	if got != nil {
		t.Errorf("got pose %v, want nil", *got)
	}
}

func perturbed() ModelViewTransform {
	return truthPose().withUpdate(r3.Vector{X: 0.02, Y: -0.01, Z: 0.03}, r3.Vector{X: 5, Y: -3, Z: 20})
}

func TestRefine_Converges(t *testing.T) {
	e := newTestEstimator()
	plane := planeGrid()
	screen := projectAll(t, e, truthPose(), plane)

	start := perturbed()
	got := e.Refine(start, plane, screen, nil)
	if before, after := e.ReprojectionError(start, plane, screen), e.ReprojectionError(got, plane, screen); after > 1e-3 || after >= before {
		t.Errorf("reprojection error %.4f -> %.6f", before, after)
	}
}

func TestRefine_Idempotent(t *testing.T) {
	e := newTestEstimator()
	plane := planeGrid()
	screen := projectAll(t, e, truthPose(), plane)
	weights := make([]float64, len(plane))
	for i := range weights {
		weights[i] = 0.5 + float64(i%3)*0.25
	}

	first := e.Refine(perturbed(), plane, screen, weights)
	second := e.Refine(first, plane, screen, weights)
	if d := second.MaxDifference(first); d > 1e-6 {
		t.Errorf("second refine moved the pose by %g", d)
	}
}

func TestRefine_Weights(t *testing.T) {
	e := newTestEstimator()
	plane := planeGrid()
	screen := projectAll(t, e, truthPose(), plane)
	screen[3] = screen[3].Add(r2.Point{X: 60, Y: -45})

	weights := make([]float64, len(plane))
	for i := range weights {
		weights[i] = 1
	}
	weights[3] = 0

	got := e.Refine(perturbed(), plane, screen, weights)
	clean := append(append([]r2.Point{}, plane[:3]...), plane[4:]...)
	cleanScreen := append(append([]r2.Point{}, screen[:3]...), screen[4:]...)
	if errPx := e.ReprojectionError(got, clean, cleanScreen); errPx > 1e-3 {
		t.Errorf("zero-weight outlier disturbed the fit: %.4f px", errPx)
	}
}

func TestRefine_RobustToOutlier(t *testing.T) {
	e := newTestEstimator()
	plane := planeGrid()
	screen := projectAll(t, e, truthPose(), plane)
	screen[12] = screen[12].Add(r2.Point{X: 40, Y: 30})

	got := e.Refine(perturbed(), plane, screen, nil)
	clean := append(append([]r2.Point{}, plane[:12]...), plane[13:]...)
	cleanScreen := append(append([]r2.Point{}, screen[:12]...), screen[13:]...)
	if errPx := e.ReprojectionError(got, clean, cleanScreen); errPx > 0.05 {
		t.Errorf("outlier pulled the fit: %.4f px", errPx)
	}
}

func TestRefine_PointBehindCamera(t *testing.T) {
	e := newTestEstimator()
	plane := planeGrid()
	screen := projectAll(t, e, truthPose(), plane)

	// Far along the direction that drives camera depth negative
	m := truthPose()
	dir := r2.Point{X: -m[2][0], Y: -m[2][1]}
	behind := dir.Mul(1e5 / dir.Norm())
	start := perturbed()
	for _, pose := range []ModelViewTransform{m, start} {
		if z := pose.Apply(behind).Z; z > 0 {
			t.Fatalf("extra point is in front of the camera (z=%.1f)", z)
		}
	}

	all := append(append([]r2.Point{}, plane...), behind)
	allScreen := append(append([]r2.Point{}, screen...), r2.Point{X: 320, Y: 240})
	got := e.Refine(start, all, allScreen, nil)
	if before, after := e.ReprojectionError(start, plane, screen), e.ReprojectionError(got, plane, screen); after > 1e-3 || after >= before {
		t.Errorf("reprojection error %.4f -> %.6f", before, after)
	}
}

func TestRefine_NoInput(t *testing.T) {
	e := newTestEstimator()
	start := perturbed()
	if got := e.Refine(start, nil, nil, nil); got != start {
		t.Error("refine without correspondences changed the pose")
	}
}

func TestProjectionMatchesIntrinsics(t *testing.T) {
	k := NewIntrinsics(640, 480, 45)
	e := NewEstimator(k, RefineOptions{})
	m := truthPose()
	proj := k.Projection(640, 480, 1, 10000)
	mv := m.GL()

	mul := func(a [16]float64, v [4]float64) [4]float64 {
		var r [4]float64
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				r[i] += a[i*4+j] * v[j]
			}
		}
		return r
	}

	for _, p := range planeGrid() {
		want, _ := e.Project(m, p)
		clip := mul(proj, mul(mv, [4]float64{p.X, p.Y, 0, 1}))
		ndcX := clip[0] / clip[3]
		ndcY := clip[1] / clip[3]
		got := r2.Point{X: (ndcX + 1) * 320, Y: 480 - (ndcY+1)*240}
		if got.Sub(want).Norm() > 1e-6 {
			t.Fatalf("GL projection of %v: got %v, want %v", p, got, want)
		}
	}
}
