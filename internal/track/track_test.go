package track

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/ironsheep/target-tracker-mcp/internal/pose"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
)

const templateSize = 96

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// blockValue is a deterministic block texture defined over the whole plane.
func blockValue(x, y int) float32 {
	cx := uint32(floorDiv(x, 8))
	cy := uint32(floorDiv(y, 8))
	h := cx*73856093 ^ cy*19349663
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return float32(20 + h%216)
}

// shiftedFrame renders the texture moved by (dx, dy).
func shiftedFrame(w, h, dx, dy int) *imaging.Frame {
	f := imaging.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Pix[y*w+x] = blockValue(x-dx, y-dy)
		}
	}
	return f
}

func testTarget() *target.Target {
	tmpl := shiftedFrame(templateSize, templateSize, 0, 0)
	var pts []r2.Point
	for y := 12; y <= 84; y += 12 {
		for x := 12; x <= 84; x += 12 {
			pts = append(pts, r2.Point{X: float64(x), Y: float64(y)})
		}
	}
	return &target.Target{
		ID:     "blocks",
		Width:  templateSize,
		Height: templateSize,
		Tracking: []target.TrackingOctave{{
			Width:  templateSize,
			Height: templateSize,
			Scale:  1,
			Pix:    tmpl.Pix,
			Points: pts,
		}},
	}
}

// frontoParallel maps target pixels one-to-one onto screen pixels.
func frontoParallel() (pose.Intrinsics, pose.ModelViewTransform) {
	k := pose.Intrinsics{Fx: 500, Fy: 500}
	m := pose.NewModelViewTransform(
		r3.Vector{X: 1}, r3.Vector{Y: 1}, r3.Vector{Z: 1},
		r3.Vector{Z: 500},
	)
	return k, m
}

func TestSelectOctave(t *testing.T) {
	widths := []int{512, 256, 128}
	steps := []struct {
		projected float64
		want      int
	}{
		{300, 1},
		{390, 1},
		{340, 1},
		{390, 1},
		{340, 1},
		{190, 1},
		{175, 1},
		{190, 1},
		{600, 0},
		{100, 2},
	}

	current := -1
	for i, s := range steps {
		current = SelectOctave(widths, s.projected, current, 1.25)
		if current != s.want {
			t.Fatalf("step %d (projected %.0f): octave %d, want %d", i, s.projected, current, s.want)
		}
	}
}

func TestSelectOctave_NoWidths(t *testing.T) {
	if got := SelectOctave(nil, 100, 3, 1.25); got != 3 {
		t.Errorf("SelectOctave(nil) = %d, want current", got)
	}
	if got := SelectOctave([]int{64}, 0, -1, 1.25); got != -1 {
		t.Errorf("SelectOctave(projected 0) = %d, want current", got)
	}
}

func TestProjectedWidth(t *testing.T) {
	k, m := frontoParallel()
	tr := New(k, DefaultOptions())
	if got := tr.ProjectedWidth(m, testTarget()); math.Abs(got-templateSize) > 1e-9 {
		t.Errorf("ProjectedWidth = %v, want %d", got, templateSize)
	}
}

func TestTrack_Identity(t *testing.T) {
	k, m := frontoParallel()
	tgt := testTarget()
	tr := New(k, DefaultOptions())
	st := NewState()

	res := tr.Track(shiftedFrame(templateSize, templateSize, 0, 0), m, tgt, st)
	if res.Lost {
		t.Fatalf("lost: %s", res.Reason)
	}
	if res.Octave != 0 || st.Octave != 0 {
		t.Errorf("octave = %d (state %d), want 0", res.Octave, st.Octave)
	}
	n := len(tgt.Tracking[0].Points)
	if len(res.Points) < n*9/10 {
		t.Fatalf("tracked %d of %d points", len(res.Points), n)
	}
	for _, p := range res.Points {
		if p.Screen.Sub(p.Plane).Norm() > 1e-6 {
			t.Errorf("point %d: screen %v, plane %v", p.Index, p.Screen, p.Plane)
		}
		if p.Reliability < 0.999 {
			t.Errorf("point %d: reliability %v", p.Index, p.Reliability)
		}
		if p.Stability != 1 {
			t.Errorf("point %d: stability %v, want 1", p.Index, p.Stability)
		}
	}
}

func TestTrack_Shifted(t *testing.T) {
	k, m := frontoParallel()
	tgt := testTarget()
	tr := New(k, DefaultOptions())

	res := tr.Track(shiftedFrame(templateSize, templateSize, 3, -2), m, tgt, NewState())
	if res.Lost {
		t.Fatalf("lost: %s", res.Reason)
	}

	shift := r2.Point{X: 3, Y: -2}
	good := 0
	for _, p := range res.Points {
		if p.Screen.Sub(p.Plane.Add(shift)).Norm() < 0.5 {
			good++
		}
	}
	n := len(tgt.Tracking[0].Points)
	if good < n*8/10 {
		t.Errorf("%d of %d points tracked to the shifted position (%d tracked)", good, n, len(res.Points))
	}
}

func TestTrack_Lost(t *testing.T) {
	k, m := frontoParallel()
	tgt := testTarget()
	tr := New(k, DefaultOptions())

	behind := m
	behind[2][3] = -500
	res := tr.Track(shiftedFrame(templateSize, templateSize, 0, 0), behind, tgt, NewState())
	if !res.Lost || res.Reason != "behind camera" {
		t.Errorf("behind camera: lost=%v reason=%q", res.Lost, res.Reason)
	}

	flat := imaging.NewFrame(templateSize, templateSize)
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	st := NewState()
	res = tr.Track(flat, m, tgt, st)
	if !res.Lost || res.Reason != "too few points" {
		t.Errorf("flat frame: lost=%v reason=%q", res.Lost, res.Reason)
	}
	for i, s := range st.Stability {
		if math.Abs(s-0.7) > 1e-12 {
			t.Fatalf("stability[%d] = %v, want 0.7 after a miss", i, s)
		}
	}

	res = tr.Track(&imaging.Frame{}, m, tgt, NewState())
	if !res.Lost {
		t.Error("empty frame not reported lost")
	}
}

func TestReject_Clustered(t *testing.T) {
	k, m := frontoParallel()
	tr := New(k, DefaultOptions())
	points := make([]Point, 10)
	for i := range points {
		points[i].Screen = r2.Point{X: 40 + float64(i%2), Y: 40}
	}
	if got := tr.reject(points, tr.planeToScreen(m), testTarget()); got != "clustered" {
		t.Errorf("reject = %q, want clustered", got)
	}
}

func TestState(t *testing.T) {
	st := NewState()
	st.useOctave(1, 3)
	if st.Switches != 0 || len(st.Stability) != 3 {
		t.Fatalf("first octave: %+v", st)
	}
	st.update([]bool{true, false, true}, 0.5)
	if st.Stability[0] != 1 || st.Stability[1] != 0.5 {
		t.Errorf("stability = %v", st.Stability)
	}

	st.useOctave(1, 3)
	if st.Stability[1] != 0.5 {
		t.Error("same octave reset stabilities")
	}

	st.useOctave(0, 5)
	if st.Switches != 1 || len(st.Stability) != 5 || st.Stability[0] != 1 {
		t.Errorf("after switch: %+v", st)
	}

	st.Reset()
	if st.Octave != -1 || st.Stability != nil || st.Switches != 0 {
		t.Errorf("after reset: %+v", st)
	}
}

func TestRelax(t *testing.T) {
	k, _ := frontoParallel()
	opts := DefaultOptions()
	opts.NonRigid = true
	tr := New(k, opts)

	oct := &target.TrackingOctave{
		Points:    []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
	shift := r2.Point{X: 5}
	var tracked []Point
	for i := 0; i < 3; i++ {
		tracked = append(tracked, Point{Index: i, Screen: oct.Points[i].Add(shift)})
	}

	mesh := tr.relax(oct, homography.Identity(), tracked)
	if len(mesh) != 4 {
		t.Fatalf("mesh has %d vertices", len(mesh))
	}
	for i := 0; i < 3; i++ {
		if x := mesh[i].X - oct.Points[i].X; x < 3.5 || x > 6 {
			t.Errorf("anchored vertex %d moved %v, want about 5", i, x)
		}
	}
	if mesh[3].X < 0.5 {
		t.Errorf("free vertex not carried by its neighbours: %v", mesh[3])
	}
}

func TestCorrespondences(t *testing.T) {
	r := Result{Points: []Point{
		{Plane: r2.Point{X: 1}, Screen: r2.Point{X: 2}, Reliability: 0.9, Stability: 0.5},
	}}
	plane, screen, w := r.Correspondences()
	if plane[0].X != 1 || screen[0].X != 2 || math.Abs(w[0]-0.45) > 1e-12 {
		t.Errorf("Correspondences = %v %v %v", plane, screen, w)
	}
}

func TestBuffersReset(t *testing.T) {
	var b buffers
	b.reset(10, 10, 3, 2)
	if len(b.warped) != 100 || len(b.valid) != 100 || len(b.sum) != 121 || len(b.patch) != 25 {
		t.Fatalf("sizes: warped=%d valid=%d sum=%d patch=%d", len(b.warped), len(b.valid), len(b.sum), len(b.patch))
	}
	for i := range b.valid {
		b.valid[i] = true
	}
	b.tracked[1] = true
	warped := &b.warped[0]

	// Same pixel count, larger integral images
	b.reset(100, 1, 2, 1)
	if len(b.warped) != 100 || len(b.sum) != 202 || len(b.sumSq) != 202 || len(b.invalid) != 202 {
		t.Fatalf("sizes after reshape: warped=%d sum=%d sumSq=%d invalid=%d", len(b.warped), len(b.sum), len(b.sumSq), len(b.invalid))
	}
	if &b.warped[0] != warped {
		t.Error("warp buffer reallocated despite enough capacity")
	}
	for i, v := range b.valid {
		if v {
			t.Fatalf("valid[%d] survived reset", i)
		}
	}
	if len(b.tracked) != 2 || b.tracked[1] {
		t.Errorf("tracked after reset: %v", b.tracked)
	}
	if len(b.patch) != 9 {
		t.Errorf("patch size: got %d, want 9", len(b.patch))
	}
}
