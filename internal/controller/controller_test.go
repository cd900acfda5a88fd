package controller

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ironsheep/target-tracker-mcp/internal/config"
	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/ironsheep/target-tracker-mcp/internal/pose"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
	"github.com/rs/zerolog"
)

// checkerFrame is a board of 16-pixel cells with seeded random gray levels.
func checkerFrame(size int, seed int64) *imaging.Frame {
	const cell = 16
	rng := rand.New(rand.NewSource(seed))
	n := (size + cell - 1) / cell
	levels := make([]float32, n*n)
	for i := range levels {
		levels[i] = float32(20 + rng.Intn(216))
	}
	f := imaging.NewFrame(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			f.Pix[y*size+x] = levels[(y/cell)*n+x/cell]
		}
	}
	return f
}

func compileBoard(t *testing.T, c *Controller, id string, f *imaging.Frame) *target.Target {
	t.Helper()
	opts := c.Config().CompileOptions(zerolog.Nop())
	opts.Scales = []float64{1}
	opts.TrackingWidths = []int{f.Width}
	tgt, err := target.Compile(id, f, opts)
	if err != nil {
		t.Fatalf("Compile(%s): %v", id, err)
	}
	return tgt
}

func newController(t *testing.T, boards map[string]int64) (*Controller, map[string]*imaging.Frame) {
	t.Helper()
	c := New(config.Default(), zerolog.Nop())
	frames := make(map[string]*imaging.Frame)
	for _, id := range []string{"board", "other"} {
		seed, ok := boards[id]
		if !ok {
			continue
		}
		f := checkerFrame(256, seed)
		frames[id] = f
		if err := c.Register(compileBoard(t, c, id, f)); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}
	return c, frames
}

func TestMatch_CheckerboardScenario(t *testing.T) {
	c, frames := newController(t, map[string]int64{"board": 42})

	res, err := c.Match(frames["board"])
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Points == 0 {
		t.Fatal("no feature points detected")
	}
	w := res.Winner()
	if w == nil {
		t.Fatal("no target matched")
	}
	if w.Target != "board" || w.Keyframe != 0 {
		t.Errorf("winner = %s keyframe %d", w.Target, w.Keyframe)
	}
	if w.Inliers < 8 {
		t.Errorf("inliers = %d, want >= 8", w.Inliers)
	}
	if w.Match.H == nil {
		t.Error("nil homography for a match")
	}
	if w.Pose.Translation().Z <= 0 {
		t.Errorf("target behind camera: t = %v", w.Pose.Translation())
	}
	if w.Reprojection > 1 {
		t.Errorf("reprojection error %.3f px", w.Reprojection)
	}
}

func TestMatch_SeveralTargets(t *testing.T) {
	c, frames := newController(t, map[string]int64{"board": 42, "other": 7})

	res, err := c.Match(frames["other"])
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Detections) != 2 {
		t.Fatalf("%d detections, want 2", len(res.Detections))
	}
	if res.Detections[0].Target != "board" || res.Detections[1].Target != "other" {
		t.Errorf("detections out of registration order: %s, %s", res.Detections[0].Target, res.Detections[1].Target)
	}
	if w := res.Winner(); w == nil || w.Target != "other" {
		t.Errorf("winner = %+v, want other", w)
	}
}

func TestMatch_EmptyFrame(t *testing.T) {
	c, _ := newController(t, nil)
	if _, err := c.Match(&imaging.Frame{}); !errors.Is(err, imaging.ErrEmptyFrame) {
		t.Errorf("Match(empty) error = %v, want ErrEmptyFrame", err)
	}
}

func TestMatch_NoTargets(t *testing.T) {
	c, _ := newController(t, nil)
	res, err := c.Match(checkerFrame(128, 1))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Best != -1 || len(res.Detections) != 0 {
		t.Errorf("result = %+v, want no detections", res)
	}
}

func TestTrack_AfterAcquire(t *testing.T) {
	c, frames := newController(t, map[string]int64{"board": 42})
	f := frames["board"]

	st := NewTargetState()
	res, err := c.Track(f, "board", st)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !res.Lost() || res.Track.Reason != "not acquired" {
		t.Errorf("tracking without a pose: lost=%v reason=%q", res.Lost(), res.Track.Reason)
	}

	mr, err := c.Match(f)
	if err != nil || mr.Winner() == nil {
		t.Fatalf("Match: %v, winner %v", err, mr.Winner())
	}
	start := *mr.Winner().Pose
	st.Acquire(start)

	for i := 0; i < 3; i++ {
		res, err = c.Track(f, "board", st)
		if err != nil {
			t.Fatalf("Track frame %d: %v", i, err)
		}
		if res.Lost() {
			t.Fatalf("frame %d lost: %s", i, res.Track.Reason)
		}
	}
	if len(res.Track.Points) < 6 {
		t.Errorf("tracked %d points", len(res.Track.Points))
	}
	if d := res.Pose.MaxDifference(start); d > 0.5 {
		t.Errorf("pose drifted by %v on a still frame", d)
	}
	if st.Track.Octave != 0 || st.Pose == nil {
		t.Errorf("state not updated: %+v", st.Track)
	}
}

func TestTrack_LosesOnBlankFrame(t *testing.T) {
	c, frames := newController(t, map[string]int64{"board": 42})
	mr, _ := c.Match(frames["board"])
	if mr.Winner() == nil {
		t.Fatal("board not matched")
	}
	st := NewTargetState()
	st.Acquire(*mr.Winner().Pose)

	blank := imaging.NewFrame(256, 256)
	res, err := c.Track(blank, "board", st)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !res.Lost() || st.Tracking() {
		t.Errorf("blank frame: lost=%v, state tracking=%v", res.Lost(), st.Tracking())
	}
}

func TestStep(t *testing.T) {
	c, frames := newController(t, map[string]int64{"board": 42})
	f := frames["board"]
	st := NewTargetState()

	p, err := c.Step(f, "board", st)
	if err != nil || p == nil {
		t.Fatalf("first Step: pose %v, err %v", p, err)
	}
	if !st.Tracking() {
		t.Fatal("state not tracking after acquisition")
	}

	p, err = c.Step(f, "board", st)
	if err != nil || p == nil {
		t.Fatalf("second Step: pose %v, err %v", p, err)
	}
	if st.Track.Octave != 0 {
		t.Errorf("second step did not track: octave %d", st.Track.Octave)
	}
}

func TestRegistry(t *testing.T) {
	c, frames := newController(t, map[string]int64{"board": 42, "other": 7})

	infos := c.Targets()
	if len(infos) != 2 || infos[0].ID != "board" || infos[1].ID != "other" {
		t.Fatalf("Targets = %+v", infos)
	}

	if err := c.Register(compileBoard(t, c, "board", frames["board"])); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if len(c.Targets()) != 2 {
		t.Error("re-registering added a duplicate")
	}

	if err := c.Remove("board"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := c.Target("board"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Target after remove: %v", err)
	}
	if err := c.Remove("board"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("second Remove: %v", err)
	}
	if _, err := c.Track(frames["other"], "missing", NewTargetState()); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Track(missing): %v", err)
	}
}

func TestRegister_Rejects(t *testing.T) {
	c := New(config.Default(), zerolog.Nop())
	f := checkerFrame(256, 3)

	opts := c.Config().CompileOptions(zerolog.Nop())
	opts.Scales = []float64{1}
	opts.Detector.Kind = feature.KindFREAK
	freak, err := target.Compile("freak", f, opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := c.Register(freak); !errors.Is(err, ErrDescriptorMismatch) {
		t.Errorf("Register(freak) = %v, want ErrDescriptorMismatch", err)
	}

	bad := compileBoard(t, c, "bad", f)
	bad.Width = 0
	if err := c.Register(bad); !errors.Is(err, target.ErrDimensionMismatch) {
		t.Errorf("Register(bad) = %v, want ErrDimensionMismatch", err)
	}
}

func TestIntrinsics(t *testing.T) {
	c := New(config.Default(), zerolog.Nop())
	k := c.Intrinsics(640, 480)
	want := 240 / math.Tan(22.5*math.Pi/180)
	if math.Abs(k.Fy-want) > 1e-9 || k.Cx != 320 {
		t.Errorf("Intrinsics = %+v", k)
	}

	fixed := pose.Intrinsics{Fx: 500, Fy: 500, Cx: 1, Cy: 2}
	c.SetIntrinsics(fixed)
	if got := c.Intrinsics(640, 480); got != fixed {
		t.Errorf("fixed intrinsics = %+v", got)
	}
}
