// Package track follows a target from frame to frame by correlating its
// tracking template against the current frame, warped by the previous pose.
package track

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/ironsheep/target-tracker-mcp/internal/pose"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
	"github.com/rs/zerolog"
)

// Point is one tracked template point.
type Point struct {
	// Index is the point's position in the octave's template points.
	Index int `json:"index"`

	Plane  r2.Point `json:"plane"`
	Screen r2.Point `json:"screen"`

	// Reliability is the NCC score.
	Reliability float64 `json:"reliability"`

	// Stability is the point's moving-average tracking rate.
	Stability float64 `json:"stability"`
}

// Weight is the point's contribution to pose refinement.
func (p Point) Weight() float64 {
	return p.Reliability * p.Stability
}

// Result is the outcome of one Track call.
type Result struct {
	// Lost is set when the tracked points fail the count or spread checks;
	// Reason says which.
	Lost   bool   `json:"lost"`
	Reason string `json:"reason,omitempty"`

	Octave         int     `json:"octave"`
	ProjectedWidth float64 `json:"projectedWidth"`

	Points []Point `json:"points"`

	// Mesh is the relaxed screen position of every template point of the
	// octave, when non-rigid tracking is on.
	Mesh []r2.Point `json:"mesh,omitempty"`
}

// Correspondences returns the tracked points as parallel slices for
// pose refinement.
func (r *Result) Correspondences() (plane, screen []r2.Point, weights []float64) {
	plane = make([]r2.Point, len(r.Points))
	screen = make([]r2.Point, len(r.Points))
	weights = make([]float64, len(r.Points))
	for i, p := range r.Points {
		plane[i] = p.Plane
		screen[i] = p.Screen
		weights[i] = p.Weight()
	}
	return plane, screen, weights
}

// Tracker correlates tracking templates against frames for a fixed camera.
//
// A Tracker holds only configuration and is safe for concurrent use; all
// per-target memory lives in the State passed to Track.
type Tracker struct {
	k    pose.Intrinsics
	opts Options
	log  zerolog.Logger
}

// New creates a tracker for camera k.
func New(k pose.Intrinsics, opts Options) *Tracker {
	opts = opts.withDefaults()
	return &Tracker{
		k:    k,
		opts: opts,
		log:  opts.Logger.With().Str("component", "tracker").Logger(),
	}
}

// planeToScreen returns the homography K [r1 r2 t] mapping target-plane
// points to pixels under m.
func (t *Tracker) planeToScreen(m pose.ModelViewTransform) homography.Matrix {
	var h homography.Matrix
	cols := [3]int{0, 1, 3}
	for j, c := range cols {
		x, y, z := m[0][c], m[1][c], m[2][c]
		h[j] = t.k.Fx*x + t.k.Cx*z
		h[3+j] = t.k.Fy*y + t.k.Cy*z
		h[6+j] = z
	}
	return h
}

// ProjectedWidth returns the on-screen distance between the midpoints of the
// target's left and right edges under m, or 0 when either is behind the camera.
func (t *Tracker) ProjectedWidth(m pose.ModelViewTransform, tgt *target.Target) float64 {
	h := t.planeToScreen(m)
	mid := float64(tgt.Height) / 2
	a, okA := projectFront(h, r2.Point{X: 0, Y: mid})
	b, okB := projectFront(h, r2.Point{X: float64(tgt.Width), Y: mid})
	if !okA || !okB {
		return 0
	}
	return a.Sub(b).Norm()
}

// projectFront projects through a plane-to-screen homography built from a
// pose, rejecting points at or behind the camera.
func projectFront(h homography.Matrix, p r2.Point) (r2.Point, bool) {
	if h[6]*p.X+h[7]*p.Y+h[8] <= 1e-9 {
		return r2.Point{}, false
	}
	return h.Project(p)
}

// SelectOctave picks the template width closest to projected in log scale.
// When current is a valid octave, another is chosen only if it is closer by
// more than the factor margin.
func SelectOctave(widths []int, projected float64, current int, margin float64) int {
	if len(widths) == 0 || projected <= 0 {
		return current
	}
	dist := func(i int) float64 {
		return math.Abs(math.Log(float64(widths[i]) / projected))
	}

	best := 0
	for i := 1; i < len(widths); i++ {
		if dist(i) < dist(best) {
			best = i
		}
	}
	if current < 0 || current >= len(widths) || best == current {
		return best
	}
	if dist(current)-dist(best) > math.Log(margin) {
		return best
	}
	return current
}

// Track re-localises the target's template points in frame, starting from
// prev, and updates st.
//
// A lost target is an ordinary result with Lost set; the caller decides
// whether to fall back to detection.
//
// # Algorithm
//
//  1. Choose the template octave for the projected width, with hysteresis
//  2. Inverse-warp the frame into the octave's template grid through the
//     plane-to-screen homography of prev
//  3. For every template point, search the warped image for the best NCC
//     match of the surrounding template patch, coarse then fine
//  4. Map matched locations back to the frame and keep points above the
//     similarity threshold
//  5. Reject results with too few points or too little spread
//  6. Optionally relax the template mesh toward the tracked positions
func (t *Tracker) Track(frame *imaging.Frame, prev pose.ModelViewTransform, tgt *target.Target, st *State) Result {
	if err := frame.Validate(); err != nil || len(tgt.Tracking) == 0 {
		return Result{Lost: true, Reason: "no input", Octave: st.Octave}
	}

	projected := t.ProjectedWidth(prev, tgt)
	if projected <= 0 {
		return Result{Lost: true, Reason: "behind camera", Octave: st.Octave}
	}
	widths := make([]int, len(tgt.Tracking))
	for i := range tgt.Tracking {
		widths[i] = tgt.Tracking[i].Width
	}
	octave := SelectOctave(widths, projected, st.Octave, t.opts.HysteresisMargin)
	oct := &tgt.Tracking[octave]
	st.useOctave(octave, len(oct.Points))

	res := Result{Octave: octave, ProjectedWidth: projected}

	planeH := t.planeToScreen(prev)
	templateH := planeH.Mul(homography.Scale(1/oct.Scale, 1/oct.Scale))

	buf := bufferPool.Get().(*buffers)
	defer bufferPool.Put(buf)
	r := t.opts.PatchRadius
	buf.reset(oct.Width, oct.Height, len(oct.Points), r)
	t.warp(frame, templateH, oct, buf)

	for i, p := range oct.Points {
		px := int(math.Round(p.X))
		py := int(math.Round(p.Y))
		if px-r < 0 || py-r < 0 || px+r >= oct.Width || py+r >= oct.Height {
			continue
		}
		tp, ok := templatePatch(oct.Pix, oct.Width, px, py, r, buf.patch)
		if !ok {
			continue
		}
		bx, by, score, ok := buf.search(tp, oct.Width, oct.Height, px, py, t.opts)
		if !ok || score < t.opts.SimilarityThreshold {
			continue
		}
		screen, ok := templateH.Project(r2.Point{X: float64(bx), Y: float64(by)})
		if !ok {
			continue
		}
		buf.tracked[i] = true
		res.Points = append(res.Points, Point{
			Index:       i,
			Plane:       r2.Point{X: p.X / oct.Scale, Y: p.Y / oct.Scale},
			Screen:      screen,
			Reliability: score,
		})
	}

	st.update(buf.tracked, t.opts.StabilityDecay)
	for i := range res.Points {
		res.Points[i].Stability = st.Stability[res.Points[i].Index]
	}

	if reason := t.reject(res.Points, planeH, tgt); reason != "" {
		res.Lost = true
		res.Reason = reason
	} else if t.opts.NonRigid {
		res.Mesh = t.relax(oct, templateH, res.Points)
	}

	t.log.Debug().
		Str("target", tgt.ID).
		Int("octave", octave).
		Float64("projectedWidth", projected).
		Int("tracked", len(res.Points)).
		Int("templatePoints", len(oct.Points)).
		Bool("lost", res.Lost).
		Msg("track")
	return res
}

// warp samples the frame at the screen location of every template pixel.
// Pixels that fall outside the frame are marked invalid.
func (t *Tracker) warp(frame *imaging.Frame, templateH homography.Matrix, oct *target.TrackingOctave, buf *buffers) {
	w, h := oct.Width, oct.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			p, ok := templateH.Project(r2.Point{X: float64(x), Y: float64(y)})
			if !ok || !frame.Inside(p.X, p.Y) {
				buf.warped[i] = 0
				continue
			}
			buf.warped[i] = frame.Bilinear(p.X, p.Y)
			buf.valid[i] = true
		}
	}
	buf.integrate(w, h)
}

// reject returns why a set of tracked points is unusable, or "".
func (t *Tracker) reject(points []Point, planeH homography.Matrix, tgt *target.Target) string {
	if len(points) < t.opts.MinPoints {
		return "too few points"
	}

	lo := points[0].Screen
	hi := lo
	for _, p := range points[1:] {
		lo.X, lo.Y = math.Min(lo.X, p.Screen.X), math.Min(lo.Y, p.Screen.Y)
		hi.X, hi.Y = math.Max(hi.X, p.Screen.X), math.Max(hi.Y, p.Screen.Y)
	}
	spread := hi.Sub(lo).Norm()

	a, okA := projectFront(planeH, r2.Point{X: 0, Y: 0})
	b, okB := projectFront(planeH, r2.Point{X: float64(tgt.Width), Y: float64(tgt.Height)})
	if !okA || !okB {
		return "behind camera"
	}
	if spread < t.opts.MinSpread*a.Sub(b).Norm() {
		return "clustered"
	}
	return ""
}
