// Package controller runs the perception pipeline over registered targets:
// detect, match and estimate to acquire a target, then track and refine from
// frame to frame.
package controller

import (
	"fmt"
	"image"
	"sync"

	"github.com/ironsheep/target-tracker-mcp/internal/config"
	"github.com/ironsheep/target-tracker-mcp/internal/detector"
	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/ironsheep/target-tracker-mcp/internal/match"
	"github.com/ironsheep/target-tracker-mcp/internal/pose"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
	"github.com/ironsheep/target-tracker-mcp/internal/track"
	"github.com/rs/zerolog"
)

// Controller owns the registered targets and the stateless pipeline stages.
//
// Targets are immutable once registered and are read concurrently. Per-target
// tracking memory is not held here; see TargetState.
type Controller struct {
	cfg     config.Config
	log     zerolog.Logger
	det     *detector.Detector
	matcher *match.Matcher

	mu         sync.RWMutex
	targets    map[string]*target.Target
	order      []string
	intrinsics *pose.Intrinsics
}

// New creates a controller with no targets.
func New(cfg config.Config, log zerolog.Logger) *Controller {
	cfg = cfg.WithLogger(log)
	cfg.Match.Debug = cfg.Debug
	return &Controller{
		cfg:     cfg,
		log:     log.With().Str("component", "controller").Logger(),
		det:     detector.New(cfg.Detector),
		matcher: match.New(cfg.Match),
		targets: make(map[string]*target.Target),
	}
}

// Config returns the controller's configuration.
func (c *Controller) Config() config.Config {
	return c.cfg
}

// SetIntrinsics fixes the camera matrix. Without it the camera is derived
// from each frame's size and the configured field of view.
func (c *Controller) SetIntrinsics(k pose.Intrinsics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intrinsics = &k
}

// Intrinsics returns the camera matrix used for frames of the given size.
func (c *Controller) Intrinsics(width, height int) pose.Intrinsics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.intrinsics != nil {
		return *c.intrinsics
	}
	return pose.NewIntrinsics(width, height, c.cfg.Camera.FOV)
}

// Compile builds a target from an image with the controller's detector and
// index settings and registers it.
func (c *Controller) Compile(id string, img image.Image) (*target.Target, error) {
	tgt, err := target.CompileImage(id, img, c.cfg.CompileOptions(c.log))
	if err != nil {
		return nil, err
	}
	if err := c.Register(tgt); err != nil {
		return nil, err
	}
	return tgt, nil
}

// Register validates a target and makes it available for matching. A target
// with the same ID is replaced.
func (c *Controller) Register(t *target.Target) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("register %q: %w", t.ID, err)
	}
	for i, kf := range t.Keyframes {
		if kf.Kind != c.det.Kind() {
			return fmt.Errorf("register %q keyframe %d: %v vs %v: %w", t.ID, i, kf.Kind, c.det.Kind(), ErrDescriptorMismatch)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.targets[t.ID]; !ok {
		c.order = append(c.order, t.ID)
	}
	c.targets[t.ID] = t
	c.log.Info().Str("target", t.ID).Int("keyframes", len(t.Keyframes)).Msg("registered target")
	return nil
}

// Remove unregisters a target.
func (c *Controller) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.targets[id]; !ok {
		return fmt.Errorf("%q: %w", id, ErrUnknownTarget)
	}
	delete(c.targets, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Target returns a registered target.
func (c *Controller) Target(id string) (*target.Target, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.targets[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknownTarget)
	}
	return t, nil
}

// Targets lists the registered targets in registration order.
func (c *Controller) Targets() []target.Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	infos := make([]target.Info, 0, len(c.order))
	for _, id := range c.order {
		infos = append(infos, c.targets[id].Info())
	}
	return infos
}

func (c *Controller) snapshot() []*target.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*target.Target, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.targets[id])
	}
	return out
}

// Detect runs the feature detector alone.
func (c *Controller) Detect(f *imaging.Frame) ([]feature.Point, error) {
	return c.det.Detect(f)
}

// Detection is the outcome of matching one target.
type Detection struct {
	Target string `json:"target"`

	// Keyframe is the matching keyframe, or -1.
	Keyframe int `json:"keyframe"`
	Inliers  int `json:"inliers"`

	// Pose is nil when the target did not match or no valid pose exists.
	Pose *pose.ModelViewTransform `json:"pose,omitempty"`

	// Reprojection is the mean inlier reprojection error under Pose, in pixels.
	Reprojection float64 `json:"reprojection,omitempty"`

	Match match.Result `json:"match"`
}

// Found reports whether a pose was recovered.
func (d *Detection) Found() bool { return d.Pose != nil }

// MatchResult is the outcome of matching a frame against every target.
type MatchResult struct {
	// Points is the number of detected feature points.
	Points int `json:"points"`

	// Best indexes Detections for the target with the most inliers among
	// those with a pose, or is -1.
	Best int `json:"best"`

	Detections []Detection `json:"detections"`
}

// Winner returns the best detection, or nil.
func (r *MatchResult) Winner() *Detection {
	if r.Best < 0 {
		return nil
	}
	return &r.Detections[r.Best]
}

// Match detects features in f once and matches them against every
// registered target concurrently. Targets without a match are reported with
// a nil pose; only an invalid frame is an error.
func (c *Controller) Match(f *imaging.Frame) (MatchResult, error) {
	points, err := c.det.Detect(f)
	if err != nil {
		return MatchResult{Best: -1}, fmt.Errorf("match: %w", err)
	}
	q := match.Query{Width: f.Width, Height: f.Height, Points: points}
	if c.cfg.Match.EdgeSnap {
		q.Gradient = imaging.ComputeGradient(f, true)
	}
	est := pose.NewEstimator(c.Intrinsics(f.Width, f.Height), c.cfg.Refine)

	targets := c.snapshot()
	res := MatchResult{
		Points:     len(points),
		Best:       -1,
		Detections: make([]Detection, len(targets)),
	}

	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt *target.Target) {
			defer wg.Done()
			res.Detections[i] = c.detect(q, tgt, est)
		}(i, tgt)
	}
	wg.Wait()

	for i := range res.Detections {
		d := &res.Detections[i]
		if d.Found() && (res.Best < 0 || d.Inliers > res.Detections[res.Best].Inliers) {
			res.Best = i
		}
	}

	c.log.Debug().
		Int("points", len(points)).
		Int("targets", len(targets)).
		Int("best", res.Best).
		Msg("match")
	return res, nil
}

func (c *Controller) detect(q match.Query, tgt *target.Target, est *pose.Estimator) Detection {
	mr := c.matcher.Match(q, tgt)
	d := Detection{
		Target:   tgt.ID,
		Keyframe: mr.Keyframe,
		Inliers:  len(mr.Inliers),
		Match:    mr,
	}
	if !mr.Found() {
		return d
	}

	plane, screen := mr.PlanePoints()
	p, err := est.Estimate(plane, screen)
	if err != nil || p == nil {
		c.log.Debug().Str("target", tgt.ID).Err(err).Msg("no pose for match")
		return d
	}
	d.Pose = p
	d.Reprojection = est.ReprojectionError(*p, plane, screen)
	return d
}

// TrackResult is the outcome of one tracking step.
type TrackResult struct {
	Target string `json:"target"`

	// Pose is the refined pose, nil when tracking was lost.
	Pose *pose.ModelViewTransform `json:"pose,omitempty"`

	Reprojection float64 `json:"reprojection,omitempty"`

	Track track.Result `json:"track"`
}

// Lost reports whether the target needs to be re-acquired by matching.
func (r *TrackResult) Lost() bool { return r.Pose == nil }

// Track follows a target from its previous pose in st into frame f and
// updates st. A state without a pose yields a lost result; the caller is
// expected to call Match and Acquire first.
func (c *Controller) Track(f *imaging.Frame, id string, st *TargetState) (TrackResult, error) {
	tgt, err := c.Target(id)
	if err != nil {
		return TrackResult{Target: id}, err
	}
	if err := f.Validate(); err != nil {
		return TrackResult{Target: id}, fmt.Errorf("track %q: %w", id, err)
	}
	if st.Track == nil {
		st.Track = track.NewState()
	}
	if st.Pose == nil {
		return TrackResult{
			Target: id,
			Track:  track.Result{Lost: true, Reason: "not acquired", Octave: st.Track.Octave},
		}, nil
	}

	k := c.Intrinsics(f.Width, f.Height)
	tr := track.New(k, c.cfg.Track).Track(f, *st.Pose, tgt, st.Track)
	res := TrackResult{Target: id, Track: tr}
	if tr.Lost {
		st.Lose()
		return res, nil
	}

	est := pose.NewEstimator(k, c.cfg.Refine)
	plane, screen, weights := tr.Correspondences()
	refined := est.Refine(*st.Pose, plane, screen, weights)
	if !refined.InFront() {
		res.Track.Lost = true
		res.Track.Reason = "invalid pose"
		st.Lose()
		return res, nil
	}

	st.Pose = &refined
	res.Pose = &refined
	res.Reprojection = est.ReprojectionError(refined, plane, screen)
	c.log.Debug().
		Str("target", id).
		Int("points", len(tr.Points)).
		Float64("reprojection", res.Reprojection).
		Msg("track")
	return res, nil
}

// Step runs one frame for a target: tracking when st holds a pose, matching
// otherwise. When matching finds the target, st acquires the pose.
func (c *Controller) Step(f *imaging.Frame, id string, st *TargetState) (*pose.ModelViewTransform, error) {
	if st.Tracking() {
		res, err := c.Track(f, id, st)
		if err != nil || !res.Lost() {
			return res.Pose, err
		}
	}

	mr, err := c.Match(f)
	if err != nil {
		return nil, err
	}
	for _, d := range mr.Detections {
		if d.Target == id && d.Found() {
			st.Acquire(*d.Pose)
			return d.Pose, nil
		}
	}
	return nil, nil
}
