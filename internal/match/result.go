package match

import (
	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
)

// Query is one frame's detection output, as the matcher consumes it.
type Query struct {
	Width  int
	Height int
	Points []feature.Point

	// Gradient of the frame, needed only for edge snapping.
	Gradient *imaging.Gradient
}

// Correspondence pairs a query point with a keyframe point.
type Correspondence struct {
	// QueryIndex is the position of the point in Query.Points.
	QueryIndex int `json:"queryIndex"`

	// PointIndex is the position in the keyframe's point set of the
	// polarity given by Maxima.
	PointIndex int  `json:"pointIndex"`
	Maxima     bool `json:"maxima"`

	Query    r2.Point `json:"query"`
	Keyframe r2.Point `json:"keyframe"`

	// Plane is the keyframe location divided by the keyframe scale.
	Plane r2.Point `json:"plane"`

	Distance int `json:"distance"`

	// Reliability is 1 minus the normalised descriptor distance.
	Reliability float64 `json:"reliability"`

	queryScale float64
	queryAngle float64
	keyScale   float64
	keyAngle   float64
}

// KeyframeDebug records how many correspondences survived each stage for one
// keyframe.
type KeyframeDebug struct {
	Keyframe      int     `json:"keyframe"`
	Scale         float64 `json:"scale"`
	Matches       int     `json:"matches"`
	Hough         int     `json:"hough"`
	Inliers       int     `json:"inliers"`
	SecondMatches int     `json:"secondMatches"`
	SecondHough   int     `json:"secondHough"`
	SecondInliers int     `json:"secondInliers"`
	EdgeAnchors   int     `json:"edgeAnchors"`
	Rejected      string  `json:"rejected,omitempty"`

	// Candidates holds the first-pass ratio-test survivors.
	Candidates []Correspondence `json:"candidates,omitempty"`
}

// KeyframeResult is the outcome of matching against one keyframe.
type KeyframeResult struct {
	Keyframe int

	// H maps keyframe pixels to query pixels. Nil when the keyframe did not
	// match.
	H *homography.Matrix

	Inliers []Correspondence
	Debug   *KeyframeDebug
}

// Result is the outcome of matching a query against one target.
type Result struct {
	// Keyframe is the index of the winning keyframe, or -1.
	Keyframe int `json:"keyframe"`

	// H maps keyframe pixels to query pixels; PlaneH maps target-plane
	// coordinates to query pixels. Both are nil when nothing matched.
	H      *homography.Matrix `json:"h,omitempty"`
	PlaneH *homography.Matrix `json:"planeH,omitempty"`

	Inliers []Correspondence `json:"inliers"`

	// Debug is populated when Options.Debug is set, one entry per keyframe.
	Debug []KeyframeDebug `json:"debug,omitempty"`
}

// Found reports whether any keyframe matched.
func (r *Result) Found() bool { return r.H != nil }

// PlanePoints returns the target-plane and query locations of the inliers as
// parallel slices.
func (r *Result) PlanePoints() (plane, screen []r2.Point) {
	plane = make([]r2.Point, len(r.Inliers))
	screen = make([]r2.Point, len(r.Inliers))
	for i, c := range r.Inliers {
		plane[i] = c.Plane
		screen[i] = c.Query
	}
	return plane, screen
}
