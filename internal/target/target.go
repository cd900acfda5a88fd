// Package target holds the precompiled, read-only data a tracked image is
// registered with: matching keyframes with their descriptor indexes and
// multi-resolution tracking templates.
//
// All coordinates on the target plane are in source-image pixels. A keyframe
// point at (x, y) lies at (x/Scale, y/Scale) on the plane; the same holds for
// tracking template points.
//
// A Target is never modified after Compile or Decode returns and may be shared
// across goroutines without locking.
package target

import (
	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/ironsheep/target-tracker-mcp/internal/index"
)

// PointSet is a columnar set of keyframe points of one DoG polarity.
type PointSet struct {
	X           []float64            `json:"x"`
	Y           []float64            `json:"y"`
	Angle       []float64            `json:"angle"`
	Scale       []float64            `json:"scale"`
	Descriptors []feature.Descriptor `json:"descriptors"`
	Tree        *index.Tree          `json:"tree"`
}

// Len returns the number of points.
func (s *PointSet) Len() int { return len(s.X) }

func (s *PointSet) add(p feature.Point) {
	s.X = append(s.X, p.X)
	s.Y = append(s.Y, p.Y)
	s.Angle = append(s.Angle, p.Angle)
	s.Scale = append(s.Scale, p.Scale)
	s.Descriptors = append(s.Descriptors, p.Descriptor)
}

// KeyframeIndex is one matching scale level of a target.
type KeyframeIndex struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Scale  float64      `json:"scale"`
	Kind   feature.Kind `json:"kind"`
	Maxima PointSet     `json:"maxima"`
	Minima PointSet     `json:"minima"`
}

// Points returns the point set of the requested polarity.
func (k *KeyframeIndex) Points(maxima bool) *PointSet {
	if maxima {
		return &k.Maxima
	}
	return &k.Minima
}

// Len returns the number of points of both polarities.
func (k *KeyframeIndex) Len() int {
	return k.Maxima.Len() + k.Minima.Len()
}

// TrackingOctave is one resolution of a target's tracking template.
type TrackingOctave struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`

	// Pix holds the template intensities, row-major, 0-255.
	Pix []float32 `json:"pix"`

	// Points are trackable locations in template pixels.
	Points []r2.Point `json:"points"`

	// Triangles index into Points and form a mesh for non-rigid relaxation.
	Triangles [][3]int `json:"triangles,omitempty"`
}

// Frame exposes the template pixels as a frame without copying.
func (o *TrackingOctave) Frame() *imaging.Frame {
	return &imaging.Frame{Width: o.Width, Height: o.Height, Pix: o.Pix}
}

// Edges returns the unique mesh edges, each ordered low index first, sorted.
func (o *TrackingOctave) Edges() [][2]int {
	return meshEdges(o.Triangles)
}

// Target is a registered, precompiled image target.
type Target struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Keyframes are ordered from the largest scale down.
	Keyframes []*KeyframeIndex `json:"keyframes"`

	// Tracking is ordered from the largest width down.
	Tracking []TrackingOctave `json:"tracking"`
}

// Info is a compact description of a target for listings.
type Info struct {
	ID             string    `json:"id"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Keyframes      int       `json:"keyframes"`
	KeyframeScales []float64 `json:"keyframeScales"`
	FeaturePoints  int       `json:"featurePoints"`
	TrackingWidths []int     `json:"trackingWidths"`
	TrackingPoints []int     `json:"trackingPoints"`
}

// Info summarises the target.
func (t *Target) Info() Info {
	info := Info{
		ID:        t.ID,
		Width:     t.Width,
		Height:    t.Height,
		Keyframes: len(t.Keyframes),
	}
	for _, k := range t.Keyframes {
		info.KeyframeScales = append(info.KeyframeScales, k.Scale)
		info.FeaturePoints += k.Len()
	}
	for i := range t.Tracking {
		info.TrackingWidths = append(info.TrackingWidths, t.Tracking[i].Width)
		info.TrackingPoints = append(info.TrackingPoints, len(t.Tracking[i].Points))
	}
	return info
}
