package controller

import (
	"github.com/ironsheep/target-tracker-mcp/internal/pose"
	"github.com/ironsheep/target-tracker-mcp/internal/track"
)

// TargetState is everything remembered about one target between frames.
//
// The owner keeps one per target and passes it to Track. It is not safe for
// concurrent use.
type TargetState struct {
	// Pose is the last known pose, or nil when the target is not being
	// tracked.
	Pose *pose.ModelViewTransform `json:"pose,omitempty"`

	Track *track.State `json:"track"`
}

// NewTargetState returns the state of a target that has not been seen.
func NewTargetState() *TargetState {
	return &TargetState{Track: track.NewState()}
}

// Tracking reports whether the state holds a pose to track from.
func (s *TargetState) Tracking() bool {
	return s.Pose != nil
}

// Acquire starts tracking from a pose found by matching. Octave and point
// memory from an earlier tracking run is discarded.
func (s *TargetState) Acquire(p pose.ModelViewTransform) {
	s.Pose = &p
	s.Track.Reset()
}

// Lose drops the pose; the next frame needs matching again.
func (s *TargetState) Lose() {
	s.Pose = nil
}
