package track

// State is the per-target tracking memory carried from frame to frame.
//
// It is plain data owned by whoever tracks the target and passed into every
// Track call. It is not safe for concurrent use; different targets use
// different States.
type State struct {
	// Octave is the tracking template octave in use, or -1 before the first
	// frame.
	Octave int `json:"octave"`

	// Stability holds, per point of the current octave, a moving average of
	// whether the point was tracked.
	Stability []float64 `json:"stability"`

	// Switches counts octave changes, for diagnostics.
	Switches int `json:"switches"`
}

// NewState returns a State for a target that is not being tracked yet.
func NewState() *State {
	return &State{Octave: -1}
}

// Reset forgets the octave and all stabilities.
func (s *State) Reset() {
	s.Octave = -1
	s.Stability = nil
	s.Switches = 0
}

// useOctave moves the state to octave with n points, resetting stabilities
// when the octave changes.
func (s *State) useOctave(octave, n int) {
	if s.Octave != octave || len(s.Stability) != n {
		if s.Octave >= 0 && s.Octave != octave {
			s.Switches++
		}
		s.Octave = octave
		s.Stability = make([]float64, n)
		for i := range s.Stability {
			s.Stability[i] = 1
		}
	}
}

// update folds this frame's tracked flags into the stabilities.
func (s *State) update(tracked []bool, decay float64) {
	for i, ok := range tracked {
		v := 0.0
		if ok {
			v = 1
		}
		s.Stability[i] = decay*s.Stability[i] + (1-decay)*v
	}
}
