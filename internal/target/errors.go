package target

import "errors"

var (
	// ErrDimensionMismatch is returned when registered target data has
	// inconsistent sizes: parallel arrays of different lengths, descriptors of
	// the wrong width, pixel buffers that do not match their dimensions.
	ErrDimensionMismatch = errors.New("target dimension mismatch")

	// ErrCorruptIndex is returned when a keyframe's cluster tree or a template
	// mesh references points that do not exist.
	ErrCorruptIndex = errors.New("corrupt target index")
)
