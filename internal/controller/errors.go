package controller

import "errors"

var (
	// ErrUnknownTarget is returned for a target ID that was never registered.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrDescriptorMismatch is returned when a target was compiled with a
	// descriptor kind other than the live detector's.
	ErrDescriptorMismatch = errors.New("target descriptor kind does not match detector")
)
