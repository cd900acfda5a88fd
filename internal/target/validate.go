package target

import (
	"fmt"
	"math"
)

// Validate checks that the target's data is internally consistent.
//
// Size problems are reported as ErrDimensionMismatch and broken tree or mesh
// references as ErrCorruptIndex. Validate does not check that descriptors
// actually describe the image.
func (t *Target) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("target %q is %dx%d: %w", t.ID, t.Width, t.Height, ErrDimensionMismatch)
	}

	for i, k := range t.Keyframes {
		if k == nil {
			return fmt.Errorf("keyframe %d is missing: %w", i, ErrCorruptIndex)
		}
		if err := k.validate(t.Width); err != nil {
			return fmt.Errorf("keyframe %d: %w", i, err)
		}
	}

	for i := range t.Tracking {
		if err := t.Tracking[i].validate(); err != nil {
			return fmt.Errorf("tracking octave %d: %w", i, err)
		}
	}
	return nil
}

func (k *KeyframeIndex) validate(targetWidth int) error {
	if k.Width <= 0 || k.Height <= 0 || k.Scale <= 0 {
		return fmt.Errorf("%dx%d at scale %g: %w", k.Width, k.Height, k.Scale, ErrDimensionMismatch)
	}
	if math.Abs(float64(targetWidth)*k.Scale-float64(k.Width)) > 1 {
		return fmt.Errorf("width %d does not match scale %g of %d: %w", k.Width, k.Scale, targetWidth, ErrDimensionMismatch)
	}
	if !k.Kind.Valid() {
		return fmt.Errorf("descriptor kind %d: %w", int(k.Kind), ErrCorruptIndex)
	}
	if err := k.Maxima.validate(k.Kind.Words()); err != nil {
		return fmt.Errorf("maxima: %w", err)
	}
	if err := k.Minima.validate(k.Kind.Words()); err != nil {
		return fmt.Errorf("minima: %w", err)
	}
	return nil
}

func (s *PointSet) validate(words int) error {
	n := len(s.X)
	if len(s.Y) != n || len(s.Angle) != n || len(s.Scale) != n || len(s.Descriptors) != n {
		return fmt.Errorf("column lengths x=%d y=%d angle=%d scale=%d descriptors=%d: %w",
			n, len(s.Y), len(s.Angle), len(s.Scale), len(s.Descriptors), ErrDimensionMismatch)
	}
	for i, d := range s.Descriptors {
		if len(d) != words {
			return fmt.Errorf("descriptor %d has %d words, want %d: %w", i, len(d), words, ErrDimensionMismatch)
		}
	}
	if s.Tree == nil {
		return fmt.Errorf("no cluster tree: %w", ErrCorruptIndex)
	}
	if err := s.Tree.Validate(n); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return nil
}

func (o *TrackingOctave) validate() error {
	if o.Width <= 0 || o.Height <= 0 || o.Scale <= 0 || len(o.Pix) != o.Width*o.Height {
		return fmt.Errorf("%dx%d at scale %g with %d pixels: %w", o.Width, o.Height, o.Scale, len(o.Pix), ErrDimensionMismatch)
	}
	for i, p := range o.Points {
		if p.X < 0 || p.Y < 0 || p.X > float64(o.Width-1) || p.Y > float64(o.Height-1) {
			return fmt.Errorf("point %d at (%.1f, %.1f) outside template: %w", i, p.X, p.Y, ErrDimensionMismatch)
		}
	}
	for i, tri := range o.Triangles {
		for _, v := range tri {
			if v < 0 || v >= len(o.Points) {
				return fmt.Errorf("triangle %d references point %d of %d: %w", i, v, len(o.Points), ErrCorruptIndex)
			}
		}
	}
	return nil
}
