package target

import (
	"encoding/json"
	"fmt"
	"io"
)

// Encode writes the target as JSON.
func Encode(w io.Writer, t *Target) error {
	if err := json.NewEncoder(w).Encode(t); err != nil {
		return fmt.Errorf("encode target %q: %w", t.ID, err)
	}
	return nil
}

// Decode reads a JSON target and validates it before returning.
func Decode(r io.Reader) (*Target, error) {
	var t Target
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode target: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
