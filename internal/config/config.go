// Package config collects the pipeline's tunables and their environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ironsheep/target-tracker-mcp/internal/detector"
	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/index"
	"github.com/ironsheep/target-tracker-mcp/internal/match"
	"github.com/ironsheep/target-tracker-mcp/internal/pose"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
	"github.com/ironsheep/target-tracker-mcp/internal/track"
	"github.com/rs/zerolog"
)

// Environment variables read by FromEnv.
const (
	EnvFOV        = "TARGET_MCP_FOV"
	EnvDescriptor = "TARGET_MCP_DESCRIPTOR"
	EnvDebug      = "TARGET_MCP_DEBUG"
	EnvEdgeSnap   = "TARGET_MCP_EDGE_SNAP"
	EnvNonRigid   = "TARGET_MCP_NONRIGID"
)

// ErrInvalid is returned for settings outside their valid range.
var ErrInvalid = errors.New("invalid configuration")

// Camera describes the live camera.
type Camera struct {
	// FOV is the vertical field of view in degrees.
	FOV float64

	// Near and Far bound the OpenGL projection handed to renderers.
	Near float64
	Far  float64
}

// Config is the full pipeline configuration.
type Config struct {
	Detector detector.Options
	Index    index.BuildOptions
	Match    match.Options
	Track    track.Options
	Refine   pose.RefineOptions
	Camera   Camera

	// Debug turns on per-stage debug payloads.
	Debug bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Detector: detector.DefaultOptions(),
		Index:    index.DefaultBuildOptions(),
		Match:    match.DefaultOptions(),
		Track:    track.DefaultOptions(),
		Refine:   pose.DefaultRefineOptions(),
		Camera: Camera{
			FOV:  45,
			Near: 10,
			Far:  100000,
		},
	}
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (Config, error) {
	c := Default()
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvFOV); ok {
		fov, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFOV, err)
		}
		c.Camera.FOV = fov
	}
	if v, ok := lookup(EnvDescriptor); ok {
		kind, err := feature.ParseKind(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDescriptor, err)
		}
		c.Detector.Kind = kind
	}
	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{EnvDebug, &c.Debug},
		{EnvEdgeSnap, &c.Match.EdgeSnap},
		{EnvNonRigid, &c.Track.NonRigid},
	} {
		v, ok := lookup(b.name)
		if !ok {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = on
	}
	c.Match.Debug = c.Debug
	return nil
}

// Validate checks the camera settings.
func (c Config) Validate() error {
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		return fmt.Errorf("field of view %v degrees: %w", c.Camera.FOV, ErrInvalid)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("clip planes %v..%v: %w", c.Camera.Near, c.Camera.Far, ErrInvalid)
	}
	return nil
}

// WithLogger hands log to every component.
func (c Config) WithLogger(log zerolog.Logger) Config {
	c.Detector.Logger = log
	c.Match.Logger = log
	c.Track.Logger = log
	return c
}

// CompileOptions returns target compiler options sharing this configuration's
// detector and index settings, so compiled targets match live frames.
func (c Config) CompileOptions(log zerolog.Logger) target.CompileOptions {
	opts := target.DefaultCompileOptions()
	opts.Detector = c.Detector
	opts.Detector.Logger = log
	opts.Index = c.Index
	opts.Logger = log
	return opts
}
