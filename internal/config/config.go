// Package config assembles the top-level Config consumed by cmd/asdcore:
// engine/tracker/pool defaults, overridable by an optional YAML file and
// then by environment variables, mirroring the teacher's envOr layering.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/asdcore/internal/engine"
)

// Config is the fully-resolved runtime configuration for the ASD pipeline.
type Config struct {
	Engine engine.Config `yaml:"-"`

	// File-overridable subset of engine.Config; mirrored into Engine by
	// Load (via resolve). YAML only covers the tunables an operator plausibly
	// wants to change per deployment, not every nested struct field.
	Framerate                 int     `yaml:"framerate"`
	DeletionAge               int     `yaml:"deletion_age"`
	ReidentificationThreshold float64 `yaml:"reidentification_threshold"`

	NumVideoBuffers int `yaml:"num_video_buffers"`
	NumASDModels    int `yaml:"num_asd_models"`
	Cooldown        int `yaml:"cooldown"`

	ConfirmationThreshold int `yaml:"confirmation_threshold"`
	DeactivationThreshold int `yaml:"deactivation_threshold"`
}

// Default returns Config seeded from engine.DefaultConfig.
func Default() Config {
	e := engine.DefaultConfig()
	return Config{
		Engine:                    e,
		Framerate:                 e.Framerate,
		DeletionAge:               e.DeletionAge,
		ReidentificationThreshold: e.ReidentificationThreshold,
		NumVideoBuffers:           e.Pool.NumVideoBuffers,
		NumASDModels:              e.Pool.NumASDModels,
		Cooldown:                  e.Pool.Cooldown,
		ConfirmationThreshold:     e.Tracker.ConfirmationThreshold,
		DeactivationThreshold:     e.Tracker.DeactivationThreshold,
	}
}

// Load reads defaults, overlays an optional YAML file at path (skipped if
// path is empty or the file doesn't exist), then overlays environment
// variables, and returns the resolved engine.Config.
func Load(path string) (engine.Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return engine.Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return engine.Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg.resolve(), nil
}

func applyEnvOverrides(cfg *Config) {
	envInt(&cfg.Framerate, "ASD_FRAMERATE")
	envInt(&cfg.DeletionAge, "ASD_DELETION_AGE")
	envFloat(&cfg.ReidentificationThreshold, "ASD_REID_THRESHOLD")
	envInt(&cfg.NumVideoBuffers, "ASD_NUM_VIDEO_BUFFERS")
	envInt(&cfg.NumASDModels, "ASD_NUM_ASD_MODELS")
	envInt(&cfg.Cooldown, "ASD_COOLDOWN")
	envInt(&cfg.ConfirmationThreshold, "ASD_CONFIRMATION_THRESHOLD")
	envInt(&cfg.DeactivationThreshold, "ASD_DEACTIVATION_THRESHOLD")
}

func envInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func envFloat(dst *float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

// resolve folds the flat overridable fields back into the nested
// engine.Config the rest of the module consumes.
func (c Config) resolve() engine.Config {
	e := c.Engine
	e.Framerate = c.Framerate
	e.DeletionAge = c.DeletionAge
	e.ReidentificationThreshold = c.ReidentificationThreshold
	e.Pool.NumVideoBuffers = c.NumVideoBuffers
	e.Pool.NumASDModels = c.NumASDModels
	e.Pool.Cooldown = c.Cooldown
	e.Tracker.ConfirmationThreshold = c.ConfirmationThreshold
	e.Tracker.DeactivationThreshold = c.DeactivationThreshold
	return e
}
