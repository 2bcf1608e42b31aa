package engine

import (
	"github.com/zsiec/asdcore/internal/face"
	"github.com/zsiec/asdcore/internal/pool"
	"github.com/zsiec/asdcore/internal/track"
)

// Config consolidates every sub-package's configuration the engine needs
// to construct its Tracker and pool.Manager (spec.md §6).
type Config struct {
	Framerate int

	Tracker track.Config
	Pool    pool.Config
	Crop    face.CropConfig

	// DeletionAge is the number of consecutive missed frames an inactive,
	// non-permanent speaker tolerates before being dropped (spec.md §3's
	// "deletionAge"; unified with the draft "deletionThreshold" name per
	// spec.md §9's open question).
	DeletionAge int

	// ReidentificationThreshold gates whether a newly spawned speaker's
	// embedding is close enough to an inactive speaker's to be treated as
	// the same identity rather than a brand-new one.
	ReidentificationThreshold float64
}

// DefaultConfig mirrors spec.md §8's literal end-to-end scenario
// parameters (framerate=30, framesPerUpdate=5, videoLength=25, minFrames=12).
func DefaultConfig() Config {
	cfg := Config{
		Framerate:                 30,
		Tracker:                   track.DefaultConfig(),
		Pool:                      pool.DefaultConfig(),
		DeletionAge:               90,
		ReidentificationThreshold: 0.5,
	}
	cfg.Crop = face.CropConfig{
		CropScale:   0.3,
		FrameWidth:  cfg.Pool.FrameWidth,
		FrameHeight: cfg.Pool.FrameHeight,
		Norm:        face.Normalization{Bias: cfg.Pool.NormBias, Scale: cfg.Pool.NormScale},
	}
	return cfg
}
