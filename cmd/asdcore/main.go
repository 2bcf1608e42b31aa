package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/asdcore/internal/config"
	"github.com/zsiec/asdcore/internal/engine"
	"github.com/zsiec/asdcore/internal/gallery"
	"github.com/zsiec/asdcore/internal/geom"
	"github.com/zsiec/asdcore/internal/pool"
	"github.com/zsiec/asdcore/internal/track"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.Load(os.Getenv("ASD_CONFIG_FILE"))
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var gal *gallery.Gallery
	if path := os.Getenv("ASD_GALLERY_FILE"); path != "" {
		gal, err = gallery.Load(path)
		if err != nil {
			log.Error("failed to load gallery", "error", err)
			os.Exit(1)
		}
	}

	models := make([]pool.ASDModel, cfg.Pool.NumASDModels)
	for i := range models {
		models[i] = stubASDModel{}
	}

	var lookup track.NameLookup
	if gal != nil {
		lookup = gal.Lookup
	}

	eng, err := engine.New(cfg, stubDetector{}, stubEmbedder{}, lookup, models, log)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	eng.OnResults(func(speakers []engine.SendableSpeaker) {
		for _, s := range speakers {
			log.Debug("speaker", "id", s.ID, "status", s.Status, "speaking", s.IsSpeaking, "probability", s.Probability)
		}
	})
	eng.OnMerge(func(m engine.MergeRequest) {
		log.Info("re-identified speaker", "from", m.From, "into", m.Into)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	log.Info("asdcore starting", "version", version, "framerate", cfg.Framerate)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runFrameLoop(ctx, eng, cfg.Framerate, log)
	})

	if err := g.Wait(); err != nil {
		log.Error("asdcore exited with error", "error", err)
		os.Exit(1)
	}
}

// runFrameLoop drives the engine at framerate frames per second from a
// stub pixel source until ctx is cancelled; swap in a real capture source
// to run against a live camera.
func runFrameLoop(ctx context.Context, eng *engine.Engine, framerate int, log *slog.Logger) error {
	if framerate <= 0 {
		framerate = 30
	}
	period := time.Second / time.Duration(framerate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	const width, height = 1280, 720
	pixels := make([]byte, width*height*4)

	var frameIdx int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			frame := engine.Frame{
				PixelBuffer: pixels,
				Width:       width,
				Height:      height,
				Timestamp:   float64(frameIdx) / float64(framerate),
				Orientation: geom.Orientation0,
			}
			if err := eng.Update(ctx, frame); err != nil {
				return fmt.Errorf("engine update: %w", err)
			}
			frameIdx++
		}
	}
}

// stubDetector is a placeholder FaceDetector that never finds a face; a
// real deployment wires in a CNN-backed implementation (spec.md §6).
type stubDetector struct{}

func (stubDetector) Detect(_ []byte, _, _ int) ([]track.Prediction, error) {
	return nil, nil
}

// stubEmbedder is a placeholder FaceEmbedder that leaves every detection
// unembedded; a real deployment wires in a CNN-backed implementation.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ []byte, _, _ int, _ []*track.Detection) error {
	return nil
}

// stubASDModel is a placeholder ASDModel returning silence for every
// request; a real deployment wires in the active-speaker-detection CNN.
type stubASDModel struct{}

func (stubASDModel) Predict(_ context.Context, _ pool.ASDRequest) (pool.ASDOutput, error) {
	return pool.ASDOutput{}, nil
}
