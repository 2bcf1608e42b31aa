package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zsiec/asdcore/internal/geom"
	"github.com/zsiec/asdcore/internal/pool"
	"github.com/zsiec/asdcore/internal/speaker"
	"github.com/zsiec/asdcore/internal/telemetry"
	"github.com/zsiec/asdcore/internal/track"
)

// Engine is the ASDEngine facade of spec.md §4.8: it drives the Tracker,
// reconciles tracks against long-lived VisualSpeakers, and advances the
// buffer pool once per frame.
type Engine struct {
	cfg Config
	log *slog.Logger

	tracker *track.Tracker
	pool    *pool.Manager

	active   map[uuid.UUID]*speaker.VisualSpeaker
	inactive map[uuid.UUID]*speaker.VisualSpeaker

	onResults ResultsCallback
	onMerge   MergeCallback

	telemetry *telemetry.Recorder
}

// New constructs an Engine. gallery may be nil (no name assignment).
func New(cfg Config, detector track.FaceDetector, embedder track.FaceEmbedder, gallery track.NameLookup, models []pool.ASDModel, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	mgr, err := pool.NewManager(log, cfg.Pool, models)
	if err != nil {
		return nil, err
	}
	rec := telemetry.NewRecorder(time.Unix(0, 0))
	mgr.SetTelemetry(rec)
	return &Engine{
		cfg:       cfg,
		log:       log.With("component", "asd_engine"),
		tracker:   track.New(cfg.Tracker, detector, embedder, gallery, log),
		pool:      mgr,
		active:    make(map[uuid.UUID]*speaker.VisualSpeaker),
		inactive:  make(map[uuid.UUID]*speaker.VisualSpeaker),
		telemetry: rec,
	}, nil
}

// OnResults registers the per-frame results callback.
func (e *Engine) OnResults(cb ResultsCallback) {
	e.onResults = cb
}

// OnMerge registers the re-identification notification callback.
func (e *Engine) OnMerge(cb MergeCallback) {
	e.onMerge = cb
}

// Telemetry exposes the engine's accumulated pipeline statistics.
func (e *Engine) Telemetry() *telemetry.Recorder {
	return e.telemetry
}

// Update runs one frame through the full pipeline (spec.md §4.8).
func (e *Engine) Update(ctx context.Context, frame Frame) error {
	xf := geom.NewCameraCoordinateTransformer(frame.Width, frame.Height, frame.Orientation, frame.Mirrored)
	tracks, err := e.tracker.Update(frame.PixelBuffer, frame.Width, frame.Height, xf)
	if err != nil {
		return err
	}

	claimed := make(map[uuid.UUID]bool, len(tracks))
	demoted := make(map[uuid.UUID]bool)

	for id, sp := range e.active {
		if ts, ok := tracks[sp.TrackID]; ok {
			sp.RegisterNewFrame(frame.PixelBuffer, frame.Width, frame.Height, sp.TrackID, ts.Embedding, ts.BoxImage, ts.Name, frame.Drop)
			claimed[sp.TrackID] = true
		} else {
			sp.RegisterMissedFrame(frame.Drop)
		}
		if sp.Status == speaker.StatusInactive {
			delete(e.active, id)
			e.inactive[id] = sp
			demoted[id] = true
		}
	}

	for id, sp := range e.inactive {
		if demoted[id] {
			continue
		}
		sp.RegisterMissedFrame(frame.Drop)
		if sp.IsDeletable(e.cfg.DeletionAge) {
			delete(e.inactive, id)
		}
	}

	for trackID, ts := range tracks {
		if claimed[trackID] {
			continue
		}

		spawned := speaker.New(trackID, ts.Embedding, ts.BoxImage, e.cfg.Framerate, e.pool, e.cfg.Crop, e.log)
		spawned.RegisterNewFrame(frame.PixelBuffer, frame.Width, frame.Height, trackID, ts.Embedding, ts.BoxImage, ts.Name, frame.Drop)

		if match := e.findReidentifiable(ts.Embedding); match != nil {
			match.Absorb(spawned)
			match.AdoptFrom(spawned)
			e.pool.CancelReservation(spawned.ID)
			delete(e.inactive, match.ID)
			e.active[match.ID] = match
			e.telemetry.RecordReidentification()
			if e.onMerge != nil {
				e.onMerge(MergeRequest{From: spawned.ID, Into: match.ID})
			}
			continue
		}

		e.active[spawned.ID] = spawned
		e.telemetry.RecordTrackSpawned()
	}

	if err := e.pool.AdvanceFrame(ctx, frame.Timestamp, frame.Drop); err != nil {
		return err
	}

	clockTime := time.Unix(0, int64(frame.Timestamp*float64(time.Second)))
	e.telemetry.RecordFrame(clockTime, frame.Drop)
	e.telemetry.SetGauges(len(e.active), len(e.inactive))

	if e.onResults != nil {
		e.onResults(e.snapshot(frame.Mirrored))
	}
	return nil
}

// findReidentifiable looks for an inactive, non-permanent, previously
// missed speaker whose embedding is within the reidentification threshold
// of emb (spec.md §4.6/§4.8's re-identification flow).
func (e *Engine) findReidentifiable(emb []float64) *speaker.VisualSpeaker {
	for _, sp := range e.inactive {
		if sp.Permanent || !sp.WasTrackMissed() {
			continue
		}
		if sp.IsSimilarToEmbedding(emb, e.cfg.ReidentificationThreshold) {
			return sp
		}
	}
	return nil
}

func (e *Engine) snapshot(mirrored bool) []SendableSpeaker {
	out := make([]SendableSpeaker, 0, len(e.active))
	for _, sp := range e.active {
		rect := sp.Rect
		if mirrored && sp.HasRect() {
			rect.X = 1 - rect.X - rect.W
		}
		prob, hasProb := sp.LatestProbability()
		out = append(out, SendableSpeaker{
			ID:          sp.ID,
			Name:        sp.Name,
			HasName:     sp.HasName,
			Rect:        rect,
			HasRect:     sp.HasRect(),
			Status:      sp.Status.String(),
			Misses:      sp.MissedFrames(),
			IsSpeaking:  hasProb && prob > 0.5,
			Probability: prob,
		})
	}
	return out
}
