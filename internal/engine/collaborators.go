// Package engine implements ASDEngine, the per-frame facade that drives the
// Tracker, reconciles its TrackStates against long-lived VisualSpeakers,
// and advances the buffer pool (spec.md §4.8).
package engine

import (
	"github.com/google/uuid"
	"github.com/zsiec/asdcore/internal/geom"
)

// Frame is one unit of input: raw pixels, presentation timestamp, and
// camera geometry (spec.md §6).
type Frame struct {
	PixelBuffer []byte
	Width       int
	Height      int
	Timestamp   float64
	Orientation geom.Orientation
	Mirrored    bool
	Drop        bool
}

// SendableSpeaker is the immutable, value-typed snapshot handed to the
// results callback (spec.md §6).
type SendableSpeaker struct {
	ID          uuid.UUID
	Name        string
	HasName     bool
	Rect        geom.Box
	HasRect     bool
	Status      string
	Misses      int
	IsSpeaking  bool
	Probability float64
}

// MergeRequest notifies a re-identification: a freshly spawned speaker
// (From) turned out to be the same identity as an existing one (Into) and
// was absorbed into it (spec.md §6).
type MergeRequest struct {
	From uuid.UUID
	Into uuid.UUID
}

// ResultsCallback receives the list of currently active speakers once per
// frame, after the pool has been advanced.
type ResultsCallback func([]SendableSpeaker)

// MergeCallback is invoked whenever a re-identification folds one
// speaker's history into another's.
type MergeCallback func(MergeRequest)
