// Package speaker implements VisualSpeaker, the long-lived per-identity
// entity that bridges a Tracker's per-frame Track observations to a held
// ASDBuffer slot and an accumulated ScoreStream (spec.md §3/§4.6).
package speaker

import (
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/zsiec/asdcore/internal/face"
	"github.com/zsiec/asdcore/internal/geom"
	"github.com/zsiec/asdcore/internal/pool"
	"github.com/zsiec/asdcore/internal/score"
)

// Status is a VisualSpeaker's on-screen lifecycle state (spec.md §3).
type Status int

const (
	StatusInactive Status = iota
	StatusPairing
	StatusPaired
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusPairing:
		return "pairing"
	case StatusPaired:
		return "paired"
	default:
		return "unknown"
	}
}

// VisualSpeaker is one identity while on (or recently off) screen.
type VisualSpeaker struct {
	ID uuid.UUID

	TrackID   uuid.UUID
	hasTrack  bool
	Embedding []float64
	Rect      geom.Box
	hasRect   bool
	Status    Status
	Permanent bool

	Name    string
	HasName bool

	buffer *face.ASDBuffer
	pool   *pool.Manager

	Scores *score.ScoreStream

	wasTrackMissed bool
	missedFrames   int

	cropCfg face.CropConfig
	log     *slog.Logger
}

// New creates a speaker bound to a track. It does not request a buffer
// slot; the first RegisterNewFrame does (spec.md §4.8 step 4: "construct a
// new VisualSpeaker and register the current frame").
func New(trackID uuid.UUID, embedding []float64, rect geom.Box, framerate int, bufferPool *pool.Manager, cropCfg face.CropConfig, log *slog.Logger) *VisualSpeaker {
	if log == nil {
		log = slog.Default()
	}
	return &VisualSpeaker{
		ID:        uuid.New(),
		TrackID:   trackID,
		hasTrack:  true,
		Embedding: embedding,
		Rect:      rect,
		hasRect:   true,
		Status:    StatusPairing,
		pool:      bufferPool,
		Scores:    score.NewScoreStream(framerate),
		cropCfg:   cropCfg,
		log:       log.With("component", "visual_speaker"),
	}
}

// HasRect reports whether Rect reflects a currently tracked face (cleared
// on a missed frame).
func (v *VisualSpeaker) HasRect() bool {
	return v.hasRect
}

// HoldsBuffer reports whether this speaker currently owns a pool buffer.
func (v *VisualSpeaker) HoldsBuffer() bool {
	return v.buffer != nil
}

// RegisterNewFrame refreshes this speaker from a matched track observation
// and writes the current crop into its buffer, requesting one from the
// pool first if it doesn't hold one (spec.md §4.6).
func (v *VisualSpeaker) RegisterNewFrame(pixelBuffer []byte, imgW, imgH int, trackID uuid.UUID, embedding []float64, rect geom.Box, name string, drop bool) {
	if v.hasTrack && v.TrackID != trackID {
		v.log.Warn("registerNewFrame track identity mismatch, ignoring", "speaker", v.ID, "have", v.TrackID, "got", trackID)
		return
	}

	v.TrackID = trackID
	v.hasTrack = true
	v.Embedding = embedding
	v.Rect = rect
	v.hasRect = true
	v.Status = StatusPaired
	v.wasTrackMissed = false
	v.missedFrames = 0
	if name != "" {
		v.Name = name
		v.HasName = true
	}

	if v.buffer == nil {
		if buf, ok := v.pool.Request(v.ID); ok {
			v.buffer = buf
		}
	}

	if v.buffer != nil && !drop {
		pixels, usedCrop, err := face.PrepareFrame(pixelBuffer, imgW, imgH, rect, v.cropCfg)
		if err != nil {
			v.log.Warn("frame preprocess failed, recording a miss", "speaker", v.ID, "error", err)
			v.buffer.WriteBlank()
		} else {
			v.buffer.WriteFrame(pixels, usedCrop)
		}
	} else if v.buffer != nil {
		v.buffer.WriteBlank()
	}

	v.drainLogits()
}

// RegisterMissedFrame clears the track association and writes a blank into
// the buffer, recycling it once the buffer has gone fully blank (spec.md
// §4.6).
func (v *VisualSpeaker) RegisterMissedFrame(drop bool) {
	v.hasTrack = false
	v.hasRect = false
	v.Status = StatusInactive
	v.wasTrackMissed = true
	v.missedFrames++

	v.drainLogits()

	if v.buffer == nil {
		return
	}
	if !drop {
		v.buffer.WriteBlank()
	}
	if v.buffer.History().Empty() {
		v.pool.Recycle(v.buffer)
		v.buffer = nil
	}
}

func (v *VisualSpeaker) drainLogits() {
	if v.buffer == nil {
		return
	}
	for _, logits := range v.pool.DrainLogits(v.buffer) {
		if err := v.Scores.WriteScores(logits); err != nil {
			v.log.Warn("score write failed", "speaker", v.ID, "error", err)
		}
	}
}

// MissedFrames returns the consecutive-miss counter used for deletionAge
// comparisons by the engine.
func (v *VisualSpeaker) MissedFrames() int {
	return v.missedFrames
}

// WasTrackMissed reports whether this speaker's track was missed at least
// once since it last held a match — used by the engine to decide whether
// an unclaimed track should re-identify against an inactive speaker rather
// than spawn a new one.
func (v *VisualSpeaker) WasTrackMissed() bool {
	return v.wasTrackMissed
}

// IsDeletable reports whether this (already inactive) speaker has been
// missed for at least deletionAge consecutive frames and isn't marked
// permanent (spec.md §3/§4.8).
func (v *VisualSpeaker) IsDeletable(deletionAge int) bool {
	return !v.Permanent && v.Status == StatusInactive && v.missedFrames >= deletionAge
}

// Absorb merges other's ScoreStream into this speaker's, per spec.md
// §4.6's re-identification merge contract: other must not be permanent,
// and this speaker must not currently hold a buffer (a Paired speaker
// owns a live clip that should not be touched by a merge). The
// "strictly younger" half of the contract is enforced by the caller
// (the engine only ever absorbs a just-spawned speaker into an older,
// inactive one), not re-checked here. Invalid calls log and no-op.
func (v *VisualSpeaker) Absorb(other *VisualSpeaker) {
	if other == nil || other == v {
		return
	}
	if other.Permanent {
		v.log.Warn("absorb rejected: donor is permanent", "into", v.ID, "from", other.ID)
		return
	}
	if v.HoldsBuffer() {
		v.log.Warn("absorb rejected: recipient currently holds a buffer", "into", v.ID, "from", other.ID)
		return
	}
	v.Scores.Absorb(other.Scores)
}

// IsSimilarToEmbedding reports whether emb is within threshold cosine
// distance of this speaker's current embedding.
func (v *VisualSpeaker) IsSimilarToEmbedding(emb []float64, threshold float64) bool {
	if len(v.Embedding) == 0 || len(emb) == 0 {
		return false
	}
	return cosineDistance(v.Embedding, emb) <= threshold
}

// IsSimilarTo reports whether two speakers' embeddings are within
// threshold cosine distance of each other.
func (v *VisualSpeaker) IsSimilarTo(other *VisualSpeaker, threshold float64) bool {
	if other == nil {
		return false
	}
	return v.IsSimilarToEmbedding(other.Embedding, threshold)
}

// AdoptFrom transfers other's live track association, rect, and held
// buffer onto v, leaving other holding neither. Used by the engine to
// re-identify a freshly spawned speaker as the continuation of an inactive
// one once their embeddings match closely enough (spec.md §4.8's
// re-identification flow, surfaced to callers via onMerge).
func (v *VisualSpeaker) AdoptFrom(other *VisualSpeaker) {
	v.TrackID = other.TrackID
	v.hasTrack = other.hasTrack
	v.Embedding = other.Embedding
	v.Rect = other.Rect
	v.hasRect = other.hasRect
	v.Status = other.Status
	v.buffer = other.buffer
	v.wasTrackMissed = false
	v.missedFrames = 0
	if other.HasName {
		v.Name = other.Name
		v.HasName = true
	}

	other.buffer = nil
	other.hasTrack = false
	other.hasRect = false
}

// LatestProbability returns σ(logit) for the most recent scored frame, if
// the ScoreStream has any segments yet.
func (v *VisualSpeaker) LatestProbability() (float64, bool) {
	segs := v.Scores.Segments()
	if len(segs) == 0 {
		return 0, false
	}
	last := segs[len(segs)-1]
	if len(last.Scores) == 0 {
		return 0, false
	}
	return last.Scores[len(last.Scores)-1].Probability(), true
}

func cosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return math.Inf(1)
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return 1 - cos
}
