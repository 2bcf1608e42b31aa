// Package track implements multi-face tracking: associating per-frame
// detections to persistent tracks using motion (Kalman filter), appearance
// (face embedding), and the RLAP global assignment solver (spec.md §4.1).
package track

import (
	"math"

	"github.com/google/uuid"
	"github.com/zsiec/asdcore/internal/geom"
	"github.com/zsiec/asdcore/internal/kalman"
)

// Attitude is a face's estimated pose in radians. Either field may be NaN
// when the estimate is unavailable.
type Attitude struct {
	Pitch, Yaw float64
}

// Valid reports whether both pitch and yaw are finite.
func (a Attitude) Valid() bool {
	return !math.IsNaN(a.Pitch) && !math.IsNaN(a.Yaw)
}

// EmbeddingDim is the fixed dimensionality of face embeddings, per spec.md
// §3's "optional 512-dim L2-normalized embedding".
const EmbeddingDim = 512

// Detection is an immutable per-frame observation from the external face
// detector (and, once embedded, the face embedder). Detections are dropped
// after the tracker consumes them each frame.
type Detection struct {
	ID uuid.UUID

	BoxImage geom.Box // normalized [0,1] image coordinates
	BoxKF    geom.Box // centered, rotation-normalized Kalman-filter pixel coordinates

	Confidence float64
	Landmarks  [10]float64 // 5 facial landmarks, (x,y) pairs
	Attitude   Attitude

	Embedding  []float64 // len == EmbeddingDim when present, else nil
	IsFullFace bool
}

// HasEmbedding reports whether the face embedder successfully produced an
// embedding for this detection.
func (d Detection) HasEmbedding() bool {
	return len(d.Embedding) == EmbeddingDim
}

// Status is a Track's lifecycle state.
type Status int

// Track lifecycle states, per spec.md §3.
const (
	StatusPending Status = iota
	StatusActive
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Costs captures the last assignment's cost terms for diagnostics.
type Costs struct {
	IoU            float64
	Appearance     float64
	OCM            float64
	Confidence     float64
	Total          float64
}

// Track is a mutable, long-lived identity produced by associating
// detections across frames. See spec.md §3 for field invariants.
type Track struct {
	ID     uuid.UUID
	Name   string // set on Active transition via nearest-gallery match
	Status Status

	Embedding          []float64 // unit-norm, len == EmbeddingDim
	ExpectedConfidence float64

	stateTransitionCounter int // pending: consecutive full-face hits; active: consecutive misses

	kf                    *kalman.Filter
	appearanceKF          *kalman.UnivariateKF
	averageAppearanceCost float64

	LastCosts Costs
	LastBox   geom.Box // most recent KF-space box, updated on hit or predict
	Missed    int      // consecutive missed frames since last hit (any status)
}

// NewTrack creates a Pending track seeded from an unmatched detection that
// already carries an embedding (spec.md §4.1 step 5: "must already have an
// embedding").
func NewTrack(id uuid.UUID, det Detection, maxAppearanceCost, processVar, measurementVar float64) *Track {
	emb := make([]float64, len(det.Embedding))
	copy(emb, det.Embedding)

	t := &Track{
		ID:                 id,
		Status:             StatusPending,
		Embedding:          normalize(emb),
		ExpectedConfidence: det.Confidence,
		kf: kalman.NewFilter(
			det.BoxKF.X, det.BoxKF.Y, det.BoxKF.W, aspectOf(det.BoxKF),
			0.01, 0.1,
		),
		appearanceKF:          kalman.NewUnivariateKF(maxAppearanceCost/2, processVar, measurementVar),
		averageAppearanceCost: maxAppearanceCost / 2,
		LastBox:               det.BoxKF,
	}
	return t
}

func aspectOf(b geom.Box) float64 {
	if b.H == 0 {
		return 1
	}
	return b.W / b.H
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Predict advances the track's Kalman filter by one frame and clamps its
// position to the video bounds, zeroing the affected velocity component
// when clamped (spec.md §4.1 step 1). The filter's validity is reported by
// Valid(); RegisterMiss terminates an Active track whose filter is invalid,
// and RegisterHit re-seeds an invalid filter from the detection.
func (t *Track) Predict(xf *geom.CameraCoordinateTransformer) {
	t.kf.Predict()

	x, y, scale, aspect := t.kf.Box()
	box := geom.Box{X: x, Y: y, W: scale, H: scale / maxFloat(aspect, 1e-6)}
	clamped, clampedX, clampedY := xf.Clamp(box)

	t.kf.SetPosition(clamped.X, clamped.Y)
	if clampedX {
		t.kf.ZeroVelocityX()
	}
	if clampedY {
		t.kf.ZeroVelocityY()
	}

	t.LastBox = t.currentKFBox()
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (t *Track) currentKFBox() geom.Box {
	x, y, scale, aspect := t.kf.Box()
	return geom.Box{X: x, Y: y, W: scale, H: scale / maxFloat(aspect, 1e-6)}
}

// Valid reports whether the underlying Kalman filter remains finite and
// in-bounds. An Active track with an invalid filter is Terminated on its
// next miss regardless of the miss counter; a hit re-seeds the filter
// instead (spec.md §3).
func (t *Track) Valid() bool {
	return t.kf.Valid()
}

// IntentAngle returns the track's current direction-of-travel estimate,
// used for the OCM cost term.
func (t *Track) IntentAngle() float64 {
	return t.kf.IntentAngle()
}

// AppearanceMean returns the running smoothed appearance cost.
func (t *Track) AppearanceMean() float64 {
	return t.appearanceKF.Mean()
}

// RegisterHit applies a successful association: updates the Kalman filter,
// blends the appearance embedding, advances the appearance cost statistic,
// and progresses the lifecycle counters (spec.md §4.1 step 4, "Hit").
func (t *Track) RegisterHit(det Detection, costs Costs, cfg HitConfig) {
	t.LastCosts = costs
	t.Missed = 0

	if !t.kf.Valid() {
		t.reactivate(det)
	} else {
		t.kf.Update(det.BoxKF.X, det.BoxKF.Y, det.BoxKF.W, aspectOf(det.BoxKF))
	}
	t.LastBox = t.currentKFBox()

	switch t.Status {
	case StatusPending:
		if det.IsFullFace {
			t.stateTransitionCounter++
		}
		if t.stateTransitionCounter >= cfg.ConfirmationThreshold {
			t.Status = StatusActive
			t.stateTransitionCounter = 0
			if cfg.NameLookup != nil {
				if name, ok := cfg.NameLookup(t.Embedding); ok {
					t.Name = name
				}
			}
		}
	case StatusActive:
		t.stateTransitionCounter = 0
	}

	if det.HasEmbedding() {
		t.blendEmbedding(det, costs.Appearance, cfg)
	}
	t.ExpectedConfidence = det.Confidence
}

// HitConfig bundles the tracker parameters RegisterHit needs, decoupling
// Track from the full Tracker configuration struct.
type HitConfig struct {
	ConfirmationThreshold        int
	EmbeddingAlpha               float64
	EmbeddingConfidenceThreshold float64
	NameLookup                   func(embedding []float64) (string, bool)
}

func (t *Track) reactivate(det Detection) {
	t.kf = kalman.NewFilter(det.BoxKF.X, det.BoxKF.Y, det.BoxKF.W, aspectOf(det.BoxKF), 0.01, 0.1)
}

// blendEmbedding folds a newly observed embedding into the track's running
// mean using a confidence-and-novelty-weighted blend (spec.md §4.1
// "Embedding blend").
func (t *Track) blendEmbedding(det Detection, appearanceCost float64, cfg HitConfig) {
	minConf := cfg.EmbeddingConfidenceThreshold
	if det.Confidence <= minConf {
		return
	}

	runningMean := t.appearanceKF.Update(appearanceCost)
	const eps = 1e-6

	alphaEff := cfg.EmbeddingAlpha *
		((det.Confidence - minConf) / (1 - minConf)) *
		math.Exp(-appearanceCost/(runningMean+eps))

	blended := make([]float64, len(t.Embedding))
	for i := range blended {
		blended[i] = t.Embedding[i] + alphaEff*(det.Embedding[i]-t.Embedding[i])
	}
	t.Embedding = normalize(blended)
}

// RegisterMiss applies a missed frame: Active tracks increment the miss
// counter and damp velocity/growth; Pending tracks terminate immediately.
// Returns true if the track should transition to Terminated.
func (t *Track) RegisterMiss(deactivationThreshold int, velocityDamping, growthDamping float64) bool {
	t.Missed++

	switch t.Status {
	case StatusPending:
		t.Status = StatusTerminated
		return true
	case StatusActive:
		t.stateTransitionCounter++
		t.kf.DampVelocity(velocityDamping, growthDamping)
		if t.stateTransitionCounter >= deactivationThreshold || !t.kf.Valid() {
			t.Status = StatusTerminated
			return true
		}
	}
	return false
}
