package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/zsiec/asdcore/internal/geom"
	"github.com/zsiec/asdcore/internal/pool"
	"github.com/zsiec/asdcore/internal/track"
)

type scriptedDetector struct {
	frames [][]track.Prediction
	idx    int
}

func (d *scriptedDetector) Detect(_ []byte, _, _ int) ([]track.Prediction, error) {
	if d.idx >= len(d.frames) {
		return nil, nil
	}
	out := d.frames[d.idx]
	d.idx++
	return out, nil
}

type fixedEmbedder struct {
	embedding []float64
}

func (e *fixedEmbedder) Embed(_ []byte, _, _ int, dets []*track.Detection) error {
	for _, d := range dets {
		d.Embedding = e.embedding
	}
	return nil
}

type noopASDModel struct{}

func (noopASDModel) Predict(_ context.Context, _ pool.ASDRequest) (pool.ASDOutput, error) {
	return pool.ASDOutput{}, nil
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.Pool.NumVideoBuffers = 2
	cfg.Pool.NumASDModels = 1
	cfg.Pool.VideoLength = 4
	cfg.Pool.MinFrames = 2
	cfg.Pool.MinGapSize = 1
	cfg.Pool.FrameWidth, cfg.Pool.FrameHeight = 4, 4
	cfg.Crop.FrameWidth, cfg.Crop.FrameHeight = 4, 4
	cfg.Tracker.ConfirmationThreshold = 3
	cfg.Tracker.DeactivationThreshold = 2
	cfg.DeletionAge = 2
	return cfg
}

func unitEmbedding() []float64 {
	emb := make([]float64, track.EmbeddingDim)
	emb[0] = 1
	return emb
}

func solidFace() track.Prediction {
	return track.Prediction{
		BoxImage:   geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2},
		Confidence: 0.9,
		IsFullFace: true,
	}
}

func newTestEngine(t *testing.T, detector track.FaceDetector) *Engine {
	t.Helper()
	cfg := testEngineConfig()
	e, err := New(cfg, detector, &fixedEmbedder{embedding: unitEmbedding()}, nil, []pool.ASDModel{noopASDModel{}}, nil)
	assert.NoError(t, err)
	return e
}

func testFrame() Frame {
	return Frame{
		PixelBuffer: make([]byte, 64*64*4),
		Width:       64,
		Height:      64,
		Timestamp:   0,
		Orientation: geom.Orientation0,
	}
}

func TestEngineSpawnsSpeakerForUnclaimedTrack(t *testing.T) {
	t.Parallel()
	det := &scriptedDetector{frames: [][]track.Prediction{{solidFace()}}}
	e := newTestEngine(t, det)

	frame := testFrame()
	assert.NoError(t, e.Update(context.Background(), frame))

	assert.Len(t, e.active, 1)
	assert.Empty(t, e.inactive)
}

func TestEngineRetainsSameSpeakerAcrossMatchedFrames(t *testing.T) {
	t.Parallel()
	det := &scriptedDetector{frames: [][]track.Prediction{{solidFace()}, {solidFace()}, {solidFace()}}}
	e := newTestEngine(t, det)

	frame := testFrame()
	assert.NoError(t, e.Update(context.Background(), frame))
	assert.Len(t, e.active, 1)

	frame.Timestamp = 1.0 / 30
	assert.NoError(t, e.Update(context.Background(), frame))
	assert.Len(t, e.active, 1, "the same unclaimed-then-claimed track must reuse its speaker, not spawn a second one")

	frame.Timestamp = 2.0 / 30
	assert.NoError(t, e.Update(context.Background(), frame))
	assert.Len(t, e.active, 1)
}

func TestEngineMovesSpeakerToInactiveOnMiss(t *testing.T) {
	t.Parallel()
	det := &scriptedDetector{frames: [][]track.Prediction{{solidFace()}, {}}}
	e := newTestEngine(t, det)

	frame := testFrame()
	assert.NoError(t, e.Update(context.Background(), frame))
	assert.Len(t, e.active, 1)

	frame.Timestamp = 1.0 / 30
	assert.NoError(t, e.Update(context.Background(), frame))
	assert.Empty(t, e.active)
	assert.Len(t, e.inactive, 1)
}

func TestEngineDropsInactiveSpeakerPastDeletionAge(t *testing.T) {
	t.Parallel()
	frames := [][]track.Prediction{{solidFace()}}
	for i := 0; i < 5; i++ {
		frames = append(frames, nil)
	}
	det := &scriptedDetector{frames: frames}
	e := newTestEngine(t, det)

	frame := testFrame()
	for i := 0; i < len(frames); i++ {
		frame.Timestamp = float64(i) / 30
		assert.NoError(t, e.Update(context.Background(), frame))
	}

	assert.Empty(t, e.inactive, "a speaker missed past deletionAge must be dropped, not retained forever")
}

// TestEngineReidentifiesReturningSpeaker exercises spec.md §8 scenario 3:
// a speaker drops out briefly, its track terminates, and when the same
// face reappears (same embedding, a fresh track id) the engine must
// recognize it as a continuation rather than spawn a brand-new identity.
func TestEngineReidentifiesReturningSpeaker(t *testing.T) {
	t.Parallel()
	det := &scriptedDetector{frames: [][]track.Prediction{
		{solidFace()}, // frame 0: spawns and pairs the original speaker
		nil,           // frame 1: track missed, speaker goes inactive
		{solidFace()}, // frame 2: same face returns on a brand-new track
	}}
	cfg := testEngineConfig()
	cfg.DeletionAge = 5 // wide enough that the inactive speaker survives to frame 2
	e, err := New(cfg, det, &fixedEmbedder{embedding: unitEmbedding()}, nil, []pool.ASDModel{noopASDModel{}}, nil)
	assert.NoError(t, err)

	var merges []MergeRequest
	e.OnMerge(func(m MergeRequest) { merges = append(merges, m) })

	frame := testFrame()
	var originalID uuid.UUID
	for i := 0; i < 3; i++ {
		frame.Timestamp = float64(i) / 30
		assert.NoError(t, e.Update(context.Background(), frame))
		if i == 0 {
			assert.Len(t, e.active, 1)
			for id := range e.active {
				originalID = id
			}
		}
	}

	assert.Len(t, merges, 1, "a returning face must trigger exactly one re-identification merge")
	assert.Equal(t, originalID, merges[0].Into, "the merge must land on the original speaker's id, not a new one")
	assert.Len(t, e.active, 1, "the reappeared face must rejoin as the same active speaker, not a second one")
	_, stillOriginal := e.active[originalID]
	assert.True(t, stillOriginal)
}

func TestEngineInvokesResultsCallbackEachFrame(t *testing.T) {
	t.Parallel()
	det := &scriptedDetector{frames: [][]track.Prediction{{solidFace()}}}
	e := newTestEngine(t, det)

	var got []SendableSpeaker
	e.OnResults(func(s []SendableSpeaker) { got = s })

	assert.NoError(t, e.Update(context.Background(), testFrame()))
	assert.Len(t, got, 1)
}
