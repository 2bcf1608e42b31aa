package speaker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/zsiec/asdcore/internal/face"
	"github.com/zsiec/asdcore/internal/geom"
	"github.com/zsiec/asdcore/internal/pool"
)

type noopModel struct{}

func (noopModel) Predict(_ context.Context, _ pool.ASDRequest) (pool.ASDOutput, error) {
	return pool.ASDOutput{}, nil
}

func testCropCfg() face.CropConfig {
	return face.CropConfig{CropScale: 0.3, FrameWidth: 4, FrameHeight: 4, Norm: face.Normalization{Bias: 0.5, Scale: 2}}
}

func testPoolManager(t *testing.T) *pool.Manager {
	t.Helper()
	cfg := pool.DefaultConfig()
	cfg.NumVideoBuffers = 2
	cfg.NumASDModels = 1
	cfg.VideoLength = 4
	cfg.MinFrames = 2
	cfg.MinGapSize = 1
	cfg.FrameWidth, cfg.FrameHeight = 4, 4
	m, err := pool.NewManager(nil, cfg, []pool.ASDModel{noopModel{}})
	assert.NoError(t, err)
	return m
}

func TestVisualSpeakerRegisterNewFrameRequestsBufferAndWrites(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	trackID := uuid.New()
	sp := New(trackID, []float64{1, 0}, geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2}, 30, mgr, testCropCfg(), nil)

	pixels := make([]byte, 64*64*4)
	sp.RegisterNewFrame(pixels, 64, 64, trackID, []float64{1, 0}, geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2}, "", false)

	assert.True(t, sp.HoldsBuffer())
	assert.Equal(t, StatusPaired, sp.Status)
}

func TestVisualSpeakerRejectsTrackIdentityMismatch(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	trackID := uuid.New()
	sp := New(trackID, []float64{1, 0}, geom.Box{}, 30, mgr, testCropCfg(), nil)

	before := sp.TrackID
	other := uuid.New()
	sp.RegisterNewFrame(nil, 64, 64, other, []float64{1, 0}, geom.Box{}, "", true)

	assert.Equal(t, before, sp.TrackID, "mismatched track id must be rejected")
}

func TestVisualSpeakerRegisterMissedFrameRecyclesBufferWhenFullyBlank(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	trackID := uuid.New()
	sp := New(trackID, []float64{1, 0}, geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2}, 30, mgr, testCropCfg(), nil)

	pixels := make([]byte, 64*64*4)
	sp.RegisterNewFrame(pixels, 64, 64, trackID, []float64{1, 0}, geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2}, "", false)
	assert.True(t, sp.HoldsBuffer())

	// videoLength=4, so after 4 consecutive misses the FrameHistory is
	// entirely miss bits again and the buffer is recycled.
	for i := 0; i < 4; i++ {
		sp.RegisterMissedFrame(false)
	}

	assert.False(t, sp.HoldsBuffer())
	assert.Equal(t, StatusInactive, sp.Status)
}

func TestVisualSpeakerIsDeletableRespectsPermanentAndDeletionAge(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	sp := New(uuid.New(), nil, geom.Box{}, 30, mgr, testCropCfg(), nil)
	sp.Status = StatusInactive
	sp.missedFrames = 10

	assert.True(t, sp.IsDeletable(5))

	sp.Permanent = true
	assert.False(t, sp.IsDeletable(5))
}

func TestVisualSpeakerIsSimilarToEmbedding(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	sp := New(uuid.New(), []float64{1, 0}, geom.Box{}, 30, mgr, testCropCfg(), nil)

	assert.True(t, sp.IsSimilarToEmbedding([]float64{1, 0}, 0.01))
	assert.False(t, sp.IsSimilarToEmbedding([]float64{0, 1}, 0.5))
}

func TestVisualSpeakerAbsorbRejectsWhileHoldingBuffer(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	a := New(uuid.New(), []float64{1, 0}, geom.Box{X: 0.1, Y: 0.1, W: 0.1, H: 0.1}, 30, mgr, testCropCfg(), nil)
	pixels := make([]byte, 64*64*4)
	a.RegisterNewFrame(pixels, 64, 64, a.TrackID, []float64{1, 0}, geom.Box{X: 0.1, Y: 0.1, W: 0.1, H: 0.1}, "", false)
	assert.True(t, a.HoldsBuffer())

	b := New(uuid.New(), []float64{1, 0}, geom.Box{}, 30, mgr, testCropCfg(), nil)

	a.Absorb(b) // no-op: a holds a buffer
}

func TestVisualSpeakerRegisterNewFrameSetsNameOnceGalleryMatches(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	trackID := uuid.New()
	sp := New(trackID, []float64{1, 0}, geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2}, 30, mgr, testCropCfg(), nil)
	assert.False(t, sp.HasName)

	pixels := make([]byte, 64*64*4)
	sp.RegisterNewFrame(pixels, 64, 64, trackID, []float64{1, 0}, geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2}, "alice", false)

	assert.True(t, sp.HasName)
	assert.Equal(t, "alice", sp.Name)

	// A later frame with no gallery match must not clear a name already set.
	sp.RegisterNewFrame(pixels, 64, 64, trackID, []float64{1, 0}, geom.Box{X: 0.4, Y: 0.3, W: 0.2, H: 0.2}, "", false)
	assert.True(t, sp.HasName)
	assert.Equal(t, "alice", sp.Name)
}

func TestVisualSpeakerAdoptFromCarriesName(t *testing.T) {
	t.Parallel()
	mgr := testPoolManager(t)
	inactive := New(uuid.New(), []float64{1, 0}, geom.Box{}, 30, mgr, testCropCfg(), nil)
	inactive.Name = "bob"
	inactive.HasName = true

	spawned := New(uuid.New(), []float64{1, 0}, geom.Box{}, 30, mgr, testCropCfg(), nil)

	inactive.AdoptFrom(spawned)
	assert.True(t, inactive.HasName)
	assert.Equal(t, "bob", inactive.Name)
}
