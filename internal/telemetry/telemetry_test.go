package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorderFrameRateFromSlidingWindow(t *testing.T) {
	t.Parallel()
	r := NewRecorder(time.Unix(0, 0))
	start := time.Unix(100, 0)
	for i := 0; i < 10; i++ {
		r.RecordFrame(start.Add(time.Duration(i)*100*time.Millisecond), false)
	}
	assert.InDelta(t, 10.0, r.FrameRate(), 1.0)
}

func TestRecorderDroppedFramesExcludedFromWindow(t *testing.T) {
	t.Parallel()
	r := NewRecorder(time.Unix(0, 0))
	r.RecordFrame(time.Unix(100, 0), true)
	r.RecordFrame(time.Unix(101, 0), true)
	assert.Equal(t, 0.0, r.FrameRate())
	assert.Equal(t, int64(2), r.Snapshot(time.Unix(102, 0)).FramesDropped)
}

func TestRecorderSnapshotReflectsCounters(t *testing.T) {
	t.Parallel()
	r := NewRecorder(time.Unix(0, 0))
	r.SetGauges(3, 1)
	r.RecordTrackSpawned()
	r.RecordTrackSpawned()
	r.RecordReidentification()
	r.RecordInference(nil)
	r.RecordInference(errors.New("boom"))

	snap := r.Snapshot(time.Unix(10, 0))
	assert.Equal(t, int64(3), snap.ActiveSpeakers)
	assert.Equal(t, int64(1), snap.InactiveSpeakers)
	assert.Equal(t, int64(2), snap.TracksSpawned)
	assert.Equal(t, int64(1), snap.Reidentifications)
	assert.Equal(t, int64(2), snap.InferenceCount)
	assert.Equal(t, int64(1), snap.InferenceErrors)
	assert.Equal(t, int64(10000), snap.UptimeMs)
}
