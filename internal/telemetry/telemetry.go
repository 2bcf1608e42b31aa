// Package telemetry accumulates point-in-time ASD pipeline statistics for
// the debug API, grounded on the teacher's DemuxStats: atomic counters for
// lock-free concurrent updates, a sliding window for frame rate, and a
// single JSON-serializable Snapshot for point-in-time reads.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the JSON-serializable point-in-time view of the pipeline's
// health, analogous to distribution.StreamSnapshot.
type Snapshot struct {
	UptimeMs           int64   `json:"uptimeMs"`
	FramesProcessed    int64   `json:"framesProcessed"`
	FramesDropped      int64   `json:"framesDropped"`
	FrameRate          float64 `json:"frameRate"`
	ActiveSpeakers     int64   `json:"activeSpeakers"`
	InactiveSpeakers   int64   `json:"inactiveSpeakers"`
	TracksSpawned      int64   `json:"tracksSpawned"`
	Reidentifications  int64   `json:"reidentifications"`
	InferenceCount     int64   `json:"inferenceCount"`
	InferenceErrors    int64   `json:"inferenceErrors"`
}

// Recorder accumulates counters as the engine runs; a single instance is
// safe for concurrent use.
type Recorder struct {
	startedAt time.Time

	framesProcessed   counter
	framesDropped     counter
	activeSpeakers    gauge
	inactiveSpeakers  gauge
	tracksSpawned     counter
	reidentifications counter
	inferenceCount    counter
	inferenceErrors   counter

	fpsWindowMu sync.Mutex
	fpsWindow   []time.Time
}

// counter/gauge wrap atomic.Int64 to match the DemuxStats idiom of small,
// purpose-named accumulator types rather than a bag of bare atomic.Int64
// fields.
type counter struct{ v atomic.Int64 }
type gauge struct{ v atomic.Int64 }

func (c *counter) add(n int64) { c.v.Add(n) }
func (c *counter) load() int64 { return c.v.Load() }
func (g *gauge) set(n int64)   { g.v.Store(n) }
func (g *gauge) load() int64   { return g.v.Load() }

// NewRecorder creates a Recorder with its uptime clock started now.
func NewRecorder(now time.Time) *Recorder {
	return &Recorder{startedAt: now}
}

// RecordFrame tallies one processed frame, noting whether it was a dropped
// frame (no scoring work performed) for the frame-rate window.
func (r *Recorder) RecordFrame(now time.Time, dropped bool) {
	r.framesProcessed.add(1)
	if dropped {
		r.framesDropped.add(1)
		return
	}
	r.fpsWindowMu.Lock()
	r.fpsWindow = append(r.fpsWindow, now)
	cutoff := now.Add(-2 * time.Second)
	i := 0
	for i < len(r.fpsWindow) && r.fpsWindow[i].Before(cutoff) {
		i++
	}
	r.fpsWindow = r.fpsWindow[i:]
	r.fpsWindowMu.Unlock()
}

// SetGauges records the current active/inactive speaker counts.
func (r *Recorder) SetGauges(active, inactive int) {
	r.activeSpeakers.set(int64(active))
	r.inactiveSpeakers.set(int64(inactive))
}

// RecordTrackSpawned tallies a brand-new VisualSpeaker spawn (not a
// re-identification).
func (r *Recorder) RecordTrackSpawned() {
	r.tracksSpawned.add(1)
}

// RecordReidentification tallies a merge of a freshly spawned speaker into
// an existing inactive one.
func (r *Recorder) RecordReidentification() {
	r.reidentifications.add(1)
}

// RecordInference tallies one ASD model call, noting failures separately.
func (r *Recorder) RecordInference(err error) {
	r.inferenceCount.add(1)
	if err != nil {
		r.inferenceErrors.add(1)
	}
}

// FrameRate computes the current frame rate from the 2-second sliding
// window of non-dropped frames.
func (r *Recorder) FrameRate() float64 {
	r.fpsWindowMu.Lock()
	defer r.fpsWindowMu.Unlock()

	if len(r.fpsWindow) < 2 {
		return 0
	}
	first := r.fpsWindow[0]
	last := r.fpsWindow[len(r.fpsWindow)-1]
	dur := last.Sub(first).Seconds()
	if dur <= 0 {
		return 0
	}
	return float64(len(r.fpsWindow)-1) / dur
}

// Snapshot returns a point-in-time view of all counters; each counter is
// loaded independently, so the view is not atomic across counters.
func (r *Recorder) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		UptimeMs:          now.Sub(r.startedAt).Milliseconds(),
		FramesProcessed:   r.framesProcessed.load(),
		FramesDropped:     r.framesDropped.load(),
		FrameRate:         r.FrameRate(),
		ActiveSpeakers:    r.activeSpeakers.load(),
		InactiveSpeakers:  r.inactiveSpeakers.load(),
		TracksSpawned:     r.tracksSpawned.load(),
		Reidentifications: r.reidentifications.load(),
		InferenceCount:    r.inferenceCount.load(),
		InferenceErrors:   r.inferenceErrors.load(),
	}
}
