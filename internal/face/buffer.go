package face

import (
	"github.com/google/uuid"
	"github.com/zsiec/asdcore/internal/geom"
)

// Normalization holds the grayscale-to-float conversion parameters applied
// to each cropped frame (spec.md §4.2 step 3: y = (luma/255 - bias) * scale).
type Normalization struct {
	Bias  float32
	Scale float32
}

// LogitData is a completed inference result queued onto the buffer it was
// computed from, keyed by the frame the call was issued at and the hit
// history snapshot taken at dispatch time (spec.md §3/§4.5).
type LogitData struct {
	CallFrame int64
	HitHistory *FrameHistory
	Logits     []float32
}

// ASDBuffer is a fixed-capacity ring of grayscale frames forming one
// speaker's rolling face clip, plus the FrameHistory gating scheduler
// readiness and a FIFO of logits returned by in-flight inferences
// (spec.md §3/§4.2).
type ASDBuffer struct {
	ID uuid.UUID

	width, height int
	videoLength   int
	defaultGray   float32
	norm          Normalization

	frames [][]float32 // ring, length videoLength, each width*height
	cursor int         // index of the most recently written frame

	history *FrameHistory
	pending []LogitData

	currentCrop geom.Box
	minFrames   int
	generation  int64
}

// NewASDBuffer creates a buffer with videoLength frames of width x height,
// initialized to blank gray (spec.md §4.2/§6: "frameSize W×H").
func NewASDBuffer(id uuid.UUID, width, height, videoLength, minFrames, minGapSize int, norm Normalization) *ASDBuffer {
	b := &ASDBuffer{
		ID:          id,
		width:       width,
		height:      height,
		videoLength: videoLength,
		defaultGray: (0.5 - norm.Bias) * norm.Scale,
		norm:        norm,
		history:     NewFrameHistory(videoLength, minGapSize),
		minFrames:   minFrames,
		cursor:      -1,
	}
	b.frames = make([][]float32, videoLength)
	for i := range b.frames {
		b.frames[i] = b.blankFrame()
	}
	return b
}

func (b *ASDBuffer) blankFrame() []float32 {
	frame := make([]float32, b.width*b.height)
	for i := range frame {
		frame[i] = b.defaultGray
	}
	return frame
}

func wrapIndex(i, n int) int {
	// Non-negative remainder, per spec.md §9's ring-arithmetic design note.
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}

// Activate (re)marks the buffer as held by a new owner: wipes all frames to
// default gray and resets the hit history (spec.md §3: "reactivation wipes
// frames to a default gray value and resets history").
func (b *ASDBuffer) Activate(crop geom.Box) {
	for i := range b.frames {
		b.frames[i] = b.blankFrame()
	}
	b.history.Reset()
	b.cursor = -1
	b.currentCrop = crop
	b.pending = nil
	b.generation++
}

// Generation increments on every Activate; a dispatched inference that
// completes after its buffer has been recycled and reactivated for a
// different owner carries a stale generation and must be dropped
// (spec.md §5's cancellation note).
func (b *ASDBuffer) Generation() int64 {
	return b.generation
}

// WriteFrame appends a preprocessed grayscale frame (already cropped,
// resized, and normalized by the caller per spec.md §4.2 steps 1-3) and
// registers a hit. pixels must have length width*height.
func (b *ASDBuffer) WriteFrame(pixels []float32, crop geom.Box) {
	b.cursor = wrapIndex(b.cursor+1, b.videoLength)
	b.frames[b.cursor] = pixels
	b.currentCrop = crop
	b.history.RegisterHit()
}

// WriteBlank appends a default-gray frame and registers a miss
// (spec.md §4.2: "Skipping writes a uniform default-gray frame and a miss").
func (b *ASDBuffer) WriteBlank() {
	b.cursor = wrapIndex(b.cursor+1, b.videoLength)
	b.frames[b.cursor] = b.blankFrame()
	b.history.RegisterMiss()
}

// HasEnoughFrames reports whether the buffer has accumulated a long enough
// unbroken hit streak to be scheduled for inference (spec.md §4.2).
func (b *ASDBuffer) HasEnoughFrames() bool {
	return b.history.HitStreak() >= b.minFrames
}

// History exposes the FrameHistory for scheduler/pool inspection.
func (b *ASDBuffer) History() *FrameHistory {
	return b.history
}

// CurrentCrop returns the most recently applied crop rectangle.
func (b *ASDBuffer) CurrentCrop() geom.Box {
	return b.currentCrop
}

// Snapshot copies the ring into presentation order (oldest first) as a flat
// W*H*videoLength tensor, suitable for ASDModel.Predict, along with a
// snapshot-copy of the current FrameHistory (spec.md §4.4 step 3: "snapshot
// its FrameHistory into an ASDRequest").
func (b *ASDBuffer) Snapshot() (tensor []float32, history *FrameHistory) {
	tensor = make([]float32, b.width*b.height*b.videoLength)
	frameSize := b.width * b.height
	for i := 0; i < b.videoLength; i++ {
		idx := wrapIndex(b.cursor-b.videoLength+1+i, b.videoLength)
		copy(tensor[i*frameSize:(i+1)*frameSize], b.frames[idx])
	}

	historyCopy := *b.history
	return tensor, &historyCopy
}

// EnqueueLogits appends a completed inference result to the pending FIFO,
// called by a ModelPool worker on completion (spec.md §4.5).
func (b *ASDBuffer) EnqueueLogits(data LogitData) {
	b.pending = append(b.pending, data)
}

// PopNewLogits drains and returns all queued logit results in arrival order.
func (b *ASDBuffer) PopNewLogits() []LogitData {
	out := b.pending
	b.pending = nil
	return out
}
