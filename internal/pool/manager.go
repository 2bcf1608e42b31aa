package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/zsiec/asdcore/internal/asderrors"
	"github.com/zsiec/asdcore/internal/face"
	"github.com/zsiec/asdcore/internal/telemetry"
)

type activeEntry struct {
	speakerID uuid.UUID
	buffer    *face.ASDBuffer
}

// Manager is the ASDBufferPool/ASDManager of spec.md §4.4: it owns the free
// list, the active (speaker -> buffer) assignment, a FIFO reservation
// queue, the Scheduler, and the ModelPool. All mutation goes through a
// single mutex; inference itself runs outside the lock over a copied
// snapshot (spec.md §5).
type Manager struct {
	mu  sync.Mutex
	log *slog.Logger

	cfg Config

	available []*face.ASDBuffer
	active    map[uuid.UUID]*activeEntry // keyed by buffer.ID
	bySpeaker map[uuid.UUID]*face.ASDBuffer

	reservations []uuid.UUID

	scheduler *Scheduler
	models    *ModelPool

	frameIndex    int64
	haveTimestamp bool
	lastTimestamp float64

	telemetry *telemetry.Recorder
}

// SetTelemetry attaches a recorder that dispatch will report inference
// outcomes to. May be called once before the pool starts dispatching; nil
// is valid and disables reporting.
func (m *Manager) SetTelemetry(r *telemetry.Recorder) {
	m.telemetry = r
}

// NewManager builds a pool of cfg.NumVideoBuffers buffers and a ModelPool
// over handles. Returns a fatal config error (spec.md §7) if either count
// is non-positive.
func NewManager(log *slog.Logger, cfg Config, handles []ASDModel) (*Manager, error) {
	if cfg.NumVideoBuffers <= 0 {
		return nil, asderrors.New(asderrors.InvalidVideoBufferAmount, "pool")
	}
	if log == nil {
		log = slog.Default()
	}
	models, err := NewModelPool(log, handles)
	if err != nil {
		return nil, asderrors.Wrap(asderrors.InvalidASDModelAmount, "pool", err)
	}

	m := &Manager{
		log:       log.With("component", "buffer_pool"),
		cfg:       cfg,
		active:    make(map[uuid.UUID]*activeEntry),
		bySpeaker: make(map[uuid.UUID]*face.ASDBuffer),
		scheduler: NewScheduler(cfg.Cooldown, cfg.NumASDModels),
		models:    models,
	}
	norm := face.Normalization{Bias: cfg.NormBias, Scale: cfg.NormScale}
	for i := 0; i < cfg.NumVideoBuffers; i++ {
		buf := face.NewASDBuffer(uuid.New(), cfg.FrameWidth, cfg.FrameHeight, cfg.VideoLength, cfg.MinFrames, cfg.MinGapSize, norm)
		m.available = append(m.available, buf)
	}
	return m, nil
}

// Request claims a free buffer for speakerID. Returns (nil, false) if none
// is free, enqueueing speakerID onto the FIFO reservation list; a waiter
// that isn't at the head of the queue also sees (nil, false) even if a
// buffer happens to be free, preserving FIFO order (spec.md §4.4).
func (m *Manager) Request(speakerID uuid.UUID) (*face.ASDBuffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buf, ok := m.bySpeaker[speakerID]; ok {
		return buf, true
	}

	if len(m.available) == 0 {
		m.enqueueReservation(speakerID)
		return nil, false
	}
	if len(m.reservations) > 0 && m.reservations[0] != speakerID {
		m.enqueueReservation(speakerID)
		return nil, false
	}

	buf := m.available[0]
	m.available = m.available[1:]
	if len(m.reservations) > 0 && m.reservations[0] == speakerID {
		m.reservations = m.reservations[1:]
	}

	buf.Activate(buf.CurrentCrop())
	m.active[buf.ID] = &activeEntry{speakerID: speakerID, buffer: buf}
	m.bySpeaker[speakerID] = buf
	return buf, true
}

func (m *Manager) enqueueReservation(speakerID uuid.UUID) {
	for _, id := range m.reservations {
		if id == speakerID {
			return
		}
	}
	m.reservations = append(m.reservations, speakerID)
}

// Recycle returns buf to the free list and clears its owner. Safe to call
// on a buffer the caller no longer needs.
func (m *Manager) Recycle(buf *face.ASDBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.active[buf.ID]
	if !ok {
		return
	}
	delete(m.active, buf.ID)
	delete(m.bySpeaker, entry.speakerID)
	m.scheduler.Remove(buf.ID)
	m.available = append(m.available, buf)
}

// CancelReservation removes speakerID from the FIFO wait list without
// granting it a buffer.
func (m *Manager) CancelReservation(speakerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeReservation(speakerID)
}

func (m *Manager) removeReservation(id uuid.UUID) {
	for i, r := range m.reservations {
		if r == id {
			m.reservations = append(m.reservations[:i], m.reservations[i+1:]...)
			return
		}
	}
}

// ReplaceReservation swaps a waiting speaker id for another, preserving the
// original's queue position (spec.md §6: "preserves earliest-of-(old,new)
// ordering"). If old isn't waiting, new is appended as a fresh reservation.
func (m *Manager) ReplaceReservation(old, new uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.reservations {
		if r == old {
			m.reservations[i] = new
			for j := i + 1; j < len(m.reservations); j++ {
				if m.reservations[j] == new {
					m.reservations = append(m.reservations[:j], m.reservations[j+1:]...)
					break
				}
			}
			return
		}
		if r == new {
			m.removeReservation(old)
			return
		}
	}
	m.enqueueReservation(new)
}

// Counts reports the pool invariant |available|+|active| == numVideoBuffers.
func (m *Manager) Counts() (available, active int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.available), len(m.active)
}

// AdvanceFrame implements spec.md §4.4's per-frame pool tick: register
// ready buffers with the scheduler, advance it, and dispatch at most one
// inference. A decreasing timestamp is a fatal regressing_timestamp error.
func (m *Manager) AdvanceFrame(ctx context.Context, t float64, dropFrame bool) error {
	m.mu.Lock()

	if m.haveTimestamp && t < m.lastTimestamp {
		m.mu.Unlock()
		return asderrors.New(asderrors.RegressingTimestamp, "pool")
	}
	m.haveTimestamp = true
	m.lastTimestamp = t

	for bufID, entry := range m.active {
		if entry.buffer.HasEnoughFrames() {
			m.scheduler.RegisterIfNew(bufID)
		} else {
			m.scheduler.Remove(bufID)
		}
	}

	m.scheduler.Advance()

	var dispatch *dispatchJob
	if id, ok := m.scheduler.CurrentCallID(); ok {
		if entry, ok := m.active[id]; ok {
			tensor, hist := entry.buffer.Snapshot()
			dispatch = &dispatchJob{
				bufferID:   entry.buffer.ID,
				generation: entry.buffer.Generation(),
				req: ASDRequest{
					CallFrame:  m.frameIndex,
					HitHistory: hist,
					VideoInput: tensor,
				},
			}
		}
	}

	m.frameIndex++
	expected := int64(t * float64(m.cfg.Framerate))
	if diff := m.frameIndex - expected; diff > 1 || diff < -1 {
		m.log.Warn("pool frame index drift resynced", "frame_index", m.frameIndex, "expected", expected)
		m.frameIndex = expected
	}

	m.mu.Unlock()

	if dispatch != nil && !dropFrame {
		m.dispatch(ctx, dispatch)
	}
	return nil
}

type dispatchJob struct {
	bufferID   uuid.UUID
	generation int64
	req        ASDRequest
}

// dispatch runs one inference outside the pool lock and, on completion,
// re-acquires the lock only long enough to enqueue the result onto the
// still-live buffer. A buffer recycled and reactivated in the meantime has
// a stale generation and the result is dropped (spec.md §5).
func (m *Manager) dispatch(ctx context.Context, job *dispatchJob) {
	go func() {
		out, err := m.models.RunInference(ctx, job.req)
		if m.telemetry != nil {
			m.telemetry.RecordInference(err)
		}
		if err != nil {
			m.log.Warn("asd model inference failed", "buffer", job.bufferID, "error", err)
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		entry, ok := m.active[job.bufferID]
		if !ok || entry.buffer.Generation() != job.generation {
			return
		}
		entry.buffer.EnqueueLogits(face.LogitData{
			CallFrame:  job.req.CallFrame,
			HitHistory: job.req.HitHistory,
			Logits:     out.Scores,
		})
	}()
}

// DrainLogits pops and returns buf's queued inference results under the
// pool lock, since dispatch enqueues onto the same buffer from its own
// goroutine (spec.md §5: "the ASDBuffer's … pending-logit queue are
// mutated only under the pool's serialization").
func (m *Manager) DrainLogits(buf *face.ASDBuffer) []face.LogitData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return buf.PopNewLogits()
}

// BufferForSpeaker looks up the buffer currently held by speakerID, if any.
func (m *Manager) BufferForSpeaker(speakerID uuid.UUID) (*face.ASDBuffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.bySpeaker[speakerID]
	return buf, ok
}

func (m *Manager) String() string {
	avail, act := m.Counts()
	return fmt.Sprintf("pool{available=%d active=%d reservations=%d}", avail, act, len(m.reservations))
}
