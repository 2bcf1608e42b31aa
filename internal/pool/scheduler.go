package pool

import (
	"math"

	"github.com/google/uuid"
)

// Scheduler is a time-slot round robin over ready buffer ids, guaranteeing
// at most one buffer fires per frame and every registered id fires at most
// once per cooldown window, with firings spread across numHandlers workers
// (spec.md §4.3).
type Scheduler struct {
	cooldown    int
	numHandlers int

	calls           []uuid.UUID
	pendingRemovals map[uuid.UUID]bool

	frame         int
	period        int
	nextCallFrame int
	nextCallIndex int

	currentCallID uuid.UUID
	hasCurrent    bool
}

// NewScheduler creates a Scheduler with no registered calls. cooldown is
// the minimum frame gap between two firings of the same id; numHandlers
// bounds how many ids may be "in flight" across one cooldown window.
func NewScheduler(cooldown, numHandlers int) *Scheduler {
	return &Scheduler{cooldown: cooldown, numHandlers: numHandlers}
}

func (s *Scheduler) indexOf(id uuid.UUID) int {
	for i, c := range s.calls {
		if c == id {
			return i
		}
	}
	return -1
}

// targetFrame is the cycle-relative frame at which the i-th registered call
// (0-indexed) is due to fire, spread evenly across numHandlers.
func (s *Scheduler) targetFrame(i int) int {
	if s.numHandlers <= 0 {
		return i
	}
	return int(math.Round(float64(i) * float64(s.cooldown) / float64(s.numHandlers)))
}

func (s *Scheduler) recomputePeriod() {
	n := len(s.calls)
	if n == 0 {
		s.period = 0
		return
	}
	byCooldown := 0
	if s.numHandlers > 0 {
		byCooldown = int(math.Ceil(float64(n) * float64(s.cooldown) / float64(s.numHandlers)))
	}
	s.period = n
	if byCooldown > s.period {
		s.period = byCooldown
	}
}

func (s *Scheduler) startNewCycle() {
	if len(s.pendingRemovals) > 0 {
		filtered := s.calls[:0]
		for _, c := range s.calls {
			if !s.pendingRemovals[c] {
				filtered = append(filtered, c)
			}
		}
		s.calls = filtered
		s.pendingRemovals = nil
	}
	s.recomputePeriod()
	s.frame = 0
	s.nextCallIndex = 0
	if len(s.calls) > 0 {
		s.nextCallFrame = s.targetFrame(0)
	}
}

// RegisterIfNew adds id at the tail of the call list if it isn't already
// registered. Re-registering an id pending removal cancels that removal.
func (s *Scheduler) RegisterIfNew(id uuid.UUID) {
	delete(s.pendingRemovals, id)
	if s.indexOf(id) >= 0 {
		return
	}
	wasEmpty := len(s.calls) == 0
	s.calls = append(s.calls, id)
	if wasEmpty {
		s.startNewCycle()
	} else {
		s.recomputePeriod()
	}
}

// Remove drops id from the call list. If it has not yet fired this cycle
// it is spliced out immediately; otherwise the removal is deferred to the
// next cycle boundary so it doesn't disturb the cycle already in progress.
func (s *Scheduler) Remove(id uuid.UUID) {
	idx := s.indexOf(id)
	if idx < 0 {
		delete(s.pendingRemovals, id)
		return
	}
	if idx >= s.nextCallIndex {
		s.calls = append(s.calls[:idx], s.calls[idx+1:]...)
		return
	}
	if s.pendingRemovals == nil {
		s.pendingRemovals = make(map[uuid.UUID]bool)
	}
	s.pendingRemovals[id] = true
}

// Advance moves the scheduler forward by one frame, called once per frame
// after the tracker update. It sets at most one currentCallID.
func (s *Scheduler) Advance() {
	s.hasCurrent = false
	if len(s.calls) == 0 {
		return
	}
	s.frame++
	if s.frame >= s.period {
		s.startNewCycle()
	}
	if s.nextCallIndex < len(s.calls) && s.frame >= s.nextCallFrame {
		s.currentCallID = s.calls[s.nextCallIndex]
		s.hasCurrent = true
		s.nextCallIndex++
		if s.nextCallIndex < len(s.calls) {
			s.nextCallFrame = s.targetFrame(s.nextCallIndex)
		}
	}
}

// CurrentCallID returns the id chosen to fire this frame, if any.
func (s *Scheduler) CurrentCallID() (uuid.UUID, bool) {
	return s.currentCallID, s.hasCurrent
}

// Len reports the number of currently registered ids.
func (s *Scheduler) Len() int {
	return len(s.calls)
}
