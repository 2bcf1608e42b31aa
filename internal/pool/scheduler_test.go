package pool

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerEachIDFiresAtMostOncePerCooldownWindow(t *testing.T) {
	t.Parallel()
	cooldown := 5
	s := NewScheduler(cooldown, 2)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		s.RegisterIfNew(id)
	}

	// One entry per frame; uuid.Nil marks a frame on which nothing fired.
	var fired []uuid.UUID
	for i := 0; i < 50; i++ {
		s.Advance()
		id, ok := s.CurrentCallID()
		if !ok {
			id = uuid.Nil
		}
		fired = append(fired, id)
	}

	// Slide a window of `cooldown` consecutive frames and ensure no id
	// fires twice within it.
	for start := 0; start+cooldown <= len(fired); start++ {
		seen := map[uuid.UUID]bool{}
		for i := start; i < start+cooldown; i++ {
			if fired[i] == uuid.Nil {
				continue
			}
			assert.False(t, seen[fired[i]], "id fired twice within a cooldown window")
			seen[fired[i]] = true
		}
	}
}

func TestSchedulerTwoBuffersOneHandlerFairness(t *testing.T) {
	t.Parallel()
	s := NewScheduler(5, 1)
	a, b := uuid.New(), uuid.New()
	s.RegisterIfNew(a)
	s.RegisterIfNew(b)

	counts := map[uuid.UUID]int{}
	for i := 0; i < 10; i++ {
		s.Advance()
		if id, ok := s.CurrentCallID(); ok {
			counts[id]++
		}
	}

	assert.Equal(t, 2, counts[a])
	assert.Equal(t, 2, counts[b])
}

func TestSchedulerRemoveNotYetFiredDropsImmediately(t *testing.T) {
	t.Parallel()
	s := NewScheduler(10, 1)
	a, b := uuid.New(), uuid.New()
	s.RegisterIfNew(a)
	s.RegisterIfNew(b)
	s.Remove(b)
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerIdleWithNoCalls(t *testing.T) {
	t.Parallel()
	s := NewScheduler(5, 2)
	s.Advance()
	_, has := s.CurrentCallID()
	assert.False(t, has)
}
