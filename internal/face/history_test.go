package face

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFrameHistoryBasicHitMiss(t *testing.T) {
	t.Parallel()
	h := NewFrameHistory(8, 3)
	h.RegisterHit()
	h.RegisterHit()
	h.RegisterMiss()

	assert.Equal(t, 2, h.NumHits())
	assert.Equal(t, 6, h.NumMisses())
	assert.Equal(t, 0, h.HitStreak())
	assert.Equal(t, 1, h.MissStreak())
}

func TestFrameHistorySealsShortGap(t *testing.T) {
	t.Parallel()
	h := NewFrameHistory(50, 5)

	for i := 0; i < 20; i++ {
		h.RegisterHit()
	}
	for i := 0; i < 3; i++ {
		h.RegisterMiss()
	}
	priorHits := h.NumHits()
	assert.Equal(t, 20, priorHits)

	h.RegisterHit()

	// Sealing converts the 3-miss gap to hits, then the new hit adds 1 more.
	assert.Equal(t, priorHits+3+1, h.NumHits())
	assert.Equal(t, 24, h.HitStreak())
}

func TestFrameHistoryDoesNotSealGapExceedingMinGapSize(t *testing.T) {
	t.Parallel()
	h := NewFrameHistory(50, 2)

	for i := 0; i < 10; i++ {
		h.RegisterHit()
	}
	for i := 0; i < 3; i++ {
		h.RegisterMiss()
	}
	h.RegisterHit()

	// Gap of 3 exceeds minGapSize of 2: no sealing, only the new hit counts.
	assert.Equal(t, 11, h.NumHits())
	assert.Equal(t, 1, h.HitStreak())
}

func TestFrameHistoryChunks(t *testing.T) {
	t.Parallel()
	h := NewFrameHistory(10, 0) // minGapSize 0 disables sealing for this test
	for i := 0; i < 3; i++ {
		h.RegisterHit()
	}
	for i := 0; i < 4; i++ {
		h.RegisterMiss()
	}
	for i := 0; i < 3; i++ {
		h.RegisterHit()
	}

	chunks := h.Chunks()
	assert.Equal(t, []Range{{Lo: 0, Hi: 3}, {Lo: 7, Hi: 10}}, chunks)
}

func TestFrameHistoryNumHitsPlusMissesInvariant(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(1, 50).Draw(t, "width")
		minGap := rapid.IntRange(0, 10).Draw(t, "minGap")
		h := NewFrameHistory(width, minGap)

		events := rapid.SliceOfN(rapid.Bool(), 0, 200).Draw(t, "events")
		for _, hit := range events {
			if hit {
				h.RegisterHit()
			} else {
				h.RegisterMiss()
			}
		}

		assert.Equal(t, width, h.NumHits()+h.NumMisses())
		assert.LessOrEqual(t, h.HitStreak()+h.MissStreak(), width)
	})
}
