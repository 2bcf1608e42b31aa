package score

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zsiec/asdcore/internal/asderrors"
)

func TestSegmentMergeCoalescesAdjacent(t *testing.T) {
	t.Parallel()
	seg := ScoreSegment{StartIndex: 0, EndIndex: 2, Scores: []Score{{Logit: 1}, {Logit: 1}}}
	next := ScoreSegment{StartIndex: 2, EndIndex: 4, Scores: []Score{{Logit: 2}, {Logit: 2}}}

	assert.NoError(t, seg.Merge(next))
	assert.Equal(t, int64(4), seg.EndIndex)
	assert.Len(t, seg.Scores, 4)
}

func TestSegmentMergeRejectsNonAdjacent(t *testing.T) {
	t.Parallel()
	seg := ScoreSegment{StartIndex: 0, EndIndex: 2, Scores: []Score{{Logit: 1}, {Logit: 1}}}
	next := ScoreSegment{StartIndex: 5, EndIndex: 7, Scores: []Score{{Logit: 2}, {Logit: 2}}}

	err := seg.Merge(next)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asderrors.New(asderrors.MergeFailedNoAdjacentScores, "")))
}

func TestSegmentIntersectReturnsSharedRange(t *testing.T) {
	t.Parallel()
	a := ScoreSegment{StartIndex: 0, EndIndex: 5, Scores: []Score{{Logit: 1}, {Logit: 2}, {Logit: 3}, {Logit: 4}, {Logit: 5}}}
	b := ScoreSegment{StartIndex: 3, EndIndex: 8, Scores: []Score{{Logit: 6}, {Logit: 7}, {Logit: 8}, {Logit: 9}, {Logit: 10}}}

	got, err := a.Intersect(b)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), got.StartIndex)
	assert.Equal(t, int64(5), got.EndIndex)
	assert.Len(t, got.Scores, 2)
}

func TestSegmentIntersectRejectsDisjointRanges(t *testing.T) {
	t.Parallel()
	a := ScoreSegment{StartIndex: 0, EndIndex: 2, Scores: []Score{{Logit: 1}, {Logit: 1}}}
	b := ScoreSegment{StartIndex: 4, EndIndex: 6, Scores: []Score{{Logit: 1}, {Logit: 1}}}

	_, err := a.Intersect(b)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asderrors.New(asderrors.IntersectionFailedNoIntersection, "")))
}
