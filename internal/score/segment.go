package score

import "github.com/zsiec/asdcore/internal/asderrors"

// ScoreSegment is a contiguous run of Scores over absolute frame indices
// [StartIndex, EndIndex) (spec.md §3). Invariant: EndIndex-StartIndex ==
// len(Scores).
type ScoreSegment struct {
	StartIndex, EndIndex int64
	Scores               []Score
}

// Duration returns the segment's frame span.
func (seg ScoreSegment) Duration() int64 {
	return seg.EndIndex - seg.StartIndex
}

// adjacentOrOverlapping reports whether seg and next could coalesce into a
// single contiguous segment (next starts at or before seg's end).
func (seg ScoreSegment) adjacentOrOverlapping(next ScoreSegment) bool {
	return next.StartIndex <= seg.EndIndex
}

// overlay merges [lo,hi) worth of scores into seg: the portion overlapping
// seg's existing range is combined via Score.Update (additive on finite
// values), and any frames beyond seg.EndIndex are appended, extending the
// segment (spec.md §4.7: "extend(with:to:)").
func (seg *ScoreSegment) overlay(lo, hi int64, scores []Score) {
	for absFrame := lo; absFrame < hi && absFrame < seg.EndIndex; absFrame++ {
		if absFrame < seg.StartIndex {
			continue
		}
		srcIdx := absFrame - lo
		dstIdx := absFrame - seg.StartIndex
		seg.Scores[dstIdx] = seg.Scores[dstIdx].Update(scores[srcIdx])
	}
	if hi > seg.EndIndex {
		tailStart := seg.EndIndex - lo
		if tailStart < 0 {
			tailStart = 0
		}
		seg.Scores = append(seg.Scores, scores[tailStart:]...)
		seg.EndIndex = hi
	}
}

// mergeWith coalesces next into seg, overlaying any shared frames and
// appending the remainder, used when absorbing another stream or repairing
// an unsorted/overlapping segment list.
func (seg *ScoreSegment) mergeWith(next ScoreSegment) {
	seg.overlay(next.StartIndex, next.EndIndex, next.Scores)
}

// Merge is the exported ScoreSegment operator (spec.md §7's error table):
// it coalesces next into seg, failing rather than silently merging two
// segments that don't touch or overlap.
func (seg *ScoreSegment) Merge(next ScoreSegment) error {
	if !seg.adjacentOrOverlapping(next) {
		return asderrors.New(asderrors.MergeFailedNoAdjacentScores, "score_segment")
	}
	seg.mergeWith(next)
	return nil
}

// Intersect returns the sub-segment of seg and other's shared frame range,
// failing if they share no frames (spec.md §7's error table).
func (seg ScoreSegment) Intersect(other ScoreSegment) (ScoreSegment, error) {
	lo := seg.StartIndex
	if other.StartIndex > lo {
		lo = other.StartIndex
	}
	hi := seg.EndIndex
	if other.EndIndex < hi {
		hi = other.EndIndex
	}
	if lo >= hi {
		return ScoreSegment{}, asderrors.New(asderrors.IntersectionFailedNoIntersection, "score_segment")
	}
	return ScoreSegment{
		StartIndex: lo,
		EndIndex:   hi,
		Scores:     seg.Scores[lo-seg.StartIndex : hi-seg.StartIndex],
	}, nil
}
