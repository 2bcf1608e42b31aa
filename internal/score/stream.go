package score

import (
	"sort"

	"github.com/zsiec/asdcore/internal/asderrors"
	"github.com/zsiec/asdcore/internal/face"
)

// ScoreStream is an ordered, non-overlapping list of ScoreSegments sharing
// a frame grid tied to a fixed framerate (spec.md §3/§4.7). Invariant: for
// i<j, segments[i].EndIndex <= segments[j].StartIndex.
type ScoreStream struct {
	Framerate int
	segments  []ScoreSegment
}

// NewScoreStream creates an empty stream at the given framerate.
func NewScoreStream(framerate int) *ScoreStream {
	return &ScoreStream{Framerate: framerate}
}

// Segments returns the stream's segments in order. The returned slice must
// not be mutated by callers.
func (s *ScoreStream) Segments() []ScoreSegment {
	return s.segments
}

// Duration is the sum of every segment's frame span; gaps contribute
// nothing.
func (s *ScoreStream) Duration() int64 {
	var total int64
	for _, seg := range s.segments {
		total += seg.Duration()
	}
	return total
}

// WriteScores absorbs one LogitData result into the stream. callFrame is
// the frame index of the last logit in the window [callFrame-videoLength+1,
// callFrame]; the logits themselves are interpreted as covering only the
// trailing len(logits) frames of that window (the frames newly advanced
// since the buffer's previous dispatch — see DESIGN.md for why this reading
// was chosen over scoring the entire clip every call).
func (s *ScoreStream) WriteScores(data face.LogitData) error {
	n := int64(len(data.Logits))
	if n == 0 {
		return nil
	}
	hist := data.HitHistory
	if hist == nil || hist.Empty() {
		return nil
	}

	if last, ok := s.lastSegment(); ok && data.CallFrame+1 < last.EndIndex {
		return asderrors.New(asderrors.WriteFailedOutdatedSegment, "score_stream")
	}

	windowStart := data.CallFrame - int64(hist.Width()) + 1
	updateStart := data.CallFrame - n + 1

	chunks := hist.Chunks()
	for i := len(chunks) - 1; i >= 0; i-- {
		c := chunks[i]
		absLo := windowStart + int64(c.Lo)
		absHi := windowStart + int64(c.Hi)

		lo := maxInt64(absLo, updateStart)
		hi := minInt64(absHi, data.CallFrame+1)
		if lo >= hi {
			if absHi <= updateStart {
				break // chunks are ordered oldest->newest; nothing older intersects either
			}
			continue
		}

		scores := make([]Score, hi-lo)
		for j := range scores {
			scores[j] = Score{Logit: data.Logits[lo-updateStart+int64(j)]}
		}
		s.mergeRange(lo, hi, scores)
	}
	return nil
}

func (s *ScoreStream) lastSegment() (ScoreSegment, bool) {
	if len(s.segments) == 0 {
		return ScoreSegment{}, false
	}
	return s.segments[len(s.segments)-1], true
}

// mergeRange overlays or inserts [lo,hi) into the segment list, searching
// backward from the tail (spec.md §4.7: "amortized O(1) in the typical
// case" for monotonically increasing writes).
func (s *ScoreStream) mergeRange(lo, hi int64, scores []Score) {
	idx := len(s.segments)
	for idx > 0 && s.segments[idx-1].StartIndex > lo {
		idx--
	}

	if idx > 0 && lo <= s.segments[idx-1].EndIndex {
		s.segments[idx-1].overlay(lo, hi, scores)
		s.coalesceFrom(idx - 1)
		return
	}

	newSeg := ScoreSegment{StartIndex: lo, EndIndex: hi, Scores: scores}
	s.segments = append(s.segments, ScoreSegment{})
	copy(s.segments[idx+1:], s.segments[idx:])
	s.segments[idx] = newSeg
	s.coalesceFrom(idx)
}

// coalesceFrom merges s.segments[i] forward into any immediately following
// segments that have become adjacent or overlapping.
func (s *ScoreStream) coalesceFrom(i int) {
	for i+1 < len(s.segments) && s.segments[i].adjacentOrOverlapping(s.segments[i+1]) {
		s.segments[i].mergeWith(s.segments[i+1])
		s.segments = append(s.segments[:i+1], s.segments[i+2:]...)
	}
}

// Absorb merges other's segments into s via a merge-sort pass, coalescing
// where the two streams touch or overlap.
func (s *ScoreStream) Absorb(other *ScoreStream) {
	if other == nil || len(other.segments) == 0 {
		return
	}
	merged := make([]ScoreSegment, 0, len(s.segments)+len(other.segments))
	i, j := 0, 0
	for i < len(s.segments) && j < len(other.segments) {
		if s.segments[i].StartIndex <= other.segments[j].StartIndex {
			merged = appendOrMerge(merged, s.segments[i])
			i++
		} else {
			merged = appendOrMerge(merged, other.segments[j])
			j++
		}
	}
	for ; i < len(s.segments); i++ {
		merged = appendOrMerge(merged, s.segments[i])
	}
	for ; j < len(other.segments); j++ {
		merged = appendOrMerge(merged, other.segments[j])
	}
	s.segments = merged
}

func appendOrMerge(out []ScoreSegment, seg ScoreSegment) []ScoreSegment {
	if n := len(out); n > 0 && out[n-1].adjacentOrOverlapping(seg) {
		out[n-1].mergeWith(seg)
		return out
	}
	return append(out, seg)
}

// Repair restores the sorted, non-overlapping invariant by sorting segments
// by start index and reducing with a rightmost-absorb pass. Used as a
// fallback when segments are known or suspected to have drifted out of
// order (spec.md §4.7).
func (s *ScoreStream) Repair() {
	sort.Slice(s.segments, func(i, j int) bool {
		return s.segments[i].StartIndex < s.segments[j].StartIndex
	})
	var out []ScoreSegment
	for _, seg := range s.segments {
		out = appendOrMerge(out, seg)
	}
	s.segments = out
}

// FindSegmentForIndex returns the segment containing frame index idx, if
// any, via binary search.
func (s *ScoreStream) FindSegmentForIndex(idx int64) (ScoreSegment, bool) {
	n := len(s.segments)
	i := sort.Search(n, func(i int) bool { return s.segments[i].EndIndex > idx })
	if i < n && s.segments[i].StartIndex <= idx {
		return s.segments[i], true
	}
	return ScoreSegment{}, false
}

// FindSegmentForTime is FindSegmentForIndex scaled by Framerate.
func (s *ScoreStream) FindSegmentForTime(t float64) (ScoreSegment, bool) {
	return s.FindSegmentForIndex(int64(t * float64(s.Framerate)))
}

// FindSegments returns the inclusive slice of segments intersecting
// [fromIndex, toIndex).
func (s *ScoreStream) FindSegments(fromIndex, toIndex int64) []ScoreSegment {
	var out []ScoreSegment
	for _, seg := range s.segments {
		if seg.EndIndex > fromIndex && seg.StartIndex < toIndex {
			out = append(out, seg)
		}
	}
	return out
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
