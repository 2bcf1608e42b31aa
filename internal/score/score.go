// Package score implements the per-speaker accumulated-logit timeline:
// Score, ScoreSegment, and ScoreStream, with additive overlap accumulation
// across successive inference windows (spec.md §3/§4.7).
package score

import "math"

// Score wraps a single accumulated logit. Update adds into the logit only
// when both operands are finite — additive accumulation, the rule this
// implementation settles on for spec.md §9's open question between
// averaging and summing overlapping logits.
type Score struct {
	Logit float32
}

// Update returns the result of overlaying other onto s.
func (s Score) Update(other Score) Score {
	sFinite := !math.IsNaN(float64(s.Logit)) && !math.IsInf(float64(s.Logit), 0)
	oFinite := !math.IsNaN(float64(other.Logit)) && !math.IsInf(float64(other.Logit), 0)
	switch {
	case sFinite && oFinite:
		return Score{Logit: s.Logit + other.Logit}
	case oFinite:
		return other
	default:
		return s
	}
}

// Probability returns σ(logit), the sigmoid-mapped speaking probability.
func (s Score) Probability() float64 {
	return 1 / (1 + math.Exp(-float64(s.Logit)))
}
