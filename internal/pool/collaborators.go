// Package pool implements the scheduler, bounded-concurrency model pool,
// and buffer reservation manager that together decide, once per frame,
// which single ready ASDBuffer (if any) is fed to inference (spec.md
// §4.3/§4.4/§4.5).
package pool

import (
	"context"

	"github.com/zsiec/asdcore/internal/face"
)

// ASDRequest is the immutable snapshot dispatched to an ASDModel: the clip
// tensor plus the FrameHistory in effect at dispatch time, keyed by the
// frame the call was issued at (spec.md §3/§4.4 step 3).
type ASDRequest struct {
	CallFrame  int64
	HitHistory *face.FrameHistory
	VideoInput []float32 // W*H*videoLength, oldest-first
}

// ASDOutput is the black-box model's response: one logit per frame of the
// update window (spec.md §6, "Output{scores: framesPerUpdate float logits}").
type ASDOutput struct {
	Scores []float32
}

// ASDModel is the external, black-box ASD CNN (spec.md §6). Implementations
// are expected to be safe for concurrent use by distinct handles only — the
// ModelPool never calls two requests through the same handle concurrently.
type ASDModel interface {
	Predict(ctx context.Context, req ASDRequest) (ASDOutput, error)
}
