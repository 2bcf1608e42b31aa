package pool

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

// ModelPool is a bounded-concurrency actor over N pre-loaded ASDModel
// handles: borrow suspends until a handle is free, runInference wraps
// borrow/predict/reclaim, and reclaim wakes the oldest waiter first
// (spec.md §4.5). Handles themselves are never shared across concurrent
// callers.
type ModelPool struct {
	log *slog.Logger

	sem     *semaphore.Weighted
	handles chan ASDModel // buffered, len == cap(handles) == N
	n       int64
}

// NewModelPool creates a pool of N handles. Returns an error if handles is
// empty — mirrors spec.md §7's invalid_asd_model_amount, which is a fatal
// configuration error raised at construction, not at call time.
func NewModelPool(log *slog.Logger, handles []ASDModel) (*ModelPool, error) {
	if len(handles) == 0 {
		return nil, fmt.Errorf("pool: invalid_asd_model_amount: need at least one model handle")
	}
	if log == nil {
		log = slog.Default()
	}
	p := &ModelPool{
		log:     log.With("component", "model_pool"),
		sem:     semaphore.NewWeighted(int64(len(handles))),
		handles: make(chan ASDModel, len(handles)),
		n:       int64(len(handles)),
	}
	for _, h := range handles {
		p.handles <- h
	}
	return p, nil
}

// Size returns N, the configured number of model handles.
func (p *ModelPool) Size() int64 {
	return p.n
}

// borrow suspends until a handle is free, respecting ctx cancellation.
func (p *ModelPool) borrow(ctx context.Context) (ASDModel, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return <-p.handles, nil
}

// reclaim returns a handle to the pool, waking the oldest waiter.
func (p *ModelPool) reclaim(h ASDModel) {
	p.handles <- h
	p.sem.Release(1)
}

// RunInference borrows a handle, runs Predict, and reclaims the handle
// regardless of outcome. At most Size() predictions run concurrently.
func (p *ModelPool) RunInference(ctx context.Context, req ASDRequest) (ASDOutput, error) {
	handle, err := p.borrow(ctx)
	if err != nil {
		return ASDOutput{}, fmt.Errorf("model pool borrow: %w", err)
	}
	defer p.reclaim(handle)

	out, err := handle.Predict(ctx, req)
	if err != nil {
		p.log.Warn("asd model predict failed", "call_frame", req.CallFrame, "error", err)
		return ASDOutput{}, err
	}
	return out, nil
}
