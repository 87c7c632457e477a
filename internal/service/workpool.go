package service

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DerivationPool bounds background derivation work two ways: a queue
// cap on how many derivations may be outstanding at once (reserved but
// not yet finished), and a worker cap on how many run concurrently.
// When the queue is full, direct uploads are refused with TooBusy
// rather than piling up unbounded goroutines.
type DerivationPool struct {
	workers *semaphore.Weighted
	pending chan struct{}
}

// NewDerivationPool creates a pool with the given worker and queue
// bounds. Non-positive values fall back to small defaults so a
// zero-value config still yields a working pool.
func NewDerivationPool(workers, capacity int) *DerivationPool {
	if workers <= 0 {
		workers = 4
	}
	if capacity < workers {
		capacity = workers
	}
	return &DerivationPool{
		workers: semaphore.NewWeighted(int64(workers)),
		pending: make(chan struct{}, capacity),
	}
}

// Reserve claims a queue slot without blocking. It returns the release
// func and true on success, or (nil, false) when the pool is
// saturated — the caller surfaces that as TooBusy. The reservation is
// handed to Run, which releases it when the work finishes; callers
// that never reach Run must call release themselves.
func (p *DerivationPool) Reserve() (func(), bool) {
	select {
	case p.pending <- struct{}{}:
		return func() { <-p.pending }, true
	default:
		return nil, false
	}
}

// ReserveWait claims a queue slot, blocking until one frees or ctx is
// done. Used by the presigned finalization path, whose pacing is set
// by the event queue rather than an interactive caller.
func (p *DerivationPool) ReserveWait(ctx context.Context) (func(), error) {
	select {
	case p.pending <- struct{}{}:
		return func() { <-p.pending }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run executes fn on a worker slot in the background, releasing the
// queue reservation when fn returns.
func (p *DerivationPool) Run(release func(), fn func(context.Context)) {
	go func() {
		defer release()
		ctx := context.Background()
		if err := p.workers.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.workers.Release(1)
		fn(ctx)
	}()
}
