package llm

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission gate bounding how many calls of one kind may
// be outstanding. Callers queue when the limit is reached; they never fail
// on contention, only on context cancellation.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates a gate admitting at most limit concurrent holders.
// A non-positive limit falls back to 1 (fully serialized).
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire blocks until admission is granted or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.sem.Acquire(ctx, 1)
}

// Release returns the slot. Must follow a successful Acquire.
func (g *Gate) Release() {
	if g == nil {
		return
	}
	g.sem.Release(1)
}
