package marketplace

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many tasks run concurrently against a rate-limited
// provider API. Waiters are served in submission order; a task that panics
// still releases its slot.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter creates a limiter allowing at most n concurrent tasks.
func NewLimiter(n int64) *Limiter {
	return &Limiter{sem: semaphore.NewWeighted(n)}
}

// Do runs fn once a slot is available. It returns the context error when
// cancelled while waiting, otherwise fn's result.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn()
}
