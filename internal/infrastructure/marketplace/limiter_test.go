package marketplace

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterNeverExceedsBound(t *testing.T) {
	limiter := NewLimiter(3)

	var active, peak, completed int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Do(context.Background(), func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				atomic.AddInt32(&completed, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, int32(20), atomic.LoadInt32(&completed))
}

func TestLimiterReleasesSlotOnPanic(t *testing.T) {
	limiter := NewLimiter(1)

	func() {
		defer func() { _ = recover() }()
		_ = limiter.Do(context.Background(), func() error {
			panic("task blew up")
		})
	}()

	// The slot must be free again.
	done := make(chan struct{})
	go func() {
		require.NoError(t, limiter.Do(context.Background(), func() error { return nil }))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("limiter leaked a slot after a panicking task")
	}
}

func TestLimiterHonorsContextCancellation(t *testing.T) {
	limiter := NewLimiter(1)

	release := make(chan struct{})
	go func() {
		_ = limiter.Do(context.Background(), func() error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limiter.Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}
