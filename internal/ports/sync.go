package ports

import (
	"context"

	"backoffice-marketsync-layer/internal/domain"
)

// CallLimiter bounds concurrent outbound marketplace traffic.
type CallLimiter interface {
	// Do runs fn once a slot is free. The slot is released even when fn
	// panics. Waiting ends early when ctx is done.
	Do(ctx context.Context, fn func() error) error
}

// SyncEventPublisher broadcasts per-item sync results to live subscribers.
// Publishing never blocks the sync path.
type SyncEventPublisher interface {
	Publish(event *domain.SyncEvent)
}

// MetricsRecorder receives operational counters from the sync engine.
type MetricsRecorder interface {
	ItemSynced(provider domain.Provider, outcome string)
	JobProcessed(kind string, outcome string)
	DeadLettered(kind string)
	SetQueueDue(n int64)
}
