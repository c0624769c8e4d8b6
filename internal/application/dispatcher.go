package application

import (
	"context"

	"backoffice-marketsync-layer/internal/domain"

	"github.com/rs/zerolog"
)

// JobHandler processes retry jobs of the kinds it declares.
type JobHandler interface {
	// CanHandle returns true if this handler can process the given job kind
	CanHandle(kind string) bool

	// Handle processes a claimed retry job
	Handle(ctx context.Context, job *domain.RetryJob) error
}

// JobDispatcher routes claimed jobs to their registered handler.
type JobDispatcher struct {
	handlers []JobHandler
	logger   zerolog.Logger
}

// NewJobDispatcher creates a new job dispatcher
func NewJobDispatcher(logger zerolog.Logger) *JobDispatcher {
	return &JobDispatcher{logger: logger}
}

// RegisterHandler registers a handler for dispatch
func (d *JobDispatcher) RegisterHandler(handler JobHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch routes the job to the first handler accepting its kind. A job
// kind no handler accepts returns domain.ErrUnknownJobKind, which the queue
// treats as unretryable.
func (d *JobDispatcher) Dispatch(ctx context.Context, job *domain.RetryJob) error {
	for _, handler := range d.handlers {
		if handler.CanHandle(job.Kind) {
			return handler.Handle(ctx, job)
		}
	}

	d.logger.Warn().
		Str("jobId", job.ID).
		Str("kind", job.Kind).
		Msg("No handler registered for job kind")
	return domain.ErrUnknownJobKind
}
