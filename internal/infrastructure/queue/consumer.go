package queue

import (
	"context"
	"errors"
	"time"

	"backoffice-marketsync-layer/internal/application"
	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// batchSize bounds how many due jobs one pass claims.
	batchSize = 25

	// claimTTL is how long a claimed job stays invisible to other consumers.
	// A consumer that dies mid-job releases its claims after this long.
	claimTTL = 2 * time.Minute

	// backoffBase and backoffCapExponent shape the retry delay ladder:
	// 30s, 60s, 120s, 240s, 480s, then 480s for every later attempt.
	backoffBase        = 30 * time.Second
	backoffCapExponent = 4
)

// maxWorkers bounds how many claimed jobs run at once. Outbound provider
// traffic is throttled separately by the shared call limiter inside the
// handlers, so nesting the limiter here would risk deadlock.
const maxWorkers = 8

// Consumer drains due retry jobs in batches.
type Consumer struct {
	jobs       ports.RetryJobRepository
	dispatcher *application.JobDispatcher
	metrics    ports.MetricsRecorder
	logger     zerolog.Logger
	now        func() time.Time
}

// NewConsumer creates a new queue consumer
func NewConsumer(
	jobs ports.RetryJobRepository,
	dispatcher *application.JobDispatcher,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
) *Consumer {
	return &Consumer{
		jobs:       jobs,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// RunPass claims one batch of due jobs and processes it to completion.
// It returns the number of jobs processed.
func (c *Consumer) RunPass(ctx context.Context) (int, error) {
	if due, err := c.jobs.CountDue(ctx); err == nil {
		c.metrics.SetQueueDue(due)
	}

	claimed, err := c.jobs.ClaimDue(ctx, batchSize, claimTTL)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxWorkers)
	for _, job := range claimed {
		job := job
		group.Go(func() error {
			c.processJob(groupCtx, job)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	c.logger.Info().
		Int("processed", len(claimed)).
		Msg("Retry queue pass finished")
	return len(claimed), nil
}

// processJob runs one claimed job and settles it: delete on success,
// dead-letter when unretryable or exhausted, reschedule otherwise.
func (c *Consumer) processJob(ctx context.Context, job *domain.RetryJob) {
	err := c.dispatcher.Dispatch(ctx, job)
	if err == nil {
		if err := c.jobs.Complete(ctx, job.ID); err != nil {
			c.logger.Error().Err(err).Str("jobId", job.ID).Msg("Failed to complete job")
			return
		}
		c.metrics.JobProcessed(job.Kind, "success")
		return
	}

	if errors.Is(err, domain.ErrUnknownJobKind) {
		// Retrying cannot help; park it for inspection right away.
		c.deadLetter(ctx, job, err)
		return
	}

	job.Attempts++
	if job.Attempts >= job.MaxAttempts {
		c.deadLetter(ctx, job, err)
		return
	}

	delay := retryDelay(job.Attempts)
	nextRetryAt := c.now().Add(delay)
	if err := c.jobs.Reschedule(ctx, job.ID, job.Attempts, err.Error(), nextRetryAt); err != nil {
		c.logger.Error().Err(err).Str("jobId", job.ID).Msg("Failed to reschedule job")
		return
	}

	c.metrics.JobProcessed(job.Kind, "retry")
	c.logger.Warn().
		Str("jobId", job.ID).
		Str("kind", job.Kind).
		Int("attempts", job.Attempts).
		Dur("delay", delay).
		Msg("Job failed, rescheduled")
}

func (c *Consumer) deadLetter(ctx context.Context, job *domain.RetryJob, cause error) {
	if err := c.jobs.DeadLetter(ctx, job, cause.Error()); err != nil {
		c.logger.Error().Err(err).Str("jobId", job.ID).Msg("Failed to dead-letter job")
		return
	}
	c.metrics.JobProcessed(job.Kind, "dead_letter")
	c.metrics.DeadLettered(job.Kind)
	c.logger.Error().
		Str("jobId", job.ID).
		Str("kind", job.Kind).
		Int("attempts", job.Attempts).
		Str("finalError", cause.Error()).
		Msg("Job dead-lettered")
}

// retryDelay doubles per attempt from backoffBase, with the exponent capped
// so late retries plateau instead of drifting for hours.
func retryDelay(attempts int) time.Duration {
	exponent := attempts - 1
	if exponent > backoffCapExponent {
		exponent = backoffCapExponent
	}
	if exponent < 0 {
		exponent = 0
	}
	return backoffBase << exponent
}
