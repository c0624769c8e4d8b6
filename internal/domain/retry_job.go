package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrUnknownJobKind is returned by the dispatcher when no handler accepts a
// job's kind. The queue treats it as an immediate, unretryable failure.
var ErrUnknownJobKind = errors.New("unknown job kind")

// JobStatus represents the lifecycle state of a retry job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
)

// Well-known job kinds dispatched by the queue consumer.
const (
	JobKindStockSync    = "stock_sync"
	JobKindTokenRefresh = "token_refresh"
)

// RetryJob is one unit of durable background work. It is mutated only by
// the queue consumer and terminates by deletion (success) or dead-lettering.
type RetryJob struct {
	ID             string          `json:"id" bson:"_id"`
	Kind           string          `json:"kind" bson:"kind"`
	OrganizationID string          `json:"organization_id" bson:"organization_id"`
	Payload        json.RawMessage `json:"payload" bson:"payload"`
	Attempts       int             `json:"attempts" bson:"attempts"`
	MaxAttempts    int             `json:"max_attempts" bson:"max_attempts"`
	NextRetryAt    time.Time       `json:"next_retry_at" bson:"next_retry_at"`
	LastError      string          `json:"last_error" bson:"last_error"`
	Status         JobStatus       `json:"status" bson:"status"`
	ClaimedUntil   *time.Time      `json:"claimed_until,omitempty" bson:"claimed_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
}

// DeadLetterRecord is a job that exhausted its retry budget, kept out of the
// live queue for manual inspection.
type DeadLetterRecord struct {
	ID             string          `json:"id" bson:"_id"`
	JobID          string          `json:"job_id" bson:"job_id"`
	Kind           string          `json:"kind" bson:"kind"`
	OrganizationID string          `json:"organization_id" bson:"organization_id"`
	Payload        json.RawMessage `json:"payload" bson:"payload"`
	Attempts       int             `json:"attempts" bson:"attempts"`
	FinalError     string          `json:"final_error" bson:"final_error"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
}
