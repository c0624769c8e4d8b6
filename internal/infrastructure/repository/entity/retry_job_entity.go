package entity

import (
	"time"

	"backoffice-marketsync-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoRetryJobDoc represents a retry job in MongoDB. The _id carries the
// caller-assigned job id rather than an ObjectID.
type MongoRetryJobDoc struct {
	ID             string     `bson:"_id"`
	Kind           string     `bson:"kind"`
	OrganizationID string     `bson:"organizationId"`
	Payload        []byte     `bson:"payload"`
	Attempts       int        `bson:"attempts"`
	MaxAttempts    int        `bson:"maxAttempts"`
	NextRetryAt    time.Time  `bson:"nextRetryAt"`
	LastError      string     `bson:"lastError"`
	Status         string     `bson:"status"`
	ClaimedUntil   *time.Time `bson:"claimedUntil,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoRetryJobDoc) ToDomain() *domain.RetryJob {
	return &domain.RetryJob{
		ID:             d.ID,
		Kind:           d.Kind,
		OrganizationID: d.OrganizationID,
		Payload:        d.Payload,
		Attempts:       d.Attempts,
		MaxAttempts:    d.MaxAttempts,
		NextRetryAt:    d.NextRetryAt,
		LastError:      d.LastError,
		Status:         domain.JobStatus(d.Status),
		ClaimedUntil:   d.ClaimedUntil,
		CreatedAt:      d.CreatedAt,
	}
}

// MongoRetryJobDocFromDomain converts a domain entity to a MongoDB document
func MongoRetryJobDocFromDomain(job *domain.RetryJob) *MongoRetryJobDoc {
	return &MongoRetryJobDoc{
		ID:             job.ID,
		Kind:           job.Kind,
		OrganizationID: job.OrganizationID,
		Payload:        job.Payload,
		Attempts:       job.Attempts,
		MaxAttempts:    job.MaxAttempts,
		NextRetryAt:    job.NextRetryAt,
		LastError:      job.LastError,
		Status:         string(job.Status),
		ClaimedUntil:   job.ClaimedUntil,
		CreatedAt:      job.CreatedAt,
	}
}

// MongoDeadLetterDoc represents an exhausted job in MongoDB
type MongoDeadLetterDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	JobID          string             `bson:"jobId"`
	Kind           string             `bson:"kind"`
	OrganizationID string             `bson:"organizationId"`
	Payload        []byte             `bson:"payload"`
	Attempts       int                `bson:"attempts"`
	FinalError     string             `bson:"finalError"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoDeadLetterDoc) ToDomain() *domain.DeadLetterRecord {
	return &domain.DeadLetterRecord{
		ID:             d.ID.Hex(),
		JobID:          d.JobID,
		Kind:           d.Kind,
		OrganizationID: d.OrganizationID,
		Payload:        d.Payload,
		Attempts:       d.Attempts,
		FinalError:     d.FinalError,
		CreatedAt:      d.CreatedAt,
	}
}
