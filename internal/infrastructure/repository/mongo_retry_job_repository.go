package repository

import (
	"context"
	"fmt"
	"time"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/infrastructure/repository/entity"
	"backoffice-marketsync-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRetryJobRepository implements RetryJobRepository using MongoDB
type MongoRetryJobRepository struct {
	jobsCollection        *mongo.Collection
	deadLettersCollection *mongo.Collection
}

// NewMongoRetryJobRepository creates a new MongoDB retry job repository
func NewMongoRetryJobRepository(db *mongo.Database) ports.RetryJobRepository {
	return &MongoRetryJobRepository{
		jobsCollection:        db.Collection("retry_jobs"),
		deadLettersCollection: db.Collection("dead_letters"),
	}
}

// Enqueue inserts a new pending job
func (r *MongoRetryJobRepository) Enqueue(ctx context.Context, job *domain.RetryJob) error {
	doc := entity.MongoRetryJobDocFromDomain(job)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	_, err := r.jobsCollection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// ClaimDue claims up to limit due jobs, oldest first. Each claim is a single
// FindOneAndUpdate, so two consumers can never hold the same job at once; a
// job whose claim expired is treated as due again.
func (r *MongoRetryJobRepository) ClaimDue(ctx context.Context, limit int, claimTTL time.Duration) ([]*domain.RetryJob, error) {
	var claimed []*domain.RetryJob
	for len(claimed) < limit {
		now := time.Now()
		filter := bson.M{"$or": bson.A{
			bson.M{
				"status":      string(domain.JobStatusPending),
				"nextRetryAt": bson.M{"$lte": now},
			},
			bson.M{
				"status":       string(domain.JobStatusRunning),
				"claimedUntil": bson.M{"$lte": now},
			},
		}}
		update := bson.M{"$set": bson.M{
			"status":       string(domain.JobStatusRunning),
			"claimedUntil": now.Add(claimTTL),
		}}
		opts := options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "nextRetryAt", Value: 1}}).
			SetReturnDocument(options.After)

		var doc entity.MongoRetryJobDoc
		err := r.jobsCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if err == mongo.ErrNoDocuments {
			break
		}
		if err != nil {
			return claimed, fmt.Errorf("failed to claim job: %w", err)
		}
		claimed = append(claimed, doc.ToDomain())
	}

	return claimed, nil
}

// Complete deletes a job after successful execution
func (r *MongoRetryJobRepository) Complete(ctx context.Context, jobID string) error {
	_, err := r.jobsCollection.DeleteOne(ctx, bson.M{"_id": jobID})
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return nil
}

// Reschedule records a failed attempt and returns the job to pending
func (r *MongoRetryJobRepository) Reschedule(ctx context.Context, jobID string, attempts int, lastError string, nextRetryAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":      string(domain.JobStatusPending),
			"attempts":    attempts,
			"lastError":   lastError,
			"nextRetryAt": nextRetryAt,
		},
		"$unset": bson.M{"claimedUntil": ""},
	}

	_, err := r.jobsCollection.UpdateOne(ctx, bson.M{"_id": jobID}, update)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}

	return nil
}

// DeadLetter moves a job out of the live queue into the dead-letter store
func (r *MongoRetryJobRepository) DeadLetter(ctx context.Context, job *domain.RetryJob, finalError string) error {
	doc := entity.MongoDeadLetterDoc{
		JobID:          job.ID,
		Kind:           job.Kind,
		OrganizationID: job.OrganizationID,
		Payload:        job.Payload,
		Attempts:       job.Attempts,
		FinalError:     finalError,
		CreatedAt:      time.Now(),
	}

	if _, err := r.deadLettersCollection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record dead letter: %w", err)
	}

	if _, err := r.jobsCollection.DeleteOne(ctx, bson.M{"_id": job.ID}); err != nil {
		return fmt.Errorf("failed to remove dead-lettered job: %w", err)
	}

	return nil
}

// ListDeadLetters retrieves recent dead letters, newest first
func (r *MongoRetryJobRepository) ListDeadLetters(ctx context.Context, orgID string, limit int) ([]*domain.DeadLetterRecord, error) {
	filter := bson.M{}
	if orgID != "" {
		filter["organizationId"] = orgID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.deadLettersCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.DeadLetterRecord
	for cursor.Next(ctx) {
		var doc entity.MongoDeadLetterDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter: %w", err)
		}
		records = append(records, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return records, nil
}

// CountDue returns the number of jobs currently eligible to run
func (r *MongoRetryJobRepository) CountDue(ctx context.Context) (int64, error) {
	filter := bson.M{
		"status":      string(domain.JobStatusPending),
		"nextRetryAt": bson.M{"$lte": time.Now()},
	}

	count, err := r.jobsCollection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count due jobs: %w", err)
	}

	return count, nil
}
