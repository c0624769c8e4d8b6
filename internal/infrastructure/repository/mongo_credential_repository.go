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

// MongoCredentialRepository implements CredentialRepository using MongoDB
type MongoCredentialRepository struct {
	collection *mongo.Collection
}

// NewMongoCredentialRepository creates a new MongoDB credential repository
func NewMongoCredentialRepository(db *mongo.Database) ports.CredentialRepository {
	return &MongoCredentialRepository{
		collection: db.Collection("credentials"),
	}
}

// Get retrieves the credential for an organization and provider
func (r *MongoCredentialRepository) Get(ctx context.Context, orgID string, provider domain.Provider) (*domain.Credential, error) {
	var doc entity.MongoCredentialDoc
	filter := bson.M{
		"organizationId": orgID,
		"provider":       string(provider),
	}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return doc.ToDomain(), nil
}

// Save upserts the credential. The whole tuple is written in one $set so a
// concurrent refresh can never leave a half-updated token pair behind.
func (r *MongoCredentialRepository) Save(ctx context.Context, cred *domain.Credential) error {
	doc := entity.MongoCredentialDocFromDomain(cred)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{
		"organizationId": cred.OrganizationID,
		"provider":       string(cred.Provider),
	}
	update := bson.M{"$set": doc}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Delete removes the credential for an organization and provider
func (r *MongoCredentialRepository) Delete(ctx context.Context, orgID string, provider domain.Provider) error {
	filter := bson.M{
		"organizationId": orgID,
		"provider":       string(provider),
	}

	_, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}
