package repository

import (
	"context"
	"fmt"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// capabilityDoc holds the per-account shipping capability flags.
type capabilityDoc struct {
	OrganizationID string          `bson:"organizationId"`
	Provider       string          `bson:"provider"`
	Methods        map[string]bool `bson:"methods"`
}

// MongoCapabilityRepository implements CapabilityRepository using MongoDB
type MongoCapabilityRepository struct {
	collection *mongo.Collection
}

// NewMongoCapabilityRepository creates a new MongoDB capability repository
func NewMongoCapabilityRepository(db *mongo.Database) ports.CapabilityRepository {
	return &MongoCapabilityRepository{
		collection: db.Collection("account_capabilities"),
	}
}

// GetAccountCapabilities returns the account's shipping method flags.
// An account with no stored document has every method enabled.
func (r *MongoCapabilityRepository) GetAccountCapabilities(ctx context.Context, orgID string, provider domain.Provider) (map[domain.ShippingMethod]bool, error) {
	var doc capabilityDoc
	filter := bson.M{
		"organizationId": orgID,
		"provider":       string(provider),
	}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account capabilities: %w", err)
	}

	caps := make(map[domain.ShippingMethod]bool, len(doc.Methods))
	for method, enabled := range doc.Methods {
		caps[domain.ShippingMethod(method)] = enabled
	}
	return caps, nil
}
