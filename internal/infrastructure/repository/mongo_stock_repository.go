package repository

import (
	"context"
	"fmt"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/infrastructure/repository/entity"
	"backoffice-marketsync-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStockRepository implements StockRepository using MongoDB
type MongoStockRepository struct {
	collection *mongo.Collection
}

// NewMongoStockRepository creates a new MongoDB stock repository
func NewMongoStockRepository(db *mongo.Database) ports.StockRepository {
	return &MongoStockRepository{
		collection: db.Collection("warehouse_stock"),
	}
}

// ReplaceItemRows replaces the full row set for an item. Delete-then-insert
// keeps the stored rows an exact mirror of the latest reconciliation pass.
func (r *MongoStockRepository) ReplaceItemRows(ctx context.Context, orgID string, provider domain.Provider, itemID string, rows []domain.WarehouseStockRow) error {
	filter := bson.M{
		"organizationId": orgID,
		"provider":       string(provider),
		"itemId":         itemID,
	}

	if _, err := r.collection.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to clear item rows: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, entity.MongoStockRowDocFromDomain(row))
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert item rows: %w", err)
	}

	return nil
}

// ListItemRows retrieves the current rows for an item, ordered by warehouse
func (r *MongoStockRepository) ListItemRows(ctx context.Context, orgID string, provider domain.Provider, itemID string) ([]domain.WarehouseStockRow, error) {
	filter := bson.M{
		"organizationId": orgID,
		"provider":       string(provider),
		"itemId":         itemID,
	}
	opts := options.Find().SetSort(bson.D{{Key: "warehouseId", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list item rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []domain.WarehouseStockRow
	for cursor.Next(ctx) {
		var doc entity.MongoStockRowDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode stock row: %w", err)
		}
		rows = append(rows, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return rows, nil
}
