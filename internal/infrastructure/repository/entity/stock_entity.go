package entity

import (
	"time"

	"backoffice-marketsync-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoStockRowDoc represents a normalized warehouse stock row in MongoDB
type MongoStockRowDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	OrganizationID string             `bson:"organizationId"`
	Provider       string             `bson:"provider"`
	ItemID         string             `bson:"itemId"`
	WarehouseID    string             `bson:"warehouseId"`
	Name           string             `bson:"name"`
	Class          string             `bson:"class"`
	Quantity       int                `bson:"quantity"`
	Method         string             `bson:"method"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoStockRowDoc) ToDomain() domain.WarehouseStockRow {
	return domain.WarehouseStockRow{
		OrganizationID: d.OrganizationID,
		Provider:       domain.Provider(d.Provider),
		ItemID:         d.ItemID,
		WarehouseID:    d.WarehouseID,
		Name:           d.Name,
		Class:          domain.LocationClass(d.Class),
		Quantity:       d.Quantity,
		Method:         domain.ShippingMethod(d.Method),
		UpdatedAt:      d.UpdatedAt,
	}
}

// MongoStockRowDocFromDomain converts a domain entity to a MongoDB document
func MongoStockRowDocFromDomain(row domain.WarehouseStockRow) *MongoStockRowDoc {
	return &MongoStockRowDoc{
		OrganizationID: row.OrganizationID,
		Provider:       string(row.Provider),
		ItemID:         row.ItemID,
		WarehouseID:    row.WarehouseID,
		Name:           row.Name,
		Class:          string(row.Class),
		Quantity:       row.Quantity,
		Method:         string(row.Method),
		UpdatedAt:      row.UpdatedAt,
	}
}
