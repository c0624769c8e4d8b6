package domain

import "time"

// LocationClass classifies where an item's stock physically sits.
type LocationClass string

const (
	// LocationPlatformFulfilled is stock held in the marketplace's own network.
	LocationPlatformFulfilled LocationClass = "platform_fulfilled"
	// LocationSellerOperated is stock in a store or warehouse the seller runs.
	LocationSellerOperated LocationClass = "seller_operated"
	// LocationSellerAddress is stock shipped from the seller's registered address.
	LocationSellerAddress LocationClass = "seller_address_origin"
)

// ShippingMethod is the closed set of shipping modes a row can offer.
type ShippingMethod string

const (
	ShippingFulfillment ShippingMethod = "platform_fulfillment"
	ShippingFlex        ShippingMethod = "self_service"
	ShippingStandard    ShippingMethod = "standard_carrier"
	ShippingDropOff     ShippingMethod = "drop_off_carrier"
	ShippingUnknown     ShippingMethod = "unknown"
)

// WarehouseStockRow is one normalized per-warehouse stock record. The full
// row set for an item is replaced atomically on every reconciliation pass.
type WarehouseStockRow struct {
	OrganizationID string         `json:"organization_id" bson:"organization_id"`
	Provider       Provider       `json:"provider" bson:"provider"`
	ItemID         string         `json:"item_id" bson:"item_id"`
	WarehouseID    string         `json:"warehouse_id" bson:"warehouse_id"`
	Name           string         `json:"name" bson:"name"`
	Class          LocationClass  `json:"class" bson:"class"`
	Quantity       int            `json:"quantity" bson:"quantity"`
	Method         ShippingMethod `json:"method" bson:"method"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// RawLocation is one upstream stock location record before classification.
// Fields carries the decoded provider JSON so the reconciler can probe the
// provider's ordered quantity candidates.
type RawLocation struct {
	WarehouseID   string
	Name          string
	TypeTag       string
	NetworkNode   bool
	StoreID       string
	AddressOrigin bool
	Fields        map[string]any
}

// ShippingInfo is the authoritative per-item shipping signal, when available.
type ShippingInfo struct {
	LogisticTypes []string
}

// SyncEvent is published after each per-item reconciliation pass.
type SyncEvent struct {
	OrganizationID string              `json:"organization_id"`
	Provider       Provider            `json:"provider"`
	ItemID         string              `json:"item_id"`
	Rows           []WarehouseStockRow `json:"rows"`
	Incomplete     bool                `json:"incomplete"`
	Err            string              `json:"error,omitempty"`
	At             time.Time           `json:"at"`
}
