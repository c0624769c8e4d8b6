package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"
)

// ShopeeAdapter speaks the HMAC-signed marketplace API. Shop-level reads
// sign with the path+timestamp+token+shop rule; calls carrying a body sign
// over the canonical body JSON instead.
type ShopeeAdapter struct {
	client *Client
}

// NewShopeeAdapter creates the HMAC provider adapter.
func NewShopeeAdapter(client *Client) *ShopeeAdapter {
	return &ShopeeAdapter{client: client}
}

func (a *ShopeeAdapter) GetItemStock(ctx context.Context, cred *domain.Credential, itemID string) ([]domain.RawLocation, int, error) {
	query := url.Values{}
	query.Set("item_id", itemID)

	resp, err := a.client.Call(ctx, cred, SignRequest{
		Method: http.MethodGet,
		Path:   "/api/v2/product/get_item_stock",
		Query:  query,
		Rule:   domain.RulePathToken,
	})
	if err != nil {
		return nil, 0, err
	}

	var payload struct {
		Response struct {
			TotalAvailable int              `json:"total_available"`
			Stocks         []map[string]any `json:"stocks"`
		} `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode stock response: %w", err)
	}

	locations := make([]domain.RawLocation, 0, len(payload.Response.Stocks))
	for _, raw := range payload.Response.Stocks {
		locations = append(locations, shopeeLocationFromFields(raw))
	}

	return locations, payload.Response.TotalAvailable, nil
}

func (a *ShopeeAdapter) GetItemShipping(ctx context.Context, cred *domain.Credential, itemID string) (*domain.ShippingInfo, error) {
	resp, err := a.client.Call(ctx, cred, SignRequest{
		Method: http.MethodPost,
		Path:   "/api/v2/logistics/get_item_channels",
		Body:   map[string]string{"item_id": itemID},
		Rule:   domain.RulePathBody,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response struct {
			Logistics []struct {
				ChannelType string `json:"channel_type"`
			} `json:"logistics"`
		} `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode logistics response: %w", err)
	}

	types := make([]string, 0, len(payload.Response.Logistics))
	for _, l := range payload.Response.Logistics {
		types = append(types, l.ChannelType)
	}
	return &domain.ShippingInfo{LogisticTypes: types}, nil
}

func (a *ShopeeAdapter) GetSellerStores(ctx context.Context, cred *domain.Credential) ([]string, error) {
	resp, err := a.client.Call(ctx, cred, SignRequest{
		Method: http.MethodGet,
		Path:   "/api/v2/shop/get_warehouse_detail",
		Rule:   domain.RulePathToken,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response []struct {
			WarehouseID string `json:"warehouse_id"`
		} `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode warehouse response: %w", err)
	}

	ids := make([]string, 0, len(payload.Response))
	for _, w := range payload.Response {
		ids = append(ids, w.WarehouseID)
	}
	return ids, nil
}

func shopeeLocationFromFields(raw map[string]any) domain.RawLocation {
	loc := domain.RawLocation{Fields: raw}

	if v, ok := raw["location_id"].(string); ok {
		loc.WarehouseID = v
	}
	if v, ok := raw["location_name"].(string); ok {
		loc.Name = v
	}
	if v, ok := raw["location_type"].(string); ok {
		loc.TypeTag = v
	}
	if v, ok := raw["store_id"].(string); ok {
		loc.StoreID = v
	}
	if _, ok := raw["whs_id"]; ok {
		loc.NetworkNode = true
	}
	if _, ok := raw["pickup_address_id"]; ok {
		loc.AddressOrigin = true
	}

	return loc
}

var _ ports.MarketplaceClient = (*ShopeeAdapter)(nil)
