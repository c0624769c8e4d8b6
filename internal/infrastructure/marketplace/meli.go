package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"
)

// MeliAdapter speaks the bearer-token marketplace API.
type MeliAdapter struct {
	client *Client
}

// NewMeliAdapter creates the bearer-token provider adapter.
func NewMeliAdapter(client *Client) *MeliAdapter {
	return &MeliAdapter{client: client}
}

func (a *MeliAdapter) GetItemStock(ctx context.Context, cred *domain.Credential, itemID string) ([]domain.RawLocation, int, error) {
	resp, err := a.client.Call(ctx, cred, SignRequest{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/user-products/%s/stock", itemID),
		Rule:   domain.RuleBearer,
	})
	if err != nil {
		return nil, 0, err
	}

	var payload struct {
		AvailableQuantity int              `json:"available_quantity"`
		Locations         []map[string]any `json:"locations"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode stock response: %w", err)
	}

	locations := make([]domain.RawLocation, 0, len(payload.Locations))
	for _, raw := range payload.Locations {
		locations = append(locations, rawLocationFromFields(raw))
	}

	return locations, payload.AvailableQuantity, nil
}

func (a *MeliAdapter) GetItemShipping(ctx context.Context, cred *domain.Credential, itemID string) (*domain.ShippingInfo, error) {
	resp, err := a.client.Call(ctx, cred, SignRequest{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/items/%s/shipping", itemID),
		Rule:   domain.RuleBearer,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		LogisticType string   `json:"logistic_type"`
		Tags         []string `json:"tags"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode shipping response: %w", err)
	}

	types := payload.Tags
	if payload.LogisticType != "" {
		types = append([]string{payload.LogisticType}, types...)
	}
	return &domain.ShippingInfo{LogisticTypes: types}, nil
}

func (a *MeliAdapter) GetSellerStores(ctx context.Context, cred *domain.Credential) ([]string, error) {
	resp, err := a.client.Call(ctx, cred, SignRequest{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%s/stores", cred.AccountID),
		Rule:   domain.RuleBearer,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode stores response: %w", err)
	}

	ids := make([]string, 0, len(payload.Results))
	for _, r := range payload.Results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// rawLocationFromFields maps a decoded location object onto the closed set
// of markers the reconciler classifies on, keeping the raw fields for
// quantity extraction.
func rawLocationFromFields(raw map[string]any) domain.RawLocation {
	loc := domain.RawLocation{Fields: raw}

	if v, ok := raw["id"].(string); ok {
		loc.WarehouseID = v
	}
	if v, ok := raw["name"].(string); ok {
		loc.Name = v
	}
	if v, ok := raw["type"].(string); ok {
		loc.TypeTag = v
	}
	if v, ok := raw["store_id"].(string); ok {
		loc.StoreID = v
	}
	if _, ok := raw["node_id"]; ok {
		loc.NetworkNode = true
	}
	if _, ok := raw["address_id"]; ok {
		loc.AddressOrigin = true
	}

	return loc
}

var _ ports.MarketplaceClient = (*MeliAdapter)(nil)
