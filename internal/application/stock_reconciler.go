package application

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// fallbackWarehouseID names the synthetic row written when upstream reports
// no usable stock locations, so downstream consumers always find data.
const fallbackWarehouseID = "default"

// typeTagClasses is the closed mapping from explicit provider location tags
// to the location classification. Unmapped tags fall through to the marker
// rules; nothing is inferred by scanning arbitrary keys.
var typeTagClasses = map[string]domain.LocationClass{
	"meli_facility":   domain.LocationPlatformFulfilled,
	"fulfillment":     domain.LocationPlatformFulfilled,
	"warehouse":       domain.LocationSellerOperated,
	"store":           domain.LocationSellerOperated,
	"selling_address": domain.LocationSellerAddress,
	"seller_address":  domain.LocationSellerAddress,
}

// logisticMethods is the closed mapping from provider logistic type codes to
// the shipping method set. Unmapped codes are unknown, never guessed.
var logisticMethods = map[string]domain.ShippingMethod{
	"fulfillment":   domain.ShippingFulfillment,
	"fbs":           domain.ShippingFulfillment,
	"self_service":  domain.ShippingFlex,
	"flex":          domain.ShippingFlex,
	"standard":      domain.ShippingStandard,
	"cross_docking": domain.ShippingStandard,
	"drop_off":      domain.ShippingDropOff,
}

// quantityFields lists, per provider in priority order, the field names the
// reconciler probes for a location's quantity.
var quantityFields = map[domain.Provider][]string{
	domain.ProviderMeli:   {"available_quantity", "quantity", "total"},
	domain.ProviderShopee: {"normal_stock", "current_stock", "stock", "sellable_quantity"},
}

// ReconcileInput is everything one reconciliation pass consumes.
type ReconcileInput struct {
	OrganizationID string
	Provider       domain.Provider
	ItemID         string
	FlatQuantity   int
	Locations      []domain.RawLocation
	Shipping       *domain.ShippingInfo // nil when the enrichment call failed
	KnownStoreIDs  []string
}

// ReconcileResult carries the written rows. Incomplete marks passes that
// proceeded with reduced data; it is informational, never an error.
type ReconcileResult struct {
	Rows       []domain.WarehouseStockRow
	Incomplete bool
}

// StockReconciler merges multi-source stock data into one idempotent
// per-warehouse row set per item.
type StockReconciler struct {
	stock  ports.StockRepository
	caps   ports.CapabilityRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewStockReconciler creates a stock reconciler.
func NewStockReconciler(stock ports.StockRepository, caps ports.CapabilityRepository, logger zerolog.Logger) *StockReconciler {
	return &StockReconciler{
		stock:  stock,
		caps:   caps,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile recomputes and replaces the item's warehouse rows. Prior rows
// are deleted first, so warehouses the item no longer reports vanish.
func (r *StockReconciler) Reconcile(ctx context.Context, in ReconcileInput) (ReconcileResult, error) {
	result := ReconcileResult{Incomplete: in.Shipping == nil}

	caps, err := r.caps.GetAccountCapabilities(ctx, in.OrganizationID, in.Provider)
	if err != nil {
		// Capability lookup is additive; reconcile with everything enabled.
		r.logger.Warn().
			Err(err).
			Str("organizationId", in.OrganizationID).
			Str("provider", string(in.Provider)).
			Msg("Capability lookup failed, assuming all shipping methods enabled")
		caps = nil
		result.Incomplete = true
	}

	known := make(map[string]struct{}, len(in.KnownStoreIDs))
	for _, id := range in.KnownStoreIDs {
		known[id] = struct{}{}
	}

	authoritative := authoritativeMethod(in.Shipping)

	now := r.now()
	byWarehouse := make(map[string]*domain.WarehouseStockRow)
	var order []string
	for _, loc := range in.Locations {
		if loc.WarehouseID == "" {
			result.Incomplete = true
			continue
		}

		class := classifyLocation(loc, known)
		qty := extractQuantity(in.Provider, loc.Fields)

		if existing, ok := byWarehouse[loc.WarehouseID]; ok {
			// Same warehouse reported twice upstream: quantities add, the
			// first classification wins.
			existing.Quantity += qty
			continue
		}

		row := &domain.WarehouseStockRow{
			OrganizationID: in.OrganizationID,
			Provider:       in.Provider,
			ItemID:         in.ItemID,
			WarehouseID:    loc.WarehouseID,
			Name:           loc.Name,
			Class:          class,
			Quantity:       qty,
			Method:         resolveMethod(authoritative, class, caps),
			UpdatedAt:      now,
		}
		byWarehouse[loc.WarehouseID] = row
		order = append(order, loc.WarehouseID)
	}

	rows := make([]domain.WarehouseStockRow, 0, len(byWarehouse))
	for _, id := range order {
		rows = append(rows, *byWarehouse[id])
	}

	if len(rows) == 0 {
		// Downstream always finds at least one row.
		rows = append(rows, domain.WarehouseStockRow{
			OrganizationID: in.OrganizationID,
			Provider:       in.Provider,
			ItemID:         in.ItemID,
			WarehouseID:    fallbackWarehouseID,
			Name:           fallbackWarehouseID,
			Class:          domain.LocationSellerOperated,
			Quantity:       clampQuantity(float64(in.FlatQuantity)),
			Method:         resolveMethod(authoritative, domain.LocationSellerOperated, caps),
			UpdatedAt:      now,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].WarehouseID < rows[j].WarehouseID })

	if err := r.stock.ReplaceItemRows(ctx, in.OrganizationID, in.Provider, in.ItemID, rows); err != nil {
		return result, fmt.Errorf("failed to replace warehouse rows: %w", err)
	}

	result.Rows = rows
	return result, nil
}

// classifyLocation applies the classification rules in priority order.
func classifyLocation(loc domain.RawLocation, knownStores map[string]struct{}) domain.LocationClass {
	if class, ok := typeTagClasses[loc.TypeTag]; ok {
		return class
	}
	if loc.NetworkNode {
		return domain.LocationPlatformFulfilled
	}
	if loc.StoreID != "" {
		if _, ok := knownStores[loc.StoreID]; ok {
			return domain.LocationSellerOperated
		}
	}
	if loc.AddressOrigin {
		return domain.LocationSellerAddress
	}
	return domain.LocationSellerOperated
}

// extractQuantity probes the provider's candidate fields in order and
// returns the first numeric value found, floored and never negative.
func extractQuantity(provider domain.Provider, fields map[string]any) int {
	for _, name := range quantityFields[provider] {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if n, ok := asNumber(value); ok {
			return clampQuantity(n)
		}
		// Channel-specific availability nests one level deep.
		if nested, ok := value.(map[string]any); ok {
			for _, inner := range []string{"quantity", "available"} {
				if n, ok := asNumber(nested[inner]); ok {
					return clampQuantity(n)
				}
			}
		}
	}
	return 0
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clampQuantity(n float64) int {
	if n < 0 {
		return 0
	}
	return int(math.Floor(n))
}

// authoritativeMethod returns the first recognized logistic type, or unknown.
func authoritativeMethod(info *domain.ShippingInfo) domain.ShippingMethod {
	if info == nil {
		return domain.ShippingUnknown
	}
	for _, code := range info.LogisticTypes {
		if method, ok := logisticMethods[code]; ok {
			return method
		}
	}
	return domain.ShippingUnknown
}

// classDefaultMethod is the classification-implied shipping default used
// when no authoritative signal exists.
func classDefaultMethod(class domain.LocationClass) domain.ShippingMethod {
	if class == domain.LocationPlatformFulfilled {
		return domain.ShippingFulfillment
	}
	return domain.ShippingStandard
}

// resolveMethod picks the row's shipping method: the authoritative signal
// overrides the classification default, and a method the account has
// disabled is never offered.
func resolveMethod(authoritative domain.ShippingMethod, class domain.LocationClass, caps map[domain.ShippingMethod]bool) domain.ShippingMethod {
	method := authoritative
	if method == domain.ShippingUnknown {
		method = classDefaultMethod(class)
	}
	if enabled, present := caps[method]; present && !enabled {
		fallback := classDefaultMethod(class)
		if fallback != method {
			if enabled, present := caps[fallback]; !present || enabled {
				return fallback
			}
		}
		return domain.ShippingUnknown
	}
	return method
}
