package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backoffice-marketsync-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStockRepo is an in-memory StockRepository keyed by org/provider/item.
type memStockRepo struct {
	mu       sync.Mutex
	rows     map[string][]domain.WarehouseStockRow
	replaces int
}

func newMemStockRepo() *memStockRepo {
	return &memStockRepo{rows: make(map[string][]domain.WarehouseStockRow)}
}

func stockKey(orgID string, provider domain.Provider, itemID string) string {
	return orgID + "/" + string(provider) + "/" + itemID
}

func (r *memStockRepo) ReplaceItemRows(ctx context.Context, orgID string, provider domain.Provider, itemID string, rows []domain.WarehouseStockRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	copied := make([]domain.WarehouseStockRow, len(rows))
	copy(copied, rows)
	r.rows[stockKey(orgID, provider, itemID)] = copied
	return nil
}

func (r *memStockRepo) ListItemRows(ctx context.Context, orgID string, provider domain.Provider, itemID string) ([]domain.WarehouseStockRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[stockKey(orgID, provider, itemID)], nil
}

// memCapRepo serves fixed capability flags, or an error.
type memCapRepo struct {
	caps map[domain.ShippingMethod]bool
	err  error
}

func (r *memCapRepo) GetAccountCapabilities(ctx context.Context, orgID string, provider domain.Provider) (map[domain.ShippingMethod]bool, error) {
	return r.caps, r.err
}

func newTestReconciler(stock *memStockRepo, caps *memCapRepo) *StockReconciler {
	rec := NewStockReconciler(stock, caps, zerolog.Nop())
	rec.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return rec
}

func TestReconcileClassifiesByPriorityOrder(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		KnownStoreIDs:  []string{"store-5"},
		Locations: []domain.RawLocation{
			// Explicit tag wins even though the marker says network node.
			{WarehouseID: "w1", TypeTag: "selling_address", NetworkNode: true},
			{WarehouseID: "w2", NetworkNode: true},
			{WarehouseID: "w3", StoreID: "store-5"},
			// Unknown store falls through to the address-origin rule.
			{WarehouseID: "w4", StoreID: "store-404", AddressOrigin: true},
			{WarehouseID: "w5"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)

	classes := make(map[string]domain.LocationClass, len(result.Rows))
	for _, row := range result.Rows {
		classes[row.WarehouseID] = row.Class
	}
	assert.Equal(t, domain.LocationSellerAddress, classes["w1"])
	assert.Equal(t, domain.LocationPlatformFulfilled, classes["w2"])
	assert.Equal(t, domain.LocationSellerOperated, classes["w3"])
	assert.Equal(t, domain.LocationSellerAddress, classes["w4"])
	assert.Equal(t, domain.LocationSellerOperated, classes["w5"])
}

func TestReconcileExtractsQuantityFromOrderedCandidates(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderShopee,
		ItemID:         "10001",
		Locations: []domain.RawLocation{
			// First candidate wins over later ones.
			{WarehouseID: "w1", Fields: map[string]any{"normal_stock": float64(7), "stock": float64(99)}},
			// Negative values clamp to zero, fractions floor.
			{WarehouseID: "w2", Fields: map[string]any{"current_stock": float64(-3)}},
			{WarehouseID: "w3", Fields: map[string]any{"stock": 4.9}},
			// Channel-specific availability one level down.
			{WarehouseID: "w4", Fields: map[string]any{"stock": map[string]any{"available": float64(11)}}},
			// Nothing usable defaults to zero.
			{WarehouseID: "w5", Fields: map[string]any{"note": "n/a"}},
		},
	})
	require.NoError(t, err)

	quantities := make(map[string]int, len(result.Rows))
	for _, row := range result.Rows {
		quantities[row.WarehouseID] = row.Quantity
	}
	assert.Equal(t, 7, quantities["w1"])
	assert.Equal(t, 0, quantities["w2"])
	assert.Equal(t, 4, quantities["w3"])
	assert.Equal(t, 11, quantities["w4"])
	assert.Equal(t, 0, quantities["w5"])
}

func TestReconcileAuthoritativeShippingOverridesClassDefault(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Shipping:       &domain.ShippingInfo{LogisticTypes: []string{"not_a_code", "self_service"}},
		Locations: []domain.RawLocation{
			{WarehouseID: "w1", NetworkNode: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	// Platform-fulfilled would default to fulfillment; the signal wins.
	assert.Equal(t, domain.ShippingFlex, result.Rows[0].Method)
	assert.False(t, result.Incomplete)
}

func TestReconcileMissingShippingFallsBackToClassDefault(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Shipping:       nil,
		Locations: []domain.RawLocation{
			{WarehouseID: "w1", NetworkNode: true},
			{WarehouseID: "w2"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Incomplete)

	methods := make(map[string]domain.ShippingMethod, len(result.Rows))
	for _, row := range result.Rows {
		methods[row.WarehouseID] = row.Method
	}
	assert.Equal(t, domain.ShippingFulfillment, methods["w1"])
	assert.Equal(t, domain.ShippingStandard, methods["w2"])
}

func TestReconcileDisabledMethodDowngrades(t *testing.T) {
	stock := newMemStockRepo()
	caps := &memCapRepo{caps: map[domain.ShippingMethod]bool{
		domain.ShippingFlex: false,
	}}
	rec := newTestReconciler(stock, caps)

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Shipping:       &domain.ShippingInfo{LogisticTypes: []string{"flex"}},
		Locations: []domain.RawLocation{
			{WarehouseID: "w1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	// Flex is disabled for the account, so the row downgrades to the
	// seller-operated default instead of advertising it.
	assert.Equal(t, domain.ShippingStandard, result.Rows[0].Method)
}

func TestReconcileDisabledMethodAndDefaultYieldsUnknown(t *testing.T) {
	stock := newMemStockRepo()
	caps := &memCapRepo{caps: map[domain.ShippingMethod]bool{
		domain.ShippingFlex:     false,
		domain.ShippingStandard: false,
	}}
	rec := newTestReconciler(stock, caps)

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Shipping:       &domain.ShippingInfo{LogisticTypes: []string{"flex"}},
		Locations: []domain.RawLocation{
			{WarehouseID: "w1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, domain.ShippingUnknown, result.Rows[0].Method)
}

func TestReconcileCapabilityErrorProceedsIncomplete(t *testing.T) {
	stock := newMemStockRepo()
	caps := &memCapRepo{err: errors.New("capability store down")}
	rec := newTestReconciler(stock, caps)

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Shipping:       &domain.ShippingInfo{LogisticTypes: []string{"flex"}},
		Locations: []domain.RawLocation{
			{WarehouseID: "w1"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Incomplete)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, domain.ShippingFlex, result.Rows[0].Method)
}

func TestReconcileFallbackRowWhenNoUsableLocations(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		FlatQuantity:   42,
		Locations: []domain.RawLocation{
			// No warehouse id makes a record unusable.
			{Name: "mystery", Fields: map[string]any{"available_quantity": float64(5)}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Incomplete)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "default", row.WarehouseID)
	assert.Equal(t, domain.LocationSellerOperated, row.Class)
	assert.Equal(t, 42, row.Quantity)

	stored, err := stock.ListItemRows(context.Background(), "org-1", domain.ProviderMeli, "MLB100")
	require.NoError(t, err)
	assert.Equal(t, result.Rows, stored)
}

func TestReconcileMergesDuplicateWarehouses(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	result, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Locations: []domain.RawLocation{
			{WarehouseID: "w1", TypeTag: "meli_facility", Fields: map[string]any{"available_quantity": float64(3)}},
			{WarehouseID: "w1", Fields: map[string]any{"available_quantity": float64(4)}},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 7, result.Rows[0].Quantity)
	assert.Equal(t, domain.LocationPlatformFulfilled, result.Rows[0].Class)
}

func TestReconcileIsIdempotent(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	input := ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Locations: []domain.RawLocation{
			{WarehouseID: "w2", Fields: map[string]any{"available_quantity": float64(2)}},
			{WarehouseID: "w1", NetworkNode: true, Fields: map[string]any{"available_quantity": float64(9)}},
		},
	}

	first, err := rec.Reconcile(context.Background(), input)
	require.NoError(t, err)
	second, err := rec.Reconcile(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, 2, stock.replaces)

	stored, err := stock.ListItemRows(context.Background(), "org-1", domain.ProviderMeli, "MLB100")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	// Rows come back sorted by warehouse id.
	assert.Equal(t, "w1", stored[0].WarehouseID)
	assert.Equal(t, "w2", stored[1].WarehouseID)
}

func TestReconcileRemovesStaleWarehouses(t *testing.T) {
	stock := newMemStockRepo()
	rec := newTestReconciler(stock, &memCapRepo{})

	_, err := rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Locations: []domain.RawLocation{
			{WarehouseID: "w1"},
			{WarehouseID: "w2"},
		},
	})
	require.NoError(t, err)

	_, err = rec.Reconcile(context.Background(), ReconcileInput{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		ItemID:         "MLB100",
		Locations: []domain.RawLocation{
			{WarehouseID: "w2"},
		},
	})
	require.NoError(t, err)

	stored, err := stock.ListItemRows(context.Background(), "org-1", domain.ProviderMeli, "MLB100")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "w2", stored[0].WarehouseID)
}
