package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient serves canned per-item stock responses.
type fakeClient struct {
	stocks    map[string][]domain.RawLocation
	flat      map[string]int
	stockErr  map[string]error
	shipping  *domain.ShippingInfo
	shipErr   error
	stores    []string
	storesErr error
}

func (c *fakeClient) GetItemStock(ctx context.Context, cred *domain.Credential, itemID string) ([]domain.RawLocation, int, error) {
	if err := c.stockErr[itemID]; err != nil {
		return nil, 0, err
	}
	return c.stocks[itemID], c.flat[itemID], nil
}

func (c *fakeClient) GetItemShipping(ctx context.Context, cred *domain.Credential, itemID string) (*domain.ShippingInfo, error) {
	return c.shipping, c.shipErr
}

func (c *fakeClient) GetSellerStores(ctx context.Context, cred *domain.Credential) ([]string, error) {
	return c.stores, c.storesErr
}

// memCredStore is a minimal in-memory CredentialRepository for service tests.
type memCredStore struct {
	cred *domain.Credential
}

func (r *memCredStore) Get(ctx context.Context, orgID string, provider domain.Provider) (*domain.Credential, error) {
	if r.cred != nil && r.cred.OrganizationID == orgID && r.cred.Provider == provider {
		return r.cred, nil
	}
	return nil, nil
}

func (r *memCredStore) Save(ctx context.Context, cred *domain.Credential) error {
	r.cred = cred
	return nil
}

func (r *memCredStore) Delete(ctx context.Context, orgID string, provider domain.Provider) error {
	r.cred = nil
	return nil
}

// memJobRepo records enqueued jobs; the queue-side methods are unused here.
type memJobRepo struct {
	mu   sync.Mutex
	jobs []*domain.RetryJob
}

func (r *memJobRepo) Enqueue(ctx context.Context, job *domain.RetryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *memJobRepo) ClaimDue(ctx context.Context, limit int, claimTTL time.Duration) ([]*domain.RetryJob, error) {
	return nil, nil
}

func (r *memJobRepo) Complete(ctx context.Context, jobID string) error { return nil }

func (r *memJobRepo) Reschedule(ctx context.Context, jobID string, attempts int, lastError string, nextRetryAt time.Time) error {
	return nil
}

func (r *memJobRepo) DeadLetter(ctx context.Context, job *domain.RetryJob, finalError string) error {
	return nil
}

func (r *memJobRepo) ListDeadLetters(ctx context.Context, orgID string, limit int) ([]*domain.DeadLetterRecord, error) {
	return nil, nil
}

func (r *memJobRepo) CountDue(ctx context.Context) (int64, error) { return 0, nil }

// passLimiter runs everything immediately.
type passLimiter struct{}

func (passLimiter) Do(ctx context.Context, fn func() error) error { return fn() }

// memPublisher collects published events.
type memPublisher struct {
	mu     sync.Mutex
	events []*domain.SyncEvent
}

func (p *memPublisher) Publish(event *domain.SyncEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// nopMetrics discards every observation.
type nopMetrics struct{}

func (nopMetrics) ItemSynced(provider domain.Provider, outcome string) {}
func (nopMetrics) JobProcessed(kind string, outcome string)            {}
func (nopMetrics) DeadLettered(kind string)                            {}
func (nopMetrics) SetQueueDue(n int64)                                 {}

func newTestSyncService(client *fakeClient) (*SyncService, *memStockRepo, *memJobRepo, *memPublisher) {
	stock := newMemStockRepo()
	jobs := &memJobRepo{}
	publisher := &memPublisher{}
	creds := &memCredStore{cred: &domain.Credential{
		OrganizationID: "org-1",
		Provider:       domain.ProviderMeli,
		AccountID:      "seller-1",
		ExpiresAt:      time.Now().Add(time.Hour),
	}}

	reconciler := NewStockReconciler(stock, &memCapRepo{}, zerolog.Nop())
	service := NewSyncService(
		creds,
		map[domain.Provider]ports.MarketplaceClient{domain.ProviderMeli: client},
		reconciler,
		jobs,
		passLimiter{},
		publisher,
		nopMetrics{},
		zerolog.Nop(),
	)
	return service, stock, jobs, publisher
}

func TestSyncStockWritesRowsAndPublishes(t *testing.T) {
	client := &fakeClient{
		stocks: map[string][]domain.RawLocation{
			"MLB1": {
				{WarehouseID: "w1", NetworkNode: true, Fields: map[string]any{"available_quantity": float64(5)}},
			},
		},
		flat:     map[string]int{"MLB1": 5},
		shipping: &domain.ShippingInfo{LogisticTypes: []string{"fulfillment"}},
	}
	service, stock, jobs, publisher := newTestSyncService(client)

	report, err := service.SyncStock(context.Background(), "org-1", domain.ProviderMeli, []string{"MLB1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Items, 1)
	assert.True(t, report.Items[0].Synced)
	assert.False(t, report.Items[0].Incomplete)

	rows, err := stock.ListItemRows(context.Background(), "org-1", domain.ProviderMeli, "MLB1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ShippingFulfillment, rows[0].Method)

	assert.Empty(t, jobs.jobs)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "MLB1", publisher.events[0].ItemID)
	assert.Empty(t, publisher.events[0].Err)
}

func TestSyncStockEnqueuesRetryOnItemFailure(t *testing.T) {
	client := &fakeClient{
		stocks: map[string][]domain.RawLocation{
			"MLB1": {{WarehouseID: "w1"}},
		},
		stockErr: map[string]error{"MLB2": errors.New("upstream down")},
	}
	service, _, jobs, publisher := newTestSyncService(client)

	report, err := service.SyncStock(context.Background(), "org-1", domain.ProviderMeli, []string{"MLB1", "MLB2"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.Failed)

	require.Len(t, jobs.jobs, 1)
	job := jobs.jobs[0]
	assert.Equal(t, domain.JobKindStockSync, job.Kind)
	assert.Equal(t, "org-1", job.OrganizationID)
	assert.Equal(t, defaultMaxAttempts, job.MaxAttempts)
	assert.Equal(t, domain.JobStatusPending, job.Status)

	var payload StockSyncPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "MLB2", payload.ItemID)
	assert.Equal(t, domain.ProviderMeli, payload.Provider)

	// Both items produce an event; the failed one carries the error.
	assert.Len(t, publisher.events, 2)
}

func TestSyncStockMissingIntegration(t *testing.T) {
	service, _, _, _ := newTestSyncService(&fakeClient{})

	_, err := service.SyncStock(context.Background(), "org-2", domain.ProviderMeli, []string{"MLB1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integration not found")
}

func TestSyncStockRejectsUnknownProvider(t *testing.T) {
	service, _, _, _ := newTestSyncService(&fakeClient{})

	_, err := service.SyncStock(context.Background(), "org-1", domain.Provider("ebay"), []string{"MLB1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestSyncStockProceedsWhenShippingLookupFails(t *testing.T) {
	client := &fakeClient{
		stocks: map[string][]domain.RawLocation{
			"MLB1": {{WarehouseID: "w1", NetworkNode: true}},
		},
		shipErr: errors.New("shipping endpoint down"),
	}
	service, stock, jobs, _ := newTestSyncService(client)

	report, err := service.SyncStock(context.Background(), "org-1", domain.ProviderMeli, []string{"MLB1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.True(t, report.Items[0].Incomplete)
	assert.Empty(t, jobs.jobs)

	rows, err := stock.ListItemRows(context.Background(), "org-1", domain.ProviderMeli, "MLB1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// No authoritative signal: the classification default applies.
	assert.Equal(t, domain.ShippingFulfillment, rows[0].Method)
}
