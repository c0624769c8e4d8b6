package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// defaultMaxAttempts is the retry budget given to jobs the sync path enqueues.
const defaultMaxAttempts = 5

// StockSyncPayload is the durable payload of a stock_sync retry job.
type StockSyncPayload struct {
	Provider domain.Provider `json:"provider"`
	ItemID   string          `json:"item_id"`
}

// ItemSyncResult is the per-item outcome of a sync pass.
type ItemSyncResult struct {
	ItemID     string `json:"item_id"`
	Synced     bool   `json:"synced"`
	Incomplete bool   `json:"incomplete"`
	Rows       int    `json:"rows"`
	Error      string `json:"error,omitempty"`
}

// SyncReport summarizes one multi-item sync pass. Failed items have a retry
// job enqueued; the pass itself still succeeds.
type SyncReport struct {
	Provider domain.Provider  `json:"provider"`
	Synced   int              `json:"synced"`
	Failed   int              `json:"failed"`
	Items    []ItemSyncResult `json:"items"`
}

// SyncService runs per-item stock synchronization against a marketplace,
// fanning out under the shared call limiter.
type SyncService struct {
	creds      ports.CredentialRepository
	clients    map[domain.Provider]ports.MarketplaceClient
	reconciler *StockReconciler
	jobs       ports.RetryJobRepository
	limiter    ports.CallLimiter
	publisher  ports.SyncEventPublisher
	metrics    ports.MetricsRecorder
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSyncService creates a new sync service
func NewSyncService(
	creds ports.CredentialRepository,
	clients map[domain.Provider]ports.MarketplaceClient,
	reconciler *StockReconciler,
	jobs ports.RetryJobRepository,
	limiter ports.CallLimiter,
	publisher ports.SyncEventPublisher,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		creds:      creds,
		clients:    clients,
		reconciler: reconciler,
		jobs:       jobs,
		limiter:    limiter,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// SyncStock reconciles every requested item for the organization's provider
// integration. Per-item upstream failures are absorbed: the item is enqueued
// for retry and reported in the result instead of aborting the pass.
func (s *SyncService) SyncStock(ctx context.Context, orgID string, provider domain.Provider, itemIDs []string) (*SyncReport, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	cred, err := s.creds.Get(ctx, orgID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return nil, fmt.Errorf("integration not found for provider %s", provider)
	}

	client, ok := s.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no client configured for provider %s", provider)
	}

	// Seller store ids sharpen location classification; the pass proceeds
	// without them.
	knownStores, err := client.GetSellerStores(ctx, cred)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("organizationId", orgID).
			Str("provider", string(provider)).
			Msg("Seller store lookup failed, classifying without store ids")
		knownStores = nil
	}

	report := &SyncReport{
		Provider: provider,
		Items:    make([]ItemSyncResult, len(itemIDs)),
	}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	for i, itemID := range itemIDs {
		i, itemID := i, itemID
		group.Go(func() error {
			result := s.syncItem(groupCtx, client, cred, itemID, knownStores, true)
			mu.Lock()
			report.Items[i] = result
			if result.Synced {
				report.Synced++
			} else {
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("organizationId", orgID).
		Str("provider", string(provider)).
		Int("synced", report.Synced).
		Int("failed", report.Failed).
		Msg("Stock sync pass finished")
	return report, nil
}

// SyncStockOnce syncs a single item without enqueueing a retry job on
// failure. The queue consumer drives this path and owns the retry budget.
func (s *SyncService) SyncStockOnce(ctx context.Context, orgID string, provider domain.Provider, itemID string) (*SyncReport, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	cred, err := s.creds.Get(ctx, orgID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return nil, fmt.Errorf("integration not found for provider %s", provider)
	}

	client, ok := s.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no client configured for provider %s", provider)
	}

	result := s.syncItem(ctx, client, cred, itemID, nil, false)
	report := &SyncReport{Provider: provider, Items: []ItemSyncResult{result}}
	if result.Synced {
		report.Synced = 1
	} else {
		report.Failed = 1
	}
	return report, nil
}

// syncItem runs one item end to end: stock fetch, shipping enrichment,
// reconciliation, event publication. When enqueueRetry is set, failures
// enqueue a durable retry job.
func (s *SyncService) syncItem(ctx context.Context, client ports.MarketplaceClient, cred *domain.Credential, itemID string, knownStores []string, enqueueRetry bool) ItemSyncResult {
	result := ItemSyncResult{ItemID: itemID}

	var locations []domain.RawLocation
	var flatQty int
	err := s.limiter.Do(ctx, func() error {
		var callErr error
		locations, flatQty, callErr = client.GetItemStock(ctx, cred, itemID)
		return callErr
	})
	if err != nil {
		result.Error = err.Error()
		s.failItem(ctx, cred, itemID, err, enqueueRetry)
		return result
	}

	// Shipping is optional enrichment under the same limiter slot budget.
	var shipping *domain.ShippingInfo
	shipErr := s.limiter.Do(ctx, func() error {
		var callErr error
		shipping, callErr = client.GetItemShipping(ctx, cred, itemID)
		return callErr
	})
	if shipErr != nil {
		s.logger.Warn().
			Err(shipErr).
			Str("itemId", itemID).
			Str("provider", string(cred.Provider)).
			Msg("Shipping lookup failed, reconciling without authoritative signal")
		shipping = nil
	}

	reconciled, err := s.reconciler.Reconcile(ctx, ReconcileInput{
		OrganizationID: cred.OrganizationID,
		Provider:       cred.Provider,
		ItemID:         itemID,
		FlatQuantity:   flatQty,
		Locations:      locations,
		Shipping:       shipping,
		KnownStoreIDs:  knownStores,
	})
	if err != nil {
		result.Error = err.Error()
		s.failItem(ctx, cred, itemID, err, enqueueRetry)
		return result
	}

	result.Synced = true
	result.Incomplete = reconciled.Incomplete
	result.Rows = len(reconciled.Rows)

	outcome := "ok"
	if reconciled.Incomplete {
		outcome = "incomplete"
	}
	s.metrics.ItemSynced(cred.Provider, outcome)
	s.publisher.Publish(&domain.SyncEvent{
		OrganizationID: cred.OrganizationID,
		Provider:       cred.Provider,
		ItemID:         itemID,
		Rows:           reconciled.Rows,
		Incomplete:     reconciled.Incomplete,
		At:             s.now(),
	})
	return result
}

// failItem records an item failure: metrics and a failure event. When
// enqueueRetry is set it also enqueues a durable retry job due immediately.
func (s *SyncService) failItem(ctx context.Context, cred *domain.Credential, itemID string, cause error, enqueueRetry bool) {
	s.metrics.ItemSynced(cred.Provider, "error")
	s.publisher.Publish(&domain.SyncEvent{
		OrganizationID: cred.OrganizationID,
		Provider:       cred.Provider,
		ItemID:         itemID,
		Err:            cause.Error(),
		At:             s.now(),
	})
	if !enqueueRetry {
		return
	}

	payload, err := json.Marshal(StockSyncPayload{Provider: cred.Provider, ItemID: itemID})
	if err != nil {
		s.logger.Error().Err(err).Str("itemId", itemID).Msg("Failed to marshal retry payload")
		return
	}

	job := &domain.RetryJob{
		ID:             uuid.NewString(),
		Kind:           domain.JobKindStockSync,
		OrganizationID: cred.OrganizationID,
		Payload:        payload,
		MaxAttempts:    defaultMaxAttempts,
		NextRetryAt:    s.now(),
		Status:         domain.JobStatusPending,
		CreatedAt:      s.now(),
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Error().
			Err(err).
			Str("itemId", itemID).
			Str("provider", string(cred.Provider)).
			Msg("Failed to enqueue retry job")
		return
	}

	s.logger.Warn().
		Err(cause).
		Str("itemId", itemID).
		Str("provider", string(cred.Provider)).
		Str("jobId", job.ID).
		Msg("Item sync failed, retry job enqueued")
}
