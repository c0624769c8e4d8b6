package job_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backoffice-marketsync-layer/internal/application"
	"backoffice-marketsync-layer/internal/domain"

	"github.com/rs/zerolog"
)

// StockSyncHandler re-runs a failed per-item stock sync.
type StockSyncHandler struct {
	sync   *application.SyncService
	logger zerolog.Logger
}

// NewStockSyncHandler creates a new stock sync job handler
func NewStockSyncHandler(sync *application.SyncService, logger zerolog.Logger) *StockSyncHandler {
	return &StockSyncHandler{
		sync:   sync,
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given job kind
func (h *StockSyncHandler) CanHandle(kind string) bool {
	return kind == domain.JobKindStockSync
}

// Handle re-runs the item sync. A failing item would normally enqueue a new
// job; here the queue owns the retry budget, so the pass result is inspected
// and an error returned instead.
func (h *StockSyncHandler) Handle(ctx context.Context, job *domain.RetryJob) error {
	var payload application.StockSyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse stock sync payload: %w", err)
	}

	h.logger.Info().
		Str("jobId", job.ID).
		Str("organizationId", job.OrganizationID).
		Str("provider", string(payload.Provider)).
		Str("itemId", payload.ItemID).
		Int("attempts", job.Attempts).
		Msg("Retrying item stock sync")

	report, err := h.sync.SyncStockOnce(ctx, job.OrganizationID, payload.Provider, payload.ItemID)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("item sync failed: %s", report.Items[0].Error)
	}
	return nil
}
