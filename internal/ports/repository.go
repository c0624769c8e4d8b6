package ports

import (
	"context"
	"time"

	"backoffice-marketsync-layer/internal/domain"
)

// CredentialRepository persists per-(organization, provider) credentials.
type CredentialRepository interface {
	// Get returns the credential, or nil when none exists.
	Get(ctx context.Context, orgID string, provider domain.Provider) (*domain.Credential, error)

	// Save upserts the full credential tuple in a single write. Partial
	// field updates are not supported: concurrent refreshes must leave the
	// row reflecting exactly one refresh result.
	Save(ctx context.Context, cred *domain.Credential) error

	// Delete removes the credential (integration removal).
	Delete(ctx context.Context, orgID string, provider domain.Provider) error
}

// RetryJobRepository is the durable store behind the retry queue.
type RetryJobRepository interface {
	// Enqueue inserts a new pending job due immediately.
	Enqueue(ctx context.Context, job *domain.RetryJob) error

	// ClaimDue atomically claims up to limit due jobs, ordered by
	// next_retry_at ascending. A claimed job is invisible to other
	// consumers until claimedUntil passes.
	ClaimDue(ctx context.Context, limit int, claimTTL time.Duration) ([]*domain.RetryJob, error)

	// Complete deletes a job after successful execution.
	Complete(ctx context.Context, jobID string) error

	// Reschedule records a failed attempt and returns the job to pending.
	Reschedule(ctx context.Context, jobID string, attempts int, lastError string, nextRetryAt time.Time) error

	// DeadLetter moves a job out of the live queue into the dead-letter store.
	DeadLetter(ctx context.Context, job *domain.RetryJob, finalError string) error

	// ListDeadLetters returns recent dead letters for an organization.
	// orgID == "" lists across organizations.
	ListDeadLetters(ctx context.Context, orgID string, limit int) ([]*domain.DeadLetterRecord, error)

	// CountDue returns the number of jobs currently eligible to run.
	CountDue(ctx context.Context) (int64, error)
}

// StockRepository persists normalized warehouse stock rows.
type StockRepository interface {
	// ReplaceItemRows deletes every row for (org, provider, item) and
	// inserts rows, so the stored set exactly mirrors the latest pass.
	ReplaceItemRows(ctx context.Context, orgID string, provider domain.Provider, itemID string, rows []domain.WarehouseStockRow) error

	// ListItemRows returns the current rows for an item.
	ListItemRows(ctx context.Context, orgID string, provider domain.Provider, itemID string) ([]domain.WarehouseStockRow, error)
}

// CapabilityRepository exposes account-level shipping capability flags.
type CapabilityRepository interface {
	// GetAccountCapabilities returns method -> enabled. Methods absent from
	// the map are treated as enabled.
	GetAccountCapabilities(ctx context.Context, orgID string, provider domain.Provider) (map[domain.ShippingMethod]bool, error)
}
