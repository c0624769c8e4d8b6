package ports

import (
	"context"

	"backoffice-marketsync-layer/internal/domain"
)

// TokenSource hands out usable access tokens, refreshing stored credentials
// when they are near expiry.
type TokenSource interface {
	// GetValidToken returns a decrypted access token, refreshing first when
	// the credential expires within the configured skew.
	GetValidToken(ctx context.Context, cred *domain.Credential) (string, error)

	// ForceRefresh refreshes regardless of expiry. Used by the client's
	// unauthorized-retry path.
	ForceRefresh(ctx context.Context, cred *domain.Credential) (string, error)
}

// MarketplaceClient is the provider-facing surface the sync engine consumes.
type MarketplaceClient interface {
	// GetItemStock returns the item's raw stock locations plus the flat
	// available quantity reported at item level.
	GetItemStock(ctx context.Context, cred *domain.Credential, itemID string) ([]domain.RawLocation, int, error)

	// GetItemShipping returns the authoritative per-item shipping signal.
	// Optional enrichment: callers proceed without it on error.
	GetItemShipping(ctx context.Context, cred *domain.Credential, itemID string) (*domain.ShippingInfo, error)

	// GetSellerStores returns the seller's known store/warehouse ids.
	// Optional enrichment: callers proceed without it on error.
	GetSellerStores(ctx context.Context, cred *domain.Credential) ([]string, error)
}

// RefreshLocker is a best-effort mutex suppressing redundant concurrent
// token refreshes. Correctness never depends on it.
type RefreshLocker interface {
	// TryLock attempts to take the named lock. When acquired it returns a
	// release func and true; otherwise nil and false.
	TryLock(ctx context.Context, key string) (func(), bool)
}
