package marketplace

import (
	"fmt"

	"backoffice-marketsync-layer/internal/domain"
)

// SignatureError is returned after a signed call failed signature validation
// twice (initial attempt plus one recompute-and-retry).
type SignatureError struct {
	Provider domain.Provider
	Body     []byte
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("%s rejected request signature: %s", e.Provider, e.Body)
}

// AuthError is returned after a call failed authorization twice (initial
// attempt plus one retry with a force-refreshed token).
type AuthError struct {
	Provider domain.Provider
	Status   int
	Body     []byte
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s rejected credentials (status %d): %s", e.Provider, e.Status, e.Body)
}

// UpstreamError carries any other non-2xx provider response. Retry policy
// for these belongs to the retry queue, not this layer.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// RefreshError is returned when a token refresh call fails. Stored
// credential state is left untouched.
type RefreshError struct {
	Provider domain.Provider
	Status   int
	Payload  []byte
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s token refresh failed (status %d): %s", e.Provider, e.Status, e.Payload)
}
