package job_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// TokenRefreshPayload is the durable payload of a token_refresh job.
type TokenRefreshPayload struct {
	Provider domain.Provider `json:"provider"`
}

// TokenRefreshHandler force-refreshes a stored credential, typically after
// the provider started rejecting its access token.
type TokenRefreshHandler struct {
	creds  ports.CredentialRepository
	tokens ports.TokenSource
	logger zerolog.Logger
}

// NewTokenRefreshHandler creates a new token refresh job handler
func NewTokenRefreshHandler(creds ports.CredentialRepository, tokens ports.TokenSource, logger zerolog.Logger) *TokenRefreshHandler {
	return &TokenRefreshHandler{
		creds:  creds,
		tokens: tokens,
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given job kind
func (h *TokenRefreshHandler) CanHandle(kind string) bool {
	return kind == domain.JobKindTokenRefresh
}

// Handle refreshes the credential's token pair.
func (h *TokenRefreshHandler) Handle(ctx context.Context, job *domain.RetryJob) error {
	var payload TokenRefreshPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse token refresh payload: %w", err)
	}

	cred, err := h.creds.Get(ctx, job.OrganizationID, payload.Provider)
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		// The integration was removed while the job waited; nothing to do.
		h.logger.Warn().
			Str("jobId", job.ID).
			Str("organizationId", job.OrganizationID).
			Str("provider", string(payload.Provider)).
			Msg("Credential gone, skipping token refresh")
		return nil
	}

	if _, err := h.tokens.ForceRefresh(ctx, cred); err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	h.logger.Info().
		Str("jobId", job.ID).
		Str("organizationId", job.OrganizationID).
		Str("provider", string(payload.Provider)).
		Msg("Token refreshed")
	return nil
}
