package application

import (
	"context"
	"fmt"
	"time"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// CredentialService handles marketplace credential management
type CredentialService struct {
	creds  ports.CredentialRepository
	vault  ports.SecretVault
	logger zerolog.Logger
	now    func() time.Time
}

// NewCredentialService creates a new credential service
func NewCredentialService(creds ports.CredentialRepository, vault ports.SecretVault, logger zerolog.Logger) *CredentialService {
	return &CredentialService{
		creds:  creds,
		vault:  vault,
		logger: logger,
		now:    time.Now,
	}
}

// ConfigureIntegrationInput represents the input for configuration
type ConfigureIntegrationInput struct {
	Provider     domain.Provider `json:"provider"`
	AccountID    string          `json:"account_id"`
	ShopID       string          `json:"shop_id"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// ConfigureIntegration stores or replaces the organization's credential for
// a provider. Tokens are encrypted before they touch the repository.
func (s *CredentialService) ConfigureIntegration(ctx context.Context, orgID string, input *ConfigureIntegrationInput) (*domain.Credential, error) {
	if !input.Provider.Valid() {
		return nil, fmt.Errorf("unknown provider: %s", input.Provider)
	}
	if input.AccessToken == "" || input.RefreshToken == "" {
		return nil, fmt.Errorf("access token and refresh token are required")
	}

	encAccess, err := s.vault.Encrypt(input.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := s.vault.Encrypt(input.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := s.now()
	cred := &domain.Credential{
		OrganizationID: orgID,
		Provider:       input.Provider,
		AccountID:      input.AccountID,
		ShopID:         input.ShopID,
		AccessToken:    encAccess,
		RefreshToken:   encRefresh,
		ExpiresAt:      input.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	existing, err := s.creds.Get(ctx, orgID, input.Provider)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		cred.CreatedAt = existing.CreatedAt
	}

	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	s.logger.Info().
		Str("organizationId", orgID).
		Str("provider", string(input.Provider)).
		Str("accountId", input.AccountID).
		Msg("Integration credential saved successfully")
	return cred, nil
}

// GetIntegration retrieves the stored credential. Tokens stay encrypted; the
// json tags on the domain entity keep them out of API responses anyway.
func (s *CredentialService) GetIntegration(ctx context.Context, orgID string, provider domain.Provider) (*domain.Credential, error) {
	cred, err := s.creds.Get(ctx, orgID, provider)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("integration not found for provider %s", provider)
	}
	return cred, nil
}

// RemoveIntegration deletes the organization's credential for a provider.
func (s *CredentialService) RemoveIntegration(ctx context.Context, orgID string, provider domain.Provider) error {
	cred, err := s.creds.Get(ctx, orgID, provider)
	if err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("integration not found for provider %s", provider)
	}

	if err := s.creds.Delete(ctx, orgID, provider); err != nil {
		s.logger.Error().
			Err(err).
			Str("organizationId", orgID).
			Str("provider", string(provider)).
			Msg("Failed to delete integration credential")
		return fmt.Errorf("failed to delete integration credential: %w", err)
	}

	s.logger.Info().
		Str("organizationId", orgID).
		Str("provider", string(provider)).
		Msg("Integration credential deleted successfully")
	return nil
}
