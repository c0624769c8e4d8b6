package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// DefaultRefreshSkew is the safety margin subtracted from a credential's
// expiry before a proactive refresh is triggered.
const DefaultRefreshSkew = 5 * time.Minute

// ProviderAuthConfig is the per-provider OAuth material, read once at
// process start and treated as immutable.
type ProviderAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	PartnerID    string
	PartnerKey   string
	RefreshPath  string // signed-refresh path appended to TokenURL
}

// TokenManager decides whether a credential needs refresh, performs the
// refresh call and persists the new tuple atomically. Concurrent refreshes
// of the same credential are safe: each successful refresh writes the full
// {access, refresh, expiry} tuple, so the row always reflects the last one.
// The locker only suppresses redundant upstream traffic.
type TokenManager struct {
	creds      ports.CredentialRepository
	vault      ports.SecretVault
	locker     ports.RefreshLocker // nil disables the best-effort lock
	auth       map[domain.Provider]ProviderAuthConfig
	httpClient *http.Client
	skew       time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(
	creds ports.CredentialRepository,
	vault ports.SecretVault,
	locker ports.RefreshLocker,
	auth map[domain.Provider]ProviderAuthConfig,
	logger zerolog.Logger,
) *TokenManager {
	return &TokenManager{
		creds:      creds,
		vault:      vault,
		locker:     locker,
		auth:       auth,
		httpClient: &http.Client{Timeout: callTimeout},
		skew:       DefaultRefreshSkew,
		logger:     logger,
		now:        time.Now,
	}
}

// GetValidToken returns a usable access token. Inside the skew window it
// decrypts the stored token without any network call.
func (tm *TokenManager) GetValidToken(ctx context.Context, cred *domain.Credential) (string, error) {
	if !cred.ExpiresWithin(tm.now(), tm.skew) {
		return tm.vault.TryDecrypt(cred.AccessToken)
	}
	return tm.refresh(ctx, cred)
}

// ForceRefresh refreshes regardless of expiry.
func (tm *TokenManager) ForceRefresh(ctx context.Context, cred *domain.Credential) (string, error) {
	return tm.refresh(ctx, cred)
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpireIn     int64  `json:"expire_in"` // shopee spells it without the s
}

func (tm *TokenManager) refresh(ctx context.Context, cred *domain.Credential) (string, error) {
	if tm.locker != nil {
		lockKey := fmt.Sprintf("token-refresh:%s:%s", cred.OrganizationID, cred.Provider)
		if release, ok := tm.locker.TryLock(ctx, lockKey); ok {
			defer release()
		}
		// Not acquiring the lock is fine: the provider accepts refresh-token
		// replay within a grace window and the write below is atomic.
	}

	cfg, ok := tm.auth[cred.Provider]
	if !ok {
		return "", fmt.Errorf("no auth config for provider %s", cred.Provider)
	}

	refreshToken, err := tm.vault.TryDecrypt(cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	var parsed refreshResponse
	switch cred.Provider {
	case domain.ProviderMeli:
		parsed, err = tm.refreshBearer(ctx, cfg, refreshToken)
	case domain.ProviderShopee:
		parsed, err = tm.refreshSigned(ctx, cfg, cred, refreshToken)
	default:
		return "", fmt.Errorf("unsupported provider %s", cred.Provider)
	}
	if err != nil {
		return "", err
	}

	expiresIn := parsed.ExpiresIn
	if expiresIn == 0 {
		expiresIn = parsed.ExpireIn
	}

	encAccess, err := tm.vault.Encrypt(parsed.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := tm.vault.Encrypt(parsed.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := tm.now()
	cred.AccessToken = encAccess
	cred.RefreshToken = encRefresh
	cred.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	cred.UpdatedAt = now

	if err := tm.creds.Save(ctx, cred); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	tm.logger.Info().
		Str("organizationId", cred.OrganizationID).
		Str("provider", string(cred.Provider)).
		Time("expiresAt", cred.ExpiresAt).
		Msg("Credential refreshed")

	return parsed.AccessToken, nil
}

// refreshBearer performs the standard grant_type=refresh_token exchange.
func (tm *TokenManager) refreshBearer(ctx context.Context, cfg ProviderAuthConfig, refreshToken string) (refreshResponse, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("client_id", cfg.ClientID)
	values.Set("client_secret", cfg.ClientSecret)
	values.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return refreshResponse{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return tm.doRefresh(domain.ProviderMeli, req)
}

// refreshSigned performs the HMAC provider's signed refresh call.
func (tm *TokenManager) refreshSigned(ctx context.Context, cfg ProviderAuthConfig, cred *domain.Credential, refreshToken string) (refreshResponse, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
		"partner_id":    cfg.PartnerID,
		"shop_id":       cred.ShopID,
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return refreshResponse{}, fmt.Errorf("failed to marshal refresh body: %w", err)
	}

	timestamp := tm.now().Unix()
	base, err := BaseString(domain.RulePathBody, cfg.PartnerID, cfg.RefreshPath, timestamp, "", "", bodyJSON)
	if err != nil {
		return refreshResponse{}, err
	}
	sign := NewSigner(cfg.PartnerKey).Sign(base)

	query := url.Values{}
	query.Set("partner_id", cfg.PartnerID)
	query.Set("timestamp", fmt.Sprintf("%d", timestamp))
	query.Set("sign", sign)

	u := cfg.TokenURL + cfg.RefreshPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyJSON))
	if err != nil {
		return refreshResponse{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return tm.doRefresh(domain.ProviderShopee, req)
}

func (tm *TokenManager) doRefresh(provider domain.Provider, req *http.Request) (refreshResponse, error) {
	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return refreshResponse{}, fmt.Errorf("refresh call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return refreshResponse{}, fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return refreshResponse{}, &RefreshError{Provider: provider, Status: resp.StatusCode, Payload: body}
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return refreshResponse{}, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if parsed.AccessToken == "" {
		return refreshResponse{}, &RefreshError{Provider: provider, Status: resp.StatusCode, Payload: body}
	}

	return parsed, nil
}

var _ ports.TokenSource = (*TokenManager)(nil)
