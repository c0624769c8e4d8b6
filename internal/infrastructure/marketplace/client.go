package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// callTimeout bounds every outbound provider call. A timed-out call is a
// transient failure; the retry queue owns the retry policy.
const callTimeout = 9 * time.Second

// Response is the raw provider reply handed back to adapters.
type Response struct {
	Status int
	Body   []byte
}

// Client issues authenticated requests to one provider, retrying once on an
// invalid signature (with a recomputed timestamp) and once on an
// unauthorized response (with a force-refreshed token).
type Client struct {
	provider   domain.Provider
	baseURL    string
	accountID  string // partner/application id
	signer     *Signer
	tokens     ports.TokenSource
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a signed API client for a provider.
func NewClient(provider domain.Provider, baseURL, accountID, secret string, tokens ports.TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		provider:   provider,
		baseURL:    baseURL,
		accountID:  accountID,
		signer:     NewSigner(secret),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: callTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Call executes req against the provider using the organization's credential.
func (c *Client) Call(ctx context.Context, cred *domain.Credential, req SignRequest) (*Response, error) {
	token, err := c.tokens.GetValidToken(ctx, cred)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, cred, req, token)
	if err != nil {
		return nil, err
	}

	if isSignatureRejection(resp) {
		c.logger.Warn().
			Str("provider", string(c.provider)).
			Str("path", req.Path).
			Msg("Signature rejected, recomputing timestamp and retrying once")

		resp, err = c.do(ctx, cred, req, token)
		if err != nil {
			return nil, err
		}
		if isSignatureRejection(resp) {
			return nil, &SignatureError{Provider: c.provider, Body: resp.Body}
		}
	}

	if isAuthRejection(resp) {
		c.logger.Warn().
			Str("provider", string(c.provider)).
			Str("path", req.Path).
			Int("status", resp.Status).
			Msg("Unauthorized, forcing token refresh and retrying once")

		token, err = c.tokens.ForceRefresh(ctx, cred)
		if err != nil {
			return nil, err
		}
		resp, err = c.do(ctx, cred, req, token)
		if err != nil {
			return nil, err
		}
		if isAuthRejection(resp) {
			return nil, &AuthError{Provider: c.provider, Status: resp.Status, Body: resp.Body}
		}
	}

	if resp.Status >= 400 {
		return nil, &UpstreamError{Status: resp.Status, Body: resp.Body}
	}

	return resp, nil
}

// do builds, signs and issues a single HTTP request.
func (c *Client) do(ctx context.Context, cred *domain.Credential, req SignRequest, accessToken string) (*Response, error) {
	var bodyJSON []byte
	if req.Body != nil {
		var err error
		bodyJSON, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	query := url.Values{}
	for k, vs := range req.Query {
		query[k] = vs
	}

	timestamp := c.now().Unix()
	header := http.Header{}

	switch req.Rule {
	case domain.RuleBearer:
		header.Set("Authorization", "Bearer "+accessToken)

	case domain.RulePathToken, domain.RulePathBody:
		base, err := BaseString(req.Rule, c.accountID, req.Path, timestamp, accessToken, cred.ShopID, bodyJSON)
		if err != nil {
			return nil, err
		}
		query.Set("partner_id", c.accountID)
		query.Set("timestamp", fmt.Sprintf("%d", timestamp))
		query.Set("sign", c.signer.Sign(base))
		if req.Rule == domain.RulePathToken {
			query.Set("access_token", accessToken)
			query.Set("shop_id", cred.ShopID)
		}

	default:
		return nil, fmt.Errorf("unsupported signature rule %d", req.Rule)
	}

	u := c.baseURL + req.Path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if bodyJSON != nil {
		reader = bytes.NewReader(bodyJSON)
		header.Set("Content-Type", "application/json")
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = header

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", req.Path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{Status: httpResp.StatusCode, Body: body}, nil
}

// providerError is the error envelope both providers use.
type providerError struct {
	Error string `json:"error"`
}

func decodeProviderError(body []byte) string {
	var pe providerError
	if err := json.Unmarshal(body, &pe); err != nil {
		return ""
	}
	return pe.Error
}

func isSignatureRejection(resp *Response) bool {
	return decodeProviderError(resp.Body) == "error_sign"
}

func isAuthRejection(resp *Response) bool {
	if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
		return true
	}
	switch decodeProviderError(resp.Body) {
	case "error_auth", "invalid_access_token", "invalid_token":
		return true
	}
	return false
}
