package marketplace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"backoffice-marketsync-layer/internal/domain"
)

// SignRequest describes one outbound provider call. It is a value object;
// nothing here is persisted.
type SignRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Rule   domain.SignatureRule
}

// Signer computes HMAC-SHA256 signatures over a provider's canonical base
// string. Signatures are emitted as uppercase hex: one provider's verifier
// is case-sensitive and expects uppercase, the other downcases on its side.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for a provider shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// BaseString builds the canonical string the signature is computed over.
// bodyJSON must be the exact bytes sent on the wire.
func BaseString(rule domain.SignatureRule, accountID, path string, timestamp int64, accessToken, shopID string, bodyJSON []byte) (string, error) {
	switch rule {
	case domain.RulePathToken:
		return fmt.Sprintf("%s%s%d%s%s", accountID, path, timestamp, accessToken, shopID), nil
	case domain.RulePathBody:
		return fmt.Sprintf("%s%s%d%s", accountID, path, timestamp, bodyJSON), nil
	default:
		return "", fmt.Errorf("rule %d carries no signature", rule)
	}
}

// Sign returns the uppercase hex HMAC-SHA256 of the base string.
func (s *Signer) Sign(baseString string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(baseString))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
