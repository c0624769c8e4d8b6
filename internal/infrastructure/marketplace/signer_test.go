package marketplace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"backoffice-marketsync-layer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseStringPathToken(t *testing.T) {
	base, err := BaseString(domain.RulePathToken, "2005177", "/api/v2/product/get_item_stock", 1700000000, "AT1", "shop-9", nil)
	require.NoError(t, err)
	assert.Equal(t, "2005177/api/v2/product/get_item_stock1700000000AT1shop-9", base)
}

func TestBaseStringPathBody(t *testing.T) {
	body := []byte(`{"item_id":"123"}`)
	base, err := BaseString(domain.RulePathBody, "2005177", "/api/v2/logistics/get_item_channels", 1700000000, "ignored", "ignored", body)
	require.NoError(t, err)
	assert.Equal(t, `2005177/api/v2/logistics/get_item_channels1700000000{"item_id":"123"}`, base)
}

func TestBaseStringBearerHasNoSignature(t *testing.T) {
	_, err := BaseString(domain.RuleBearer, "a", "/p", 1, "", "", nil)
	assert.Error(t, err)
}

func TestSignEmitsUppercaseHex(t *testing.T) {
	signer := NewSigner("partner-key")
	sign := signer.Sign("2005177/path1700000000AT1shop-9")

	assert.Len(t, sign, 64)
	assert.Equal(t, strings.ToUpper(sign), sign)
	_, err := hex.DecodeString(sign)
	assert.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("partner-key"))
	mac.Write([]byte("2005177/path1700000000AT1shop-9"))
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(mac.Sum(nil))), sign)
}

func TestSignIsDeterministicPerBaseString(t *testing.T) {
	signer := NewSigner("partner-key")
	assert.Equal(t, signer.Sign("same"), signer.Sign("same"))
	assert.NotEqual(t, signer.Sign("one"), signer.Sign("two"))
}
