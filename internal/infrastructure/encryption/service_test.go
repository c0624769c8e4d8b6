package encryption

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(testKeyHex)
	require.NoError(t, err)
	return svc
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := newTestService(t)

	for _, plaintext := range []string{"", "token", "APP_USR-1234567890", strings.Repeat("x", 4096)} {
		encoded, err := svc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(encoded, "enc:gcm:"))

		decoded, err := svc.Decrypt(encoded)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decoded)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := svc.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	svc := newTestService(t)

	encoded, err := svc.Encrypt("secret")
	require.NoError(t, err)

	parts := strings.Split(strings.TrimPrefix(encoded, "enc:gcm:"), ":")
	require.Len(t, parts, 2)
	raw, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	raw[0] ^= 0xff
	tampered := "enc:gcm:" + parts[0] + ":" + base64.StdEncoding.EncodeToString(raw)

	_, err = svc.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptRejectsUnrecognizedEncoding(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Decrypt("plain-old-token")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = svc.Decrypt("enc:gcm:only-one-part")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestTryDecryptPassesPlaintextThrough(t *testing.T) {
	svc := newTestService(t)

	for _, value := range []string{"", "plain-token", "enc-but-not-tagged", "shpat_abc123"} {
		out, err := svc.TryDecrypt(value)
		require.NoError(t, err)
		assert.Equal(t, value, out)
	}

	encoded, err := svc.Encrypt("wrapped")
	require.NoError(t, err)
	out, err := svc.TryDecrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", out)
}

func TestNewServiceKeyImport(t *testing.T) {
	// base64 keys of each supported length
	for _, size := range []int{16, 24, 32} {
		key := base64.StdEncoding.EncodeToString(make([]byte, size))
		_, err := NewService(key)
		assert.NoError(t, err, "key size %d", size)
	}

	for name, key := range map[string]string{
		"empty":      "",
		"bad length": base64.StdEncoding.EncodeToString(make([]byte, 20)),
		"garbage":    "not-a-key!!!",
	} {
		_, err := NewService(key)
		assert.ErrorIs(t, err, ErrInvalidKey, name)
	}
}
