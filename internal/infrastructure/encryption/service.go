// Package encryption implements the secret vault with AES-GCM.
// Encrypted values are stored as "enc:gcm:<nonce-b64>:<ciphertext-b64>" so
// rows are self-describing and plaintext rows from before the vault was
// introduced can be told apart.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"backoffice-marketsync-layer/internal/ports"
)

const encPrefix = "enc:gcm:"

var (
	// ErrInvalidKey is returned when the configured key cannot be decoded
	// or has an unsupported length.
	ErrInvalidKey = errors.New("invalid encryption key")
	// ErrInvalidCiphertext is returned when decryption or authentication fails.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Service implements ports.SecretVault. The key is imported once and
// treated as immutable process-wide state.
type Service struct {
	aead cipher.AEAD
}

// NewService imports a base64- or hex-encoded key of 16, 24 or 32 bytes.
func NewService(encodedKey string) (*Service, error) {
	key, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Service{aead: aead}, nil
}

func decodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrInvalidKey
	}

	var key []byte
	if k, err := hex.DecodeString(encoded); err == nil {
		key = k
	} else if k, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		key = k
	} else {
		return nil, fmt.Errorf("%w: not base64 or hex", ErrInvalidKey)
	}

	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %d bytes, want 16, 24 or 32", ErrInvalidKey, len(key))
	}
}

// Encrypt seals the plaintext with a fresh random nonce.
func (s *Service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return encPrefix +
		base64.StdEncoding.EncodeToString(nonce) + ":" +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens a value produced by Encrypt.
func (s *Service) Decrypt(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, encPrefix) {
		return "", fmt.Errorf("%w: unrecognized encoding", ErrInvalidCiphertext)
	}

	parts := strings.Split(strings.TrimPrefix(encoded, encPrefix), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed encoding", ErrInvalidCiphertext)
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != s.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}

// TryDecrypt decrypts values carrying the vault tag and passes anything else
// through unchanged. It never fails on well-formed plaintext input.
func (s *Service) TryDecrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}
	return s.Decrypt(value)
}

var _ ports.SecretVault = (*Service)(nil)
