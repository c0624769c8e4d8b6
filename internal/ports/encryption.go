package ports

// SecretVault provides symmetric encryption for stored secrets.
type SecretVault interface {
	// Encrypt returns a self-describing encoding of the plaintext.
	Encrypt(plaintext string) (string, error)

	// Decrypt reverses Encrypt. Fails when the encoding is unrecognized or
	// authentication fails.
	Decrypt(encoded string) (string, error)

	// TryDecrypt decrypts values carrying the vault's tag and returns any
	// other value unchanged. Supports rows still stored as plaintext from
	// before encryption was introduced.
	TryDecrypt(value string) (string, error)
}
