package connection

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// CredentialCipher encrypts device hub passwords at rest with
// XChaCha20-Poly1305. The ciphertext is base64(nonce || sealed).
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher parses a hex-encoded 32-byte key.
func NewCredentialCipher(hexKey string) (*CredentialCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credential key is not valid hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credential key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &CredentialCipher{key: key}, nil
}

// Encrypt seals a plaintext password.
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed password. Fails on any tampering or a wrong key.
func (c *CredentialCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("stored credential is not valid base64: %w", err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("stored credential is truncated")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("credential decrypt failed (wrong key or corrupted record): %w", err)
	}
	return string(plaintext), nil
}
