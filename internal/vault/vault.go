// package vault implements the credential encryption service used to keep
// long-lived Spotify refresh tokens encrypted at rest.
//
// A [Cipher] is constructed once at startup from the application's master
// secret and is safe for concurrent use; every Encrypt call draws a fresh
// nonce so identical plaintexts never produce identical ciphertexts.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

const (
	// keySalt is a fixed application constant: the master secret carries all
	// of the entropy, the salt only domain-separates the derived key.
	keySalt = "shuffify.credential.vault.v1"

	keyIterations = 100_000
	keyLength     = 32 // AES-256
)

// Cipher encrypts and decrypts credential strings with AES-256-GCM under a
// key derived from the master secret.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the symmetric key from masterSecret with PBKDF2-SHA256
// and prepares the AEAD. An empty master secret is refused.
func NewCipher(masterSecret string) (*Cipher, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("%w: master secret is empty", shared.ErrInvalidConfig)
	}

	key := pbkdf2.Key([]byte(masterSecret), []byte(keySalt), keyIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
// Empty plaintext is rejected so a missing credential can never round-trip
// into a stored blob.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", shared.ErrInvalidInput)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Every failure mode (empty
// input, malformed encoding, truncation, tampering, a blob sealed under
// a different key) surfaces as the single shared.ErrDecryptionFailed so
// callers learn nothing about which one occurred.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", shared.ErrDecryptionFailed
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", shared.ErrDecryptionFailed
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+1 {
		return "", shared.ErrDecryptionFailed
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", shared.ErrDecryptionFailed
	}

	return string(plaintext), nil
}
