package vault

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

func newTestCipher(t *testing.T, secret string) *Cipher {
	t.Helper()

	c, err := NewCipher(secret)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return c
}

func TestNewCipher(t *testing.T) {
	t.Run("EmptySecret", func(t *testing.T) {
		if _, err := NewCipher(""); err == nil {
			t.Error("expected error for empty master secret")
		}
	})

	t.Run("ValidSecret", func(t *testing.T) {
		if _, err := NewCipher("a-master-secret"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t, "a-master-secret")

	plaintexts := []string{
		"AQB7x-refresh-token",
		"short",
		strings.Repeat("long-token-", 100),
		"unicode: héllo wörld ñ",
	}

	for _, plaintext := range plaintexts {
		sealed, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if sealed == plaintext {
			t.Error("ciphertext should differ from plaintext")
		}

		opened, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if opened != plaintext {
			t.Errorf("expected %q, got %q", plaintext, opened)
		}
	}
}

func TestCipher_EncryptEmptyInput(t *testing.T) {
	c := newTestCipher(t, "a-master-secret")

	_, err := c.Encrypt("")
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCipher_NonDeterministic(t *testing.T) {
	c := newTestCipher(t, "a-master-secret")

	first, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	second, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if first == second {
		t.Error("two encryptions of the same plaintext must not be identical")
	}

	for _, sealed := range []string{first, second} {
		opened, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if opened != "same plaintext" {
			t.Errorf("expected round trip, got %q", opened)
		}
	}
}

func TestCipher_DecryptFailures(t *testing.T) {
	c := newTestCipher(t, "a-master-secret")

	t.Run("Empty", func(t *testing.T) {
		if _, err := c.Decrypt(""); !errors.Is(err, shared.ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("NotBase64", func(t *testing.T) {
		if _, err := c.Decrypt("%%% not base64 %%%"); !errors.Is(err, shared.ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("TooShort", func(t *testing.T) {
		if _, err := c.Decrypt("YWJj"); !errors.Is(err, shared.ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("Tampered", func(t *testing.T) {
		sealed, err := c.Encrypt("a refresh token")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		tampered := []byte(sealed)
		tampered[len(tampered)-5] ^= 'x'
		if _, err := c.Decrypt(string(tampered)); !errors.Is(err, shared.ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed for tampered blob, got %v", err)
		}
	})

	t.Run("ForeignKey", func(t *testing.T) {
		other := newTestCipher(t, "a-different-secret")

		sealed, err := other.Encrypt("a refresh token")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		opened, err := c.Decrypt(sealed)
		if !errors.Is(err, shared.ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed for foreign-key blob, got %v (plaintext %q)", err, opened)
		}
	})
}

func TestCipher_ConcurrentUse(t *testing.T) {
	c := newTestCipher(t, "a-master-secret")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				sealed, err := c.Encrypt("concurrent plaintext")
				if err != nil {
					t.Errorf("encrypt failed: %v", err)
					return
				}
				opened, err := c.Decrypt(sealed)
				if err != nil || opened != "concurrent plaintext" {
					t.Errorf("round trip failed: %v %q", err, opened)
					return
				}
			}
		}()
	}
	wg.Wait()
}
