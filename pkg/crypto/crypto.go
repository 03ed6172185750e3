// Package crypto implements encryption-at-rest primitives: AES-256-GCM for
// sensitive payloads and keyed HMAC-SHA256 fingerprints used as blind indexes.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 parameters, password-hashing grade.
	kdfIterations = 480000
	keyLength     = 32

	nonceSize = 12
)

// Distinct salts keep the encryption and fingerprint keys independent even
// though both derive from the same master secret.
var (
	encSaltV1  = []byte("sysalert_enc_salt_v1")
	hmacSaltV1 = []byte("sysalert_hmac_salt_v1")
)

// ErrAuthentication is returned when a ciphertext is malformed, tampered with,
// or was produced under a different key.
var ErrAuthentication = errors.New("crypto: authentication failed")

// Manager derives independent encryption and fingerprint keys from one
// base64-encoded master secret and exposes the encrypt/decrypt/fingerprint
// operations the store builds on.
type Manager struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// New creates a Manager from a base64-encoded master secret.
func New(masterKey string) (*Manager, error) {
	secret, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: master key is not valid base64: %w", err)
	}
	if len(secret) == 0 {
		return nil, errors.New("crypto: master key is empty")
	}

	encKey := pbkdf2.Key(secret, encSaltV1, kdfIterations, keyLength, sha256.New)
	hmacKey := pbkdf2.Key(secret, hmacSaltV1, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm init: %w", err)
	}

	return &Manager{aead: aead, hmacKey: hmacKey}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// nonce || ciphertext+tag. Two calls on the same plaintext never produce the
// same output.
func (m *Manager) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce generation: %w", err)
	}
	return m.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering, truncation or key
// mismatch yields ErrAuthentication, never garbage plaintext.
func (m *Manager) Decrypt(blob []byte) (string, error) {
	if len(blob) < nonceSize+m.aead.Overhead() {
		return "", ErrAuthentication
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := m.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}

// HashValue returns the deterministic HMAC-SHA256 fingerprint of value as a
// 64-character hex string. Used for equality lookup without storing plaintext.
func (m *Manager) HashValue(value string) string {
	h := hmac.New(sha256.New, m.hmacKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
