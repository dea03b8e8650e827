// Package security encrypts and decrypts brokerage API tokens stored on
// trading sessions. Tokens never sit in the database as plaintext.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

func loadKey() (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(GetConfig().CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credentials key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("credentials key must be 32 bytes, got %d", len(raw))
	}

	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// EncryptString seals plaintext with the configured key and returns a
// base64 payload of nonce||box.
func EncryptString(plaintext string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. Tampered or truncated payloads
// fail with ErrInvalidCiphertext.
func DecryptString(ciphertext string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	opened, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrInvalidCiphertext
	}
	return string(opened), nil
}
