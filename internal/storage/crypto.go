// Package storage provides cryptographic utilities for botgate.
// Bypass secrets are encrypted at rest (they must be revealable on explicit
// request); owner API tokens are bcrypt-hashed (they never need reversing).
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/bcrypt"
)

// EncryptSecret encrypts a bypass secret using AES-256-GCM.
// The encryptionKey must be exactly 32 bytes.
// Returns hex-encoded nonce+ciphertext concatenated.
func EncryptSecret(secret string, encryptionKey []byte) ([]byte, error) {
	if len(encryptionKey) != 32 {
		return nil, ErrInvalidKey
	}

	// Safe because key size is already validated
	block, _ := aes.NewCipher(encryptionKey) //nolint:errcheck
	gcm, _ := cipher.NewGCM(block)           //nolint:errcheck

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(secret), nil)

	return []byte(hex.EncodeToString(ciphertext)), nil
}

// DecryptSecret decrypts a bypass secret encrypted with EncryptSecret.
// The encryptionKey must be the same 32-byte key used for encryption.
func DecryptSecret(encrypted []byte, encryptionKey []byte) (string, error) {
	if len(encryptionKey) != 32 {
		return "", ErrInvalidKey
	}

	ciphertext := make([]byte, hex.DecodedLen(len(encrypted)))
	n, err := hex.Decode(ciphertext, encrypted)
	if err != nil {
		return "", ErrDecryption
	}
	ciphertext = ciphertext[:n]

	block, _ := aes.NewCipher(encryptionKey) //nolint:errcheck
	gcm, _ := cipher.NewGCM(block)           //nolint:errcheck

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrDecryption
	}

	nonce := ciphertext[:nonceSize]
	actual := ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, actual, nil)
	if err != nil {
		return "", ErrDecryption
	}

	return string(plaintext), nil
}

// HashToken creates a bcrypt hash of an owner token for storage.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken checks if a token matches a bcrypt hash.
func VerifyToken(token, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
}
