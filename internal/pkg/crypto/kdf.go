package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the iteration count for password key derivation.
	PBKDF2Iterations = 100000

	// SaltSize is the size of the random KDF salt in bytes.
	SaltSize = 32
)

// ErrInvalidSalt indicates a salt that is not valid base64 or the wrong size.
var ErrInvalidSalt = errors.New("invalid salt: must be 32 base64-encoded bytes")

// GenerateSalt returns a random 32-byte salt, base64-encoded for storage.
func GenerateSalt() (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveKey derives a 32-byte wrapping key from a password and a
// base64-encoded salt using PBKDF2-HMAC-SHA256.
func DeriveKey(password, saltB64 string, iterations int) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil || len(salt) != SaltSize {
		return nil, ErrInvalidSalt
	}
	if iterations <= 0 {
		iterations = PBKDF2Iterations
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New), nil
}

// WrapKey encrypts a private key PEM under a key derived from the
// password. It returns the base64 ciphertext and the base64 salt, both of
// which are stored; the derived key itself is never persisted.
func WrapKey(privatePEM, password string, iterations int) (encrypted, saltB64 string, err error) {
	saltB64, err = GenerateSalt()
	if err != nil {
		return "", "", err
	}
	encrypted, err = wrapWithSalt(privatePEM, password, saltB64, iterations)
	if err != nil {
		return "", "", err
	}
	return encrypted, saltB64, nil
}

// RewrapKey re-encrypts a private key PEM under a new password, keeping a
// fresh salt. Used when a password changes without rotating the key pair.
func RewrapKey(privatePEM, newPassword string, iterations int) (encrypted, saltB64 string, err error) {
	return WrapKey(privatePEM, newPassword, iterations)
}

// UnwrapKey decrypts a wrapped private key PEM with the key derived from
// the password and stored salt. A wrong password surfaces as
// ErrDecryptionFailed; plaintext key material is never logged by callers.
func UnwrapKey(encrypted, password, saltB64 string, iterations int) (string, error) {
	key, err := DeriveKey(password, saltB64, iterations)
	if err != nil {
		return "", err
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		return "", err
	}
	return enc.DecryptString(encrypted)
}

func wrapWithSalt(privatePEM, password, saltB64 string, iterations int) (string, error) {
	key, err := DeriveKey(password, saltB64, iterations)
	if err != nil {
		return "", err
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		return "", err
	}
	return enc.EncryptString(privatePEM)
}
