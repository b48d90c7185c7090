package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// TokenLength is the length in hex characters of an API auth token.
	TokenLength = 40

	// SessionKeyLength is the length in hex characters of a session key.
	SessionKeyLength = 32
)

// GenerateToken returns a random 40-character hex token.
func GenerateToken() (string, error) {
	return generateHex(TokenLength)
}

// GenerateSessionKey returns a random 32-character hex session key.
func GenerateSessionKey() (string, error) {
	return generateHex(SessionKeyLength)
}

func generateHex(length int) (string, error) {
	buf := make([]byte, length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
