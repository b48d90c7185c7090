package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// RSAKeySize is the modulus size in bits for generated key pairs.
const RSAKeySize = 2048

// PEM block types.
const (
	pemTypePrivateKey = "PRIVATE KEY"
	pemTypePublicKey  = "PUBLIC KEY"
)

// Key pair errors
var (
	// ErrInvalidPEM indicates the input is not a parseable PEM block.
	ErrInvalidPEM = errors.New("invalid PEM block")

	// ErrNotRSAKey indicates the PEM block does not contain an RSA key.
	ErrNotRSAKey = errors.New("PEM block does not contain an RSA key")
)

// GenerateKeyPair generates an RSA-2048 key pair and returns it as PEM:
// the private key in PKCS#8 form, the public key in SubjectPublicKeyInfo
// form.
func GenerateKeyPair() (privatePEM, publicPEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, RSAKeySize)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate RSA key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePrivateKey,
		Bytes: privDER,
	}))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePublicKey,
		Bytes: pubDER,
	}))

	return privatePEM, publicPEM, nil
}

// ParsePrivateKey parses a PKCS#8 PEM private key.
func ParsePrivateKey(privatePEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil || block.Type != pemTypePrivateKey {
		return nil, ErrInvalidPEM
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return key, nil
}

// ParsePublicKey parses a SubjectPublicKeyInfo PEM public key.
func ParsePublicKey(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil || block.Type != pemTypePublicKey {
		return nil, ErrInvalidPEM
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return key, nil
}

// KeyPairMatches reports whether a private and public PEM belong to the
// same key pair.
func KeyPairMatches(privatePEM, publicPEM string) (bool, error) {
	priv, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return false, err
	}
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return false, err
	}
	return priv.PublicKey.Equal(pub), nil
}
