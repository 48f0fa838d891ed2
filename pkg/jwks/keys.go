package jwks

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-jose/go-jose/v4"
)

// KeyPair is the process-wide signing key. It is read-only after startup.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	KeyID      string
}

// PublicKey returns the verification half
func (k *KeyPair) PublicKey() *rsa.PublicKey {
	return &k.PrivateKey.PublicKey
}

// LoadKeyPair reads the private key at privatePath. When the file is missing
// and generate is set a 2048-bit key is created and written there. When
// publicPath is set the public key on disk must match the private key.
// An empty keyID is replaced by the key's RFC 7638 thumbprint.
func LoadKeyPair(privatePath, publicPath, keyID string, generate bool) (*KeyPair, error) {
	keyBytes, err := os.ReadFile(privatePath)
	switch {
	case errors.Is(err, os.ErrNotExist) && generate:
		slog.Info("RSA key not found - generating new key pair", "path", privatePath)
		privateKey, err := GenerateRSAKeyPair(2048)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		if err := os.WriteFile(privatePath, EncodePrivateKeyToPEM(privateKey), 0600); err != nil {
			return nil, fmt.Errorf("failed to write key file: %w", err)
		}
		keyBytes = EncodePrivateKeyToPEM(privateKey)
	case err != nil:
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	privateKey, err := DecodePrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	if publicPath != "" {
		pubBytes, err := os.ReadFile(publicPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key file: %w", err)
		}
		publicKey, err := DecodePublicKeyFromPEM(pubBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to decode public key: %w", err)
		}
		if !publicKey.Equal(&privateKey.PublicKey) {
			return nil, fmt.Errorf("public key %s does not match private key %s", publicPath, privatePath)
		}
	}

	if keyID == "" {
		keyID, err = Thumbprint(&privateKey.PublicKey)
		if err != nil {
			return nil, err
		}
	}

	return &KeyPair{PrivateKey: privateKey, KeyID: keyID}, nil
}

// Thumbprint returns the base64url SHA-256 JWK thumbprint of a public key
func Thumbprint(publicKey *rsa.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: publicKey}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
