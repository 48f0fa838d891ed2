package tokengenerator

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Values of the token_use claim
const (
	TokenUseAccess       = "access"
	TokenUseRegistration = "registration"
)

// AccessClaims is the payload of an access token or an initial
// registration token
type AccessClaims struct {
	ClientID string `json:"client_id,omitempty"`
	Scope    string `json:"scope,omitempty"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// RSATokenGenerator implements TokenGenerator with RS256 signatures
type RSATokenGenerator struct {
	privateKey *rsa.PrivateKey
	keyID      string
	issuer     string
	now        func() time.Time
}

// NewRSATokenGenerator creates a new RSA token generator
func NewRSATokenGenerator(privateKey *rsa.PrivateKey, keyID, issuer string) *RSATokenGenerator {
	return &RSATokenGenerator{
		privateKey: privateKey,
		keyID:      keyID,
		issuer:     issuer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GenerateAccessToken creates a new RSA-signed access token
func (g *RSATokenGenerator) GenerateAccessToken(subject, clientID, scope string, expiry time.Duration) (string, time.Time, error) {
	return g.sign(AccessClaims{
		ClientID: clientID,
		Scope:    scope,
		TokenUse: TokenUseAccess,
	}, subject, expiry)
}

// GenerateRegistrationToken creates an initial access token for the client
// registration endpoint. It carries no client_id and token_use=registration.
func (g *RSATokenGenerator) GenerateRegistrationToken(subject string, expiry time.Duration) (string, time.Time, error) {
	return g.sign(AccessClaims{TokenUse: TokenUseRegistration}, subject, expiry)
}

func (g *RSATokenGenerator) sign(claims AccessClaims, subject string, expiry time.Duration) (string, time.Time, error) {
	now := g.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    g.issuer,
		Subject:   subject,
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = g.keyID

	tokenString, err := token.SignedString(g.privateKey)
	if err != nil {
		slog.Error("Failed to sign RSA JWT token", "err", err)
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, claims.ExpiresAt.Time, nil
}

// ParseAccessToken parses and validates an RSA-signed token string
func (g *RSATokenGenerator) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &g.privateKey.PublicKey, nil
	}, jwt.WithIssuer(g.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// GetKeyID returns the key ID used by this token generator
func (g *RSATokenGenerator) GetKeyID() string {
	return g.keyID
}

// GetPublicKey returns the public key for this token generator
func (g *RSATokenGenerator) GetPublicKey() *rsa.PublicKey {
	return &g.privateKey.PublicKey
}

// GetPrivateKey returns the signing key
func (g *RSATokenGenerator) GetPrivateKey() *rsa.PrivateKey {
	return g.privateKey
}
