package tokengenerator

import (
	"time"
)

// TokenGenerator mints and parses access tokens
type TokenGenerator interface {
	// GenerateAccessToken signs a token for subject on behalf of clientID
	GenerateAccessToken(subject, clientID, scope string, expiry time.Duration) (string, time.Time, error)

	// ParseAccessToken verifies a token and returns its claims
	ParseAccessToken(tokenStr string) (*AccessClaims, error)
}
