package config

import (
	"time"

	"github.com/sosodev/duration"
)

// JWTConfig holds access token signing settings
type JWTConfig struct {
	Alg           string `env:"JWS_ALG" env-default:"RS256"`
	DefaultExp    int    `env:"DEFAULT_JWT_EXP" env-default:"30"` // minutes
	SecretKeyPath string `env:"SECRET_KEY_PATH" env-default:"jwt-private.pem"`
	PublicKeyPath string `env:"PUBLIC_KEY_PATH" env-default:""`
	Issuer        string `env:"JWT_ISSUER" env-default:"oauth-idm"`
	KeyID         string `env:"JWT_KEY_ID" env-default:""`
	GenerateKey   bool   `env:"JWT_GENERATE_KEY" env-default:"true"`
}

// AccessTokenExpiry returns the access token lifetime
func (j JWTConfig) AccessTokenExpiry() time.Duration {
	return time.Duration(j.DefaultExp) * time.Minute
}

func (j JWTConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireOneOf("JWS_ALG", j.Alg, []string{"RS256"}),
		RequirePositive("DEFAULT_JWT_EXP", j.DefaultExp),
		RequireNonEmpty("SECRET_KEY_PATH", j.SecretKeyPath),
	)
}

// parseDurationISO8601 tries to parse duration as ISO8601 first, then Go duration
func parseDurationISO8601(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
