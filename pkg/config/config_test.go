package config

import (
	"testing"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{}
	require.NoError(t, cleanenv.ReadEnv(&cfg))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, "RS256", cfg.JWT.Alg)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTokenExpiry())
	assert.Equal(t, 32, cfg.Registration.ClientSecretLen)
	assert.True(t, cfg.Registration.AllowPublicClients)
	assert.False(t, cfg.Registration.RequireInitialToken)
	assert.Equal(t, DefaultPrefixes(), cfg.Prefix)
	assert.Equal(t, []string{"openid", "policies.all.get", "policies.own.get", "policies.set"}, cfg.Scopes)

	expiry, err := cfg.ParseAuthCodeExpiry()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, expiry)

	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_JWT_EXP", "5")
	t.Setenv("ALLOW_MULTIPLE_GRANT_TYPES", "false")
	t.Setenv("AUTH_CODE_EXPIRY", "90s")
	t.Setenv("CODE_STORE", "memory")
	t.Setenv("OAUTH_SCOPES", "openid,profile")

	cfg := defaultConfig(t)

	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenExpiry())
	assert.False(t, cfg.Registration.AllowMultipleGrantTypes)
	assert.Equal(t, CodeStoreMemory, cfg.CodeStore)
	assert.Equal(t, []string{"openid", "profile"}, cfg.Scopes)

	expiry, err := cfg.ParseAuthCodeExpiry()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, expiry)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown code store", func(c *Config) { c.CodeStore = "etcd" }, "CODE_STORE"},
		{"redis without address", func(c *Config) { c.CodeStore = CodeStoreRedis }, "REDIS_ADDR"},
		{"unsupported algorithm", func(c *Config) { c.JWT.Alg = "HS256" }, "JWS_ALG"},
		{"zero token lifetime", func(c *Config) { c.JWT.DefaultExp = 0 }, "DEFAULT_JWT_EXP"},
		{"short secret", func(c *Config) { c.Registration.ClientSecretLen = 4 }, "CLIENT_SECRET_LEN"},
		{"secret over bcrypt limit", func(c *Config) { c.Registration.ClientSecretLen = 64 }, "CLIENT_SECRET_LEN"},
		{"negative secret expiry", func(c *Config) { c.Registration.ClientSecretExpDays = -1 }, "CLIENT_SECRET_EXP_DAYS"},
		{"bad code expiry", func(c *Config) { c.AuthCodeExpiry = "soon" }, "AUTH_CODE_EXPIRY"},
		{"relative base url", func(c *Config) { c.BaseURL = "localhost" }, "BASE_URL"},
		{"no scopes", func(c *Config) { c.Scopes = nil }, "OAUTH_SCOPES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var errs ValidationErrors
			require.ErrorAs(t, err, &errs)
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
