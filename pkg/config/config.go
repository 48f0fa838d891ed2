package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Code store backends
const (
	CodeStoreMemory   = "memory"
	CodeStorePostgres = "postgres"
	CodeStoreRedis    = "redis"
)

// Config is built once at process start and handed to every component that needs it.
type Config struct {
	BaseURL        string `env:"BASE_URL" env-default:"http://localhost:4000"`
	CodeStore      string `env:"CODE_STORE" env-default:"postgres"`
	AuthCodeExpiry string `env:"AUTH_CODE_EXPIRY" env-default:"PT10M"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" env-default:"true"`

	// Scopes the authorization server grants
	Scopes []string `env:"OAUTH_SCOPES" env-default:"openid,policies.all.get,policies.own.get,policies.set"`

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Registration RegistrationConfig
	Password     PasswordConfig
	Prefix       PrefixConfig
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	loadEnvFile()

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseAuthCodeExpiry parses the authorization code lifetime
func (c Config) ParseAuthCodeExpiry() (time.Duration, error) {
	return parseDurationISO8601(c.AuthCodeExpiry)
}

// Validate checks values cleanenv cannot check on its own
func (c Config) Validate() error {
	var errs ValidationErrors

	if err := RequireValidURL("BASE_URL", c.BaseURL); err != nil {
		errs = append(errs, *err)
	}
	if err := RequireOneOf("CODE_STORE", c.CodeStore, []string{CodeStoreMemory, CodeStorePostgres, CodeStoreRedis}); err != nil {
		errs = append(errs, *err)
	}
	if c.CodeStore == CodeStoreRedis && c.Redis.Addr == "" {
		errs = append(errs, ValidationError{Field: "REDIS_ADDR", Message: "is required when CODE_STORE=redis"})
	}
	if len(c.Scopes) == 0 {
		errs = append(errs, ValidationError{Field: "OAUTH_SCOPES", Message: "must list at least one scope"})
	}
	if d, err := c.ParseAuthCodeExpiry(); err != nil || d <= 0 {
		errs = append(errs, ValidationError{Field: "AUTH_CODE_EXPIRY", Message: "must be a positive duration"})
	}
	errs = append(errs, c.JWT.validate()...)
	errs = append(errs, c.Registration.validate()...)
	errs = append(errs, c.Password.validate()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() {
	envFile := ".env"
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(candidate); err == nil {
			envFile = candidate
		}
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}
