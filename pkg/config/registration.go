package config

// RegistrationConfig holds the dynamic client registration policy
type RegistrationConfig struct {
	AllowPublicClients        bool `env:"ALLOW_PUBLIC_CLIENTS" env-default:"true"`
	AllowMultipleGrantTypes   bool `env:"ALLOW_MULTIPLE_GRANT_TYPES" env-default:"true"`
	RequireSoftwareStatement  bool `env:"REQUIRE_SOFTWARE_STATEMENT" env-default:"false"`
	StrictURIs                bool `env:"STRICT_URIS" env-default:"true"`
	AllowMultiInstanceClients bool `env:"ALLOW_MULTI_INSTANCE_CLIENTS" env-default:"true"`
	ClientSecretLen           int  `env:"CLIENT_SECRET_LEN" env-default:"32"` // random bytes; the encoded secret must fit bcrypt's 72 byte limit
	ClientSecretExpDays       int  `env:"CLIENT_SECRET_EXP_DAYS" env-default:"0"`
	RequireInitialToken       bool `env:"REQUIRE_INITIAL_TOKEN" env-default:"false"`
}

func (r RegistrationConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireInRange("CLIENT_SECRET_LEN", r.ClientSecretLen, 16, 48),
		RequireNonNegative("CLIENT_SECRET_EXP_DAYS", r.ClientSecretExpDays),
	)
}

// PasswordConfig controls bcrypt work and how much of it may run at once
type PasswordConfig struct {
	BcryptCost   int `env:"BCRYPT_COST" env-default:"10"`
	HashPoolSize int `env:"HASH_POOL_SIZE" env-default:"0"` // 0 means GOMAXPROCS
}

func (p PasswordConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireInRange("BCRYPT_COST", p.BcryptCost, 4, 31),
		RequireNonNegative("HASH_POOL_SIZE", p.HashPoolSize),
	)
}

// PrefixConfig holds the mount points of the route groups
type PrefixConfig struct {
	OAuth     string `env:"API_PREFIX_OAUTH" env-default:"/oauth"`
	Users     string `env:"API_PREFIX_USERS" env-default:"/users"`
	WellKnown string `env:"API_PREFIX_WELL_KNOWN" env-default:"/.well-known"`
}

// DefaultPrefixes returns the prefix layout used when nothing is configured
func DefaultPrefixes() PrefixConfig {
	return PrefixConfig{
		OAuth:     "/oauth",
		Users:     "/users",
		WellKnown: "/.well-known",
	}
}
