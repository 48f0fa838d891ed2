package router

import (
	"context"
	"fmt"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgconfig "github.com/tendant/oauth-idm/pkg/config"
	"github.com/tendant/oauth-idm/pkg/jwks"
	"github.com/tendant/oauth-idm/pkg/login"
	"github.com/tendant/oauth-idm/pkg/oauth2client"
	oauth2clientapi "github.com/tendant/oauth-idm/pkg/oauth2client/api"
	"github.com/tendant/oauth-idm/pkg/oidc"
	oidcapi "github.com/tendant/oauth-idm/pkg/oidc/api"
	"github.com/tendant/oauth-idm/pkg/tokengenerator"
	"github.com/tendant/oauth-idm/pkg/user"
	"github.com/tendant/oauth-idm/pkg/wellknown"
	"golang.org/x/exp/slog"
)

// Repositories are the stores behind the services
type Repositories struct {
	Clients oauth2client.ClientRepository
	Users   user.UserRepository
	Codes   oidc.OIDCRepository
}

// PostgresRepositories keeps clients and users in PostgreSQL. The code
// store is chosen separately, see NewCodeRepository.
func PostgresRepositories(pool *pgxpool.Pool, codes oidc.OIDCRepository) Repositories {
	return Repositories{
		Clients: oauth2client.NewPostgresClientRepository(pool),
		Users:   user.NewPostgresUserRepository(pool),
		Codes:   codes,
	}
}

// NewCodeRepository builds the authorization code store selected by
// CODE_STORE. The returned close function releases its connection.
func NewCodeRepository(ctx context.Context, cfg pkgconfig.Config, pool *pgxpool.Pool) (oidc.OIDCRepository, func(), error) {
	switch cfg.CodeStore {
	case pkgconfig.CodeStoreMemory:
		return oidc.NewInMemoryOIDCRepository(), func() {}, nil
	case pkgconfig.CodeStorePostgres:
		return oidc.NewPostgresOIDCRepository(pool), func() {}, nil
	case pkgconfig.CodeStoreRedis:
		repo, err := oidc.NewRedisOIDCRepository(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				slog.Warn("Failed to close redis client", "err", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown code store %q", cfg.CodeStore)
	}
}

// NewConfig wires services and handlers from configuration. keys is the
// process-wide signing key.
func NewConfig(cfg pkgconfig.Config, repos Repositories, keys *jwks.KeyPair) (Config, error) {
	codeExpiry, err := cfg.ParseAuthCodeExpiry()
	if err != nil {
		return Config{}, fmt.Errorf("invalid AUTH_CODE_EXPIRY: %w", err)
	}

	hasher := login.NewHashPool(login.NewBcryptHasher(cfg.Password.BcryptCost), cfg.Password.HashPoolSize)
	tokenGenerator := tokengenerator.NewRSATokenGenerator(keys.PrivateKey, keys.KeyID, cfg.JWT.Issuer)
	rsaAuth := jwtauth.New("RS256", keys.PrivateKey, keys.PublicKey())

	clientService := oauth2client.NewClientService(repos.Clients, oauth2client.NewPolicy(cfg.Registration), hasher)
	userService := user.NewUserService(repos.Users, hasher)
	oidcService := oidc.NewOIDCService(repos.Codes, clientService, userService,
		oidc.WithTokenGenerator(tokenGenerator),
		oidc.WithCodeExpiration(codeExpiry),
		oidc.WithTokenExpiration(cfg.JWT.AccessTokenExpiry()),
		oidc.WithScopes(cfg.Scopes),
	)

	var registrationOpts []oauth2clientapi.Option
	if cfg.Registration.RequireInitialToken {
		registrationOpts = append(registrationOpts, oauth2clientapi.WithInitialToken(rsaAuth))
	}

	return Config{
		PrefixConfig:       cfg.Prefix,
		OIDCHandle:         oidcapi.NewHandle(oidcService, cfg.Prefix.OAuth+"/authorize"),
		OAuth2ClientHandle: oauth2clientapi.NewHandle(clientService, registrationOpts...),
		UserHandle:         user.NewHandle(userService, cfg.Prefix.Users),
		WellKnownHandler: wellknown.NewHandler(wellknown.Config{
			Issuer:    cfg.JWT.Issuer,
			BaseURL:   cfg.BaseURL,
			OAuthPath: cfg.Prefix.OAuth,
			Scopes:    cfg.Scopes,
		}, jwks.NewHandler(keys)),
		RSAAuth: rsaAuth,
	}, nil
}
