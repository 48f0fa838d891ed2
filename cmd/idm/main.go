package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/oauth-idm/pkg/config"
	"github.com/tendant/oauth-idm/pkg/database"
	"github.com/tendant/oauth-idm/pkg/jwks"
	"github.com/tendant/oauth-idm/pkg/oidc"
	"github.com/tendant/oauth-idm/pkg/router"
)

const purgeInterval = time.Minute

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting OAuth IDM")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	keys, err := jwks.LoadKeyPair(cfg.JWT.SecretKeyPath, cfg.JWT.PublicKeyPath, cfg.JWT.KeyID, cfg.JWT.GenerateKey)
	if err != nil {
		slog.Error("Failed to load signing key", "path", cfg.JWT.SecretKeyPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Signing key loaded", "kid", keys.KeyID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database.ToDbConfig())
	if err != nil {
		slog.Error("Failed to connect to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Database,
			"error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, pool); err != nil {
			slog.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	codes, closeCodes, err := router.NewCodeRepository(ctx, cfg, pool)
	if err != nil {
		slog.Error("Failed to create code store", "store", cfg.CodeStore, "error", err)
		os.Exit(1)
	}
	defer closeCodes()
	if purger, ok := codes.(oidc.Purger); ok {
		go oidc.RunPurger(ctx, purger, purgeInterval)
	}

	routes, err := router.NewConfig(cfg, router.PostgresRepositories(pool, codes), keys)
	if err != nil {
		slog.Error("Failed to configure routes", "error", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	setupRoutes(server.R, routes)

	slog.Info("OAuth IDM ready",
		"base_url", cfg.BaseURL,
		"code_store", cfg.CodeStore,
		"discovery", cfg.BaseURL+cfg.Prefix.WellKnown+"/oauth-authorization-server")

	server.Run()
}

func setupRoutes(r *chi.Mux, routes router.Config) {
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	router.SetupRoutes(r, routes)
}
