package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tendant/oauth-idm/pkg/config"
	"github.com/tendant/oauth-idm/pkg/database"
	"github.com/tendant/oauth-idm/pkg/login"
	"github.com/tendant/oauth-idm/pkg/user"
)

func main() {
	loginName := flag.String("login", "", "Login (email address) of the new user (required)")
	password := flag.String("password", "", "Password for the new user (required)")
	name := flag.String("name", "", "Given name")
	surname := flag.String("surname", "", "Family name")
	flag.Parse()

	if *loginName == "" || *password == "" {
		fmt.Println("Error: login and password are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database.ToDbConfig())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "port", cfg.Database.Port, "user", cfg.Database.User)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, pool); err != nil {
			slog.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	hasher := login.NewHashPool(login.NewBcryptHasher(cfg.Password.BcryptCost), 1)
	userService := user.NewUserService(user.NewPostgresUserRepository(pool), hasher)

	u, err := userService.Register(ctx, *loginName, *password, user.Profile{
		Name:    optional(*name),
		Surname: optional(*surname),
	})
	var exists *user.LoginExistsError
	if errors.As(err, &exists) {
		slog.Error("User already exists", "login", *loginName, "user_id", exists.UserID)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		os.Exit(1)
	}

	slog.Info("User created successfully", "login", *loginName, "user_id", u.ID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
