// Command tokengen mints an initial access token for the registration
// endpoint, signed with the server key named by SECRET_KEY_PATH.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tendant/oauth-idm/pkg/config"
	"github.com/tendant/oauth-idm/pkg/jwks"
	"github.com/tendant/oauth-idm/pkg/tokengenerator"
)

func main() {
	subject := flag.String("subject", "registration", "Subject of the token")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token expiry duration (e.g., 30m, 1h, 24h)")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	keys, err := jwks.LoadKeyPair(cfg.JWT.SecretKeyPath, cfg.JWT.PublicKeyPath, cfg.JWT.KeyID, false)
	if err != nil {
		slog.Error("Failed to load signing key", "path", cfg.JWT.SecretKeyPath, "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to load signing key: %v\n", err)
		os.Exit(1)
	}

	tokenGen := tokengenerator.NewRSATokenGenerator(keys.PrivateKey, keys.KeyID, cfg.JWT.Issuer)
	tokenStr, expiryTime, err := tokenGen.GenerateRegistrationToken(*subject, *expiry)
	if err != nil {
		slog.Error("Failed to generate token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to generate token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiryTime.Format(time.RFC3339))
	case "debug":
		claims, err := tokenGen.ParseAccessToken(tokenStr)
		if err != nil {
			slog.Error("Failed to parse generated token", "err", err)
			fmt.Fprintf(os.Stderr, "Error: Failed to parse generated token: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n", tokenStr)
		fmt.Printf("Key ID: %s\n\n", tokenGen.GetKeyID())
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", expiryTime.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}
