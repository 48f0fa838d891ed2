package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	pkgconfig "github.com/tendant/oauth-idm/pkg/config"
	oauth2clientapi "github.com/tendant/oauth-idm/pkg/oauth2client/api"
	oidcapi "github.com/tendant/oauth-idm/pkg/oidc/api"
	"github.com/tendant/oauth-idm/pkg/user"
	"github.com/tendant/oauth-idm/pkg/wellknown"
	"golang.org/x/exp/slog"
)

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	// Prefix configuration for all routes
	PrefixConfig pkgconfig.PrefixConfig

	OIDCHandle         *oidcapi.Handle
	OAuth2ClientHandle *oauth2clientapi.Handle
	UserHandle         user.Handle
	WellKnownHandler   *wellknown.Handler

	// RSAAuth verifies access tokens issued by this server
	RSAAuth *jwtauth.JWTAuth
}

// SetupRoutes mounts all IDM routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	// Discovery documents are public
	router.Route(cfg.PrefixConfig.WellKnown, cfg.WellKnownHandler.Routes)

	router.Route(cfg.PrefixConfig.OAuth, func(r chi.Router) {
		cfg.OIDCHandle.Routes(r)
		cfg.OAuth2ClientHandle.Routes(r)
	})

	router.Mount(cfg.PrefixConfig.Users, user.Handler(cfg.UserHandle))

	// Routes for holders of an access token
	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(cfg.RSAAuth))
		r.Use(jwtauth.Authenticator(cfg.RSAAuth))

		r.Get("/me", Me)
	})
}

// Me returns the claims of the presented access token
func Me(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		slog.Error("Failed getting token claims", "err", err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	render.JSON(w, r, claims)
}
