package wellknown

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Handler serves the discovery documents under /.well-known
type Handler struct {
	metadata *AuthorizationServerMetadata
	jwks     http.Handler
}

// NewHandler creates a new well-known endpoints handler. jwks serves the
// server's public key set.
func NewHandler(config Config, jwks http.Handler) *Handler {
	return &Handler{
		metadata: NewAuthorizationServerMetadata(config),
		jwks:     jwks,
	}
}

// AuthorizationServerMetadata handles GET /.well-known/oauth-authorization-server
func (h *Handler) AuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	render.JSON(w, r, h.metadata)
}

// Routes registers the discovery endpoints on r
func (h *Handler) Routes(r chi.Router) {
	r.Get("/oauth-authorization-server", h.AuthorizationServerMetadata)
	r.Method(http.MethodGet, "/jwks.json", h.jwks)
}
