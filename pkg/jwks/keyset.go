package jwks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-jose/go-jose/v4"
)

// PublicKeySet returns the JWK set advertised at the jwks endpoint
func PublicKeySet(keys ...*KeyPair) jose.JSONWebKeySet {
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(keys))}
	for _, k := range keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       k.PublicKey(),
			KeyID:     k.KeyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}
	return set
}

// ParseClientKey checks that one entry of a client's "jwks" metadata can be
// turned into a usable public key. Private key material is refused.
func ParseClientKey(raw json.RawMessage) (*jose.JSONWebKey, error) {
	var key jose.JSONWebKey
	if err := key.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("failed to parse JWK: %w", err)
	}
	if !key.Valid() {
		return nil, fmt.Errorf("JWK is not valid")
	}
	if !key.IsPublic() {
		return nil, fmt.Errorf("JWK contains private key material")
	}
	return &key, nil
}

// Handler serves the public key set
type Handler struct {
	set jose.JSONWebKeySet
}

// NewHandler creates a jwks handler for the given keys
func NewHandler(keys ...*KeyPair) *Handler {
	return &Handler{set: PublicKeySet(keys...)}
}

// ServeHTTP handles GET /.well-known/jwks.json
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Debug("JWKS request received", "path", r.URL.Path)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	render.JSON(w, r, h.set)
}
