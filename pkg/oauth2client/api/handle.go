package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
	"github.com/tendant/oauth-idm/pkg/oauth2client"
	"github.com/tendant/oauth-idm/pkg/tokengenerator"
)

const maxRegistrationBody = 64 << 10

// Handle serves RFC 7591 dynamic client registration
type Handle struct {
	clientService *oauth2client.ClientService
	schema        *openapi3.Schema
	// initialTokenAuth is set when registration needs an initial access token
	initialTokenAuth *jwtauth.JWTAuth
}

// Option configures a Handle
type Option func(*Handle)

// WithInitialToken requires a bearer token verified by ja on every
// registration request
func WithInitialToken(ja *jwtauth.JWTAuth) Option {
	return func(h *Handle) {
		h.initialTokenAuth = ja
	}
}

// NewHandle creates a new client registration API handler
func NewHandle(clientService *oauth2client.ClientService, opts ...Option) *Handle {
	h := &Handle{
		clientService: clientService,
		schema:        ClientMetadataSchema(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the registration endpoints on r
func (h *Handle) Routes(r chi.Router) {
	r.Get("/register", h.GetRegistrationSchema)
	r.Post("/register", h.RegisterClient)
}

// GetRegistrationSchema returns the client metadata schema
// (GET /oauth/register)
func (h *Handle) GetRegistrationSchema(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.schema)
}

// RegisterClient creates a client from the posted metadata
// (POST /oauth/register)
func (h *Handle) RegisterClient(w http.ResponseWriter, r *http.Request) {
	if h.initialTokenAuth != nil {
		if err := h.checkInitialToken(r); err != nil {
			idmerrors.Render(w, r, err)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRegistrationBody))
	if err != nil {
		idmerrors.Render(w, r, idmerrors.ErrInvalidClientMetadata.Wrap(err))
		return
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		idmerrors.Render(w, r, idmerrors.ErrInvalidClientMetadata.Wrap(err))
		return
	}
	if err := h.schema.VisitJSON(doc); err != nil {
		slog.Info("Client metadata rejected by schema", "error", err)
		idmerrors.Render(w, r, idmerrors.ErrInvalidClientMetadata.Wrap(err))
		return
	}

	var req oauth2client.RegistrationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		idmerrors.Render(w, r, idmerrors.ErrInvalidClientMetadata.Wrap(err))
		return
	}

	result, err := h.clientService.Register(r.Context(), &req)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	idmerrors.SetNoStore(w)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

func (h *Handle) checkInitialToken(r *http.Request) error {
	if r.Header.Get("Authorization") == "" {
		return idmerrors.ErrNoInitialToken
	}
	token := jwtauth.TokenFromHeader(r)
	if token == "" {
		return idmerrors.ErrInvalidInitialToken
	}
	tok, err := jwtauth.VerifyToken(h.initialTokenAuth, token)
	if err != nil {
		return idmerrors.ErrInvalidInitialToken.Wrap(err)
	}
	// Access tokens from /oauth/token share the signing key; only tokens
	// minted for registration are accepted here.
	if use, _ := tok.Get("token_use"); use != tokengenerator.TokenUseRegistration {
		slog.Info("Initial token rejected", "token_use", use, "sub", tok.Subject())
		return idmerrors.ErrInvalidInitialToken
	}
	if clientID, ok := tok.Get("client_id"); ok && clientID != "" {
		slog.Info("Initial token rejected", "client_id", clientID)
		return idmerrors.ErrInvalidInitialToken
	}
	return nil
}
