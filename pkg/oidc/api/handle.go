package api

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
	"github.com/tendant/oauth-idm/pkg/oidc"
	"golang.org/x/exp/slog"
)

//go:embed templates/*
var templateFiles embed.FS

var loginTemplate = template.Must(template.ParseFS(templateFiles, "templates/login.html"))

// loginPage is the data rendered into the login form
type loginPage struct {
	Action       string
	ClientName   string
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
	Nonce        string
	AuthRequest  string
}

// Handle serves the authorization and token endpoints
type Handle struct {
	oidcService *oidc.OIDCService
	// authorizePath is the form action of the rendered login page
	authorizePath string
}

// NewHandle creates a new OIDC API handle. authorizePath is where the login
// form posts back to.
func NewHandle(oidcService *oidc.OIDCService, authorizePath string) *Handle {
	return &Handle{
		oidcService:   oidcService,
		authorizePath: authorizePath,
	}
}

// Routes registers the authorization endpoints on r
func (h *Handle) Routes(r chi.Router) {
	r.Get("/authorize", h.AuthorizeForm)
	r.Post("/authorize", h.Authorize)
	r.Post("/token", h.Token)
	r.Post("/refresh_token", h.RefreshToken)
}

func authorizeRequest(r *http.Request) oidc.AuthorizeRequest {
	return oidc.AuthorizeRequest{
		Login:        r.Form.Get("login"),
		Password:     r.Form.Get("passwd"),
		Scope:        r.Form.Get("scope"),
		ResponseType: r.Form.Get("response_type"),
		ClientID:     r.Form.Get("client_id"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		State:        r.Form.Get("state"),
		Nonce:        r.Form.Get("nonce"),
		AuthRequest:  r.Form.Get("auth_request"),
	}
}

// AuthorizeForm renders the login form (GET /oauth/authorize)
func (h *Handle) AuthorizeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		idmerrors.Render(w, r, idmerrors.ErrMalformedRequest.Wrap(err))
		return
	}
	req := authorizeRequest(r)

	pending, client, err := h.oidcService.BeginAuthorization(r.Context(), req)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	page := loginPage{
		Action:       h.authorizePath,
		ClientName:   client.ClientName[""],
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		ResponseType: req.ResponseType,
		Scope:        req.Scope,
		State:        req.State,
		Nonce:        req.Nonce,
		AuthRequest:  pending.ID,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	idmerrors.SetNoStore(w)
	if err := loginTemplate.Execute(w, page); err != nil {
		slog.Error("Failed to render login form", "err", err)
	}
}

// Authorize authenticates the resource owner and redirects back to the
// client (POST /oauth/authorize)
func (h *Handle) Authorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		idmerrors.Render(w, r, idmerrors.ErrMalformedRequest.Wrap(err))
		return
	}

	result, err := h.oidcService.Authorize(r.Context(), authorizeRequest(r))
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Token exchanges a grant for an access token (POST /oauth/token)
func (h *Handle) Token(w http.ResponseWriter, r *http.Request) {
	idmerrors.SetNoStore(w)
	if err := r.ParseForm(); err != nil {
		idmerrors.Render(w, r, idmerrors.ErrTokenInvalidRequest.Wrap(err))
		return
	}

	resp, err := h.oidcService.Token(r.Context(), oidc.TokenRequest{
		Authorization: r.Header.Get("Authorization"),
		GrantType:     r.PostForm.Get("grant_type"),
		Code:          r.PostForm.Get("code"),
		Scope:         r.PostForm.Get("scope"),
		RedirectURI:   r.PostForm.Get("redirect_uri"),
		ClientID:      r.PostForm.Get("client_id"),
	})
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// RefreshToken is not supported (POST /oauth/refresh_token)
func (h *Handle) RefreshToken(w http.ResponseWriter, r *http.Request) {
	idmerrors.SetNoStore(w)
	idmerrors.Render(w, r, idmerrors.ErrTokenUnsupportedGrantType)
}
