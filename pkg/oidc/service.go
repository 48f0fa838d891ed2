package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
	"github.com/tendant/oauth-idm/pkg/oauth2client"
	"github.com/tendant/oauth-idm/pkg/tokengenerator"
	"github.com/tendant/oauth-idm/pkg/user"
)

// DefaultScopes are the scopes the server grants unless configured otherwise
var DefaultScopes = []string{"openid", "policies.all.get", "policies.own.get", "policies.set"}

// AuthorizeState tracks one POST /authorize request.
type AuthorizeState int

const (
	AwaitingCredentials AuthorizeState = iota
	Authenticated
	CodeIssued
	Rejected
)

func (s AuthorizeState) String() string {
	switch s {
	case AwaitingCredentials:
		return "awaiting_credentials"
	case Authenticated:
		return "authenticated"
	case CodeIssued:
		return "code_issued"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("AuthorizeState(%d)", int(s))
	}
}

// UserAuthenticator verifies resource owner credentials. A wrong login or
// password is reported as user.ErrBadCredentials.
type UserAuthenticator interface {
	Authenticate(ctx context.Context, login, password string) (uuid.UUID, error)
}

// AuthorizeRequest carries the parameters of GET and POST /authorize
type AuthorizeRequest struct {
	Login        string
	Password     string
	Scope        string
	ResponseType string
	ClientID     string
	RedirectURI  string
	State        string
	Nonce        string
	AuthRequest  string
}

// AuthorizeResult is the outcome of an authorization attempt
type AuthorizeResult struct {
	State       AuthorizeState
	Code        string
	RedirectURL string
}

// TokenRequest carries the parameters of POST /token
type TokenRequest struct {
	Authorization string
	GrantType     string
	Code          string
	Scope         string
	RedirectURI   string
	ClientID      string
}

// TokenResponse is the success body of the token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// OIDCService provides OIDC business logic operations
type OIDCService struct {
	repository        OIDCRepository
	clientService     *oauth2client.ClientService
	users             UserAuthenticator
	tokenGenerator    tokengenerator.TokenGenerator
	scopes            []string
	codeExpiration    time.Duration
	tokenExpiration   time.Duration
	pendingExpiration time.Duration
	now               func() time.Time
}

// Option is a function that configures an OIDCService
type Option func(*OIDCService)

// WithCodeExpiration sets the authorization code expiration duration
func WithCodeExpiration(duration time.Duration) Option {
	return func(s *OIDCService) {
		s.codeExpiration = duration
	}
}

// WithTokenExpiration sets the access token expiration duration
func WithTokenExpiration(duration time.Duration) Option {
	return func(s *OIDCService) {
		s.tokenExpiration = duration
	}
}

// WithPendingExpiration sets how long a rendered login form stays valid
func WithPendingExpiration(duration time.Duration) Option {
	return func(s *OIDCService) {
		s.pendingExpiration = duration
	}
}

// WithTokenGenerator sets the token generator for creating access tokens
func WithTokenGenerator(generator tokengenerator.TokenGenerator) Option {
	return func(s *OIDCService) {
		s.tokenGenerator = generator
	}
}

// WithScopes replaces the server supported scopes
func WithScopes(scopes []string) Option {
	return func(s *OIDCService) {
		s.scopes = scopes
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *OIDCService) {
		s.now = now
	}
}

// NewOIDCService creates a new OIDC service using functional options
func NewOIDCService(repository OIDCRepository, clientService *oauth2client.ClientService, users UserAuthenticator, opts ...Option) *OIDCService {
	service := &OIDCService{
		repository:        repository,
		clientService:     clientService,
		users:             users,
		scopes:            DefaultScopes,
		codeExpiration:    10 * time.Minute,
		tokenExpiration:   30 * time.Minute,
		pendingExpiration: 15 * time.Minute,
		now:               func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// Scopes returns the server supported scopes
func (s *OIDCService) Scopes() []string {
	return s.scopes
}

// lookupClient resolves the client and checks the redirect target. Errors
// here are never redirected.
func (s *OIDCService) lookupClient(ctx context.Context, clientID, redirectURI string) (*oauth2client.Client, error) {
	if clientID == "" {
		return nil, idmerrors.ErrUnknownClient
	}
	client, err := s.clientService.GetClient(ctx, clientID)
	if errors.Is(err, oauth2client.ErrClientNotFound) {
		return nil, idmerrors.ErrUnknownClient
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if redirectURI == "" || !client.HasRedirectURI(redirectURI) {
		return nil, idmerrors.ErrRedirectURIMismatch
	}
	return client, nil
}

// BeginAuthorization validates the client and redirect target of a login
// form request and records it as pending. The returned id must come back as
// auth_request.
func (s *OIDCService) BeginAuthorization(ctx context.Context, req AuthorizeRequest) (*PendingAuthorization, *oauth2client.Client, error) {
	client, err := s.lookupClient(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return nil, nil, err
	}

	id, err := randomHex(16)
	if err != nil {
		return nil, nil, err
	}
	pending := &PendingAuthorization{
		ID:          id,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		State:       req.State,
		ExpiresAt:   s.now().Add(s.pendingExpiration),
	}
	if err := s.repository.StorePendingAuthorization(ctx, pending); err != nil {
		return nil, nil, err
	}
	return pending, client, nil
}

// Authorize runs the POST /authorize state machine. Once the client and
// redirect target are established every failure is a redirect-class error
// bound to that target.
func (s *OIDCService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	result := &AuthorizeResult{State: AwaitingCredentials}
	reject := func(err error) (*AuthorizeResult, error) {
		result.State = Rejected
		slog.Info("Authorization rejected", "client_id", req.ClientID, "error", err)
		return result, err
	}

	client, err := s.lookupClient(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return reject(err)
	}
	redirectErr := func(e *idmerrors.Error) *idmerrors.Error {
		return e.WithRedirect(req.RedirectURI, req.State)
	}

	if req.AuthRequest != "" {
		pending, err := s.repository.ConsumePendingAuthorization(ctx, req.AuthRequest, s.now())
		if errors.Is(err, ErrPendingNotFound) {
			return reject(redirectErr(idmerrors.ErrAuthInvalidRequest))
		}
		if err != nil {
			return reject(redirectErr(idmerrors.ErrAuthServerError).Wrap(err))
		}
		if pending.ClientID != req.ClientID || pending.RedirectURI != req.RedirectURI ||
			pending.State != req.State || normalizeScope(pending.Scope) != normalizeScope(req.Scope) {
			return reject(redirectErr(idmerrors.ErrAuthInvalidRequest))
		}
	}

	if req.ResponseType != oauth2client.ResponseTypeCode {
		return reject(redirectErr(idmerrors.ErrAuthUnsupportedResponseType))
	}
	if !client.HasGrantType(oauth2client.GrantAuthorizationCode) || !slices.Contains(client.ResponseTypes, oauth2client.ResponseTypeCode) {
		return reject(redirectErr(idmerrors.ErrAuthUnauthorizedClient))
	}
	if !s.scopeAllowed(req.Scope, client) {
		return reject(redirectErr(idmerrors.ErrAuthInvalidScope))
	}

	userID, err := s.users.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrBadCredentials) {
			return reject(redirectErr(idmerrors.ErrAuthAccessDenied))
		}
		// hash pool saturated until the request deadline
		if errors.Is(err, context.DeadlineExceeded) {
			return reject(redirectErr(idmerrors.ErrAuthTemporarilyUnavailable).Wrap(err))
		}
		return reject(redirectErr(idmerrors.ErrAuthServerError).Wrap(err))
	}
	result.State = Authenticated

	code, err := randomHex(32)
	if err != nil {
		return reject(redirectErr(idmerrors.ErrAuthServerError).Wrap(err))
	}
	now := s.now()
	authCode := &AuthorizationCode{
		Code:        code,
		ClientID:    client.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       normalizeScope(req.Scope),
		State:       req.State,
		Nonce:       req.Nonce,
		UserID:      userID.String(),
		ExpiresAt:   now.Add(s.codeExpiration),
		CreatedAt:   now,
	}
	if err := s.repository.StoreAuthorizationCode(ctx, authCode); err != nil {
		return reject(redirectErr(idmerrors.ErrAuthServerError).Wrap(err))
	}

	redirectURL, err := appendQuery(req.RedirectURI, code, req.State)
	if err != nil {
		return reject(redirectErr(idmerrors.ErrAuthServerError).Wrap(err))
	}
	result.State = CodeIssued
	result.Code = code
	result.RedirectURL = redirectURL
	slog.Info("Authorization code issued", "client_id", client.ClientID, "user_id", authCode.UserID)
	return result, nil
}

// Token dispatches a token request by grant type. All failures are
// token-class errors.
func (s *OIDCService) Token(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Authorization == "" {
		return nil, idmerrors.ErrTokenAccessDenied
	}

	switch req.GrantType {
	case oauth2client.GrantClientCredentials:
		return s.clientCredentials(ctx, req)
	case oauth2client.GrantAuthorizationCode:
		return s.authorizationCode(ctx, req)
	case "":
		return nil, idmerrors.ErrTokenInvalidRequest
	default:
		return nil, idmerrors.ErrTokenUnsupportedGrantType
	}
}

func (s *OIDCService) clientCredentials(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	clientID, secret, ok := ParseBasicAuth(req.Authorization)
	if !ok {
		return nil, idmerrors.ErrTokenAccessDenied
	}
	client, err := s.authenticateClient(ctx, clientID, secret, false)
	if err != nil {
		return nil, err
	}
	if !client.HasGrantType(oauth2client.GrantClientCredentials) {
		return nil, idmerrors.ErrTokenUnauthorizedClient
	}

	scope := req.Scope
	if scope == "" {
		scope = client.Scope
	}
	if !s.scopeAllowed(scope, client) {
		return nil, idmerrors.ErrTokenInvalidScope
	}
	return s.issue(client.ClientID, client.ClientID, normalizeScope(scope))
}

func (s *OIDCService) authorizationCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" || req.Scope != "" {
		return nil, idmerrors.ErrTokenInvalidRequest
	}
	clientID, secret, ok := ParseBasicAuth(req.Authorization)
	if !ok {
		return nil, idmerrors.ErrTokenAccessDenied
	}
	client, err := s.authenticateClient(ctx, clientID, secret, true)
	if err != nil {
		return nil, err
	}
	if req.ClientID != "" && req.ClientID != client.ClientID {
		return nil, idmerrors.ErrTokenInvalidGrant
	}

	code, err := s.repository.ConsumeAuthorizationCode(ctx, req.Code, s.now())
	if errors.Is(err, ErrCodeNotFound) {
		return nil, idmerrors.ErrTokenInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	if code.ClientID != client.ClientID || code.RedirectURI != req.RedirectURI {
		return nil, idmerrors.ErrTokenInvalidGrant
	}
	return s.issue(code.UserID, client.ClientID, code.Scope)
}

// authenticateClient checks the Basic credentials. Public clients may only
// present an empty secret, and only when allowPublic is set.
func (s *OIDCService) authenticateClient(ctx context.Context, clientID, secret string, allowPublic bool) (*oauth2client.Client, error) {
	if allowPublic && secret == "" {
		client, err := s.clientService.GetClient(ctx, clientID)
		if errors.Is(err, oauth2client.ErrClientNotFound) {
			return nil, idmerrors.ErrTokenAccessDenied
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get client: %w", err)
		}
		if !client.IsPublic() {
			return nil, idmerrors.ErrTokenAccessDenied
		}
		return client, nil
	}

	client, err := s.clientService.Authenticate(ctx, clientID, secret)
	if errors.Is(err, oauth2client.ErrInvalidClientCredentials) {
		return nil, idmerrors.ErrTokenAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate client: %w", err)
	}
	return client, nil
}

func (s *OIDCService) issue(subject, clientID, scope string) (*TokenResponse, error) {
	if s.tokenGenerator == nil {
		return nil, errors.New("token generator not configured")
	}
	token, _, err := s.tokenGenerator.GenerateAccessToken(subject, clientID, scope, s.tokenExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	slog.Info("Access token issued", "client_id", clientID, "sub", subject)
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenExpiration / time.Second),
		Scope:       scope,
	}, nil
}

// scopeAllowed reports whether every requested scope is supported by the
// server and, when the client registered a scope, by the client.
func (s *OIDCService) scopeAllowed(scope string, client *oauth2client.Client) bool {
	clientScopes := client.Scopes()
	for _, sc := range strings.Fields(scope) {
		if !slices.Contains(s.scopes, sc) {
			return false
		}
		if len(clientScopes) > 0 && !slices.Contains(clientScopes, sc) {
			return false
		}
	}
	return true
}

// ParseBasicAuth decodes an RFC 7617 Basic credential. The id and secret
// are form-urlencoded per RFC 6749 section 2.3.1; values that fail to
// unescape are taken as is.
func ParseBasicAuth(header string) (clientID, secret string, ok bool) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	clientID, secret, ok = strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}
	return unescape(clientID), unescape(secret), true
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

func normalizeScope(scope string) string {
	return strings.Join(strings.Fields(scope), " ")
}

func appendQuery(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random value: %w", err)
	}
	return hex.EncodeToString(b), nil
}
