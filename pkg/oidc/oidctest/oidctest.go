// Package oidctest wires an OIDCService with a registered client and user
// for tests of the authorization and token endpoints.
package oidctest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/oauth-idm/pkg/login"
	"github.com/tendant/oauth-idm/pkg/oauth2client"
	"github.com/tendant/oauth-idm/pkg/oidc"
	"github.com/tendant/oauth-idm/pkg/tokengenerator"
	"github.com/tendant/oauth-idm/pkg/user"
	"golang.org/x/crypto/bcrypt"
)

const (
	RedirectURI = "https://client.example.com/callback"
	Login       = "alice@example.com"
	Password    = "correct horse battery staple"
	Scope       = "openid policies.own.get"
)

// Env is a ready to use authorization server
type Env struct {
	Service *oidc.OIDCService
	Clients *oauth2client.ClientService
	Users   *user.UserService
	Tokens  *tokengenerator.RSATokenGenerator

	// Confidential may use authorization_code and client_credentials
	Confidential *oauth2client.RegistrationResult
	// Public authenticates with an empty secret
	Public *oauth2client.RegistrationResult
	UserID uuid.UUID
}

// New builds an Env on in-memory registries and the given code store
func New(t *testing.T, codes oidc.OIDCRepository, opts ...oidc.Option) *Env {
	return NewWithRepositories(t, oauth2client.NewInMemoryClientRepository(), user.NewInMemoryUserRepository(), codes, opts...)
}

// NewWithRepositories builds an Env on the given repositories
func NewWithRepositories(t *testing.T, clientRepo oauth2client.ClientRepository, userRepo user.UserRepository, codes oidc.OIDCRepository, opts ...oidc.Option) *Env {
	t.Helper()
	ctx := context.Background()

	hasher := login.NewHashPool(login.NewBcryptHasher(bcrypt.MinCost), 4)
	clients := oauth2client.NewClientService(clientRepo, oauth2client.Policy{
		AllowPublicClients:        true,
		AllowMultipleGrantTypes:   true,
		AllowMultiInstanceClients: true,
		ClientSecretLen:           32,
	}, hasher)
	users := user.NewUserService(userRepo, hasher)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tokens := tokengenerator.NewRSATokenGenerator(key, "test-kid", "https://idm.example.com")

	confidential, err := clients.Register(ctx, &oauth2client.RegistrationRequest{
		RedirectURIs:            []string{RedirectURI},
		TokenEndpointAuthMethod: oauth2client.AuthMethodClientSecretBasic,
		GrantTypes:              []string{oauth2client.GrantAuthorizationCode, oauth2client.GrantClientCredentials},
		ResponseTypes:           []string{oauth2client.ResponseTypeCode},
		Scope:                   Scope,
		ClientName:              oauth2client.Localized{"": "Example App"},
	})
	require.NoError(t, err)

	public, err := clients.Register(ctx, &oauth2client.RegistrationRequest{
		RedirectURIs:            []string{RedirectURI},
		TokenEndpointAuthMethod: oauth2client.AuthMethodNone,
		GrantTypes:              []string{oauth2client.GrantAuthorizationCode},
		ResponseTypes:           []string{oauth2client.ResponseTypeCode},
	})
	require.NoError(t, err)

	u, err := users.Register(ctx, Login, Password, user.Profile{})
	require.NoError(t, err)

	opts = append([]oidc.Option{oidc.WithTokenGenerator(tokens)}, opts...)
	return &Env{
		Service:      oidc.NewOIDCService(codes, clients, users, opts...),
		Clients:      clients,
		Users:        users,
		Tokens:       tokens,
		Confidential: confidential,
		Public:       public,
		UserID:       u.ID,
	}
}

// AuthorizeRequest is a valid POST /authorize request for the confidential client
func (e *Env) AuthorizeRequest() oidc.AuthorizeRequest {
	return oidc.AuthorizeRequest{
		Login:        Login,
		Password:     Password,
		Scope:        Scope,
		ResponseType: oauth2client.ResponseTypeCode,
		ClientID:     e.Confidential.Client.ClientID,
		RedirectURI:  RedirectURI,
		State:        "xyz",
	}
}

// IssueCode runs a successful authorization for clientID and returns the code
func (e *Env) IssueCode(t *testing.T, clientID string) string {
	t.Helper()
	req := e.AuthorizeRequest()
	req.ClientID = clientID
	result, err := e.Service.Authorize(context.Background(), req)
	require.NoError(t, err)
	return result.Code
}

// BasicAuth encodes client credentials the way RFC 6749 section 2.3.1 asks
func BasicAuth(clientID, secret string) string {
	raw := url.QueryEscape(clientID) + ":" + url.QueryEscape(secret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}
