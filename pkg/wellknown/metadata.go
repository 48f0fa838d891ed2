package wellknown

import (
	"strings"

	"github.com/tendant/oauth-idm/pkg/oauth2client"
)

// AuthorizationServerMetadata represents the OAuth 2.0 Authorization Server Metadata
// as defined in RFC 8414: https://datatracker.ietf.org/doc/html/rfc8414
type AuthorizationServerMetadata struct {
	// REQUIRED: The authorization server's issuer identifier
	Issuer string `json:"issuer"`

	// REQUIRED: URL of the authorization server's authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// REQUIRED: URL of the authorization server's token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	JwksURI                           string   `json:"jwks_uri,omitempty"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// Config holds configuration for well-known endpoints
type Config struct {
	// Issuer identifies this server in issued tokens
	Issuer string

	// BaseURL is the externally visible URL the endpoints are mounted under
	BaseURL string

	// OAuthPath is where the authorization endpoints are mounted, e.g. "/oauth"
	OAuthPath string

	Scopes []string
}

// NewAuthorizationServerMetadata describes the endpoints and capabilities
// this server actually serves
func NewAuthorizationServerMetadata(config Config) *AuthorizationServerMetadata {
	base := strings.TrimRight(config.BaseURL, "/")
	oauth := base + config.OAuthPath

	issuer := config.Issuer
	if issuer == "" {
		issuer = base
	}

	return &AuthorizationServerMetadata{
		Issuer:                 issuer,
		AuthorizationEndpoint:  oauth + "/authorize",
		TokenEndpoint:          oauth + "/token",
		JwksURI:                base + "/.well-known/jwks.json",
		RegistrationEndpoint:   oauth + "/register",
		ScopesSupported:        config.Scopes,
		ResponseTypesSupported: []string{oauth2client.ResponseTypeCode},
		GrantTypesSupported: []string{
			oauth2client.GrantAuthorizationCode,
			oauth2client.GrantClientCredentials,
		},
		TokenEndpointAuthMethodsSupported: []string{
			oauth2client.AuthMethodClientSecretBasic,
			oauth2client.AuthMethodNone,
		},
	}
}
