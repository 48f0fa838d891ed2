package oauth2client

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Token endpoint authentication methods
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretBasic = "client_secret_basic"
)

// Grant types a client may register
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantPassword          = "password"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
	GrantJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	GrantSAML2Bearer       = "urn:ietf:params:oauth:grant-type:saml2-bearer"
)

const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

var (
	validGrantTypes = map[string]bool{
		GrantAuthorizationCode: true,
		GrantImplicit:          true,
		GrantPassword:          true,
		GrantClientCredentials: true,
		GrantRefreshToken:      true,
		GrantJWTBearer:         true,
		GrantSAML2Bearer:       true,
	}

	validResponseTypes = map[string]bool{
		ResponseTypeCode:  true,
		ResponseTypeToken: true,
	}

	validTokenEndpointAuthMethods = map[string]bool{
		AuthMethodNone:              true,
		AuthMethodClientSecretPost:  true,
		AuthMethodClientSecretBasic: true,
	}

	// grantResponseTypes pairs each grant with the response type it implies.
	// Grants not listed imply none.
	grantResponseTypes = []struct{ grant, response string }{
		{GrantAuthorizationCode, ResponseTypeCode},
		{GrantImplicit, ResponseTypeToken},
	}
)

// Localized holds a display value per language tag. The empty tag is the
// value sent without a "#lang" suffix.
type Localized map[string]string

// JWKSet is the client's embedded key set. Each key is kept as raw JSON.
type JWKSet []json.RawMessage

// UnmarshalJSON accepts both a JWK Set document and a bare array of keys
func (s *JWKSet) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var keys []json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return err
		}
		*s = keys
		return nil
	}
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*s = doc.Keys
	return nil
}

func (s JWKSet) MarshalJSON() ([]byte, error) {
	keys := []json.RawMessage(s)
	if keys == nil {
		keys = []json.RawMessage{}
	}
	return json.Marshal(struct {
		Keys []json.RawMessage `json:"keys"`
	}{Keys: keys})
}

// Client is a registered OAuth client
type Client struct {
	ClientID                string
	ClientSecretHash        string
	ClientSecretExpiresAt   int64 // unix seconds, 0 never expires
	ClientIDIssuedAt        int64
	TokenEndpointAuthMethod string
	Scope                   string
	GrantTypes              []string
	ResponseTypes           []string
	RedirectURIs            []string
	Contacts                []string
	JWKSURI                 string
	JWKS                    JWKSet
	SoftwareID              string
	SoftwareVersion         string
	SoftwareStatement       string

	ClientName Localized
	ClientURI  Localized
	LogoURI    Localized
	TosURI     Localized
	PolicyURI  Localized
}

// IsPublic reports whether the client authenticates without a secret
func (c *Client) IsPublic() bool {
	return c.TokenEndpointAuthMethod == AuthMethodNone
}

// HasRedirectURI checks for an exact match against the registered URIs
func (c *Client) HasRedirectURI(redirectURI string) bool {
	return slices.Contains(c.RedirectURIs, redirectURI)
}

func (c *Client) HasGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

// Scopes splits the registered scope string
func (c *Client) Scopes() []string {
	return strings.Fields(c.Scope)
}

// SecretExpired reports whether the client secret is past its expiry
func (c *Client) SecretExpired(now time.Time) bool {
	return c.ClientSecretExpiresAt != 0 && now.Unix() >= c.ClientSecretExpiresAt
}
