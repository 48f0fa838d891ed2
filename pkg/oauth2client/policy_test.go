package oauth2client

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
)

func permissivePolicy() Policy {
	return Policy{
		AllowPublicClients:        true,
		AllowMultipleGrantTypes:   true,
		StrictURIs:                true,
		AllowMultiInstanceClients: true,
		ClientSecretLen:           32,
	}
}

func validRequest() *RegistrationRequest {
	return &RegistrationRequest{
		RedirectURIs:            []string{"https://client.example.org/callback"},
		TokenEndpointAuthMethod: AuthMethodClientSecretBasic,
		GrantTypes:              []string{GrantAuthorizationCode},
		ResponseTypes:           []string{ResponseTypeCode},
	}
}

func publicJWK(t *testing.T) json.RawMessage {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw, err := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "k1", Algorithm: "RS256", Use: "sig"}.MarshalJSON()
	require.NoError(t, err)
	return raw
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  func(p *Policy)
		request func(r *RegistrationRequest)
		want    *idmerrors.Error
	}{
		{
			name: "valid confidential client",
		},
		{
			name:    "public client disallowed",
			policy:  func(p *Policy) { p.AllowPublicClients = false },
			request: func(r *RegistrationRequest) { r.TokenEndpointAuthMethod = AuthMethodNone },
			want:    idmerrors.ErrPublicClientNotAllowed,
		},
		{
			name:    "public client allowed",
			request: func(r *RegistrationRequest) { r.TokenEndpointAuthMethod = AuthMethodNone },
		},
		{
			name:   "multiple grant types disallowed",
			policy: func(p *Policy) { p.AllowMultipleGrantTypes = false },
			request: func(r *RegistrationRequest) {
				r.GrantTypes = []string{GrantAuthorizationCode, GrantClientCredentials}
			},
			want: idmerrors.ErrMultipleGrantTypesNotAllowed,
		},
		{
			name:   "single grant type with multiple grants disallowed",
			policy: func(p *Policy) { p.AllowMultipleGrantTypes = false },
		},
		{
			name:   "software statement required",
			policy: func(p *Policy) { p.RequireSoftwareStatement = true },
			want:   idmerrors.ErrInvalidSoftwareStatement,
		},
		{
			name:    "software statement present",
			policy:  func(p *Policy) { p.RequireSoftwareStatement = true },
			request: func(r *RegistrationRequest) { r.SoftwareStatement = "eyJ.statement" },
		},
		{
			name:    "code response without authorization_code grant",
			request: func(r *RegistrationRequest) { r.GrantTypes = []string{GrantClientCredentials} },
			want:    idmerrors.ErrInvalidResponseTypes,
		},
		{
			name: "token response without implicit grant",
			request: func(r *RegistrationRequest) {
				r.ResponseTypes = []string{ResponseTypeCode, ResponseTypeToken}
			},
			want: idmerrors.ErrInvalidResponseTypes,
		},
		{
			name: "implicit grant with token response",
			request: func(r *RegistrationRequest) {
				r.GrantTypes = []string{GrantImplicit}
				r.ResponseTypes = []string{ResponseTypeToken}
			},
		},
		{
			name:    "missing redirect uris for authorization_code",
			request: func(r *RegistrationRequest) { r.RedirectURIs = nil },
			want:    idmerrors.ErrNoRedirectURIs,
		},
		{
			name: "missing redirect uris for implicit",
			request: func(r *RegistrationRequest) {
				r.RedirectURIs = nil
				r.GrantTypes = []string{GrantImplicit}
				r.ResponseTypes = []string{ResponseTypeToken}
			},
			want: idmerrors.ErrNoRedirectURIs,
		},
		{
			name: "client credentials without redirect uris",
			request: func(r *RegistrationRequest) {
				r.RedirectURIs = nil
				r.GrantTypes = []string{GrantClientCredentials}
				r.ResponseTypes = []string{}
			},
		},
		{
			name:    "http redirect uri",
			request: func(r *RegistrationRequest) { r.RedirectURIs = []string{"http://client.example.org/cb"} },
			want:    idmerrors.ErrInvalidRedirectURI,
		},
		{
			name:    "relative redirect uri",
			request: func(r *RegistrationRequest) { r.RedirectURIs = []string{"/cb"} },
			want:    idmerrors.ErrInvalidRedirectURI,
		},
		{
			name: "overlong redirect uri",
			request: func(r *RegistrationRequest) {
				r.RedirectURIs = []string{"https://client.example.org/" + strings.Repeat("a", MaxURILength)}
			},
			want: idmerrors.ErrInvalidRedirectURI,
		},
		{
			name:    "metadata uri on foreign host",
			request: func(r *RegistrationRequest) { r.LogoURI = Localized{"": "https://cdn.example.net/logo.png"} },
			want:    idmerrors.ErrInvalidMetadataURI,
		},
		{
			name: "localized metadata uri on foreign host",
			request: func(r *RegistrationRequest) {
				r.TosURI = Localized{"": "https://client.example.org/tos", "de-DE": "https://other.example.org/agb"}
			},
			want: idmerrors.ErrInvalidMetadataURI,
		},
		{
			name:    "jwks_uri on foreign host",
			request: func(r *RegistrationRequest) { r.JWKSURI = "https://keys.example.net/jwks.json" },
			want:    idmerrors.ErrInvalidMetadataURI,
		},
		{
			name: "metadata uris on redirect host",
			request: func(r *RegistrationRequest) {
				r.LogoURI = Localized{"": "https://client.example.org/logo.png"}
				r.PolicyURI = Localized{"fr-FR": "https://client.example.org:8443/privacy"}
				r.JWKSURI = "https://client.example.org/jwks.json"
			},
		},
		{
			name:    "foreign metadata uri without strict uris",
			policy:  func(p *Policy) { p.StrictURIs = false },
			request: func(r *RegistrationRequest) { r.LogoURI = Localized{"": "https://cdn.example.net/logo.png"} },
		},
		{
			name: "metadata uri without redirect uris",
			request: func(r *RegistrationRequest) {
				r.RedirectURIs = nil
				r.GrantTypes = []string{GrantClientCredentials}
				r.ResponseTypes = []string{}
				r.ClientURI = Localized{"": "https://client.example.org"}
			},
			want: idmerrors.ErrInvalidMetadataURI,
		},
		{
			name:   "multi instance disallowed without software identity",
			policy: func(p *Policy) { p.AllowMultiInstanceClients = false },
			request: func(r *RegistrationRequest) {
				r.SoftwareID = "4a07437d-a56c-4789-82ac-5005bd2ab694"
			},
			want: idmerrors.ErrSuspiciousSoftware,
		},
		{
			name:   "multi instance disallowed with software identity",
			policy: func(p *Policy) { p.AllowMultiInstanceClients = false },
			request: func(r *RegistrationRequest) {
				r.SoftwareID = "4a07437d-a56c-4789-82ac-5005bd2ab694"
				r.SoftwareVersion = "1.0.0"
			},
		},
		{
			name:    "unknown grant type",
			request: func(r *RegistrationRequest) { r.GrantTypes = []string{"magic"} },
			want:    idmerrors.ErrInvalidClientMetadata,
		},
		{
			name:    "unknown auth method",
			request: func(r *RegistrationRequest) { r.TokenEndpointAuthMethod = "private_key_jwt" },
			want:    idmerrors.ErrInvalidClientMetadata,
		},
		{
			name:    "malformed software id",
			request: func(r *RegistrationRequest) { r.SoftwareID = "not-a-uuid" },
			want:    idmerrors.ErrInvalidClientMetadata,
		},
		{
			name:    "http metadata uri",
			request: func(r *RegistrationRequest) { r.ClientURI = Localized{"": "http://client.example.org"} },
			want:    idmerrors.ErrInvalidClientMetadata,
		},
		{
			name: "jwks and jwks_uri together",
			request: func(r *RegistrationRequest) {
				r.JWKSURI = "https://client.example.org/jwks.json"
				r.JWKS = JWKSet{json.RawMessage(`{"kty":"oct","k":"c2VjcmV0"}`)}
			},
			want: idmerrors.ErrJWKSConflict,
		},
		{
			name:    "unusable jwk",
			request: func(r *RegistrationRequest) { r.JWKS = JWKSet{json.RawMessage(`{"kty":"RSA"}`)} },
			want:    idmerrors.ErrInvalidJWK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := permissivePolicy()
			if tt.policy != nil {
				tt.policy(&p)
			}
			req := validRequest()
			if tt.request != nil {
				tt.request(req)
			}

			err := p.Validate(req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPolicyValidateValidJWKS(t *testing.T) {
	req := validRequest()
	req.JWKS = JWKSet{publicJWK(t)}
	assert.NoError(t, permissivePolicy().Validate(req))
}

func TestPolicyValidateCheckOrder(t *testing.T) {
	p := permissivePolicy()
	p.AllowPublicClients = false
	p.AllowMultipleGrantTypes = false

	req := validRequest()
	req.TokenEndpointAuthMethod = AuthMethodNone
	req.GrantTypes = []string{GrantAuthorizationCode, GrantImplicit}
	req.RedirectURIs = nil

	assert.ErrorIs(t, p.Validate(req), idmerrors.ErrPublicClientNotAllowed)

	req.TokenEndpointAuthMethod = AuthMethodClientSecretPost
	assert.ErrorIs(t, p.Validate(req), idmerrors.ErrMultipleGrantTypesNotAllowed)

	req.GrantTypes = []string{GrantImplicit}
	assert.ErrorIs(t, p.Validate(req), idmerrors.ErrInvalidResponseTypes)

	req.ResponseTypes = []string{ResponseTypeToken}
	assert.ErrorIs(t, p.Validate(req), idmerrors.ErrNoRedirectURIs)
}

func TestPolicyValidateDefaults(t *testing.T) {
	req := &RegistrationRequest{RedirectURIs: []string{"https://client.example.org/cb"}}
	require.NoError(t, permissivePolicy().Validate(req))

	assert.Equal(t, AuthMethodClientSecretBasic, req.TokenEndpointAuthMethod)
	assert.Equal(t, []string{GrantAuthorizationCode}, req.GrantTypes)
	assert.Equal(t, []string{ResponseTypeCode}, req.ResponseTypes)
}
