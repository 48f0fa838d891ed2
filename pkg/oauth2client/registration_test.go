package oauth2client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationRequestUnmarshal(t *testing.T) {
	body := `{
		"redirect_uris": ["https://client.example.org/callback", "https://client.example.org/callback2"],
		"client_name": "My Example Client",
		"client_name#ja-JP": "クライアント名",
		"client_name#de-de": "Mein Client",
		"token_endpoint_auth_method": "client_secret_basic",
		"logo_uri": "https://client.example.org/logo.png",
		"tos_uri#en-US": "https://client.example.org/tos",
		"policy_uri": null,
		"jwks_uri": "https://client.example.org/my_public_keys.jwks",
		"software_id": "4a07437d-a56c-4789-82ac-5005bd2ab694",
		"unknown_field": 42
	}`

	var req RegistrationRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Len(t, req.RedirectURIs, 2)
	assert.Equal(t, AuthMethodClientSecretBasic, req.TokenEndpointAuthMethod)
	assert.Equal(t, Localized{"": "My Example Client", "ja-JP": "クライアント名", "de-DE": "Mein Client"}, req.ClientName)
	assert.Equal(t, Localized{"": "https://client.example.org/logo.png"}, req.LogoURI)
	assert.Equal(t, Localized{"en-US": "https://client.example.org/tos"}, req.TosURI)
	assert.Nil(t, req.PolicyURI)
	assert.Equal(t, "https://client.example.org/my_public_keys.jwks", req.JWKSURI)
	assert.Nil(t, req.GrantTypes)
}

func TestRegistrationRequestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad language tag", `{"client_name#not a tag": "x"}`},
		{"non-string localized value", `{"logo_uri": 5}`},
		{"wrong list type", `{"redirect_uris": "https://client.example.org"}`},
		{"jwks not a set", `{"jwks": "keys"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req RegistrationRequest
			assert.Error(t, json.Unmarshal([]byte(tt.body), &req))
		})
	}
}

func TestJWKSetForms(t *testing.T) {
	key := `{"kty":"EC","crv":"P-256","x":"f83OJ3D2xF1Bg8vub9tLe1gHMzV76e8Tus9uPHvRVEU","y":"x_FEzRu9m36HLN_tue659LNpXW6pCyStikYjKIWI5a0"}`

	var fromSet, fromArray JWKSet
	require.NoError(t, json.Unmarshal([]byte(`{"keys":[`+key+`]}`), &fromSet))
	require.NoError(t, json.Unmarshal([]byte(`[`+key+`]`), &fromArray))
	require.Len(t, fromSet, 1)
	assert.JSONEq(t, key, string(fromSet[0]))
	assert.Equal(t, fromSet, fromArray)

	out, err := json.Marshal(fromArray)
	require.NoError(t, err)
	assert.JSONEq(t, `{"keys":[`+key+`]}`, string(out))
}

func TestRegistrationResultMarshal(t *testing.T) {
	result := RegistrationResult{
		Client: Client{
			ClientID:                "3f1c5a0e-8a4a-4d43-9c43-3a7b3b0f3a11",
			ClientIDIssuedAt:        1700000000,
			ClientSecretHash:        "$2a$10$hash",
			ClientSecretExpiresAt:   0,
			TokenEndpointAuthMethod: AuthMethodClientSecretBasic,
			GrantTypes:              []string{GrantAuthorizationCode},
			ResponseTypes:           []string{ResponseTypeCode},
			RedirectURIs:            []string{"https://client.example.org/cb"},
			ClientName:              Localized{"": "Example", "fr-FR": "Exemple"},
		},
		ClientSecret: "plaintext",
	}

	out, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"client_id": "3f1c5a0e-8a4a-4d43-9c43-3a7b3b0f3a11",
		"client_id_issued_at": 1700000000,
		"client_secret": "plaintext",
		"client_secret_expires_at": 0,
		"token_endpoint_auth_method": "client_secret_basic",
		"grant_types": ["authorization_code"],
		"response_types": ["code"],
		"redirect_uris": ["https://client.example.org/cb"],
		"client_name": "Example",
		"client_name#fr-FR": "Exemple"
	}`, string(out))
	assert.NotContains(t, string(out), "hash")

	result.ClientSecret = ""
	out, err = json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "client_secret\"")
	assert.NotContains(t, string(out), "client_secret_expires_at")
}
