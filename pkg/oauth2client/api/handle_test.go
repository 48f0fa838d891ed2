package api

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
	"github.com/tendant/oauth-idm/pkg/login"
	"github.com/tendant/oauth-idm/pkg/oauth2client"
	"github.com/tendant/oauth-idm/pkg/tokengenerator"
	"golang.org/x/crypto/bcrypt"
)

func testPolicy() oauth2client.Policy {
	return oauth2client.Policy{
		AllowPublicClients:        true,
		AllowMultipleGrantTypes:   true,
		StrictURIs:                true,
		AllowMultiInstanceClients: true,
		ClientSecretLen:           32,
	}
}

func newTestRouter(t *testing.T, opts ...Option) (http.Handler, *oauth2client.InMemoryClientRepository) {
	t.Helper()
	repo := oauth2client.NewInMemoryClientRepository()
	svc := oauth2client.NewClientService(repo, testPolicy(), login.NewHashPool(login.NewBcryptHasher(bcrypt.MinCost), 2))
	r := chi.NewRouter()
	r.Route("/oauth", NewHandle(svc, opts...).Routes)
	return r, repo
}

func postRegister(h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRegisterClient(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  idmerrors.Code
		expectedDesc   string
	}{
		{
			name: "Valid confidential client",
			body: `{"grant_types":["authorization_code"],"response_types":["code"],
				"redirect_uris":["https://client.example.org/cb"],"token_endpoint_auth_method":"client_secret_basic"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Defaults only",
			body:           `{"redirect_uris":["https://client.example.org/cb"]}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing redirect URIs",
			body:           `{"grant_types":["authorization_code"]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  idmerrors.CodeInvalidClientMetadata,
			expectedDesc:   `"redirect_uris" must be provided if client use "authorization_code" or "implicit" grant type`,
		},
		{
			name:           "HTTP redirect URI",
			body:           `{"redirect_uris":["http://client.example.org/cb"]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  idmerrors.CodeInvalidRedirectURI,
		},
		{
			name:           "Metadata URI on another site",
			body:           `{"redirect_uris":["https://client.example.org/cb"],"logo_uri":"https://cdn.example.net/l.png"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  idmerrors.CodeInvalidClientMetadata,
			expectedDesc:   "Scheme and site of all URIs must be same with one of redirect URIs",
		},
		{
			name:           "Unknown grant type",
			body:           `{"redirect_uris":["https://client.example.org/cb"],"grant_types":["magic"]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  idmerrors.CodeInvalidClientMetadata,
		},
		{
			name:           "Wrong field type",
			body:           `{"redirect_uris":"https://client.example.org/cb"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  idmerrors.CodeInvalidClientMetadata,
		},
		{
			name:           "Malformed JSON",
			body:           `{"redirect_uris":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  idmerrors.CodeInvalidClientMetadata,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, repo := newTestRouter(t)
			rr := postRegister(h, tt.body, nil)
			require.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())

			if tt.expectedStatus != http.StatusCreated {
				var errResp idmerrors.ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
				assert.Equal(t, tt.expectedError, errResp.Error)
				if tt.expectedDesc != "" {
					assert.Equal(t, tt.expectedDesc, errResp.Description)
				}
				assert.Zero(t, repo.Count())
				return
			}

			assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			_, err := uuid.Parse(resp["client_id"].(string))
			assert.NoError(t, err)
			assert.NotEmpty(t, resp["client_secret"])
			assert.Equal(t, "client_secret_basic", resp["token_endpoint_auth_method"])
			assert.Equal(t, 1, repo.Count())
		})
	}
}

func TestRegisterPublicClientResponse(t *testing.T) {
	h, _ := newTestRouter(t)
	rr := postRegister(h, `{"redirect_uris":["https://client.example.org/cb"],"token_endpoint_auth_method":"none",
		"client_name":"Public","client_name#fr-FR":"Publique"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotContains(t, resp, "client_secret")
	assert.NotContains(t, resp, "client_secret_expires_at")
	assert.Equal(t, "Public", resp["client_name"])
	assert.Equal(t, "Publique", resp["client_name#fr-FR"])
}

func TestGetRegistrationSchema(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/oauth/register", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var schema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &schema))
	assert.Equal(t, "object", schema.Type)
	for _, name := range append([]string{"redirect_uris", "grant_types", "jwks", "software_id"}, oauth2client.LocalizedFields...) {
		assert.Contains(t, schema.Properties, name)
	}
	assert.Equal(t, "client_secret_basic", schema.Properties["token_endpoint_auth_method"]["default"])
}

func TestRegisterInitialToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ja := jwtauth.New("RS256", key, &key.PublicKey)
	h, _ := newTestRouter(t, WithInitialToken(ja))

	body := `{"redirect_uris":["https://client.example.org/cb"]}`

	rr := postRegister(h, body, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var errResp idmerrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, idmerrors.CodeAccessDenied, errResp.Error)
	assert.Equal(t, "Initial token required", errResp.Description)

	rr = postRegister(h, body, http.Header{"Authorization": {"Bearer not-a-jwt"}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, idmerrors.CodeAccessDenied, errResp.Error)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	foreign, _, err := tokengenerator.NewRSATokenGenerator(other, "other", "oauth-idm").
		GenerateAccessToken("admin", "admin", "", time.Minute)
	require.NoError(t, err)
	rr = postRegister(h, body, http.Header{"Authorization": {"Bearer " + foreign}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	gen := tokengenerator.NewRSATokenGenerator(key, "k1", "oauth-idm")
	token, _, err := gen.GenerateRegistrationToken("registration", time.Minute)
	require.NoError(t, err)
	rr = postRegister(h, body, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestRegisterRejectsIssuedAccessToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ja := jwtauth.New("RS256", key, &key.PublicKey)
	h, _ := newTestRouter(t, WithInitialToken(ja))
	gen := tokengenerator.NewRSATokenGenerator(key, "k1", "oauth-idm")

	clientCredentials, _, err := gen.GenerateAccessToken("client-1", "client-1", "", time.Minute)
	require.NoError(t, err)
	authorizationCode, _, err := gen.GenerateAccessToken("user-1", "client-1", "openid", time.Minute)
	require.NoError(t, err)
	// signed by the right key but missing token_use
	bare := jwtauth.New("RS256", key, &key.PublicKey)
	_, untyped, err := bare.Encode(map[string]interface{}{"sub": "admin"})
	require.NoError(t, err)
	// registration use with a client_id attached
	_, mixed, err := bare.Encode(map[string]interface{}{
		"sub":       "admin",
		"token_use": tokengenerator.TokenUseRegistration,
		"client_id": "client-1",
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "client credentials token", token: clientCredentials},
		{name: "authorization code token", token: authorizationCode},
		{name: "token without token_use", token: untyped},
		{name: "registration token bound to a client", token: mixed},
	}

	body := `{"redirect_uris":["https://client.example.org/cb"]}`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postRegister(h, body, http.Header{"Authorization": {"Bearer " + tt.token}})
			require.Equal(t, http.StatusBadRequest, rr.Code)
			var errResp idmerrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
			assert.Equal(t, idmerrors.CodeAccessDenied, errResp.Error)
			assert.Equal(t, "Initial token is invalid", errResp.Description)
		})
	}
}
