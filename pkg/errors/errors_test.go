package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderErr(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/oauth/authorize", nil)
	Render(w, r, err)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRenderRedirect(t *testing.T) {
	err := ErrAuthUnsupportedResponseType.WithRedirect("https://client.example.com/cb?keep=1", "xyz")

	w := renderErr(t, err)

	require.Equal(t, http.StatusFound, w.Code)
	loc, perr := url.Parse(w.Header().Get("Location"))
	require.NoError(t, perr)
	assert.Equal(t, "client.example.com", loc.Host)
	assert.Equal(t, "1", loc.Query().Get("keep"))
	assert.Equal(t, "unsupported_response_type", loc.Query().Get("error"))
	assert.Equal(t, ErrAuthUnsupportedResponseType.Description, loc.Query().Get("description"))
	assert.Equal(t, "xyz", loc.Query().Get("state"))
}

func TestRenderRedirectWithoutState(t *testing.T) {
	w := renderErr(t, ErrAuthAccessDenied.WithRedirect("https://client.example.com/cb", ""))

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	_, hasState := loc.Query()["state"]
	assert.False(t, hasState)
}

func TestRenderRedirectWithoutTargetFallsBackToBody(t *testing.T) {
	w := renderErr(t, ErrAuthAccessDenied)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, CodeAccessDenied, decodeBody(t, w).Error)
}

func TestRenderBody(t *testing.T) {
	w := renderErr(t, ErrNoRedirectURIs)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Cache-Control"))
	body := decodeBody(t, w)
	assert.Equal(t, CodeInvalidClientMetadata, body.Error)
	assert.Equal(t, ErrNoRedirectURIs.Description, body.Description)
}

func TestRenderToken(t *testing.T) {
	w := renderErr(t, ErrTokenAccessDenied)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
	assert.Equal(t, CodeAccessDenied, decodeBody(t, w).Error)
}

func TestRenderInvalidClient(t *testing.T) {
	w := renderErr(t, Token(CodeInvalidClient, "Client authentication failed"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestRenderConflict(t *testing.T) {
	w := renderErr(t, Conflict(CodeUserExists, "User already exists", "/users/42"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "/users/42", w.Header().Get("Location"))
}

func TestRenderNotFound(t *testing.T) {
	w := renderErr(t, NotFound(CodeNotFound, "User not found"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, decodeBody(t, w).Error)
}

func TestRenderPlainError(t *testing.T) {
	w := renderErr(t, fmt.Errorf("database is down"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, CodeServerError, body.Error)
	assert.NotContains(t, body.Description, "database")
}

func TestIsMatchesCopies(t *testing.T) {
	bound := ErrAuthInvalidScope.WithRedirect("https://client.example.com/cb", "s")
	wrapped := fmt.Errorf("authorize: %w", bound)

	assert.ErrorIs(t, wrapped, ErrAuthInvalidScope)
	assert.NotErrorIs(t, wrapped, ErrAuthAccessDenied)
	assert.True(t, IsCode(wrapped, CodeInvalidScope))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "s", e.State)
}

func TestCatalogRendering(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		status   int
		code     Code
		redirect bool
	}{
		{name: "unapproved software statement", err: ErrUnapprovedSoftwareStatement, status: http.StatusBadRequest, code: CodeUnapprovedSoftwareStatement},
		{name: "invalid software statement", err: ErrInvalidSoftwareStatement, status: http.StatusBadRequest, code: CodeInvalidSoftwareStatement},
		{name: "temporarily unavailable", err: ErrAuthTemporarilyUnavailable.WithRedirect("https://client.example.com/cb", "xyz"), status: http.StatusFound, code: CodeTemporarilyUnavailable, redirect: true},
		{name: "temporarily unavailable without target", err: ErrAuthTemporarilyUnavailable, status: http.StatusBadRequest, code: CodeTemporarilyUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := renderErr(t, tt.err)
			require.Equal(t, tt.status, w.Code)
			if tt.redirect {
				loc, err := url.Parse(w.Header().Get("Location"))
				require.NoError(t, err)
				assert.Equal(t, string(tt.code), loc.Query().Get("error"))
				assert.Equal(t, tt.err.Description, loc.Query().Get("description"))
				assert.Equal(t, "xyz", loc.Query().Get("state"))
				return
			}
			body := decodeBody(t, w)
			assert.Equal(t, tt.code, body.Error)
			assert.Equal(t, tt.err.Description, body.Description)
		})
	}
}
