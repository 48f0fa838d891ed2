package jwks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeyPairGeneratesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.pem")

	first, err := LoadKeyPair(path, "", "", true)
	require.NoError(t, err)
	assert.NotEmpty(t, first.KeyID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadKeyPair(path, "", "", false)
	require.NoError(t, err)
	assert.True(t, first.PrivateKey.Equal(second.PrivateKey))
	assert.Equal(t, first.KeyID, second.KeyID)
}

func TestLoadKeyPairMissingWithoutGenerate(t *testing.T) {
	_, err := LoadKeyPair(filepath.Join(t.TempDir(), "missing.pem"), "", "", false)
	assert.Error(t, err)
}

func TestLoadKeyPairChecksPublicKey(t *testing.T) {
	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")

	kp, err := LoadKeyPair(privatePath, "", "fixed-kid", true)
	require.NoError(t, err)
	assert.Equal(t, "fixed-kid", kp.KeyID)

	pubPEM, err := EncodePublicKeyToPEM(kp.PublicKey())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(publicPath, pubPEM, 0644))

	_, err = LoadKeyPair(privatePath, publicPath, "", false)
	require.NoError(t, err)

	other, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	otherPEM, err := EncodePublicKeyToPEM(&other.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(publicPath, otherPEM, 0644))

	_, err = LoadKeyPair(privatePath, publicPath, "", false)
	assert.ErrorContains(t, err, "does not match")
}

func TestHandlerServesPublicKeys(t *testing.T) {
	key, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	kp := &KeyPair{PrivateKey: key, KeyID: "kid-1"}

	w := httptest.NewRecorder()
	NewHandler(kp).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var set jose.JSONWebKeySet
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "kid-1", set.Keys[0].KeyID)
	assert.True(t, set.Keys[0].IsPublic())
	assert.NotContains(t, w.Body.String(), `"d"`)
}

func TestParseClientKey(t *testing.T) {
	key, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	publicJSON, err := json.Marshal(jose.JSONWebKey{Key: &key.PublicKey, KeyID: "c1", Algorithm: "RS256"})
	require.NoError(t, err)
	privateJSON, err := json.Marshal(jose.JSONWebKey{Key: key, KeyID: "c1", Algorithm: "RS256"})
	require.NoError(t, err)

	parsed, err := ParseClientKey(publicJSON)
	require.NoError(t, err)
	assert.Equal(t, "c1", parsed.KeyID)

	_, err = ParseClientKey(privateJSON)
	assert.Error(t, err)

	_, err = ParseClientKey(json.RawMessage(`{"kty":"RSA","n":"abc"}`))
	assert.Error(t, err)

	_, err = ParseClientKey(json.RawMessage(`"not an object"`))
	assert.Error(t, err)
}
