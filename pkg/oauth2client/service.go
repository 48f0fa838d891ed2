package oauth2client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	idmerrors "github.com/tendant/oauth-idm/pkg/errors"
	"github.com/tendant/oauth-idm/pkg/login"
)

// ErrInvalidClientCredentials covers unknown clients, wrong or expired
// secrets and public clients presenting a secret
var ErrInvalidClientCredentials = errors.New("invalid client credentials")

// ClientService registers and authenticates OAuth clients
type ClientService struct {
	repository ClientRepository
	policy     Policy
	hasher     *login.HashPool
	now        func() time.Time
}

// NewClientService creates a new client service with the provided repository
func NewClientService(repository ClientRepository, policy Policy, hasher *login.HashPool) *ClientService {
	return &ClientService{
		repository: repository,
		policy:     policy,
		hasher:     hasher,
		now:        time.Now,
	}
}

// Policy returns the registration policy in force
func (s *ClientService) Policy() Policy {
	return s.policy
}

// Register validates req against the policy and creates the client. The
// returned result carries the plaintext secret, which is not stored.
func (s *ClientService) Register(ctx context.Context, req *RegistrationRequest) (*RegistrationResult, error) {
	if err := s.policy.Validate(req); err != nil {
		return nil, err
	}

	var client Client
	if err := copier.CopyWithOption(&client, req, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to map registration request: %w", err)
	}
	client.RedirectURIs = unique(client.RedirectURIs)
	client.GrantTypes = unique(client.GrantTypes)
	client.ResponseTypes = unique(client.ResponseTypes)
	client.Contacts = unique(client.Contacts)
	client.JWKS = uniqueKeys(client.JWKS)

	now := s.now()
	client.ClientID = uuid.NewString()
	client.ClientIDIssuedAt = now.Unix()

	var secret string
	if !client.IsPublic() {
		var err error
		secret, err = generateSecret(s.policy.ClientSecretLen)
		if err != nil {
			return nil, fmt.Errorf("failed to generate client secret: %w", err)
		}
		client.ClientSecretHash, err = s.hasher.Hash(ctx, secret)
		if err != nil {
			return nil, fmt.Errorf("failed to hash client secret: %w", err)
		}
		if s.policy.ClientSecretExpDays > 0 {
			client.ClientSecretExpiresAt = now.AddDate(0, 0, s.policy.ClientSecretExpDays).Unix()
		}
	}

	err := s.repository.CreateClientTx(ctx, func(tx ClientTx) error {
		if !s.policy.AllowMultiInstanceClients {
			exists, err := tx.SoftwareInstanceExists(ctx, client.SoftwareID, client.SoftwareVersion)
			if err != nil {
				return err
			}
			if exists {
				return idmerrors.ErrSuspiciousSoftware
			}
		}
		return tx.CreateClient(ctx, &client)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Client registered", "client_id", client.ClientID, "auth_method", client.TokenEndpointAuthMethod)
	return &RegistrationResult{Client: client, ClientSecret: secret}, nil
}

// GetClient retrieves a client by client ID
func (s *ClientService) GetClient(ctx context.Context, clientID string) (*Client, error) {
	return s.repository.GetClient(ctx, clientID)
}

// Authenticate checks a client id and secret pair. Unknown clients cost as
// much as a wrong secret.
func (s *ClientService) Authenticate(ctx context.Context, clientID, secret string) (*Client, error) {
	client, err := s.repository.GetClient(ctx, clientID)
	if errors.Is(err, ErrClientNotFound) {
		if err := s.hasher.VerifyMissing(ctx, secret); err != nil {
			return nil, err
		}
		return nil, ErrInvalidClientCredentials
	}
	if err != nil {
		return nil, err
	}

	if client.IsPublic() || client.ClientSecretHash == "" || client.SecretExpired(s.now()) {
		return nil, ErrInvalidClientCredentials
	}

	ok, err := s.hasher.Verify(ctx, secret, client.ClientSecretHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify client secret: %w", err)
	}
	if !ok {
		return nil, ErrInvalidClientCredentials
	}
	return client, nil
}

func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func unique(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func uniqueKeys(keys JWKSet) JWKSet {
	if keys == nil {
		return nil
	}
	seen := make(map[string]bool, len(keys))
	out := make(JWKSet, 0, len(keys))
	for _, k := range keys {
		canon := canonicalKey(k)
		if !seen[canon] {
			seen[canon] = true
			out = append(out, k)
		}
	}
	return out
}

// canonicalKey renders a JWK with sorted members so that keys equal as
// JSONB values compare equal here.
func canonicalKey(k json.RawMessage) string {
	var members map[string]interface{}
	if err := json.Unmarshal(k, &members); err != nil {
		return string(k)
	}
	canon, err := json.Marshal(members)
	if err != nil {
		return string(k)
	}
	return string(canon)
}
