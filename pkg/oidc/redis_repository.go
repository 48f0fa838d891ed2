package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/oauth-idm/pkg/config"
)

const (
	keyTypeCode    = "code"
	keyTypePending = "pending"
)

// RedisOIDCRepository keeps codes and pending authorizations in Redis with
// a TTL equal to their remaining lifetime. Redemption uses GETDEL, so a
// code can be read back at most once.
type RedisOIDCRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisOIDCRepository connects to Redis and verifies the connection
func NewRedisOIDCRepository(ctx context.Context, cfg config.RedisConfig) (*RedisOIDCRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisOIDCRepositoryWithClient(client, cfg.Prefix), nil
}

// NewRedisOIDCRepositoryWithClient wraps a pre-configured client
func NewRedisOIDCRepositoryWithClient(client redis.UniversalClient, keyPrefix string) *RedisOIDCRepository {
	return &RedisOIDCRepository{client: client, keyPrefix: keyPrefix}
}

// Close releases the underlying client
func (r *RedisOIDCRepository) Close() error {
	return r.client.Close()
}

func (r *RedisOIDCRepository) key(kind, id string) string {
	return r.keyPrefix + kind + ":" + id
}

type storedCode struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope,omitempty"`
	State       string `json:"state,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	UserID      string `json:"user_id"`
	ExpiresAt   int64  `json:"expires_at"`
	CreatedAt   int64  `json:"created_at"`
}

type storedPending struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope,omitempty"`
	State       string `json:"state,omitempty"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (r *RedisOIDCRepository) StoreAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return errors.New("authorization code already expired")
	}

	data, err := json.Marshal(storedCode{
		ClientID:    code.ClientID,
		RedirectURI: code.RedirectURI,
		Scope:       code.Scope,
		State:       code.State,
		Nonce:       code.Nonce,
		UserID:      code.UserID,
		ExpiresAt:   code.ExpiresAt.UnixMilli(),
		CreatedAt:   code.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(keyTypeCode, code.Code), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	if !ok {
		return errors.New("authorization code already exists")
	}
	return nil
}

func (r *RedisOIDCRepository) ConsumeAuthorizationCode(ctx context.Context, code string, now time.Time) (*AuthorizationCode, error) {
	data, err := r.client.GetDel(ctx, r.key(keyTypeCode, code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	var stored storedCode
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}
	expiresAt := time.UnixMilli(stored.ExpiresAt)
	if !now.Before(expiresAt) {
		return nil, ErrCodeNotFound
	}

	return &AuthorizationCode{
		Code:        code,
		ClientID:    stored.ClientID,
		RedirectURI: stored.RedirectURI,
		Scope:       stored.Scope,
		State:       stored.State,
		Nonce:       stored.Nonce,
		UserID:      stored.UserID,
		ExpiresAt:   expiresAt,
		Used:        true,
		CreatedAt:   time.UnixMilli(stored.CreatedAt),
	}, nil
}

func (r *RedisOIDCRepository) StorePendingAuthorization(ctx context.Context, pending *PendingAuthorization) error {
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return errors.New("pending authorization already expired")
	}

	data, err := json.Marshal(storedPending{
		ClientID:    pending.ClientID,
		RedirectURI: pending.RedirectURI,
		Scope:       pending.Scope,
		State:       pending.State,
		ExpiresAt:   pending.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal pending authorization: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(keyTypePending, pending.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store pending authorization: %w", err)
	}
	if !ok {
		return errors.New("pending authorization already exists")
	}
	return nil
}

func (r *RedisOIDCRepository) ConsumePendingAuthorization(ctx context.Context, id string, now time.Time) (*PendingAuthorization, error) {
	data, err := r.client.GetDel(ctx, r.key(keyTypePending, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to consume pending authorization: %w", err)
	}

	var stored storedPending
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending authorization: %w", err)
	}
	expiresAt := time.UnixMilli(stored.ExpiresAt)
	if !now.Before(expiresAt) {
		return nil, ErrPendingNotFound
	}

	return &PendingAuthorization{
		ID:          id,
		ClientID:    stored.ClientID,
		RedirectURI: stored.RedirectURI,
		Scope:       stored.Scope,
		State:       stored.State,
		ExpiresAt:   expiresAt,
	}, nil
}
