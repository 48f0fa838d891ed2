package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOIDCRepository implements OIDCRepository on PostgreSQL
type PostgresOIDCRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOIDCRepository(pool *pgxpool.Pool) *PostgresOIDCRepository {
	return &PostgresOIDCRepository{pool: pool}
}

func (r *PostgresOIDCRepository) StoreAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO authorization_codes
			(code, client_id, redirect_uri, scope, state, nonce, user_id, expires_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7::uuid, $8)`,
		code.Code, code.ClientID, code.RedirectURI, code.Scope, code.State, code.Nonce, code.UserID, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	return nil
}

// ConsumeAuthorizationCode flips used in a single conditional update, so
// concurrent redemptions of one code serialize on the row lock.
func (r *PostgresOIDCRepository) ConsumeAuthorizationCode(ctx context.Context, code string, now time.Time) (*AuthorizationCode, error) {
	var c AuthorizationCode
	err := r.pool.QueryRow(ctx, `
		UPDATE authorization_codes
		SET used = true
		WHERE code = $1 AND NOT used AND expires_at > $2
		RETURNING code, client_id::text, redirect_uri, scope, state, nonce, user_id::text, expires_at, used, created_at`,
		code, now).Scan(&c.Code, &c.ClientID, &c.RedirectURI, &c.Scope, &c.State, &c.Nonce, &c.UserID, &c.ExpiresAt, &c.Used, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	return &c, nil
}

func (r *PostgresOIDCRepository) StorePendingAuthorization(ctx context.Context, pending *PendingAuthorization) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pending_authorizations (id, client_id, redirect_uri, scope, state, expires_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6)`,
		pending.ID, pending.ClientID, pending.RedirectURI, pending.Scope, pending.State, pending.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store pending authorization: %w", err)
	}
	return nil
}

func (r *PostgresOIDCRepository) ConsumePendingAuthorization(ctx context.Context, id string, now time.Time) (*PendingAuthorization, error) {
	var p PendingAuthorization
	err := r.pool.QueryRow(ctx, `
		DELETE FROM pending_authorizations
		WHERE id = $1
		RETURNING id, client_id::text, redirect_uri, scope, state, expires_at`,
		id).Scan(&p.ID, &p.ClientID, &p.RedirectURI, &p.Scope, &p.State, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to consume pending authorization: %w", err)
	}
	if !now.Before(p.ExpiresAt) {
		return nil, ErrPendingNotFound
	}
	return &p, nil
}

// PurgeExpired deletes expired codes and pending authorizations
func (r *PostgresOIDCRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	codes, err := tx.Exec(ctx, `DELETE FROM authorization_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge authorization codes: %w", err)
	}
	pending, err := tx.Exec(ctx, `DELETE FROM pending_authorizations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge pending authorizations: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return codes.RowsAffected() + pending.RowsAffected(), nil
}
