package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, user User, cred Credential) (User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `SELECT user_id FROM credentials WHERE login = $1`, cred.Login).Scan(&existing)
	switch {
	case err == nil:
		return User{}, &LoginExistsError{Login: cred.Login, UserID: existing}
	case !errors.Is(err, pgx.ErrNoRows):
		return User{}, fmt.Errorf("failed to check login: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, name, surname, patronymic) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Name, user.Surname, user.Patronymic)
	if err != nil {
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO credentials (user_id, login, passwd) VALUES ($1, $2, $3)`,
		user.ID, cred.Login, cred.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Lost a race with a concurrent registration of the same login.
			tx.Rollback(ctx)
			if other, lookupErr := r.FindCredentialByLogin(ctx, cred.Login); lookupErr == nil {
				return User{}, &LoginExistsError{Login: cred.Login, UserID: other.UserID}
			}
		}
		return User{}, fmt.Errorf("failed to create credential: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, surname, patronymic FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Surname, &u.Patronymic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) ListUsers(ctx context.Context, start, limit int) ([]User, int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, name, surname, patronymic FROM users ORDER BY created_at, id OFFSET $1 LIMIT $2`,
		start, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Name, &u.Surname, &u.Patronymic)
		return u, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan users: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	return users, total, tx.Commit(ctx)
}

func (r *PostgresUserRepository) UpdateUser(ctx context.Context, id uuid.UUID, profile Profile) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, surname = $3, patronymic = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, surname, patronymic`,
		id, profile.Name, profile.Surname, profile.Patronymic,
	).Scan(&u.ID, &u.Name, &u.Surname, &u.Patronymic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// DeleteUser relies on ON DELETE CASCADE to drop the credential
func (r *PostgresUserRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) FindCredentialByLogin(ctx context.Context, login string) (Credential, error) {
	var c Credential
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, login, passwd FROM credentials WHERE login = $1`, login,
	).Scan(&c.UserID, &c.Login, &c.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrUserNotFound
		}
		return Credential{}, fmt.Errorf("failed to find credential: %w", err)
	}
	return c, nil
}
