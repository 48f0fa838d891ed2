package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/oauth-idm/pkg/login"
)

var ErrInvalidLogin = errors.New("login must be an email address")
var ErrInvalidPassword = errors.New("password cannot be empty")

// ErrBadCredentials covers both an unknown login and a wrong password
var ErrBadCredentials = errors.New("invalid login or password")

// UserService owns user registration and password checks
type UserService struct {
	repo   UserRepository
	hasher *login.HashPool
}

// NewUserService creates a user service; all hashing goes through hasher
func NewUserService(repo UserRepository, hasher *login.HashPool) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

// Register creates a user with a credential for loginName
func (s *UserService) Register(ctx context.Context, loginName, password string, profile Profile) (User, error) {
	normalized, err := normalizeLogin(loginName)
	if err != nil {
		return User{}, err
	}
	if password == "" {
		return User{}, ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := User{
		ID:         uuid.New(),
		Name:       profile.Name,
		Surname:    profile.Surname,
		Patronymic: profile.Patronymic,
	}
	created, err := s.repo.CreateUser(ctx, u, Credential{UserID: u.ID, Login: normalized, PasswordHash: hash})
	if err != nil {
		return User{}, err
	}

	slog.Info("User registered", "user_id", created.ID)
	return created, nil
}

// Authenticate verifies a login and password and returns the user id. An
// unknown login costs as much as a wrong password.
func (s *UserService) Authenticate(ctx context.Context, loginName, password string) (uuid.UUID, error) {
	normalized, err := normalizeLogin(loginName)
	if err != nil || password == "" {
		return uuid.Nil, ErrBadCredentials
	}

	cred, err := s.repo.FindCredentialByLogin(ctx, normalized)
	if errors.Is(err, ErrUserNotFound) {
		if err := s.hasher.VerifyMissing(ctx, password); err != nil {
			return uuid.Nil, err
		}
		return uuid.Nil, ErrBadCredentials
	}
	if err != nil {
		return uuid.Nil, err
	}

	ok, err := s.hasher.Verify(ctx, password, cred.PasswordHash)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return uuid.Nil, ErrBadCredentials
	}
	return cred.UserID, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, start, limit int) ([]User, int, error) {
	if start < 0 {
		start = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return s.repo.ListUsers(ctx, start, limit)
}

func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, profile Profile) (User, error) {
	return s.repo.UpdateUser(ctx, id, profile)
}

func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	slog.Info("User deleted", "user_id", id)
	return nil
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

func normalizeLogin(loginName string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(loginName))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidLogin
	}
	return strings.ToLower(addr.Address), nil
}
