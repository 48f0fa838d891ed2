package user

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// UserRepository is the credential store used by the user routes and by the
// authorization endpoint.
type UserRepository interface {
	// CreateUser stores the user and its credential atomically. A taken login
	// yields *LoginExistsError and nothing is written.
	CreateUser(ctx context.Context, user User, cred Credential) (User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	// ListUsers returns one page and the total number of users
	ListUsers(ctx context.Context, start, limit int) ([]User, int, error)
	UpdateUser(ctx context.Context, id uuid.UUID, profile Profile) (User, error)
	// DeleteUser removes the user and its credential
	DeleteUser(ctx context.Context, id uuid.UUID) error
	FindCredentialByLogin(ctx context.Context, login string) (Credential, error)
}

// InMemoryUserRepository implements UserRepository using in-memory storage
type InMemoryUserRepository struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]User
	order   []uuid.UUID
	byLogin map[string]Credential
}

// NewInMemoryUserRepository creates a new in-memory user repository
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:   make(map[uuid.UUID]User),
		byLogin: make(map[string]Credential),
	}
}

func (r *InMemoryUserRepository) CreateUser(ctx context.Context, user User, cred Credential) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byLogin[cred.Login]; ok {
		return User{}, &LoginExistsError{Login: cred.Login, UserID: existing.UserID}
	}

	cred.UserID = user.ID
	r.users[user.ID] = user
	r.order = append(r.order, user.ID)
	r.byLogin[cred.Login] = cred
	return user, nil
}

func (r *InMemoryUserRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *InMemoryUserRepository) ListUsers(ctx context.Context, start, limit int) ([]User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	page := make([]User, 0, end-start)
	for _, id := range r.order[start:end] {
		page = append(page, r.users[id])
	}
	return page, total, nil
}

func (r *InMemoryUserRepository) UpdateUser(ctx context.Context, id uuid.UUID, profile Profile) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	u.Name = profile.Name
	u.Surname = profile.Surname
	u.Patronymic = profile.Patronymic
	r.users[id] = u
	return u, nil
}

func (r *InMemoryUserRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	for login, cred := range r.byLogin {
		if cred.UserID == id {
			delete(r.byLogin, login)
		}
	}
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *InMemoryUserRepository) FindCredentialByLogin(ctx context.Context, login string) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.byLogin[login]
	if !ok {
		return Credential{}, ErrUserNotFound
	}
	return cred, nil
}
