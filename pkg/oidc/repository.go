package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AuthorizationCode is a single-use code issued by the authorization endpoint
type AuthorizationCode struct {
	Code        string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	Nonce       string
	UserID      string
	ExpiresAt   time.Time
	Used        bool
	CreatedAt   time.Time
}

// PendingAuthorization is the authorization request a rendered login form
// belongs to. It is keyed by a server-issued nonce carried in the form.
type PendingAuthorization struct {
	ID          string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	ExpiresAt   time.Time
}

// ErrCodeNotFound is returned for unknown, used and expired codes alike
var ErrCodeNotFound = errors.New("authorization code not found")

// ErrPendingNotFound is returned for unknown, consumed and expired pending authorizations
var ErrPendingNotFound = errors.New("pending authorization not found")

// OIDCRepository stores authorization codes and pending authorizations
type OIDCRepository interface {
	StoreAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// ConsumeAuthorizationCode marks an unused, unexpired code as used and
	// returns it. Among concurrent callers for one code exactly one succeeds.
	ConsumeAuthorizationCode(ctx context.Context, code string, now time.Time) (*AuthorizationCode, error)

	StorePendingAuthorization(ctx context.Context, pending *PendingAuthorization) error

	// ConsumePendingAuthorization removes and returns a pending authorization
	ConsumePendingAuthorization(ctx context.Context, id string, now time.Time) (*PendingAuthorization, error)
}

// Purger is implemented by stores that keep expired entries until told to
// remove them
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunPurger removes expired entries every interval until ctx ends
func RunPurger(ctx context.Context, p Purger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				slog.Warn("Failed to purge expired authorizations", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("Purged expired authorizations", "count", n)
			}
		}
	}
}

// InMemoryOIDCRepository implements OIDCRepository using in-memory storage
type InMemoryOIDCRepository struct {
	authCodes map[string]*AuthorizationCode
	pending   map[string]*PendingAuthorization
	mutex     sync.Mutex
}

// NewInMemoryOIDCRepository creates a new in-memory OIDC repository
func NewInMemoryOIDCRepository() *InMemoryOIDCRepository {
	return &InMemoryOIDCRepository{
		authCodes: make(map[string]*AuthorizationCode),
		pending:   make(map[string]*PendingAuthorization),
	}
}

// StoreAuthorizationCode stores an authorization code
func (r *InMemoryOIDCRepository) StoreAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return errors.New("authorization code cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.authCodes[code.Code]; exists {
		return fmt.Errorf("authorization code already exists")
	}
	stored := *code
	r.authCodes[code.Code] = &stored
	return nil
}

// ConsumeAuthorizationCode checks and sets the used flag under the lock
func (r *InMemoryOIDCRepository) ConsumeAuthorizationCode(ctx context.Context, code string, now time.Time) (*AuthorizationCode, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	authCode, exists := r.authCodes[code]
	if !exists || authCode.Used || !now.Before(authCode.ExpiresAt) {
		return nil, ErrCodeNotFound
	}
	authCode.Used = true

	consumed := *authCode
	return &consumed, nil
}

func (r *InMemoryOIDCRepository) StorePendingAuthorization(ctx context.Context, pending *PendingAuthorization) error {
	if pending == nil || pending.ID == "" {
		return errors.New("pending authorization id cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.pending[pending.ID]; exists {
		return fmt.Errorf("pending authorization already exists")
	}
	stored := *pending
	r.pending[pending.ID] = &stored
	return nil
}

func (r *InMemoryOIDCRepository) ConsumePendingAuthorization(ctx context.Context, id string, now time.Time) (*PendingAuthorization, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, exists := r.pending[id]
	if !exists {
		return nil, ErrPendingNotFound
	}
	delete(r.pending, id)
	if !now.Before(p.ExpiresAt) {
		return nil, ErrPendingNotFound
	}
	return p, nil
}

// PurgeExpired drops expired codes and pending authorizations
func (r *InMemoryOIDCRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var purged int64
	for k, c := range r.authCodes {
		if !now.Before(c.ExpiresAt) {
			delete(r.authCodes, k)
			purged++
		}
	}
	for k, p := range r.pending {
		if !now.Before(p.ExpiresAt) {
			delete(r.pending, k)
			purged++
		}
	}
	return purged, nil
}
