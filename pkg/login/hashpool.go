package login

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// HashPool bounds how many hash or verify operations run at once. Callers
// beyond the bound wait for a slot or for their context to end.
type HashPool struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
	size   int

	dummyOnce sync.Once
	dummyHash string
}

// NewHashPool creates a pool; size <= 0 selects GOMAXPROCS
func NewHashPool(hasher PasswordHasher, size int) *HashPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &HashPool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
	}
}

// Size returns the concurrency bound
func (p *HashPool) Size() int {
	return p.size
}

// Hash hashes password once a slot is free
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire hashing slot: %w", err)
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(password)
}

// Verify compares password against hashedPassword once a slot is free
func (p *HashPool) Verify(ctx context.Context, password, hashedPassword string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("failed to acquire hashing slot: %w", err)
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(password, hashedPassword)
}

// VerifyMissing spends the same work as Verify for a login that does not
// exist, so response timing does not reveal which logins are registered.
// It always reports a mismatch.
func (p *HashPool) VerifyMissing(ctx context.Context, password string) error {
	p.dummyOnce.Do(func() {
		p.dummyHash, _ = p.hasher.Hash("missing-login-placeholder")
	})
	if p.dummyHash == "" || password == "" {
		return nil
	}
	_, err := p.Verify(ctx, password, p.dummyHash)
	return err
}
