package oauth2client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jinzhu/copier"
)

var ErrClientNotFound = errors.New("client not found")

// ClientRepository is the client registry
type ClientRepository interface {
	// GetClient retrieves a client and all of its child records
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// CreateClientTx runs fn inside one transaction. Nothing fn wrote is
	// visible to other callers unless fn returns nil.
	CreateClientTx(ctx context.Context, fn func(tx ClientTx) error) error
}

// ClientTx is the transactional view handed to CreateClientTx
type ClientTx interface {
	// SoftwareInstanceExists reports whether a client with this software id
	// and version is already registered. Concurrent transactions asking for
	// the same pair are serialized.
	SoftwareInstanceExists(ctx context.Context, softwareID, softwareVersion string) (bool, error)

	// CreateClient writes the client and its child records
	CreateClient(ctx context.Context, client *Client) error
}

// InMemoryClientRepository implements ClientRepository using in-memory storage
type InMemoryClientRepository struct {
	mutex   sync.RWMutex
	clients map[string]*Client
}

// NewInMemoryClientRepository creates a new in-memory client repository
func NewInMemoryClientRepository() *InMemoryClientRepository {
	return &InMemoryClientRepository{
		clients: make(map[string]*Client),
	}
}

func (r *InMemoryClientRepository) GetClient(ctx context.Context, clientID string) (*Client, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return cloneClient(client)
}

// CreateClientTx holds the write lock for the whole of fn and applies the
// staged clients only when fn succeeds.
func (r *InMemoryClientRepository) CreateClientTx(ctx context.Context, fn func(tx ClientTx) error) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	tx := &inMemoryClientTx{repo: r}
	if err := fn(tx); err != nil {
		return err
	}
	for _, c := range tx.staged {
		r.clients[c.ClientID] = c
	}
	return nil
}

// Count returns the number of registered clients
func (r *InMemoryClientRepository) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}

type inMemoryClientTx struct {
	repo   *InMemoryClientRepository
	staged []*Client
}

func (tx *inMemoryClientTx) SoftwareInstanceExists(ctx context.Context, softwareID, softwareVersion string) (bool, error) {
	for _, c := range tx.all() {
		if c.SoftwareID == softwareID && c.SoftwareVersion == softwareVersion {
			return true, nil
		}
	}
	return false, nil
}

func (tx *inMemoryClientTx) CreateClient(ctx context.Context, client *Client) error {
	for _, c := range tx.all() {
		if c.ClientID == client.ClientID {
			return fmt.Errorf("client %s already exists", client.ClientID)
		}
	}
	stored, err := cloneClient(client)
	if err != nil {
		return err
	}
	tx.staged = append(tx.staged, stored)
	return nil
}

func (tx *inMemoryClientTx) all() []*Client {
	all := make([]*Client, 0, len(tx.repo.clients)+len(tx.staged))
	for _, c := range tx.repo.clients {
		all = append(all, c)
	}
	return append(all, tx.staged...)
}

func cloneClient(c *Client) (*Client, error) {
	var out Client
	if err := copier.CopyWithOption(&out, c, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy client: %w", err)
	}
	return &out, nil
}
