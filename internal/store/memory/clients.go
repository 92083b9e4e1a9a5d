package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

// ClientRegistry is an in-memory registry seeded at startup. Registration
// management lives outside the protocol core; this covers embedded
// deployments and tests.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*repository.RegisteredClient
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: map[string]*repository.RegisteredClient{}}
}

// FindByClientID returns the client, or ErrNotFound.
func (r *ClientRegistry) FindByClientID(_ context.Context, clientID string) (*repository.RegisteredClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Save registers or replaces a client by its public client_id.
func (r *ClientRegistry) Save(_ context.Context, client *repository.RegisteredClient) error {
	if client == nil || client.ClientID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *client
	if cp.ID == "" {
		cp.ID = cp.ClientID
	}
	r.clients[cp.ClientID] = &cp
	return nil
}
