package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

// ConsentStore keeps consent records keyed by (client id, principal).
type ConsentStore struct {
	mu       sync.RWMutex
	consents map[string]*repository.Consent
}

// NewConsentStore creates the store.
func NewConsentStore() *ConsentStore {
	return &ConsentStore{consents: map[string]*repository.Consent{}}
}

func consentKey(clientID, principal string) string {
	return clientID + "\x00" + principal
}

// FindByID returns the consent, or ErrNotFound.
func (s *ConsentStore) FindByID(_ context.Context, clientID, principal string) (*repository.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consents[consentKey(clientID, principal)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.Scopes = append([]string{}, c.Scopes...)
	return &cp, nil
}

// Save upserts by (clientID, principal).
func (s *ConsentStore) Save(_ context.Context, c *repository.Consent) error {
	if c == nil || c.ClientID == "" || c.Principal == "" {
		return repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Scopes = append([]string{}, c.Scopes...)
	s.consents[consentKey(c.ClientID, c.Principal)] = &cp
	return nil
}

// Delete removes the record.
func (s *ConsentStore) Delete(_ context.Context, clientID, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consents, consentKey(clientID, principal))
	return nil
}
