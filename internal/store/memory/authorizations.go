package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// AuthorizationStore keeps Authorization aggregates in memory with a
// TTL-evicting token-value index. Aggregates are stored and returned as
// deep copies so callers never share mutable state with the store.
type AuthorizationStore struct {
	mu    sync.Mutex
	auths map[string]*repository.Authorization

	// index maps kind:sha256(value) -> authorization id, expiring with the
	// token. id_token entries are never written.
	index *gocache.Cache
}

// NewAuthorizationStore creates the store.
func NewAuthorizationStore() *AuthorizationStore {
	return &AuthorizationStore{
		auths: map[string]*repository.Authorization{},
		index: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func indexKey(kind repository.TokenKind, value string) string {
	return string(kind) + ":" + tokens.SHA256Base64URL(value)
}

// Save upserts by id and rebuilds the index entries for the aggregate's
// current tokens. id_token is deliberately excluded from the index.
func (s *AuthorizationStore) Save(_ context.Context, a *repository.Authorization) error {
	if a == nil || a.ID == "" {
		return repository.ErrInvalidInput
	}
	cp, err := copyAuthorization(a)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auths[a.ID] = cp

	for _, kind := range repository.LookupKinds {
		tk := cp.TokenOfKind(kind)
		if tk == nil || tk.Value == "" {
			continue
		}
		ttl := gocache.NoExpiration
		if !tk.ExpiresAt.IsZero() {
			d := time.Until(tk.ExpiresAt)
			if d <= 0 {
				continue
			}
			ttl = d
		}
		s.index.Set(indexKey(kind, tk.Value), cp.ID, ttl)
	}
	return nil
}

// FindByID returns a copy of the aggregate.
func (s *AuthorizationStore) FindByID(_ context.Context, id string) (*repository.Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auths[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAuthorization(a)
}

// FindByToken resolves the index entry and verifies the value still matches
// a live token of that kind, so stale entries from rotated tokens miss.
func (s *AuthorizationStore) FindByToken(_ context.Context, value string, hint repository.TokenKind) (*repository.Authorization, error) {
	if value == "" {
		return nil, repository.ErrNotFound
	}
	kinds := repository.LookupKinds
	if hint != "" {
		if hint == repository.KindIDToken {
			// id_token is not independently searchable by value.
			return nil, repository.ErrNotFound
		}
		kinds = []repository.TokenKind{hint}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range kinds {
		id, ok := s.index.Get(indexKey(kind, value))
		if !ok {
			continue
		}
		a, ok := s.auths[id.(string)]
		if !ok {
			continue
		}
		tk := a.TokenOfKind(kind)
		if tk == nil || tk.Value != value {
			continue
		}
		return copyAuthorization(a)
	}
	return nil, repository.ErrNotFound
}

// ConsumeToken is the conditional check-and-set guard: under the store lock
// the presented value flips to consumed exactly once. A value the slot has
// since rotated away counts as spent, so a replayed old token can never
// consume its own replacement.
func (s *AuthorizationStore) ConsumeToken(_ context.Context, authorizationID string, kind repository.TokenKind, value string) error {
	if value == "" {
		return repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auths[authorizationID]
	if !ok {
		return repository.ErrNotFound
	}
	tk := a.TokenOfKind(kind)
	if tk == nil {
		return repository.ErrNotFound
	}
	if tk.Value != value || tk.MetaBool(repository.MetaConsumed) {
		return repository.ErrTokenConsumed
	}
	tk.SetMeta(repository.MetaConsumed, true)
	return nil
}

// Delete removes the aggregate and its index entries.
func (s *AuthorizationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auths[id]
	if !ok {
		return nil
	}
	for _, kind := range repository.LookupKinds {
		if tk := a.TokenOfKind(kind); tk != nil && tk.Value != "" {
			s.index.Delete(indexKey(kind, tk.Value))
		}
	}
	delete(s.auths, id)
	return nil
}

func copyAuthorization(a *repository.Authorization) (*repository.Authorization, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("copy authorization: %w", err)
	}
	var cp repository.Authorization
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("copy authorization: %w", err)
	}
	return &cp, nil
}
