package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

// ChallengeStore holds one-shot consent challenges with TTL eviction.
type ChallengeStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewChallengeStore creates the store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{c: gocache.New(10*time.Minute, time.Minute)}
}

// Put stores the payload under token for ttl.
func (s *ChallengeStore) Put(_ context.Context, token string, payload []byte, ttl time.Duration) error {
	if token == "" {
		return repository.ErrInvalidInput
	}
	s.c.Set(token, payload, ttl)
	return nil
}

// Take consumes the payload. The lock makes get-then-delete one-shot for
// concurrent takers of the same token.
func (s *ChallengeStore) Take(_ context.Context, token string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.c.Get(token)
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.c.Delete(token)
	payload, _ := v.([]byte)
	return payload, nil
}
