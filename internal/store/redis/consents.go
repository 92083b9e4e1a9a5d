package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

func (s *Store) consentKey(clientID, principal string) string {
	return s.key("consent", clientID, principal)
}

func (s *Store) clientKey(clientID string) string {
	return s.key("client", clientID)
}

func (s *Store) challengeKey(token string) string {
	return s.key("challenge", token)
}

// Consents exposes the ConsentStore contract of this backend.
func (s *Store) Consents() *Consents {
	return &Consents{s: s}
}

// Clients exposes the ClientRegistry contract of this backend.
func (s *Store) Clients() *Clients {
	return &Clients{s: s}
}

// Challenges exposes the ChallengeStore contract of this backend.
func (s *Store) Challenges() *Challenges {
	return &Challenges{s: s}
}

// Consents implements repository.ConsentStore.
type Consents struct {
	s *Store
}

// FindByID returns the consent record, or ErrNotFound.
func (c *Consents) FindByID(ctx context.Context, clientID, principal string) (*repository.Consent, error) {
	raw, err := c.s.rdb.Get(ctx, c.s.consentKey(clientID, principal)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out repository.Consent
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal consent: %w", err)
	}
	return &out, nil
}

// Save upserts by (clientID, principal).
func (c *Consents) Save(ctx context.Context, consent *repository.Consent) error {
	if consent == nil || consent.ClientID == "" || consent.Principal == "" {
		return repository.ErrInvalidInput
	}
	raw, err := json.Marshal(consent)
	if err != nil {
		return fmt.Errorf("marshal consent: %w", err)
	}
	return c.s.rdb.Set(ctx, c.s.consentKey(consent.ClientID, consent.Principal), raw, 0).Err()
}

// Delete removes the record.
func (c *Consents) Delete(ctx context.Context, clientID, principal string) error {
	return c.s.rdb.Del(ctx, c.s.consentKey(clientID, principal)).Err()
}

// Clients implements repository.ClientRegistry.
type Clients struct {
	s *Store
}

// FindByClientID returns the registered client, or ErrNotFound.
func (c *Clients) FindByClientID(ctx context.Context, clientID string) (*repository.RegisteredClient, error) {
	raw, err := c.s.rdb.Get(ctx, c.s.clientKey(clientID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out repository.RegisteredClient
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal client: %w", err)
	}
	return &out, nil
}

// Save registers or replaces a client.
func (c *Clients) Save(ctx context.Context, client *repository.RegisteredClient) error {
	if client == nil || client.ClientID == "" {
		return repository.ErrInvalidInput
	}
	cp := *client
	if cp.ID == "" {
		cp.ID = cp.ClientID
	}
	raw, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal client: %w", err)
	}
	return c.s.rdb.Set(ctx, c.s.clientKey(cp.ClientID), raw, 0).Err()
}

// Challenges implements oauth2.ChallengeStore.
type Challenges struct {
	s *Store
}

// Put stores a one-shot challenge payload with TTL.
func (c *Challenges) Put(ctx context.Context, token string, payload []byte, ttl time.Duration) error {
	if token == "" {
		return repository.ErrInvalidInput
	}
	return c.s.rdb.Set(ctx, c.s.challengeKey(token), payload, ttl).Err()
}

// Take consumes the payload with GETDEL, atomic server-side.
func (c *Challenges) Take(ctx context.Context, token string) ([]byte, error) {
	raw, err := c.s.rdb.GetDel(ctx, c.s.challengeKey(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}
