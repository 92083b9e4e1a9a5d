package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// Config for the redis backend.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "authgate"
}

// Store implements AuthorizationStore, ConsentStore, ClientRegistry and
// ChallengeStore over one redis connection.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

// New connects and pings the redis instance.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "authgate"
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping checks backend liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *Store) authKey(id string) string {
	return s.key("auth", id)
}

func (s *Store) indexKey(kind repository.TokenKind, value string) string {
	return s.key("idx", string(kind), tokens.SHA256Base64URL(value))
}

func (s *Store) consumedKey(kind repository.TokenKind, value string) string {
	return s.key("consumed", string(kind), tokens.SHA256Base64URL(value))
}

// --- AuthorizationStore ---

// Save upserts the aggregate JSON and rewrites the token-value index.
// id_token is deliberately never indexed.
func (s *Store) Save(ctx context.Context, a *repository.Authorization) error {
	if a == nil || a.ID == "" {
		return repository.ErrInvalidInput
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal authorization: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.authKey(a.ID), raw, authRetention(a))
	for _, kind := range repository.LookupKinds {
		tk := a.TokenOfKind(kind)
		if tk == nil || tk.Value == "" {
			continue
		}
		ttl := time.Until(tk.ExpiresAt)
		if tk.ExpiresAt.IsZero() {
			ttl = 0
		} else if ttl <= 0 {
			continue
		}
		pipe.Set(ctx, s.indexKey(kind, tk.Value), a.ID, ttl)
		// Mirror an already-consumed flag so ConsumeToken stays
		// authoritative after a Save that carries consumed metadata. The
		// marker is keyed by the value's digest, so a freshly rotated
		// replacement never inherits its predecessor's marker.
		if tk.MetaBool(repository.MetaConsumed) {
			pipe.SetNX(ctx, s.consumedKey(kind, tk.Value), "1", ttl)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

// FindByID loads the aggregate.
func (s *Store) FindByID(ctx context.Context, id string) (*repository.Authorization, error) {
	raw, err := s.rdb.Get(ctx, s.authKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var a repository.Authorization
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("unmarshal authorization: %w", err)
	}
	return &a, nil
}

// FindByToken consults the per-kind indexes; hint "" scans LookupKinds in
// order. id_token has no index, so it can never be found by value.
func (s *Store) FindByToken(ctx context.Context, value string, hint repository.TokenKind) (*repository.Authorization, error) {
	if value == "" {
		return nil, repository.ErrNotFound
	}
	kinds := repository.LookupKinds
	if hint != "" {
		if hint == repository.KindIDToken {
			return nil, repository.ErrNotFound
		}
		kinds = []repository.TokenKind{hint}
	}
	for _, kind := range kinds {
		id, err := s.rdb.Get(ctx, s.indexKey(kind, value)).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		a, err := s.FindByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if tk := a.TokenOfKind(kind); tk != nil && tk.Value == value {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ConsumeToken uses SETNX on a per-value consumption marker: the first
// caller presenting a value wins, every other concurrent caller across all
// processes gets ErrTokenConsumed. Keying the marker by the value's digest
// means a rotated replacement starts with a clean marker, and a replayed old
// value keeps hitting the marker its winner set.
func (s *Store) ConsumeToken(ctx context.Context, authorizationID string, kind repository.TokenKind, value string) error {
	if value == "" {
		return repository.ErrInvalidInput
	}
	a, err := s.FindByID(ctx, authorizationID)
	if err != nil {
		return err
	}
	tk := a.TokenOfKind(kind)
	if tk == nil {
		return repository.ErrNotFound
	}
	if tk.Value != value || tk.MetaBool(repository.MetaConsumed) {
		return repository.ErrTokenConsumed
	}

	ttl := time.Until(tk.ExpiresAt)
	if tk.ExpiresAt.IsZero() || ttl <= 0 {
		ttl = time.Hour
	}
	ok, err := s.rdb.SetNX(ctx, s.consumedKey(kind, value), "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrTokenConsumed
	}

	tk.SetMeta(repository.MetaConsumed, true)
	return s.Save(ctx, a)
}

// Delete removes the aggregate and its index entries.
func (s *Store) Delete(ctx context.Context, id string) error {
	a, err := s.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	keys := []string{s.authKey(id)}
	for _, kind := range repository.LookupKinds {
		if tk := a.TokenOfKind(kind); tk != nil && tk.Value != "" {
			keys = append(keys, s.indexKey(kind, tk.Value), s.consumedKey(kind, tk.Value))
		}
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// authRetention keeps the aggregate around slightly past its last token.
func authRetention(a *repository.Authorization) time.Duration {
	var last time.Time
	for _, tk := range a.Tokens {
		if tk != nil && tk.ExpiresAt.After(last) {
			last = tk.ExpiresAt
		}
	}
	if last.IsZero() {
		return 0 // no expiring tokens, keep until deleted
	}
	d := time.Until(last) + time.Hour
	if d <= 0 {
		d = time.Hour
	}
	return d
}
