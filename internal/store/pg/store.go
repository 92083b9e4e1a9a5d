package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL-backed authorization store. One Store serves the
// AuthorizationStore contract directly; Consents() and Clients() expose the
// other repository contracts over the same pool.
type Store struct {
	pool *pgxpool.Pool
}

// Config tunes the underlying pgx pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for metrics and migrations.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool. Idempotent.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS authorization_record (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL,
	principal   TEXT NOT NULL,
	grant_type  TEXT NOT NULL,
	scopes      TEXT[] NOT NULL DEFAULT '{}',
	tokens      JSONB NOT NULL DEFAULT '{}'::jsonb,
	attributes  JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS token_index (
	kind             TEXT NOT NULL,
	token_hash       TEXT NOT NULL,
	authorization_id TEXT NOT NULL REFERENCES authorization_record(id) ON DELETE CASCADE,
	expires_at       TIMESTAMPTZ,
	consumed         BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (kind, token_hash)
);
CREATE INDEX IF NOT EXISTS token_index_authorization_idx ON token_index (authorization_id);

CREATE TABLE IF NOT EXISTS consent (
	client_id  TEXT NOT NULL,
	principal  TEXT NOT NULL,
	scopes     TEXT[] NOT NULL DEFAULT '{}',
	granted_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (client_id, principal)
);

CREATE TABLE IF NOT EXISTS oauth_client (
	client_id TEXT PRIMARY KEY,
	payload   JSONB NOT NULL
);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}
