package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// Save upserts the aggregate and rebuilds its token index rows in one
// transaction. id_token is never written to token_index, so it can never be
// resolved through FindByToken.
func (s *Store) Save(ctx context.Context, a *repository.Authorization) error {
	if a == nil || a.ID == "" {
		return repository.ErrInvalidInput
	}
	tokensJSON, err := json.Marshal(a.Tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	attrs, err := json.Marshal(a.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const qUpsert = `
INSERT INTO authorization_record (id, client_id, principal, grant_type, scopes, tokens, attributes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE
SET client_id = EXCLUDED.client_id,
    principal = EXCLUDED.principal,
    grant_type = EXCLUDED.grant_type,
    scopes = EXCLUDED.scopes,
    tokens = EXCLUDED.tokens,
    attributes = EXCLUDED.attributes,
    updated_at = now()`
	if _, err := tx.Exec(ctx, qUpsert, a.ID, a.ClientID, a.Principal, a.GrantType, a.Scopes, tokensJSON, attrs); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM token_index WHERE authorization_id = $1`, a.ID); err != nil {
		return err
	}
	const qIndex = `
INSERT INTO token_index (kind, token_hash, authorization_id, expires_at, consumed)
VALUES ($1, $2, $3, $4, $5)`
	for _, kind := range repository.LookupKinds {
		tk := a.TokenOfKind(kind)
		if tk == nil || tk.Value == "" {
			continue
		}
		hash := tokens.SHA256Base64URL(tk.Value)
		if _, err := tx.Exec(ctx, qIndex, string(kind), hash, a.ID, tk.ExpiresAt, tk.MetaBool(repository.MetaConsumed)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// FindByID returns the aggregate, or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*repository.Authorization, error) {
	const q = `
SELECT id, client_id, principal, grant_type, scopes, tokens, attributes
FROM authorization_record
WHERE id = $1`
	return s.scanAuthorization(s.pool.QueryRow(ctx, q, id))
}

// FindByToken resolves the aggregate holding the token value. Values are
// indexed by digest, never stored in clear. id_token has no index rows and a
// hint naming it short-circuits to ErrNotFound.
func (s *Store) FindByToken(ctx context.Context, value string, hint repository.TokenKind) (*repository.Authorization, error) {
	if value == "" {
		return nil, repository.ErrNotFound
	}
	if hint == repository.KindIDToken {
		return nil, repository.ErrNotFound
	}
	hash := tokens.SHA256Base64URL(value)

	var id string
	var kind string
	var err error
	if hint != "" {
		const q = `SELECT authorization_id, kind FROM token_index WHERE kind = $1 AND token_hash = $2`
		err = s.pool.QueryRow(ctx, q, string(hint), hash).Scan(&id, &kind)
	} else {
		kinds := make([]string, len(repository.LookupKinds))
		for i, k := range repository.LookupKinds {
			kinds[i] = string(k)
		}
		const q = `
SELECT authorization_id, kind
FROM token_index
WHERE token_hash = $1 AND kind = ANY($2)
ORDER BY array_position($2, kind)
LIMIT 1`
		err = s.pool.QueryRow(ctx, q, hash, kinds).Scan(&id, &kind)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// The index row may outlive a rotated token; trust only the aggregate.
	tk := a.TokenOfKind(repository.TokenKind(kind))
	if tk == nil || tk.Value != value {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

// ConsumeToken flips the index row's consumed flag with a conditional update
// keyed by the presented value's digest, then mirrors the flag into the
// aggregate's token metadata. The conditional update is the cross-process
// double-spend guard: exactly one caller sees a row transition, everyone else
// gets ErrTokenConsumed — including callers presenting a value the slot has
// since rotated away, whose row keeps a different token_hash.
func (s *Store) ConsumeToken(ctx context.Context, authorizationID string, kind repository.TokenKind, value string) error {
	if value == "" {
		return repository.ErrInvalidInput
	}
	hash := tokens.SHA256Base64URL(value)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const qConsume = `
UPDATE token_index
SET consumed = true
WHERE authorization_id = $1 AND kind = $2 AND token_hash = $3 AND consumed = false`
	tag, err := tx.Exec(ctx, qConsume, authorizationID, string(kind), hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		const qExists = `SELECT EXISTS (SELECT 1 FROM token_index WHERE authorization_id = $1 AND kind = $2)`
		if err := tx.QueryRow(ctx, qExists, authorizationID, string(kind)).Scan(&exists); err != nil {
			return err
		}
		if exists {
			// Either this value's row is already consumed, or the slot now
			// holds a replacement. Both mean the presented token is spent.
			return repository.ErrTokenConsumed
		}
		return repository.ErrNotFound
	}

	const qMirror = `
UPDATE authorization_record
SET tokens = jsonb_set(tokens, ARRAY[$2::text, 'metadata'],
	COALESCE(tokens->$2->'metadata', '{}'::jsonb) || '{"consumed": true}'::jsonb),
    updated_at = now()
WHERE id = $1`
	if _, err := tx.Exec(ctx, qMirror, authorizationID, string(kind)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes the aggregate; index rows go with it via ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM authorization_record WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanAuthorization(row rowScanner) (*repository.Authorization, error) {
	var a repository.Authorization
	var tokens, attrs []byte
	err := row.Scan(&a.ID, &a.ClientID, &a.Principal, &a.GrantType, &a.Scopes, &tokens, &attrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &a.Tokens); err != nil {
			return nil, fmt.Errorf("unmarshal tokens: %w", err)
		}
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &a.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return &a, nil
}
