package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

// Consents exposes the ConsentStore contract of this backend.
func (s *Store) Consents() *Consents {
	return &Consents{s: s}
}

// Clients exposes the ClientRegistry contract of this backend.
func (s *Store) Clients() *Clients {
	return &Clients{s: s}
}

// Consents implements repository.ConsentStore.
type Consents struct {
	s *Store
}

func (c *Consents) FindByID(ctx context.Context, clientID, principal string) (*repository.Consent, error) {
	const q = `
SELECT client_id, principal, scopes, granted_at, updated_at
FROM consent
WHERE client_id = $1 AND principal = $2`
	var out repository.Consent
	err := c.s.pool.QueryRow(ctx, q, clientID, principal).
		Scan(&out.ClientID, &out.Principal, &out.Scopes, &out.GrantedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Consents) Save(ctx context.Context, consent *repository.Consent) error {
	if consent == nil || consent.ClientID == "" || consent.Principal == "" {
		return repository.ErrInvalidInput
	}
	const q = `
INSERT INTO consent (client_id, principal, scopes, granted_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (client_id, principal) DO UPDATE
SET scopes = EXCLUDED.scopes, updated_at = EXCLUDED.updated_at`
	_, err := c.s.pool.Exec(ctx, q,
		consent.ClientID, consent.Principal, consent.Scopes, consent.GrantedAt, consent.UpdatedAt)
	return err
}

func (c *Consents) Delete(ctx context.Context, clientID, principal string) error {
	_, err := c.s.pool.Exec(ctx, `DELETE FROM consent WHERE client_id = $1 AND principal = $2`, clientID, principal)
	return err
}

// Clients implements repository.ClientRegistry. The whole registration is
// kept as one jsonb payload keyed by client_id.
type Clients struct {
	s *Store
}

func (c *Clients) FindByClientID(ctx context.Context, clientID string) (*repository.RegisteredClient, error) {
	const q = `SELECT payload FROM oauth_client WHERE client_id = $1`
	var raw []byte
	err := c.s.pool.QueryRow(ctx, q, clientID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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
	const q = `
INSERT INTO oauth_client (client_id, payload)
VALUES ($1, $2)
ON CONFLICT (client_id) DO UPDATE SET payload = EXCLUDED.payload`
	_, err = c.s.pool.Exec(ctx, q, cp.ClientID, raw)
	return err
}
