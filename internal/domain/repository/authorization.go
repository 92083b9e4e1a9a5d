package repository

import (
	"context"
	"time"
)

// TokenKind tags the token slots of an Authorization. It doubles as the
// token_type_hint vocabulary for FindByToken.
type TokenKind string

const (
	KindAuthorizationCode TokenKind = "authorization_code"
	KindAccessToken       TokenKind = "access_token"
	KindRefreshToken      TokenKind = "refresh_token"
	KindIDToken           TokenKind = "id_token"
	KindDeviceCode        TokenKind = "device_code"
	KindUserCode          TokenKind = "user_code"
)

// LookupKinds is the fixed scan order used by FindByToken when no hint is
// given. KindIDToken is deliberately absent: ID tokens are never searchable
// by value, they are only reachable as metadata on an Authorization already
// found through another kind. Every backend must preserve this exclusion.
var LookupKinds = []TokenKind{
	KindAuthorizationCode,
	KindAccessToken,
	KindRefreshToken,
	KindDeviceCode,
	KindUserCode,
}

// Metadata keys used on Token records.
const (
	MetaConsumed    = "consumed"    // bool: one-shot artifact already spent
	MetaInvalidated = "invalidated" // bool: token superseded by rotation
	MetaPending     = "pending"     // bool: device code awaiting user approval
	MetaDenied      = "denied"      // bool: device authorization rejected
	MetaInterval    = "interval"    // int64: minimum device polling interval, seconds
	MetaLastPolled  = "last_polled" // int64: unix seconds of last device poll
)

// Token is one issued artifact inside an Authorization.
type Token struct {
	Value     string         `json:"value"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// MetaBool reads a boolean metadata flag, false when absent.
func (t *Token) MetaBool(key string) bool {
	if t.Metadata == nil {
		return false
	}
	v, _ := t.Metadata[key].(bool)
	return v
}

// MetaInt64 reads an integer metadata value, 0 when absent. JSON round-trips
// store numbers as float64, so both representations are accepted.
func (t *Token) MetaInt64(key string) int64 {
	if t.Metadata == nil {
		return 0
	}
	switch v := t.Metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// SetMeta sets a metadata entry, allocating the map on first use.
func (t *Token) SetMeta(key string, v any) {
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	t.Metadata[key] = v
}

// Authorization is the aggregate record of one principal/client's granted
// tokens for one flow instance. At most one live token per kind.
type Authorization struct {
	ID         string               `json:"id"`
	ClientID   string               `json:"client_id"` // RegisteredClient.ID
	Principal  string               `json:"principal"`
	GrantType  string               `json:"grant_type"`
	Scopes     []string             `json:"scopes"`
	Tokens     map[TokenKind]*Token `json:"tokens"`
	Attributes map[string]any       `json:"attributes,omitempty"`
}

// Token returns the token record matching the given value, scanning every
// kind including id_token. This in-aggregate scan is distinct from the
// store-level FindByToken index, which excludes id_token.
func (a *Authorization) Token(value string) (TokenKind, *Token, bool) {
	for kind, tk := range a.Tokens {
		if tk != nil && tk.Value == value {
			return kind, tk, true
		}
	}
	return "", nil, false
}

// TokenOfKind returns the token of the given kind, nil when absent.
func (a *Authorization) TokenOfKind(kind TokenKind) *Token {
	if a.Tokens == nil {
		return nil
	}
	return a.Tokens[kind]
}

// PutToken sets the token slot for a kind, replacing any previous one.
func (a *Authorization) PutToken(kind TokenKind, tk *Token) {
	if a.Tokens == nil {
		a.Tokens = map[TokenKind]*Token{}
	}
	a.Tokens[kind] = tk
}

// Attribute reads a request attribute (redirect_uri, nonce, code_challenge...).
func (a *Authorization) Attribute(key string) string {
	if a.Attributes == nil {
		return ""
	}
	v, _ := a.Attributes[key].(string)
	return v
}

// SetAttribute stores a request attribute.
func (a *Authorization) SetAttribute(key string, v any) {
	if a.Attributes == nil {
		a.Attributes = map[string]any{}
	}
	a.Attributes[key] = v
}

// AuthorizationStore persists Authorization aggregates and supports lookup
// by token value.
type AuthorizationStore interface {
	// Save upserts by Authorization.ID. Idempotent on id. The token-value
	// index is rebuilt from the aggregate's current token map; id_token is
	// never indexed.
	Save(ctx context.Context, a *Authorization) error

	// FindByID returns the aggregate, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Authorization, error)

	// FindByToken returns the Authorization holding the given token value.
	// With hint != "", only that kind's index is consulted. With hint "",
	// the indexed kinds are scanned in LookupKinds order; id_token is
	// excluded from the scan by design.
	FindByToken(ctx context.Context, value string, hint TokenKind) (*Authorization, error)

	// ConsumeToken atomically marks the token of the given kind as consumed,
	// conditional on the slot still holding the presented value. Exactly one
	// of any number of concurrent calls for the same value succeeds; the rest
	// get ErrTokenConsumed, as does any call presenting a value the slot has
	// since replaced. This is the double-spend guard for authorization codes,
	// device codes and rotated refresh tokens, and must hold across processes
	// sharing one store.
	ConsumeToken(ctx context.Context, authorizationID string, kind TokenKind, value string) error

	// Delete removes the aggregate and its index entries.
	Delete(ctx context.Context, id string) error
}

// Consent records the scopes a principal has approved for a client.
// Keyed by (client id, principal). Persisted scopes are always a subset of
// the client's registered scopes.
type Consent struct {
	ClientID  string    `json:"client_id"` // RegisteredClient.ID
	Principal string    `json:"principal"`
	Scopes    []string  `json:"scopes"`
	GrantedAt time.Time `json:"granted_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Covers reports whether every requested scope is already granted.
func (c *Consent) Covers(requested []string) bool {
	for _, s := range requested {
		found := false
		for _, g := range c.Scopes {
			if s == g {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ConsentStore persists consent records.
type ConsentStore interface {
	// FindByID returns the consent for (clientID, principal), or ErrNotFound.
	FindByID(ctx context.Context, clientID, principal string) (*Consent, error)

	// Save upserts by (clientID, principal).
	Save(ctx context.Context, c *Consent) error

	// Delete removes the consent record.
	Delete(ctx context.Context, clientID, principal string) error
}
