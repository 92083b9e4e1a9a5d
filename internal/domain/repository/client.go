package repository

import (
	"context"
	"time"
)

// Client authentication methods.
const (
	AuthMethodBasic = "client_secret_basic"
	AuthMethodPost  = "client_secret_post"
	AuthMethodNone  = "none" // public client, PKCE required
)

// RegisteredClient is the immutable registration record of an OAuth client.
// Owned by the ClientRegistry; the protocol core never mutates it.
type RegisteredClient struct {
	ID           string // internal id
	ClientID     string // public identifier
	Name         string
	SecretHash   string // bcrypt hash, empty for public clients
	AuthMethods  []string
	GrantTypes   []string
	RedirectURIs []string
	Scopes       []string

	// Token TTL settings. Zero means the issuer default applies.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CodeTTL         time.Duration
	DeviceCodeTTL   time.Duration

	// RotateRefreshTokens makes the refresh_token grant invalidate the
	// presented token and mint a replacement in the same store update.
	RotateRefreshTokens bool

	// RequireConsent forces the interactive consent step even when a prior
	// consent record covers the requested scopes.
	RequireConsent bool
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *RegisteredClient) AllowsGrantType(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsAuthMethod reports whether the client may authenticate with the
// given method.
func (c *RegisteredClient) AllowsAuthMethod(method string) bool {
	for _, m := range c.AuthMethods {
		if m == method {
			return true
		}
	}
	return false
}

// AllowsScope reports whether every requested scope is in the client's
// registered scope set.
func (c *RegisteredClient) AllowsScope(requested []string) bool {
	for _, s := range requested {
		found := false
		for _, allowed := range c.Scopes {
			if s == allowed {
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

// AllowsRedirectURI reports whether uri exactly matches a registered
// redirect URI.
func (c *RegisteredClient) AllowsRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// ClientRegistry looks up registered clients. Registration management is
// outside the protocol core; Save exists so embedded deployments and tests
// can seed the registry.
type ClientRegistry interface {
	// FindByClientID returns the client with the given public client_id.
	// Returns ErrNotFound if it does not exist.
	FindByClientID(ctx context.Context, clientID string) (*RegisteredClient, error)

	// Save registers or replaces a client by its public client_id.
	Save(ctx context.Context, client *RegisteredClient) error
}
