package oauth2

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// ClientPrincipal is the authenticated client identity established before
// grant processing runs. It is threaded explicitly through the pipeline —
// never read from ambient state — so the processor only has to assert its
// presence.
type ClientPrincipal struct {
	Client     *repository.RegisteredClient
	AuthMethod string
}

// ClientAuthenticator verifies client credentials against the registry.
// It runs at the boundary, ahead of the token endpoint processor, matching
// the RFC separation of client authentication and grant authorization.
type ClientAuthenticator struct {
	registry repository.ClientRegistry
}

// NewClientAuthenticator builds the authenticator.
func NewClientAuthenticator(registry repository.ClientRegistry) *ClientAuthenticator {
	return &ClientAuthenticator{registry: registry}
}

// Authenticate resolves and verifies the calling client. method is the
// transport-level method the credentials arrived with (client_secret_basic,
// client_secret_post, or none for public clients). Every failure collapses
// to invalid_client; the distinction is logged, not surfaced.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, clientID, clientSecret, method string) (*ClientPrincipal, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.client_auth"))

	if clientID == "" {
		return nil, InvalidClient()
	}

	client, err := a.registry.FindByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("unknown client", logger.ClientID(clientID))
			return nil, InvalidClient()
		}
		return nil, ServerError(err)
	}

	if !client.AllowsAuthMethod(method) {
		log.Warn("authentication method not registered for client",
			logger.ClientID(clientID), logger.String("method", method))
		return nil, InvalidClient()
	}

	switch method {
	case repository.AuthMethodBasic, repository.AuthMethodPost:
		if client.SecretHash == "" || clientSecret == "" {
			log.Warn("missing client secret", logger.ClientID(clientID))
			return nil, InvalidClient()
		}
		if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)) != nil {
			log.Warn("client secret mismatch", logger.ClientID(clientID))
			return nil, InvalidClient()
		}
	case repository.AuthMethodNone:
		// Public client: proof of possession is the PKCE verifier, checked
		// against the stored code challenge by the authorization_code handler.
		if clientSecret != "" {
			log.Warn("public client sent a secret", logger.ClientID(clientID))
			return nil, InvalidClient()
		}
	default:
		return nil, InvalidClient()
	}

	return &ClientPrincipal{Client: client, AuthMethod: method}, nil
}

// HashClientSecret derives the stored form of a client secret. Used by
// registry seeding and tests.
func HashClientSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
