package oauth2

import (
	"context"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// RevocationService invalidates previously issued tokens (RFC 7009).
// Revoking any token of an authorization tears down the whole grant: the
// refresh token, the access token and any pending codes die together.
type RevocationService struct {
	store repository.AuthorizationStore
}

// NewRevocationService creates the service.
func NewRevocationService(store repository.AuthorizationStore) *RevocationService {
	return &RevocationService{store: store}
}

// Revoke drops the authorization holding the presented token value.
// Idempotent per RFC 7009 §2.2: unknown values and other clients' tokens
// succeed without effect, so the response never reveals whether a value
// exists.
func (s *RevocationService) Revoke(ctx context.Context, client *ClientPrincipal, token, hint string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"))

	if client == nil || client.Client == nil {
		return InvalidClient()
	}
	if token == "" {
		return InvalidRequest(ParamToken)
	}

	auth, err := findByTokenWithHint(ctx, s.store, token, hint)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return ServerError(err)
	}
	if auth.ClientID != client.Client.ID {
		return nil
	}

	if err := s.store.Delete(ctx, auth.ID); err != nil {
		return ServerError(err)
	}
	log.Info("authorization revoked",
		logger.ClientID(client.Client.ClientID),
		logger.AuthorizationID(auth.ID),
	)
	return nil
}
