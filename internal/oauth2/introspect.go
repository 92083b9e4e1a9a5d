package oauth2

import (
	"context"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

// TokenParser verifies a JWT this server issued and returns its claims.
// internal/jwt's Issuer provides the implementation.
type TokenParser interface {
	Parse(raw string) (jwtv5.MapClaims, error)
}

// Introspection is the RFC 7662 §2.2 response body. Inactive responses
// carry only Active.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Iss       string `json:"iss,omitempty"`
}

// IntrospectionService answers token introspection requests from
// authenticated clients.
type IntrospectionService struct {
	store  repository.AuthorizationStore
	parser TokenParser
}

// NewIntrospectionService creates the service. parser may be nil; access
// tokens then skip signature re-verification.
func NewIntrospectionService(store repository.AuthorizationStore, parser TokenParser) *IntrospectionService {
	return &IntrospectionService{store: store, parser: parser}
}

// Introspect reports the state of a presented token value. Unknown values,
// other clients' tokens and every dead-token condition collapse into
// active=false; the endpoint never explains why a token is inactive.
func (s *IntrospectionService) Introspect(ctx context.Context, client *ClientPrincipal, token, hint string) (*Introspection, error) {
	if client == nil || client.Client == nil {
		return nil, InvalidClient()
	}
	if token == "" {
		return nil, InvalidRequest(ParamToken)
	}

	auth, err := findByTokenWithHint(ctx, s.store, token, hint)
	if err != nil {
		if repository.IsNotFound(err) {
			return &Introspection{}, nil
		}
		return nil, ServerError(err)
	}
	if auth.ClientID != client.Client.ID {
		return &Introspection{}, nil
	}

	kind, tk, ok := auth.Token(token)
	if !ok || kind == repository.KindIDToken {
		return &Introspection{}, nil
	}
	now := time.Now()
	if tk.Expired(now) ||
		tk.MetaBool(repository.MetaConsumed) ||
		tk.MetaBool(repository.MetaInvalidated) ||
		tk.MetaBool(repository.MetaPending) ||
		tk.MetaBool(repository.MetaDenied) {
		return &Introspection{}, nil
	}

	resp := &Introspection{
		Active:   true,
		Scope:    JoinScopes(auth.Scopes),
		ClientID: client.Client.ClientID,
		Sub:      auth.Principal,
		Iat:      tk.IssuedAt.Unix(),
	}
	if !tk.ExpiresAt.IsZero() {
		resp.Exp = tk.ExpiresAt.Unix()
	}
	switch kind {
	case repository.KindAccessToken:
		resp.TokenType = "Bearer"
		if s.parser != nil {
			// A signature that no longer verifies (key rollover) makes the
			// token inactive regardless of the stored record.
			claims, err := s.parser.Parse(token)
			if err != nil {
				return &Introspection{}, nil
			}
			if iss, _ := claims["iss"].(string); iss != "" {
				resp.Iss = iss
			}
		}
	default:
		resp.TokenType = string(kind)
	}
	return resp, nil
}

// kindFromHint maps a token_type_hint to a lookup kind. Unknown hints fall
// back to the full scan per RFC 7009 §2.1.
func kindFromHint(hint string) repository.TokenKind {
	switch hint {
	case string(repository.KindAccessToken):
		return repository.KindAccessToken
	case string(repository.KindRefreshToken):
		return repository.KindRefreshToken
	default:
		return ""
	}
}

// findByTokenWithHint tries the hinted kind first and widens to the full
// scan on a miss, the lookup the revocation and introspection RFCs describe.
// id_token stays unreachable either way.
func findByTokenWithHint(ctx context.Context, store repository.AuthorizationStore, value, hint string) (*repository.Authorization, error) {
	if kind := kindFromHint(hint); kind != "" {
		a, err := store.FindByToken(ctx, value, kind)
		if err == nil || !repository.IsNotFound(err) {
			return a, err
		}
	}
	return store.FindByToken(ctx, value, "")
}
