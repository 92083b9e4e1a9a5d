// Package oauth2 is the protocol core of the authorization server: request
// validation, grant-type dispatch and token lifecycle management. It sits
// between the HTTP boundary and the persistence/signing collaborators.
package oauth2

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// ScopeOpenID triggers ID token issuance for user-facing grants.
const ScopeOpenID = "openid"

// TokenSigner signs the JWT artifacts. Signing primitives and key handling
// live behind this interface; internal/jwt provides the implementation.
type TokenSigner interface {
	IssueAccess(sub, aud string, std, custom map[string]any, ttl time.Duration) (string, time.Time, error)
	IssueIDToken(sub, aud string, std, extra map[string]any, ttl time.Duration) (string, time.Time, error)
}

// TokenEndpointDeps contains dependencies for the token endpoint.
type TokenEndpointDeps struct {
	Authorizations repository.AuthorizationStore
	Signer         TokenSigner

	// RefreshTokenBytes sizes minted opaque refresh tokens. Default 32.
	RefreshTokenBytes int

	// DevicePollInterval is the minimum device-flow polling interval.
	// Default 5 seconds.
	DevicePollInterval time.Duration
}

// TokenEndpoint processes token requests: a converted, authenticated grant
// request goes in, a token response or a protocol error comes out. Each
// request is handled synchronously; there are no internal retries, timers
// or background tasks.
type TokenEndpoint struct {
	store        repository.AuthorizationStore
	signer       TokenSigner
	refreshBytes int
	pollInterval time.Duration
}

// NewTokenEndpoint creates the processor.
func NewTokenEndpoint(d TokenEndpointDeps) *TokenEndpoint {
	rb := d.RefreshTokenBytes
	if rb <= 0 {
		rb = 32
	}
	pi := d.DevicePollInterval
	if pi <= 0 {
		pi = 5 * time.Second
	}
	return &TokenEndpoint{
		store:        d.Authorizations,
		signer:       d.Signer,
		refreshBytes: rb,
		pollInterval: pi,
	}
}

// TokenResponse is the success body of the token endpoint. Additional
// carries extension parameters the grant handler chooses to surface; they
// are flattened into the JSON object next to the standard members.
type TokenResponse struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	IDToken      string
	Scope        string
	Additional   map[string]any
}

// MarshalJSON flattens Additional into the response object. Standard
// members win on key collision.
func (r *TokenResponse) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	for k, v := range r.Additional {
		m[k] = v
	}
	m["access_token"] = r.AccessToken
	m["token_type"] = r.TokenType
	m["expires_in"] = r.ExpiresIn
	if r.RefreshToken != "" {
		m["refresh_token"] = r.RefreshToken
	}
	if r.IDToken != "" {
		m["id_token"] = r.IDToken
	}
	if r.Scope != "" {
		m["scope"] = r.Scope
	}
	return json.Marshal(m)
}

// Process runs the token-endpoint state machine on an already-parsed
// request: validate grant_type, convert, assert client authentication,
// dispatch to the grant handler. The boundary has already filtered
// non-POST requests; failures here are terminal protocol errors.
func (t *TokenEndpoint) Process(ctx context.Context, params Params, client *ClientPrincipal) (*TokenResponse, error) {
	// grant_type (REQUIRED, single-valued)
	if _, err := params.Require(ParamGrantType); err != nil {
		return nil, err
	}

	var gr *GrantRequest
	for _, convert := range Converters {
		req, err := convert(params)
		if err != nil {
			return nil, err
		}
		if req != nil {
			gr = req
			break
		}
	}
	if gr == nil {
		return nil, UnsupportedGrantType()
	}

	// Client authentication is a precondition established upstream; the
	// processor never re-derives identity from body parameters.
	if client == nil || client.Client == nil {
		return nil, InvalidClient()
	}
	if !client.Client.AllowsGrantType(gr.GrantType) {
		return nil, UnauthorizedClient()
	}

	switch gr.GrantType {
	case GrantAuthorizationCode:
		return t.exchangeAuthorizationCode(ctx, gr, client)
	case GrantClientCredentials:
		return t.exchangeClientCredentials(ctx, gr, client)
	case GrantRefreshToken:
		return t.exchangeRefreshToken(ctx, gr, client)
	case GrantDeviceCode:
		return t.exchangeDeviceCode(ctx, gr, client)
	}
	return nil, UnsupportedGrantType()
}

func (t *TokenEndpoint) exchangeAuthorizationCode(ctx context.Context, gr *GrantRequest, client *ClientPrincipal) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.authcode"))
	req := gr.AuthorizationCode

	auth, err := t.store.FindByToken(ctx, req.Code, repository.KindAuthorizationCode)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("authorization code not found")
			return nil, InvalidGrant("")
		}
		return nil, ServerError(err)
	}

	if auth.ClientID != client.Client.ID {
		log.Warn("authorization code issued to another client",
			logger.ClientID(client.Client.ClientID), logger.AuthorizationID(auth.ID))
		return nil, InvalidGrant("")
	}

	now := time.Now()
	codeTk := auth.TokenOfKind(repository.KindAuthorizationCode)
	if codeTk == nil || codeTk.Expired(now) {
		log.Warn("authorization code expired", logger.AuthorizationID(auth.ID))
		return nil, InvalidGrant("")
	}

	// If the authorization request carried redirect_uri, the token request
	// must repeat it exactly.
	if stored := auth.Attribute("redirect_uri"); stored != "" && req.RedirectURI != stored {
		log.Warn("redirect_uri mismatch", logger.AuthorizationID(auth.ID))
		return nil, InvalidGrant("")
	}

	// PKCE S256: verifier travels as an extension parameter.
	if challenge := auth.Attribute("code_challenge"); challenge != "" {
		verifier := gr.AdditionalParameters[ParamCodeVerifier]
		if verifier == "" {
			return nil, InvalidRequest(ParamCodeVerifier)
		}
		method := auth.Attribute("code_challenge_method")
		if !strings.EqualFold(method, "S256") || tokens.SHA256Base64URL(verifier) != challenge {
			log.Warn("PKCE verification failed", logger.AuthorizationID(auth.ID))
			return nil, InvalidGrant("")
		}
	}

	// One-shot: the conditional update is the double-spend guard. Exactly
	// one of two concurrent exchanges of the same code passes this point.
	if err := t.store.ConsumeToken(ctx, auth.ID, repository.KindAuthorizationCode, req.Code); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) || repository.IsNotFound(err) {
			log.Warn("authorization code already used", logger.AuthorizationID(auth.ID))
			return nil, InvalidGrant("")
		}
		return nil, ServerError(err)
	}
	codeTk.SetMeta(repository.MetaConsumed, true)

	resp, err := t.mintUserTokens(ctx, auth, client, true)
	if err != nil {
		return nil, err
	}

	if err := t.store.Save(ctx, auth); err != nil {
		return nil, ServerError(err)
	}

	log.Info("authorization_code exchanged",
		logger.ClientID(client.Client.ClientID),
		logger.Principal(auth.Principal),
		logger.AuthorizationID(auth.ID),
	)
	return resp, nil
}

func (t *TokenEndpoint) exchangeClientCredentials(ctx context.Context, gr *GrantRequest, client *ClientPrincipal) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.clientcreds"))
	req := gr.ClientCredentials

	scopes := req.Scopes
	if len(scopes) > 0 {
		if !client.Client.AllowsScope(scopes) {
			log.Warn("scope not allowed", logger.ClientID(client.Client.ClientID),
				logger.Scope(JoinScopes(scopes)))
			return nil, InvalidScope()
		}
	} else {
		scopes = client.Client.Scopes
	}

	auth := &repository.Authorization{
		ID:        uuid.NewString(),
		ClientID:  client.Client.ID,
		Principal: client.Client.ClientID, // sub is the client itself for M2M
		GrantType: GrantClientCredentials,
		Scopes:    scopes,
	}

	access, exp, err := t.issueAccessToken(auth, client)
	if err != nil {
		return nil, ServerError(err)
	}

	if err := t.store.Save(ctx, auth); err != nil {
		return nil, ServerError(err)
	}

	log.Info("client_credentials token issued",
		logger.ClientID(client.Client.ClientID),
		logger.AuthorizationID(auth.ID),
	)
	return &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       JoinScopes(scopes),
	}, nil
}

func (t *TokenEndpoint) exchangeRefreshToken(ctx context.Context, gr *GrantRequest, client *ClientPrincipal) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))
	req := gr.RefreshToken

	auth, err := t.store.FindByToken(ctx, req.RefreshToken, repository.KindRefreshToken)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("refresh token not found")
			return nil, InvalidGrant("")
		}
		return nil, ServerError(err)
	}

	if auth.ClientID != client.Client.ID {
		log.Warn("refresh token issued to another client",
			logger.ClientID(client.Client.ClientID), logger.AuthorizationID(auth.ID))
		return nil, InvalidGrant("")
	}

	now := time.Now()
	rt := auth.TokenOfKind(repository.KindRefreshToken)
	if rt == nil || rt.Expired(now) || rt.MetaBool(repository.MetaInvalidated) || rt.MetaBool(repository.MetaConsumed) {
		log.Warn("refresh token expired or invalidated", logger.AuthorizationID(auth.ID))
		return nil, InvalidGrant("")
	}

	// Requested scope must stay inside the originally authorized set.
	scopes := auth.Scopes
	if len(req.Scopes) > 0 {
		if !scopeSubset(req.Scopes, auth.Scopes) {
			log.Warn("refresh scope exceeds authorized set",
				logger.AuthorizationID(auth.ID), logger.Scope(JoinScopes(req.Scopes)))
			return nil, InvalidScope()
		}
		scopes = req.Scopes
	}

	refreshOut := req.RefreshToken
	if client.Client.RotateRefreshTokens {
		// Rotation is atomic with invalidation: the conditional update on
		// the presented token value admits exactly one concurrent refresh,
		// even after a winner has already saved the replacement.
		if err := t.store.ConsumeToken(ctx, auth.ID, repository.KindRefreshToken, req.RefreshToken); err != nil {
			if errors.Is(err, repository.ErrTokenConsumed) || repository.IsNotFound(err) {
				log.Warn("refresh token already rotated", logger.AuthorizationID(auth.ID))
				return nil, InvalidGrant("")
			}
			return nil, ServerError(err)
		}
		newRT, err := t.mintRefreshToken(auth, client)
		if err != nil {
			return nil, ServerError(err)
		}
		refreshOut = newRT
	}

	access, exp, err := t.issueAccessTokenScoped(auth, client, scopes)
	if err != nil {
		return nil, ServerError(err)
	}

	if err := t.store.Save(ctx, auth); err != nil {
		return nil, ServerError(err)
	}

	log.Info("refresh_token exchanged",
		logger.ClientID(client.Client.ClientID),
		logger.Principal(auth.Principal),
		logger.AuthorizationID(auth.ID),
	)
	// No id_token on refresh by design.
	return &TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(exp).Seconds()),
		RefreshToken: refreshOut,
		Scope:        JoinScopes(scopes),
	}, nil
}

func (t *TokenEndpoint) exchangeDeviceCode(ctx context.Context, gr *GrantRequest, client *ClientPrincipal) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.device"))
	req := gr.DeviceCode

	auth, err := t.store.FindByToken(ctx, req.DeviceCode, repository.KindDeviceCode)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("device code not found")
			return nil, InvalidGrant("")
		}
		return nil, ServerError(err)
	}

	if auth.ClientID != client.Client.ID {
		log.Warn("device code issued to another client",
			logger.ClientID(client.Client.ClientID), logger.AuthorizationID(auth.ID))
		return nil, InvalidGrant("")
	}

	now := time.Now()
	dc := auth.TokenOfKind(repository.KindDeviceCode)
	if dc == nil {
		return nil, InvalidGrant("")
	}
	if dc.Expired(now) {
		log.Warn("device code expired", logger.AuthorizationID(auth.ID))
		return nil, ExpiredToken()
	}
	if dc.MetaBool(repository.MetaDenied) {
		return nil, AccessDenied()
	}

	if dc.MetaBool(repository.MetaPending) {
		interval := time.Duration(dc.MetaInt64(repository.MetaInterval)) * time.Second
		if interval <= 0 {
			interval = t.pollInterval
		}
		last := time.Unix(dc.MetaInt64(repository.MetaLastPolled), 0)
		dc.SetMeta(repository.MetaLastPolled, now.Unix())
		if now.Sub(last) < interval {
			// RFC 8628 §3.5: bump the interval when the client polls too fast.
			dc.SetMeta(repository.MetaInterval, int64(interval.Seconds())+5)
			if err := t.store.Save(ctx, auth); err != nil {
				log.Warn("device poll bookkeeping not saved", logger.Err(err))
			}
			return nil, SlowDown()
		}
		if err := t.store.Save(ctx, auth); err != nil {
			log.Warn("device poll bookkeeping not saved", logger.Err(err))
		}
		return nil, AuthorizationPending()
	}

	if err := t.store.ConsumeToken(ctx, auth.ID, repository.KindDeviceCode, req.DeviceCode); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) || repository.IsNotFound(err) {
			log.Warn("device code already used", logger.AuthorizationID(auth.ID))
			return nil, InvalidGrant("")
		}
		return nil, ServerError(err)
	}
	dc.SetMeta(repository.MetaConsumed, true)

	resp, err := t.mintUserTokens(ctx, auth, client, true)
	if err != nil {
		return nil, err
	}

	if err := t.store.Save(ctx, auth); err != nil {
		return nil, ServerError(err)
	}

	log.Info("device_code exchanged",
		logger.ClientID(client.Client.ClientID),
		logger.Principal(auth.Principal),
		logger.AuthorizationID(auth.ID),
	)
	return resp, nil
}

// mintUserTokens issues the access token, the refresh token when the client
// is registered for the refresh_token grant, and the ID token when the
// authorization covers the openid scope. The minted records are put on the
// aggregate; the caller persists it.
func (t *TokenEndpoint) mintUserTokens(ctx context.Context, auth *repository.Authorization, client *ClientPrincipal, withIDToken bool) (*TokenResponse, error) {
	access, exp, err := t.issueAccessToken(auth, client)
	if err != nil {
		return nil, ServerError(err)
	}

	var rawRT string
	if client.Client.AllowsGrantType(GrantRefreshToken) {
		rawRT, err = t.mintRefreshToken(auth, client)
		if err != nil {
			return nil, ServerError(err)
		}
	}

	var idToken string
	if withIDToken && hasScope(auth.Scopes, ScopeOpenID) {
		idToken, err = t.issueIDToken(auth, client, access)
		if err != nil {
			return nil, ServerError(err)
		}
	}

	return &TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(exp).Seconds()),
		RefreshToken: rawRT,
		IDToken:      idToken,
		Scope:        JoinScopes(auth.Scopes),
	}, nil
}

func (t *TokenEndpoint) issueAccessToken(auth *repository.Authorization, client *ClientPrincipal) (string, time.Time, error) {
	return t.issueAccessTokenScoped(auth, client, auth.Scopes)
}

func (t *TokenEndpoint) issueAccessTokenScoped(auth *repository.Authorization, client *ClientPrincipal, scopes []string) (string, time.Time, error) {
	std := map[string]any{
		"scope":     JoinScopes(scopes),
		"scp":       scopes,
		"client_id": client.Client.ClientID,
	}
	access, exp, err := t.signer.IssueAccess(auth.Principal, client.Client.ClientID, std, nil, client.Client.AccessTokenTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	auth.PutToken(repository.KindAccessToken, &repository.Token{
		Value:     access,
		IssuedAt:  time.Now(),
		ExpiresAt: exp,
	})
	return access, exp, nil
}

func (t *TokenEndpoint) mintRefreshToken(auth *repository.Authorization, client *ClientPrincipal) (string, error) {
	rawRT, err := tokens.GenerateOpaqueToken(t.refreshBytes)
	if err != nil {
		return "", err
	}
	ttl := client.Client.RefreshTokenTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	now := time.Now()
	auth.PutToken(repository.KindRefreshToken, &repository.Token{
		Value:     rawRT,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	return rawRT, nil
}

func (t *TokenEndpoint) issueIDToken(auth *repository.Authorization, client *ClientPrincipal, access string) (string, error) {
	std := map[string]any{
		"at_hash": atHash(access),
		"azp":     client.Client.ClientID,
	}
	extra := map[string]any{}
	if nonce := auth.Attribute("nonce"); nonce != "" {
		extra["nonce"] = nonce
	}
	idToken, exp, err := t.signer.IssueIDToken(auth.Principal, client.Client.ClientID, std, extra, client.Client.AccessTokenTTL)
	if err != nil {
		return "", err
	}
	// The record is kept on the aggregate but never indexed for lookup.
	auth.PutToken(repository.KindIDToken, &repository.Token{
		Value:     idToken,
		IssuedAt:  time.Now(),
		ExpiresAt: exp,
	})
	return idToken, nil
}

// atHash computes at_hash = base64url(left-most 128 bits of SHA-256(access)).
func atHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func scopeSubset(requested, authorized []string) bool {
	for _, s := range requested {
		found := false
		for _, a := range authorized {
			if s == a {
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
