package oauth2

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// ChallengeStore holds short-lived one-shot payloads: pending consent
// challenges. Take consumes the entry; a second Take for the same token
// must fail.
type ChallengeStore interface {
	Put(ctx context.Context, token string, payload []byte, ttl time.Duration) error

	// Take returns and removes the payload, or repository.ErrNotFound.
	Take(ctx context.Context, token string) ([]byte, error)
}

// AuthorizeDeps contains dependencies for the authorization endpoint.
type AuthorizeDeps struct {
	Clients        repository.ClientRegistry
	Authorizations repository.AuthorizationStore
	Consents       *ConsentManager
	Challenges     ChallengeStore

	// CodeTTL for issued authorization codes. Default 5 minutes.
	CodeTTL time.Duration

	// ConsentTTL bounds how long a consent prompt may stay open.
	// Default 10 minutes.
	ConsentTTL time.Duration
}

// AuthorizeService validates authorization requests, runs the consent
// decision and issues authorization codes. The principal arrives already
// authenticated by the upstream user-authentication collaborator.
type AuthorizeService struct {
	clients    repository.ClientRegistry
	store      repository.AuthorizationStore
	consents   *ConsentManager
	challenges ChallengeStore
	codeTTL    time.Duration
	consentTTL time.Duration
}

// NewAuthorizeService creates the service.
func NewAuthorizeService(d AuthorizeDeps) *AuthorizeService {
	codeTTL := d.CodeTTL
	if codeTTL <= 0 {
		codeTTL = 5 * time.Minute
	}
	consentTTL := d.ConsentTTL
	if consentTTL <= 0 {
		consentTTL = 10 * time.Minute
	}
	return &AuthorizeService{
		clients:    d.Clients,
		store:      d.Authorizations,
		consents:   d.Consents,
		challenges: d.Challenges,
		codeTTL:    codeTTL,
		consentTTL: consentTTL,
	}
}

// AuthorizeRequest is a validated-on-entry authorization request for the
// code flow.
type AuthorizeRequest struct {
	ResponseType        string   `json:"response_type"`
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri,omitempty"`
	Scopes              []string `json:"scopes"`
	State               string   `json:"state,omitempty"`
	Nonce               string   `json:"nonce,omitempty"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
	Principal           string   `json:"principal"`
}

// AuthorizeResult is either a redirect carrying the code, or a pending
// consent prompt identified by a one-shot challenge token.
type AuthorizeResult struct {
	RedirectURI string

	ConsentRequired bool
	ConsentToken    string
	ConsentScopes   []string
}

// Authorize validates the request, consults prior consent, and either
// issues the code immediately or opens a consent challenge.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize"))

	client, redirectURI, err := s.validate(ctx, &req)
	if err != nil {
		return nil, err
	}

	skipPrompt := false
	if !client.RequireConsent {
		consent, err := s.consents.FindByID(ctx, client.ID, req.Principal)
		if err != nil {
			return nil, ServerError(err)
		}
		skipPrompt = consent != nil && consent.Covers(req.Scopes)
	}

	if !skipPrompt {
		token, err := s.openConsentChallenge(ctx, req)
		if err != nil {
			return nil, err
		}
		return &AuthorizeResult{
			ConsentRequired: true,
			ConsentToken:    token,
			ConsentScopes:   req.Scopes,
		}, nil
	}

	loc, err := s.issueCode(ctx, client, req, redirectURI)
	if err != nil {
		return nil, err
	}
	log.Info("authorization code issued without prompt",
		logger.ClientID(client.ClientID), logger.Principal(req.Principal))
	return &AuthorizeResult{RedirectURI: loc}, nil
}

// Consent resolves a pending consent challenge. On approval the granted
// scopes are persisted and the code is issued for exactly those scopes;
// on denial the redirect carries access_denied.
func (s *AuthorizeService) Consent(ctx context.Context, consentToken string, approve bool, approvedScopes []string) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.consent"))

	raw, err := s.challenges.Take(ctx, consentToken)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, InvalidRequest("consent_token")
		}
		return nil, ServerError(err)
	}

	var req AuthorizeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Error("consent challenge corrupted", logger.Err(err))
		return nil, ServerError(err)
	}

	client, redirectURI, err := s.validate(ctx, &req)
	if err != nil {
		return nil, err
	}

	if !approve {
		loc := buildRedirect(redirectURI, map[string]string{
			"error": CodeAccessDenied,
			"state": req.State,
		})
		return &AuthorizeResult{RedirectURI: loc}, nil
	}

	if len(approvedScopes) == 0 {
		approvedScopes = req.Scopes
	}
	if !scopeSubset(approvedScopes, req.Scopes) {
		return nil, InvalidScope()
	}

	if _, err := s.consents.Save(ctx, client, req.Principal, approvedScopes); err != nil {
		return nil, ServerError(err)
	}

	req.Scopes = approvedScopes
	loc, err := s.issueCode(ctx, client, req, redirectURI)
	if err != nil {
		return nil, err
	}
	log.Info("consent approved, code issued",
		logger.ClientID(client.ClientID), logger.Principal(req.Principal),
		logger.Scope(JoinScopes(approvedScopes)))
	return &AuthorizeResult{RedirectURI: loc}, nil
}

// validate runs the RFC checks that must not redirect on failure (unknown
// client, bad redirect_uri) and the ones that would normally redirect but
// are surfaced as errors by this core (scope, response_type, PKCE).
func (s *AuthorizeService) validate(ctx context.Context, req *AuthorizeRequest) (*repository.RegisteredClient, string, error) {
	if req.ClientID == "" {
		return nil, "", InvalidRequest(ParamClientID)
	}
	client, err := s.clients.FindByClientID(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", InvalidRequest(ParamClientID)
		}
		return nil, "", ServerError(err)
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		if len(client.RedirectURIs) != 1 {
			return nil, "", InvalidRequest(ParamRedirectURI)
		}
		redirectURI = client.RedirectURIs[0]
	} else if !client.AllowsRedirectURI(redirectURI) {
		return nil, "", InvalidRequest(ParamRedirectURI)
	}

	if req.ResponseType != "code" {
		return nil, "", UnsupportedResponseType()
	}
	if !client.AllowsGrantType(GrantAuthorizationCode) {
		return nil, "", UnauthorizedClient()
	}
	if !client.AllowsScope(req.Scopes) {
		return nil, "", InvalidScope()
	}

	// Public clients must use PKCE S256.
	if client.AllowsAuthMethod(repository.AuthMethodNone) && client.SecretHash == "" {
		if req.CodeChallenge == "" {
			return nil, "", InvalidRequest(ParamCodeChallenge)
		}
	}
	if req.CodeChallenge != "" && req.CodeChallengeMethod != "S256" {
		return nil, "", InvalidRequest(ParamCodeChallengeMethod)
	}

	if req.Principal == "" {
		return nil, "", InvalidRequest("principal")
	}
	return client, redirectURI, nil
}

func (s *AuthorizeService) openConsentChallenge(ctx context.Context, req AuthorizeRequest) (string, error) {
	token, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", ServerError(err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", ServerError(err)
	}
	if err := s.challenges.Put(ctx, token, payload, s.consentTTL); err != nil {
		return "", ServerError(err)
	}
	return token, nil
}

// issueCode creates the Authorization aggregate with its code token and
// returns the client redirect carrying code and state.
func (s *AuthorizeService) issueCode(ctx context.Context, client *repository.RegisteredClient, req AuthorizeRequest, redirectURI string) (string, error) {
	code, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", ServerError(err)
	}

	ttl := client.CodeTTL
	if ttl <= 0 {
		ttl = s.codeTTL
	}
	now := time.Now()

	auth := &repository.Authorization{
		ID:        uuid.NewString(),
		ClientID:  client.ID,
		Principal: req.Principal,
		GrantType: GrantAuthorizationCode,
		Scopes:    req.Scopes,
	}
	auth.PutToken(repository.KindAuthorizationCode, &repository.Token{
		Value:     code,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	// The token request must repeat redirect_uri only when the
	// authorization request carried it explicitly.
	if req.RedirectURI != "" {
		auth.SetAttribute("redirect_uri", req.RedirectURI)
	}
	if req.Nonce != "" {
		auth.SetAttribute("nonce", req.Nonce)
	}
	if req.CodeChallenge != "" {
		auth.SetAttribute("code_challenge", req.CodeChallenge)
		auth.SetAttribute("code_challenge_method", req.CodeChallengeMethod)
	}

	if err := s.store.Save(ctx, auth); err != nil {
		return "", ServerError(err)
	}

	return buildRedirect(redirectURI, map[string]string{
		"code":  code,
		"state": req.State,
	}), nil
}

func buildRedirect(base string, params map[string]string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
