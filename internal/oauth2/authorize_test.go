package oauth2

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/store/memory"
)

func newAuthorizeService(t *testing.T) (*AuthorizeService, *memory.AuthorizationStore, *memory.ConsentStore) {
	t.Helper()
	clients := memory.NewClientRegistry()
	require.NoError(t, clients.Save(context.Background(), &repository.RegisteredClient{
		ID:           "web-app",
		ClientID:     "web-app",
		SecretHash:   "x",
		AuthMethods:  []string{repository.AuthMethodBasic},
		GrantTypes:   []string{GrantAuthorizationCode, GrantRefreshToken},
		RedirectURIs: []string{"https://app.example/cb"},
		Scopes:       []string{"openid", "message.read", "message.write"},
	}))
	require.NoError(t, clients.Save(context.Background(), &repository.RegisteredClient{
		ID:           "spa",
		ClientID:     "spa",
		AuthMethods:  []string{repository.AuthMethodNone},
		GrantTypes:   []string{GrantAuthorizationCode},
		RedirectURIs: []string{"https://spa.example/cb"},
		Scopes:       []string{"message.read"},
	}))

	auths := memory.NewAuthorizationStore()
	consents := memory.NewConsentStore()
	svc := NewAuthorizeService(AuthorizeDeps{
		Clients:        clients,
		Authorizations: auths,
		Consents:       NewConsentManager(consents),
		Challenges:     memory.NewChallengeStore(),
	})
	return svc, auths, consents
}

func codeRequest() AuthorizeRequest {
	return AuthorizeRequest{
		ResponseType: "code",
		ClientID:     "web-app",
		RedirectURI:  "https://app.example/cb",
		Scopes:       []string{"openid", "message.read"},
		State:        "xyz",
		Principal:    "user-1",
	}
}

func TestAuthorizeValidation(t *testing.T) {
	svc, _, _ := newAuthorizeService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*AuthorizeRequest)
		code   string
	}{
		{"unknown client", func(r *AuthorizeRequest) { r.ClientID = "ghost" }, CodeInvalidRequest},
		{"missing client_id", func(r *AuthorizeRequest) { r.ClientID = "" }, CodeInvalidRequest},
		{"unregistered redirect", func(r *AuthorizeRequest) { r.RedirectURI = "https://evil.example/cb" }, CodeInvalidRequest},
		{"wrong response_type", func(r *AuthorizeRequest) { r.ResponseType = "token" }, CodeUnsupportedResponseType},
		{"scope outside registration", func(r *AuthorizeRequest) { r.Scopes = []string{"admin.write"} }, CodeInvalidScope},
		{"challenge method not S256", func(r *AuthorizeRequest) {
			r.CodeChallenge = "abc"
			r.CodeChallengeMethod = "plain"
		}, CodeInvalidRequest},
		{"missing principal", func(r *AuthorizeRequest) { r.Principal = "" }, CodeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := codeRequest()
			tc.mutate(&req)
			_, err := svc.Authorize(ctx, req)
			require.Error(t, err)
			require.Equal(t, tc.code, AsError(err).Code)
		})
	}
}

func TestAuthorizePublicClientRequiresPKCE(t *testing.T) {
	svc, _, _ := newAuthorizeService(t)

	req := AuthorizeRequest{
		ResponseType: "code",
		ClientID:     "spa",
		Scopes:       []string{"message.read"},
		Principal:    "user-1",
	}
	_, err := svc.Authorize(context.Background(), req)
	require.Error(t, err)
	oe := AsError(err)
	require.Equal(t, CodeInvalidRequest, oe.Code)
	require.Contains(t, oe.Description, ParamCodeChallenge)
}

func TestAuthorizeOpensConsentChallenge(t *testing.T) {
	svc, _, _ := newAuthorizeService(t)

	res, err := svc.Authorize(context.Background(), codeRequest())
	require.NoError(t, err)
	require.True(t, res.ConsentRequired)
	require.NotEmpty(t, res.ConsentToken)
	require.Equal(t, []string{"openid", "message.read"}, res.ConsentScopes)
	require.Empty(t, res.RedirectURI)
}

func TestConsentApproveIssuesCode(t *testing.T) {
	svc, auths, consents := newAuthorizeService(t)
	ctx := context.Background()

	res, err := svc.Authorize(ctx, codeRequest())
	require.NoError(t, err)

	out, err := svc.Consent(ctx, res.ConsentToken, true, nil)
	require.NoError(t, err)
	require.False(t, out.ConsentRequired)

	loc, err := url.Parse(out.RedirectURI)
	require.NoError(t, err)
	require.Equal(t, "app.example", loc.Host)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	require.Equal(t, "xyz", loc.Query().Get("state"))

	auth, err := auths.FindByToken(ctx, code, repository.KindAuthorizationCode)
	require.NoError(t, err)
	require.Equal(t, "user-1", auth.Principal)
	require.Equal(t, []string{"openid", "message.read"}, auth.Scopes)
	require.Equal(t, "https://app.example/cb", auth.Attribute("redirect_uri"))

	// approval persisted the consent for exactly the granted scopes
	consent, err := consents.FindByID(ctx, "web-app", "user-1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"openid", "message.read"}, consent.Scopes)
}

func TestConsentTokenIsOneShot(t *testing.T) {
	svc, _, _ := newAuthorizeService(t)
	ctx := context.Background()

	res, err := svc.Authorize(ctx, codeRequest())
	require.NoError(t, err)

	_, err = svc.Consent(ctx, res.ConsentToken, true, nil)
	require.NoError(t, err)

	_, err = svc.Consent(ctx, res.ConsentToken, true, nil)
	require.Error(t, err)
	require.Equal(t, CodeInvalidRequest, AsError(err).Code)
}

func TestConsentPartialScopes(t *testing.T) {
	svc, auths, _ := newAuthorizeService(t)
	ctx := context.Background()

	res, err := svc.Authorize(ctx, codeRequest())
	require.NoError(t, err)

	out, err := svc.Consent(ctx, res.ConsentToken, true, []string{"message.read"})
	require.NoError(t, err)

	loc, _ := url.Parse(out.RedirectURI)
	auth, err := auths.FindByToken(ctx, loc.Query().Get("code"), repository.KindAuthorizationCode)
	require.NoError(t, err)
	require.Equal(t, []string{"message.read"}, auth.Scopes)
}

func TestConsentApprovedScopesMustBeSubset(t *testing.T) {
	svc, _, _ := newAuthorizeService(t)
	ctx := context.Background()

	res, err := svc.Authorize(ctx, codeRequest())
	require.NoError(t, err)

	_, err = svc.Consent(ctx, res.ConsentToken, true, []string{"message.write"})
	require.Error(t, err)
	require.Equal(t, CodeInvalidScope, AsError(err).Code)
}

func TestConsentDenialRedirectsWithError(t *testing.T) {
	svc, _, _ := newAuthorizeService(t)
	ctx := context.Background()

	res, err := svc.Authorize(ctx, codeRequest())
	require.NoError(t, err)

	out, err := svc.Consent(ctx, res.ConsentToken, false, nil)
	require.NoError(t, err)

	loc, err := url.Parse(out.RedirectURI)
	require.NoError(t, err)
	require.Equal(t, CodeAccessDenied, loc.Query().Get("error"))
	require.Equal(t, "xyz", loc.Query().Get("state"))
	require.Empty(t, loc.Query().Get("code"))
}

func TestAuthorizeSkipsPromptAfterConsent(t *testing.T) {
	svc, _, _ := newAuthorizeService(t)
	ctx := context.Background()

	res, err := svc.Authorize(ctx, codeRequest())
	require.NoError(t, err)
	_, err = svc.Consent(ctx, res.ConsentToken, true, nil)
	require.NoError(t, err)

	// the recorded consent covers the same scopes: straight redirect
	again, err := svc.Authorize(ctx, codeRequest())
	require.NoError(t, err)
	require.False(t, again.ConsentRequired)
	require.NotEmpty(t, again.RedirectURI)

	// a wider request prompts again
	wider := codeRequest()
	wider.Scopes = []string{"openid", "message.read", "message.write"}
	res2, err := svc.Authorize(ctx, wider)
	require.NoError(t, err)
	require.True(t, res2.ConsentRequired)
}

func TestAuthorizeDefaultsSingleRedirectURI(t *testing.T) {
	svc, auths, _ := newAuthorizeService(t)
	ctx := context.Background()

	req := codeRequest()
	req.RedirectURI = ""
	res, err := svc.Authorize(ctx, req)
	require.NoError(t, err)
	out, err := svc.Consent(ctx, res.ConsentToken, true, nil)
	require.NoError(t, err)

	loc, _ := url.Parse(out.RedirectURI)
	require.Equal(t, "app.example", loc.Host)

	// token request must not be forced to repeat a redirect_uri that the
	// authorization request never carried
	auth, err := auths.FindByToken(ctx, loc.Query().Get("code"), repository.KindAuthorizationCode)
	require.NoError(t, err)
	require.Empty(t, auth.Attribute("redirect_uri"))
}
