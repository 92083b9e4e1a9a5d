package oauth2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/store/memory"
)

func consentClient() *repository.RegisteredClient {
	return &repository.RegisteredClient{
		ID:       "web-app",
		ClientID: "web-app",
		Scopes:   []string{"openid", "message.read", "message.write"},
	}
}

func TestConsentManagerSaveFiltersScopes(t *testing.T) {
	m := NewConsentManager(memory.NewConsentStore())
	ctx := context.Background()

	c, err := m.Save(ctx, consentClient(), "user-1", []string{"message.read", "admin.write"})
	require.NoError(t, err)
	require.Equal(t, []string{"message.read"}, c.Scopes, "unregistered scopes are dropped, not rejected")
}

func TestConsentManagerMergesGrants(t *testing.T) {
	m := NewConsentManager(memory.NewConsentStore())
	ctx := context.Background()

	first, err := m.Save(ctx, consentClient(), "user-1", []string{"message.read"})
	require.NoError(t, err)

	second, err := m.Save(ctx, consentClient(), "user-1", []string{"openid", "message.read"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"openid", "message.read"}, second.Scopes)
	require.Equal(t, first.GrantedAt, second.GrantedAt, "first grant time survives re-consent")
	require.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestConsentManagerFindByID(t *testing.T) {
	m := NewConsentManager(memory.NewConsentStore())
	ctx := context.Background()

	c, err := m.FindByID(ctx, "web-app", "user-1")
	require.NoError(t, err)
	require.Nil(t, c, "absent consent is nil, not an error")

	_, err = m.Save(ctx, consentClient(), "user-1", []string{"message.read"})
	require.NoError(t, err)

	c, err = m.FindByID(ctx, "web-app", "user-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.True(t, c.Covers([]string{"message.read"}))
	require.False(t, c.Covers([]string{"message.read", "message.write"}))

	// consent is per principal
	c, err = m.FindByID(ctx, "web-app", "user-2")
	require.NoError(t, err)
	require.Nil(t, c)
}
