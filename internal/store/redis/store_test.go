package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleAuthorization() *repository.Authorization {
	now := time.Now()
	a := &repository.Authorization{
		ID:        "auth-1",
		ClientID:  "web-app",
		Principal: "user-1",
		GrantType: "authorization_code",
		Scopes:    []string{"openid", "message.read"},
	}
	a.PutToken(repository.KindAccessToken, &repository.Token{
		Value:     "access-value",
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	})
	a.PutToken(repository.KindRefreshToken, &repository.Token{
		Value:     "refresh-value",
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	})
	a.PutToken(repository.KindIDToken, &repository.Token{
		Value:     "idtoken-value",
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	})
	return a
}

func TestSaveAndFindByToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	got, err := s.FindByToken(ctx, "refresh-value", repository.KindRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "auth-1", got.ID)

	got, err = s.FindByToken(ctx, "access-value", "")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Principal)

	_, err = s.FindByToken(ctx, "no-such-value", "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIDTokenNeverSearchable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	_, err := s.FindByToken(ctx, "idtoken-value", repository.KindIDToken)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.FindByToken(ctx, "idtoken-value", "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	require.NoError(t, s.ConsumeToken(ctx, "auth-1", repository.KindRefreshToken, "refresh-value"))
	require.ErrorIs(t, s.ConsumeToken(ctx, "auth-1", repository.KindRefreshToken, "refresh-value"), repository.ErrTokenConsumed)

	require.ErrorIs(t, s.ConsumeToken(ctx, "auth-1", repository.KindRefreshToken, ""), repository.ErrInvalidInput)
	require.ErrorIs(t, s.ConsumeToken(ctx, "ghost", repository.KindRefreshToken, "refresh-value"), repository.ErrNotFound)
	require.ErrorIs(t, s.ConsumeToken(ctx, "auth-1", repository.KindDeviceCode, "refresh-value"), repository.ErrNotFound)
}

func TestConsumeTokenAcrossRotations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := sampleAuthorization()
	require.NoError(t, s.Save(ctx, a))

	// first rotation: consume the old value, save the replacement
	require.NoError(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-value"))
	a.PutToken(repository.KindRefreshToken, &repository.Token{
		Value:     "refresh-rotated",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, s.Save(ctx, a))

	// the replayed old value stays spent
	require.ErrorIs(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-value"), repository.ErrTokenConsumed)

	// the replacement starts with a clean marker and rotates again
	require.NoError(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-rotated"))
	a.PutToken(repository.KindRefreshToken, &repository.Token{
		Value:     "refresh-rotated-2",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, s.Save(ctx, a))
	require.NoError(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-rotated-2"))
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	require.NoError(t, s.Delete(ctx, "auth-1"))
	_, err := s.FindByID(ctx, "auth-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.FindByToken(ctx, "access-value", "")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "auth-1"))
}