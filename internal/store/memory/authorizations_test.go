package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

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
		Value:    "refresh-value",
		IssuedAt: now,
	})
	a.PutToken(repository.KindIDToken, &repository.Token{
		Value:     "idtoken-value",
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	})
	return a
}

func TestSaveAndFindByID(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()

	require.ErrorIs(t, s.Save(ctx, nil), repository.ErrInvalidInput)
	require.ErrorIs(t, s.Save(ctx, &repository.Authorization{}), repository.ErrInvalidInput)

	a := sampleAuthorization()
	require.NoError(t, s.Save(ctx, a))

	got, err := s.FindByID(ctx, "auth-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Principal)

	// the store hands out copies, not aliases
	got.Principal = "tampered"
	again, err := s.FindByID(ctx, "auth-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", again.Principal)

	_, err = s.FindByID(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFindByToken(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	got, err := s.FindByToken(ctx, "access-value", repository.KindAccessToken)
	require.NoError(t, err)
	require.Equal(t, "auth-1", got.ID)

	// unhinted lookup walks the searchable kinds
	got, err = s.FindByToken(ctx, "refresh-value", "")
	require.NoError(t, err)
	require.Equal(t, "auth-1", got.ID)

	_, err = s.FindByToken(ctx, "", repository.KindAccessToken)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.FindByToken(ctx, "no-such-value", "")
	require.ErrorIs(t, err, repository.ErrNotFound)

	// wrong kind for a known value misses
	_, err = s.FindByToken(ctx, "access-value", repository.KindRefreshToken)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIDTokenNeverSearchable(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()
	a := sampleAuthorization()
	require.NoError(t, s.Save(ctx, a))

	_, err := s.FindByToken(ctx, "idtoken-value", repository.KindIDToken)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.FindByToken(ctx, "idtoken-value", "")
	require.ErrorIs(t, err, repository.ErrNotFound)

	// the aggregate is still reachable through its access token and the
	// id_token record lives on it
	got, err := s.FindByToken(ctx, "access-value", "")
	require.NoError(t, err)
	kind, tk, ok := got.Token("idtoken-value")
	require.True(t, ok)
	require.Equal(t, repository.KindIDToken, kind)
	require.Equal(t, "idtoken-value", tk.Value)
}

func TestFindByTokenIgnoresStaleIndexEntries(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()
	a := sampleAuthorization()
	require.NoError(t, s.Save(ctx, a))

	// rotation: the aggregate now holds a different refresh value
	a.PutToken(repository.KindRefreshToken, &repository.Token{
		Value:    "refresh-rotated",
		IssuedAt: time.Now(),
	})
	require.NoError(t, s.Save(ctx, a))

	_, err := s.FindByToken(ctx, "refresh-value", repository.KindRefreshToken)
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := s.FindByToken(ctx, "refresh-rotated", repository.KindRefreshToken)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
}

func TestFindByTokenSkipsExpired(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()

	a := sampleAuthorization()
	a.PutToken(repository.KindAuthorizationCode, &repository.Token{
		Value:     "stale-code",
		IssuedAt:  time.Now().Add(-10 * time.Minute),
		ExpiresAt: time.Now().Add(-5 * time.Minute),
	})
	require.NoError(t, s.Save(ctx, a))

	_, err := s.FindByToken(ctx, "stale-code", repository.KindAuthorizationCode)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeToken(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	require.NoError(t, s.ConsumeToken(ctx, "auth-1", repository.KindRefreshToken, "refresh-value"))
	require.ErrorIs(t, s.ConsumeToken(ctx, "auth-1", repository.KindRefreshToken, "refresh-value"), repository.ErrTokenConsumed)

	require.ErrorIs(t, s.ConsumeToken(ctx, "auth-1", repository.KindRefreshToken, ""), repository.ErrInvalidInput)
	require.ErrorIs(t, s.ConsumeToken(ctx, "ghost", repository.KindRefreshToken, "refresh-value"), repository.ErrNotFound)
	require.ErrorIs(t, s.ConsumeToken(ctx, "auth-1", repository.KindDeviceCode, "refresh-value"), repository.ErrNotFound)
}

func TestConsumeTokenBoundToPresentedValue(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()
	a := sampleAuthorization()
	require.NoError(t, s.Save(ctx, a))

	// one refresh wins the race on the old value and saves the replacement
	require.NoError(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-value"))
	a.PutToken(repository.KindRefreshToken, &repository.Token{
		Value:    "refresh-rotated",
		IssuedAt: time.Now(),
	})
	require.NoError(t, s.Save(ctx, a))

	// a loser still holding the old value must not consume the replacement
	require.ErrorIs(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-value"), repository.ErrTokenConsumed)

	// the replacement itself is live and consumable exactly once
	require.NoError(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-rotated"))
	require.ErrorIs(t, s.ConsumeToken(ctx, a.ID, repository.KindRefreshToken, "refresh-rotated"), repository.ErrTokenConsumed)
}

func TestConsumeTokenConcurrent(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	const n = 32
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.ConsumeToken(ctx, "auth-1", repository.KindRefreshToken, "refresh-value")
		}()
	}
	wg.Wait()
	close(results)

	var ok, spent int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrTokenConsumed):
			spent++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok, "exactly one concurrent consume wins")
	require.Equal(t, n-1, spent)
}

func TestDelete(t *testing.T) {
	s := NewAuthorizationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleAuthorization()))

	require.NoError(t, s.Delete(ctx, "auth-1"))

	_, err := s.FindByID(ctx, "auth-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.FindByToken(ctx, "access-value", repository.KindAccessToken)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// idempotent
	require.NoError(t, s.Delete(ctx, "auth-1"))
}
