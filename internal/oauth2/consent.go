package oauth2

import (
	"context"
	"time"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// ConsentManager records and retrieves per-client-per-principal scope
// consent. The authorization step reads it to skip the interactive prompt
// when previously granted scopes already cover the request.
type ConsentManager struct {
	store repository.ConsentStore
}

// NewConsentManager creates the manager.
func NewConsentManager(store repository.ConsentStore) *ConsentManager {
	return &ConsentManager{store: store}
}

// FindByID returns the consent for (clientID, principal), nil when none
// has been recorded yet.
func (m *ConsentManager) FindByID(ctx context.Context, clientID, principal string) (*repository.Consent, error) {
	c, err := m.store.FindByID(ctx, clientID, principal)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Save upserts the consent, merging the newly approved scopes into any
// existing grant. Scopes outside the client's registered set are dropped,
// keeping the persisted record a subset of the client's allowed scopes.
func (m *ConsentManager) Save(ctx context.Context, client *repository.RegisteredClient, principal string, scopes []string) (*repository.Consent, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.consent.save"))

	granted := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if client.AllowsScope([]string{s}) {
			granted = append(granted, s)
		}
	}

	now := time.Now()
	existing, err := m.store.FindByID(ctx, client.ID, principal)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}

	c := &repository.Consent{
		ClientID:  client.ID,
		Principal: principal,
		Scopes:    granted,
		GrantedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		c.GrantedAt = existing.GrantedAt
		c.Scopes = mergeScopes(existing.Scopes, granted)
	}

	if err := m.store.Save(ctx, c); err != nil {
		return nil, err
	}

	log.Info("consent saved",
		logger.ClientID(client.ClientID),
		logger.Principal(principal),
		logger.Scope(JoinScopes(c.Scopes)),
	)
	return c, nil
}

func mergeScopes(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := map[string]bool{}
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
