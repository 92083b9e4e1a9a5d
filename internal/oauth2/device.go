package oauth2

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// DeviceAuthorizationDeps contains dependencies for the RFC 8628 device
// authorization endpoint.
type DeviceAuthorizationDeps struct {
	Authorizations  repository.AuthorizationStore
	Consents        *ConsentManager
	VerificationURI string

	// DeviceCodeTTL default when the client has none configured. Default 10m.
	DeviceCodeTTL time.Duration

	// PollInterval advertised to the device. Default 5 seconds.
	PollInterval time.Duration
}

// DeviceAuthorizationService issues device/user code pairs and resolves the
// user's verification decision. The device_code token starts in a pending
// state that the token endpoint reports as authorization_pending until the
// user approves or denies.
type DeviceAuthorizationService struct {
	store           repository.AuthorizationStore
	consents        *ConsentManager
	verificationURI string
	deviceTTL       time.Duration
	pollInterval    time.Duration
}

// NewDeviceAuthorizationService creates the service.
func NewDeviceAuthorizationService(d DeviceAuthorizationDeps) *DeviceAuthorizationService {
	ttl := d.DeviceCodeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	pi := d.PollInterval
	if pi <= 0 {
		pi = 5 * time.Second
	}
	return &DeviceAuthorizationService{
		store:           d.Authorizations,
		consents:        d.Consents,
		verificationURI: d.VerificationURI,
		deviceTTL:       ttl,
		pollInterval:    pi,
	}
}

// DeviceAuthorizationResponse is the RFC 8628 §3.2 success body.
type DeviceAuthorizationResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
}

// Authorize starts a device flow for the authenticated client.
func (s *DeviceAuthorizationService) Authorize(ctx context.Context, client *ClientPrincipal, scopes []string) (*DeviceAuthorizationResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.device.authorize"))

	if client == nil || client.Client == nil {
		return nil, InvalidClient()
	}
	if !client.Client.AllowsGrantType(GrantDeviceCode) {
		return nil, UnauthorizedClient()
	}
	if len(scopes) > 0 && !client.Client.AllowsScope(scopes) {
		return nil, InvalidScope()
	}
	if len(scopes) == 0 {
		scopes = client.Client.Scopes
	}

	deviceCode, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, ServerError(err)
	}
	userCode, err := tokens.GenerateUserCode()
	if err != nil {
		return nil, ServerError(err)
	}

	ttl := client.Client.DeviceCodeTTL
	if ttl <= 0 {
		ttl = s.deviceTTL
	}
	now := time.Now()
	interval := int64(s.pollInterval.Seconds())

	auth := &repository.Authorization{
		ID:        uuid.NewString(),
		ClientID:  client.Client.ID,
		GrantType: GrantDeviceCode,
		Scopes:    scopes,
	}
	dc := &repository.Token{
		Value:     deviceCode,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	dc.SetMeta(repository.MetaPending, true)
	dc.SetMeta(repository.MetaInterval, interval)
	auth.PutToken(repository.KindDeviceCode, dc)
	auth.PutToken(repository.KindUserCode, &repository.Token{
		Value:     userCode,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})

	if err := s.store.Save(ctx, auth); err != nil {
		return nil, ServerError(err)
	}

	log.Info("device authorization started",
		logger.ClientID(client.Client.ClientID),
		logger.AuthorizationID(auth.ID),
	)
	return &DeviceAuthorizationResponse{
		DeviceCode:      deviceCode,
		UserCode:        userCode,
		VerificationURI: s.verificationURI,
		ExpiresIn:       int64(ttl.Seconds()),
		Interval:        interval,
	}, nil
}

// Verify resolves the user's decision for a presented user code. The user
// code is one-shot; the device code flips from pending to approved (with
// the principal attached) or to denied.
func (s *DeviceAuthorizationService) Verify(ctx context.Context, userCode, principal string, approve bool) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.device.verify"))

	if principal == "" {
		return InvalidRequest("principal")
	}
	auth, err := s.store.FindByToken(ctx, userCode, repository.KindUserCode)
	if err != nil {
		if repository.IsNotFound(err) {
			return InvalidGrant("")
		}
		return ServerError(err)
	}

	now := time.Now()
	uc := auth.TokenOfKind(repository.KindUserCode)
	if uc == nil || uc.Expired(now) {
		return ExpiredToken()
	}

	if err := s.store.ConsumeToken(ctx, auth.ID, repository.KindUserCode, userCode); err != nil {
		if repository.IsNotFound(err) {
			return InvalidGrant("")
		}
		if errors.Is(err, repository.ErrTokenConsumed) {
			return InvalidGrant("")
		}
		return ServerError(err)
	}
	uc.SetMeta(repository.MetaConsumed, true)

	dc := auth.TokenOfKind(repository.KindDeviceCode)
	if dc == nil {
		return InvalidGrant("")
	}
	auth.Principal = principal
	if approve {
		dc.SetMeta(repository.MetaPending, false)
	} else {
		dc.SetMeta(repository.MetaPending, false)
		dc.SetMeta(repository.MetaDenied, true)
	}

	if err := s.store.Save(ctx, auth); err != nil {
		return ServerError(err)
	}

	log.Info("device authorization resolved",
		logger.AuthorizationID(auth.ID),
		logger.Principal(principal),
		logger.Any("approved", approve),
	)
	return nil
}
