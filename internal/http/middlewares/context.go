package middlewares

import (
	"context"

	"github.com/dropDatabas3/authgate/internal/oauth2"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxClientKey    ctxKey = "client"
	ctxPrincipalKey ctxKey = "principal"
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, rid)
}

// GetRequestID returns the request id, empty if the middleware did not run.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClient injects the authenticated OAuth client.
func WithClient(ctx context.Context, cp *oauth2.ClientPrincipal) context.Context {
	return context.WithValue(ctx, ctxClientKey, cp)
}

// GetClient returns the authenticated OAuth client, nil when absent.
func GetClient(ctx context.Context) *oauth2.ClientPrincipal {
	if v, ok := ctx.Value(ctxClientKey).(*oauth2.ClientPrincipal); ok {
		return v
	}
	return nil
}

// WithPrincipal injects the authenticated end-user subject.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, principal)
}

// GetPrincipal returns the authenticated end-user subject, empty when absent.
func GetPrincipal(ctx context.Context) string {
	if v, ok := ctx.Value(ctxPrincipalKey).(string); ok {
		return v
	}
	return ""
}
