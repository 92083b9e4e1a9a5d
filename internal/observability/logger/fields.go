package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP fields.

// RequestID is the per-request correlation id.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method is the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path is the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status is the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration of the request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Domain fields.

// ClientID is the OAuth client identifier.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// Principal is the resource-owner name.
func Principal(v string) zap.Field {
	return zap.String("principal", v)
}

// GrantType is the OAuth grant type being processed.
func GrantType(v string) zap.Field {
	return zap.String("grant_type", v)
}

// AuthorizationID is the internal id of an Authorization aggregate.
func AuthorizationID(v string) zap.Field {
	return zap.String("authorization_id", v)
}

// Scope is the space-delimited scope string.
func Scope(v string) zap.Field {
	return zap.String("scope", v)
}

// System fields.

// Op is the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer is the architectural layer (controller, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err wraps an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// String is a generic string field.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Any is a generic field for arbitrary values.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
