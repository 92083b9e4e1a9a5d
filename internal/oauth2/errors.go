package oauth2

import (
	"fmt"
	"net/http"
)

// RFC 6749 / RFC 8628 error codes.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeUnauthorizedClient   = "unauthorized_client"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeInvalidScope         = "invalid_scope"
	CodeAccessDenied         = "access_denied"
	CodeAuthorizationPending = "authorization_pending"
	CodeSlowDown             = "slow_down"
	CodeExpiredToken         = "expired_token"
	CodeServerError          = "server_error"

	CodeUnsupportedResponseType = "unsupported_response_type"
)

// Error is a protocol error carried from the core to the boundary, where it
// is serialized as the RFC error JSON. Terminal for the current request.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
	cause       error
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// Unwrap exposes the underlying cause (store/signer failures).
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches protocol errors by code, so errors.Is works against the
// sentinel constructors' results.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// InvalidRequest names the malformed, missing or duplicated parameter.
func InvalidRequest(parameter string) *Error {
	return &Error{
		Code:        CodeInvalidRequest,
		Description: fmt.Sprintf("OAuth 2.0 parameter: %s", parameter),
		Status:      http.StatusBadRequest,
	}
}

// InvalidClient reports absent or failed client authentication.
func InvalidClient() *Error {
	return &Error{Code: CodeInvalidClient, Status: http.StatusUnauthorized}
}

// InvalidGrant reports an invalid, expired, consumed or foreign code/token.
func InvalidGrant(description string) *Error {
	return &Error{Code: CodeInvalidGrant, Description: description, Status: http.StatusBadRequest}
}

// UnauthorizedClient reports a grant type the client is not registered for.
func UnauthorizedClient() *Error {
	return &Error{Code: CodeUnauthorizedClient, Status: http.StatusBadRequest}
}

// UnsupportedGrantType reports an unrecognized grant_type value.
func UnsupportedGrantType() *Error {
	return &Error{Code: CodeUnsupportedGrantType, Status: http.StatusBadRequest}
}

// InvalidScope reports a requested scope outside the allowed/authorized set.
func InvalidScope() *Error {
	return &Error{Code: CodeInvalidScope, Status: http.StatusBadRequest}
}

// UnsupportedResponseType reports a response_type other than "code".
func UnsupportedResponseType() *Error {
	return &Error{Code: CodeUnsupportedResponseType, Status: http.StatusBadRequest}
}

// AccessDenied reports a rejected authorization or consent.
func AccessDenied() *Error {
	return &Error{Code: CodeAccessDenied, Status: http.StatusBadRequest}
}

// AuthorizationPending tells a polling device client to keep waiting.
func AuthorizationPending() *Error {
	return &Error{Code: CodeAuthorizationPending, Status: http.StatusBadRequest}
}

// SlowDown tells a polling device client to back off.
func SlowDown() *Error {
	return &Error{Code: CodeSlowDown, Status: http.StatusBadRequest}
}

// ExpiredToken reports an expired device code.
func ExpiredToken() *Error {
	return &Error{Code: CodeExpiredToken, Status: http.StatusBadRequest}
}

// ServerError wraps an unexpected store/signer failure. The cause is kept
// for logs and never serialized to the client.
func ServerError(cause error) *Error {
	return &Error{Code: CodeServerError, Status: http.StatusInternalServerError, cause: cause}
}

// AsError coerces any error into a protocol error, defaulting unknown
// failures to server_error so nothing internal leaks to the response.
func AsError(err error) *Error {
	if oe, ok := err.(*Error); ok {
		return oe
	}
	return ServerError(err)
}
