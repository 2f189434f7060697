package oclient

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParameter indicates a required request parameter is empty.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrInvalidState indicates the state parameter could not be decoded.
	ErrInvalidState = errors.New("invalid state parameter")

	// ErrStateMismatch indicates the returned state does not match the stored one.
	ErrStateMismatch = errors.New("state does not match")

	// ErrNoCredentials indicates there is no credential waiting for pickup,
	// either because the flow never completed or it was already consumed.
	ErrNoCredentials = errors.New("no credentials found")

	// ErrMissingRefreshToken indicates a refresh was requested without a refresh token.
	ErrMissingRefreshToken = errors.New("credential has no refresh token")

	// ErrIntegrationNotFound indicates no OAuth app settings exist for the provider.
	ErrIntegrationNotFound = errors.New("integration not found")
)

// AuthorizationError is reported by the provider on the callback, usually
// because the user denied access.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return "Authorization failed"
	}
	return e.Description
}

// ProviderError is a non-success response from a provider endpoint.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.Status, e.Body)
}

// IsClientError reports whether err was caused by the caller's request rather
// than by the provider or infrastructure.
func IsClientError(err error) bool {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return true
	}
	return errors.Is(err, ErrMissingParameter) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateMismatch) ||
		errors.Is(err, ErrNoCredentials) ||
		errors.Is(err, ErrMissingRefreshToken)
}
