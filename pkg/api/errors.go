package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an authenticated endpoint is
	// called before a successful sign-in.
	ErrUnauthenticated = errors.New("api: not authenticated")

	// ErrSessionExpired is returned when the server rejects the current
	// session (401); the local session is cleared before returning it.
	ErrSessionExpired = errors.New("api: session expired")

	// ErrAccessRequired is returned on 418/423: the wallet is not
	// whitelisted or its access code is invalid.
	ErrAccessRequired = errors.New("api: access code required")

	// ErrNotFound is returned on 404 outside history endpoints.
	ErrNotFound = errors.New("api: not found")

	// ErrRateLimited is returned on 429.
	ErrRateLimited = errors.New("api: rate limited")

	// errNoData normalizes a history 404 to an empty page.
	errNoData = errors.New("api: no data")
)

// APIError carries any other non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %v: %v", e.Status, e.Body)
}
