// Package auth provides bearer-token authentication and access policy
// decisions for the Meridian Bank API.
package auth

import "errors"

// Authentication and authorization errors.
var (
	// ErrMissingAuthHeader indicates no Authorization header was sent.
	ErrMissingAuthHeader = errors.New("missing authorization header")

	// ErrInvalidAuthHeader indicates the Authorization header is malformed.
	ErrInvalidAuthHeader = errors.New("invalid authorization header")

	// ErrInvalidToken indicates the token failed signature or claims validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrUnauthenticated indicates no principal is attached to the request.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden indicates the caller lacks permission for the resource.
	ErrForbidden = errors.New("access denied")
)
