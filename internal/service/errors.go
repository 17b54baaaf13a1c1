// Package service provides the business logic of the Meridian Bank back
// office. Business rule violations surface as domain errors; the sentinels
// here cover input validation and infrastructure faults.
package service

import "errors"

// Common service errors.
var (
	// ErrInvalidUsername indicates a username outside the 3-255 character range.
	ErrInvalidUsername = errors.New("invalid username: must be 3-255 characters")

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword indicates a password shorter than 8 characters.
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 characters")

	// ErrInvalidRole indicates an unknown user role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInternalError wraps unexpected infrastructure failures.
	ErrInternalError = errors.New("internal server error")
)
