package services

import "errors"

var (
	// ErrNotFound is returned when the referenced todo does not exist.
	ErrNotFound = errors.New("todo not found")
	// ErrInvalidCredentials is returned for any failed login. It does not say which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers every token verification failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionExpired is returned for a correctly signed token minted by an earlier process.
	ErrSessionExpired = errors.New("session expired")
)
