package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint was hit.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates the backend rejected the bearer credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation marks input rejected before or by the backend.
	ErrValidation = errors.New("validation failed")
	// ErrUnavailable wraps transport failures talking to the backend.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrStaleVersion is returned when a cart mutation targets an outdated version.
	ErrStaleVersion = errors.New("stale cart version")
	// ErrEmptyCart is returned when checking out with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotReady is returned by the cart before the session resolved an identity.
	ErrNotReady = errors.New("identity not resolved")
	// ErrInProgress is returned when an order submission is already in flight.
	ErrInProgress = errors.New("submission in progress")
)
