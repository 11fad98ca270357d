package session

import (
	"errors"
	"fmt"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/domain"
)

type AuthErrorKind int

const (
	// AuthInvalidCredentials: the user can correct the input and retry.
	AuthInvalidCredentials AuthErrorKind = iota + 1
	// AuthNetwork: the backend could not be reached.
	AuthNetwork
	// AuthRejected: the backend refused for another reason (validation, conflict, server error).
	AuthRejected
	// AuthStorage: the credential could not be persisted locally.
	AuthStorage
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthInvalidCredentials:
		return "invalid_credentials"
	case AuthNetwork:
		return "network"
	case AuthRejected:
		return "rejected"
	case AuthStorage:
		return "storage"
	}
	return "unknown"
}

// AuthError is the structured failure of login, registration and
// external-provider login.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func classify(err error) *AuthError {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return &AuthError{Kind: AuthInvalidCredentials, Message: backend.MessageOf(err, "invalid email or password"), Err: domain.ErrInvalidCredentials}
	case errors.Is(err, domain.ErrUnavailable):
		return &AuthError{Kind: AuthNetwork, Message: "could not reach the shop, try again", Err: err}
	}
	return &AuthError{Kind: AuthRejected, Message: backend.MessageOf(err, "sign-in failed"), Err: err}
}
