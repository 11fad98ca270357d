// Package session owns the device's identity: the bearer credential, the
// cached user profile and the transitions between guest and signed-in.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/events"
	"bahri-storefront/internal/storage"
	"go.uber.org/zap"
)

type authAPI interface {
	Login(ctx context.Context, email, password string) (*backend.AuthResponse, error)
	GoogleLogin(ctx context.Context, credential string) (*backend.AuthResponse, error)
	Register(ctx context.Context, in domain.Registration) (*backend.AuthResponse, error)
	Profile(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, in domain.ProfileFields) (*domain.User, error)
}

// Redirector sends the user to the login view after the credential expired.
type Redirector interface {
	RedirectToLogin(ctx context.Context)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(ctx context.Context)

func (f RedirectFunc) RedirectToLogin(ctx context.Context) { f(ctx) }

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRedirector(r Redirector) Option {
	return func(s *Store) {
		if r != nil {
			s.redirect = r
		}
	}
}

// WithClock overrides the clock used to detect expired credentials.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is safe for concurrent use. Persistence happens before the in-memory
// state changes, so a failed write leaves the session as it was.
type Store struct {
	api      authAPI
	local    *storage.Local
	bus      *events.Bus
	redirect Redirector
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	identity domain.Identity
	token    string
	ready    bool
	// ops serializes identity transitions so login, logout and expiry
	// never interleave their persistence.
	ops sync.Mutex
}

func New(api authAPI, local *storage.Local, bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		api:      api,
		local:    local,
		bus:      bus,
		redirect: RedirectFunc(func(context.Context) {}),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize resolves the identity from persisted storage. A session is
// restored only when both the credential and the user profile are present
// and the credential has not visibly expired. Calling it again after
// resolution returns the current identity without touching storage.
func (s *Store) Initialize(ctx context.Context) (domain.Identity, error) {
	s.ops.Lock()
	if id, ready := s.Current(); ready {
		s.ops.Unlock()
		return id, nil
	}

	identity, token, err := s.restore(ctx)
	if err != nil {
		s.logger.Warn("restore session", zap.String("device", s.local.Namespace()), zap.Error(err))
		identity, token = domain.Guest(), ""
	}

	s.mu.Lock()
	s.identity = identity
	s.token = token
	s.ready = true
	s.mu.Unlock()
	s.ops.Unlock()

	s.bus.Publish(events.IdentityChanged)
	return identity, err
}

func (s *Store) restore(ctx context.Context) (domain.Identity, string, error) {
	token, hasToken, err := s.local.GetString(ctx, storage.KeyToken)
	if err != nil {
		return domain.Guest(), "", err
	}
	var user domain.User
	hasUser, err := s.local.GetJSON(ctx, storage.KeyUser, &user)
	if err != nil {
		// A corrupt profile cannot be trusted; drop the whole session.
		s.logger.Warn("discard unreadable profile", zap.String("device", s.local.Namespace()), zap.Error(err))
		return domain.Guest(), "", s.local.Remove(ctx, storage.KeyToken, storage.KeyRefresh, storage.KeyUser)
	}
	if !hasToken || !hasUser || strings.TrimSpace(token) == "" {
		return domain.Guest(), "", nil
	}
	if exp, _, ok := credentialClaims(token); ok && !exp.IsZero() && !exp.After(s.now()) {
		s.logger.Info("stored credential expired", zap.String("device", s.local.Namespace()), zap.Time("exp", exp))
		return domain.Guest(), "", s.local.Remove(ctx, storage.KeyToken, storage.KeyRefresh, storage.KeyUser)
	}
	return domain.Authenticated(user), token, nil
}

// Current returns the identity and whether it has been resolved yet.
func (s *Store) Current() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.ready
}

// Identity returns the current identity, Guest before resolution.
func (s *Store) Identity() domain.Identity {
	id, _ := s.Current()
	return id
}

// Credential implements backend.Authorizer.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Login exchanges email and password for a session.
func (s *Store) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, &AuthError{Kind: AuthInvalidCredentials, Message: "email and password are required", Err: domain.ErrValidation}
	}
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Info("login failed", zap.String("device", s.local.Namespace()), zap.Error(err))
		return domain.User{}, classify(err)
	}
	return s.establish(ctx, resp)
}

// LoginWithGoogle sends the provider credential to the backend and
// establishes the returned session.
func (s *Store) LoginWithGoogle(ctx context.Context, credential string) (domain.User, error) {
	if strings.TrimSpace(credential) == "" {
		return domain.User{}, &AuthError{Kind: AuthRejected, Message: "missing provider credential", Err: domain.ErrValidation}
	}
	resp, err := s.api.GoogleLogin(ctx, credential)
	if err != nil {
		s.logger.Info("provider login failed", zap.String("device", s.local.Namespace()), zap.Error(err))
		return domain.User{}, classify(err)
	}
	return s.establish(ctx, resp)
}

// LoginWithExternalProvider installs a session obtained out of band.
func (s *Store) LoginWithExternalProvider(ctx context.Context, user domain.User, tokens domain.Tokens) error {
	_, err := s.establish(ctx, &backend.AuthResponse{User: user, Tokens: tokens})
	return err
}

// Register creates the account and signs it in.
func (s *Store) Register(ctx context.Context, in domain.Registration) (domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return domain.User{}, &AuthError{Kind: AuthRejected, Message: "email and password are required", Err: domain.ErrValidation}
	}
	resp, err := s.api.Register(ctx, in)
	if err != nil {
		s.logger.Info("registration failed", zap.String("device", s.local.Namespace()), zap.Error(err))
		ae := classify(err)
		if ae.Kind == AuthInvalidCredentials {
			ae.Kind = AuthRejected
		}
		return domain.User{}, ae
	}
	return s.establish(ctx, resp)
}

func (s *Store) establish(ctx context.Context, resp *backend.AuthResponse) (domain.User, error) {
	if resp == nil || resp.Tokens.Access == "" {
		return domain.User{}, &AuthError{Kind: AuthRejected, Message: "backend issued no credential", Err: domain.ErrValidation}
	}
	user := resp.User

	s.ops.Lock()
	if err := s.persist(ctx, resp.Tokens, user); err != nil {
		s.ops.Unlock()
		s.logger.Error("persist session", zap.String("device", s.local.Namespace()), zap.Error(err))
		return domain.User{}, &AuthError{Kind: AuthStorage, Message: "could not save the session", Err: err}
	}
	s.mu.Lock()
	s.identity = domain.Authenticated(user)
	s.token = resp.Tokens.Access
	s.ready = true
	s.mu.Unlock()
	s.ops.Unlock()

	s.logger.Info("signed in", zap.String("device", s.local.Namespace()), zap.String("user", user.ID))
	s.bus.Publish(events.IdentityChanged)
	return user, nil
}

func (s *Store) persist(ctx context.Context, tokens domain.Tokens, user domain.User) error {
	if err := s.local.SetString(ctx, storage.KeyToken, tokens.Access); err != nil {
		return err
	}
	if tokens.Refresh != "" {
		if err := s.local.SetString(ctx, storage.KeyRefresh, tokens.Refresh); err != nil {
			return err
		}
	} else if err := s.local.Remove(ctx, storage.KeyRefresh); err != nil {
		return err
	}
	return s.local.SetJSON(ctx, storage.KeyUser, user)
}

// Logout clears the signed-in user's cart, then the credential and profile.
// Persisted carts of other scopes are left alone.
func (s *Store) Logout(ctx context.Context) error {
	if s.Identity().IsGuest() {
		return nil
	}
	s.bus.Publish(events.LogoutRequested)

	s.ops.Lock()
	err := s.local.Remove(ctx, storage.KeyToken, storage.KeyRefresh, storage.KeyUser)
	s.clear()
	s.ops.Unlock()
	if err != nil {
		s.logger.Error("clear session", zap.String("device", s.local.Namespace()), zap.Error(err))
	}

	s.bus.Publish(events.IdentityChanged)
	return err
}

func (s *Store) clear() {
	s.mu.Lock()
	s.identity = domain.Guest()
	s.token = ""
	s.ready = true
	s.mu.Unlock()
}

// Unauthorized implements backend.Authorizer. The first rejection of a live
// credential clears the session and redirects; later ones are ignored until
// a new session exists.
func (s *Store) Unauthorized(ctx context.Context) {
	s.ops.Lock()
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		s.ops.Unlock()
		return
	}
	s.identity = domain.Guest()
	s.token = ""
	s.mu.Unlock()

	s.logger.Info("credential expired", zap.String("device", s.local.Namespace()))
	// The request context may already be done; the cleanup must still land.
	if err := s.local.Remove(context.WithoutCancel(ctx), storage.KeyToken, storage.KeyRefresh, storage.KeyUser); err != nil {
		s.logger.Error("clear expired session", zap.String("device", s.local.Namespace()), zap.Error(err))
	}
	s.ops.Unlock()

	s.bus.Publish(events.IdentityChanged)
	s.redirect.RedirectToLogin(ctx)
}

// RefreshIdentity re-fetches the profile, picking up loyalty balance
// changes. Failures are logged and leave the session untouched.
func (s *Store) RefreshIdentity(ctx context.Context) domain.Identity {
	s.mu.RLock()
	token, current := s.token, s.identity
	s.mu.RUnlock()
	if token == "" {
		return current
	}

	user, err := s.api.Profile(ctx)
	if err != nil {
		s.logger.Warn("refresh profile", zap.String("device", s.local.Namespace()), zap.Error(err))
		return s.Identity()
	}
	updated, err := s.replaceProfile(ctx, token, *user)
	if err != nil {
		s.logger.Warn("persist refreshed profile", zap.String("device", s.local.Namespace()), zap.Error(err))
	}
	return updated
}

// UpdateProfile saves the editable profile fields and caches the result.
func (s *Store) UpdateProfile(ctx context.Context, in domain.ProfileFields) (domain.User, error) {
	token := s.Credential()
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	user, err := s.api.UpdateProfile(ctx, in)
	if err != nil {
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	if _, err := s.replaceProfile(ctx, token, *user); err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

// replaceProfile swaps in a fresh profile for the session that issued the
// request. A response that arrives after logout or a re-login is dropped.
func (s *Store) replaceProfile(ctx context.Context, token string, user domain.User) (domain.Identity, error) {
	s.ops.Lock()
	if s.Credential() != token {
		s.ops.Unlock()
		return s.Identity(), nil
	}
	if err := s.local.SetJSON(ctx, storage.KeyUser, user); err != nil {
		s.ops.Unlock()
		return s.Identity(), err
	}
	s.mu.Lock()
	s.identity = domain.Authenticated(user)
	s.mu.Unlock()
	s.ops.Unlock()

	s.bus.Publish(events.IdentityChanged)
	return domain.Authenticated(user), nil
}

// Expiry reports when the current credential expires, if it carries one.
func (s *Store) Expiry() (time.Time, bool) {
	token := s.Credential()
	if token == "" {
		return time.Time{}, false
	}
	exp, _, ok := credentialClaims(token)
	if !ok || exp.IsZero() {
		return time.Time{}, false
	}
	return exp, true
}

// IsAuthError reports whether err is a structured authentication failure of
// the given kind.
func IsAuthError(err error, kind AuthErrorKind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == kind
}
