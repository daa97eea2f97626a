// Package auth resolves the persisted credential into a session and handles
// explicit sign-in and sign-out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/marketplace"
	"github.com/footballnetwork/portal/internal/session"
	"github.com/footballnetwork/portal/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ErrSessionSuperseded is returned when a sign-in resolved after the session
// was cleared or replaced. The result has been discarded.
var ErrSessionSuperseded = errors.New("session superseded")

// ErrNotAuthenticated is returned by profile edits without a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// API is the subset of the marketplace client the bootstrapper needs.
type API interface {
	SetToken(token string)
	Login(ctx context.Context, creds marketplace.Credentials) (string, error)
	GetCurrentProfile(ctx context.Context) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, u marketplace.ProfileUpdate) (*domain.Profile, error)
}

// Bootstrapper owns every session transition driven by credentials.
type Bootstrapper struct {
	sessions *session.Store
	api      API
	local    store.LocalState
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	// credMu orders updates of the API client's default credential so that it
	// always ends up matching the session's token.
	credMu sync.Mutex

	mu       sync.Mutex
	resolved string // token whose bootstrap reached a terminal outcome

	// logoutMu orders Logout against the start of a signed-in session, so a
	// sign-in that resolves after a logout is discarded.
	logoutMu sync.Mutex
	logouts  uint64
}

// NewBootstrapper creates a bootstrapper.
func NewBootstrapper(sessions *session.Store, api API, local store.LocalState, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{
		sessions: sessions,
		api:      api,
		local:    local,
		logger:   logger,
		now:      time.Now,
	}
}

// Bootstrap resolves the persisted token into an authenticated or
// unauthenticated session. It never leaves the session pending. Calls with the
// token that was already resolved, or that is being resolved, do not issue a
// second profile fetch.
func (b *Bootstrapper) Bootstrap(ctx context.Context) error {
	token, err := b.local.LoadToken(ctx)
	if err != nil {
		b.logger.Warn("Failed to read persisted token", "error", err)
		token = ""
	}

	if token == "" {
		b.sessions.ClearUser()
		b.syncCredential()
		b.markResolved("")
		b.logger.Info("No persisted credential, session unauthenticated")
		return nil
	}

	if b.alreadyResolved(token) {
		return nil
	}

	_, err, _ = b.group.Do(token, func() (any, error) {
		return nil, b.resolve(ctx, token)
	})
	return err
}

func (b *Bootstrapper) resolve(ctx context.Context, token string) error {
	if expired, exp := tokenExpired(token, b.now()); expired {
		b.logger.Info("Persisted credential expired", "expired_at", exp)
		b.sessions.ClearUser()
		b.syncCredential()
		b.clearLocal(ctx)
		b.markResolved(token)
		return nil
	}

	gen := b.sessions.Begin(token)

	cached, err := b.local.LoadProfile(ctx)
	if err != nil {
		b.logger.Debug("No cached profile available", "error", err)
	} else if cached != nil {
		b.sessions.SetCachedProfile(gen, cached)
	}

	_, err = b.establish(ctx, gen)
	if errors.Is(err, ErrSessionSuperseded) {
		return nil
	}
	b.markResolved(token)
	if err != nil {
		b.logger.Info("Bootstrap failed, session unauthenticated", "error", err)
	}
	return nil
}

// establish attaches the session token to the API client, fetches the profile
// and applies the outcome to generation gen.
func (b *Bootstrapper) establish(ctx context.Context, gen uint64) (*domain.Profile, error) {
	b.syncCredential()

	profile, err := b.api.GetCurrentProfile(ctx)
	if err != nil {
		if !b.sessions.ClearUserIf(gen) {
			return nil, ErrSessionSuperseded
		}
		b.syncCredential()
		if marketplace.IsUnauthorized(err) {
			b.clearLocal(ctx)
		}
		return nil, fmt.Errorf("fetch current profile: %w", err)
	}

	if !b.sessions.SetUser(gen, profile) {
		b.logger.Info("Discarding profile for superseded session", "user_id", profile.ID)
		return nil, ErrSessionSuperseded
	}

	if err := b.local.SaveProfile(ctx, profile); err != nil {
		b.logger.Warn("Failed to cache profile snapshot", "error", err)
	}
	if b.sessions.Generation() != gen {
		b.clearLocal(ctx)
		return nil, ErrSessionSuperseded
	}
	b.logger.Info("Session authenticated", "user_id", profile.ID, "role", profile.Role)
	return profile, nil
}

// Login signs in with credentials, persists the token and resolves the profile.
// A Logout while the sign-in is in flight wins: the token is dropped and
// ErrSessionSuperseded is returned.
func (b *Bootstrapper) Login(ctx context.Context, creds marketplace.Credentials) (*domain.Profile, error) {
	b.logoutMu.Lock()
	seen := b.logouts
	b.logoutMu.Unlock()

	token, err := b.api.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	b.logoutMu.Lock()
	if b.logouts != seen {
		b.logoutMu.Unlock()
		b.logger.Info("Discarding sign-in that resolved after logout")
		return nil, ErrSessionSuperseded
	}
	gen := b.sessions.Begin(token)
	b.logoutMu.Unlock()

	if err := b.local.SaveToken(ctx, token); err != nil {
		b.logger.Warn("Failed to persist access token", "error", err)
	}
	if b.sessions.Generation() != gen {
		// Logout may have cleared local state before the token was written.
		b.clearLocal(ctx)
		return nil, ErrSessionSuperseded
	}

	profile, err := b.establish(ctx, gen)
	if err != nil {
		return nil, err
	}
	b.markResolved(token)
	return profile, nil
}

// Logout clears the session immediately. In-flight bootstrap, sign-in or inbox
// responses that arrive afterwards are discarded.
func (b *Bootstrapper) Logout(ctx context.Context) error {
	b.logoutMu.Lock()
	b.logouts++
	b.sessions.ClearUser()
	b.logoutMu.Unlock()

	b.syncCredential()
	b.markResolved("")

	if err := b.local.ClearCredentials(ctx); err != nil {
		return fmt.Errorf("clear local credentials: %w", err)
	}
	b.logger.Info("Session logged out")
	return nil
}

// UpdateProfile edits the signed-in user's profile and makes the result the
// session's profile and cached snapshot. An edit that resolves after the
// session was cleared or replaced is discarded.
func (b *Bootstrapper) UpdateProfile(ctx context.Context, u marketplace.ProfileUpdate) (*domain.Profile, error) {
	snap := b.sessions.Snapshot()
	if !snap.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	profile, err := b.api.UpdateProfile(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if !b.sessions.SetUser(snap.Generation, profile) {
		b.logger.Info("Discarding profile edit for superseded session", "user_id", profile.ID)
		return nil, ErrSessionSuperseded
	}

	if err := b.local.SaveProfile(ctx, profile); err != nil {
		b.logger.Warn("Failed to cache profile snapshot", "error", err)
	}
	if b.sessions.Generation() != snap.Generation {
		b.clearLocal(ctx)
		return nil, ErrSessionSuperseded
	}
	b.logger.Info("Profile updated", "user_id", profile.ID)
	return profile, nil
}

// syncCredential points the API client's default credential at the session's
// current token.
func (b *Bootstrapper) syncCredential() {
	b.credMu.Lock()
	defer b.credMu.Unlock()
	b.api.SetToken(b.sessions.Snapshot().Token)
}

func (b *Bootstrapper) clearLocal(ctx context.Context) {
	if err := b.local.ClearCredentials(ctx); err != nil {
		b.logger.Warn("Failed to clear local credentials", "error", err)
	}
}

func (b *Bootstrapper) markResolved(token string) {
	b.mu.Lock()
	b.resolved = token
	b.mu.Unlock()
}

func (b *Bootstrapper) alreadyResolved(token string) bool {
	b.mu.Lock()
	resolved := b.resolved
	b.mu.Unlock()

	if resolved != token {
		return false
	}
	snap := b.sessions.Snapshot()
	if snap.Status == domain.StatusPending {
		return false
	}
	// Resolved as unauthenticated after a failure: the same token will fail
	// again, and explicit re-authentication is required.
	return snap.Token == token || snap.Status == domain.StatusUnauthenticated
}

// tokenExpired reports whether token is a JWT whose exp claim is in the past.
// Opaque tokens and JWTs without exp are never considered expired here; the
// API decides.
func tokenExpired(token string, now time.Time) (bool, time.Time) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false, time.Time{}
	}
	if claims.ExpiresAt == nil {
		return false, time.Time{}
	}
	exp := claims.ExpiresAt.Time
	return !now.Before(exp), exp
}
