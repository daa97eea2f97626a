// Package store persists the portal's local state: the credential and the
// last-known-good profile that a browser would keep in local storage.
package store

import (
	"context"

	"github.com/footballnetwork/portal/internal/domain"
)

// Well-known local state keys.
const (
	KeyAccessToken = "access_token"
	KeyCurrentUser = "current_user"
)

// LocalState defines the persisted credential store.
type LocalState interface {
	// LoadToken returns the persisted access token, or "" when none is stored.
	LoadToken(ctx context.Context) (string, error)

	// SaveToken persists the access token.
	SaveToken(ctx context.Context, token string) error

	// LoadProfile returns the cached profile snapshot, or nil when none is stored
	// or the stored value cannot be decoded.
	LoadProfile(ctx context.Context) (*domain.Profile, error)

	// SaveProfile replaces the cached profile snapshot.
	SaveProfile(ctx context.Context, profile *domain.Profile) error

	// ClearCredentials removes the token and the cached profile.
	ClearCredentials(ctx context.Context) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
