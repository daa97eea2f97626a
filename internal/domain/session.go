package domain

// AuthStatus is the coarse authentication state of the session.
type AuthStatus string

const (
	// StatusPending means bootstrap has not resolved yet. Consumers must not redirect.
	StatusPending         AuthStatus = "pending"
	StatusAuthenticated   AuthStatus = "authenticated"
	StatusUnauthenticated AuthStatus = "unauthenticated"
)

// Valid reports whether s is one of the three known statuses.
func (s AuthStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAuthenticated, StatusUnauthenticated:
		return true
	}
	return false
}
