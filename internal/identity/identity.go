// Package identity attaches the current session and view identity to requests.
package identity

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/router"
	"github.com/footballnetwork/portal/internal/session"
	"github.com/google/uuid"
)

// ViewHeaderName carries the front-end's per-tab view identifier.
const ViewHeaderName = "X-Portal-View-ID"

type contextKey int

const (
	snapshotKey contextKey = iota
	viewIDKey
)

var viewIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// SnapshotFromContext returns the session snapshot captured for the request.
func SnapshotFromContext(ctx context.Context) (session.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotKey).(session.Snapshot)
	return snap, ok
}

// ViewIDFromContext returns the view identifier of the request.
func ViewIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(viewIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSnapshot returns a copy of ctx carrying snap.
func WithSnapshot(ctx context.Context, snap session.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey, snap)
}

func sanitizeViewID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !viewIDPattern.MatchString(id) {
		return uuid.NewString()
	}
	return id
}

func viewIDFromRequest(r *http.Request) string {
	id := r.Header.Get(ViewHeaderName)
	if id == "" {
		id = r.URL.Query().Get("view_id")
	}
	return sanitizeViewID(id)
}

// Middleware captures a session snapshot and the view ID for each request.
// Handlers read a consistent snapshot even if the session changes mid-request.
func Middleware(sessions *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithSnapshot(r.Context(), sessions.Snapshot())
			ctx = context.WithValue(ctx, viewIDKey, viewIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type authError struct {
	Error    string `json:"error"`
	Status   string `json:"status"`
	Redirect string `json:"redirect,omitempty"`
}

// RequireAuthenticated rejects requests without an authenticated session.
// A pending session answers 503 so the view keeps waiting instead of
// redirecting; a signed-out session answers 401 with the sign-in path.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, ok := SnapshotFromContext(r.Context())
		if ok && snap.Authenticated() {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if ok && snap.Status == domain.StatusPending {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(authError{Error: "session is still loading", Status: string(snap.Status)})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(authError{
			Error:    "authentication required",
			Status:   string(domain.StatusUnauthenticated),
			Redirect: router.PathSignIn,
		})
	})
}

// RequireRole answers 403 unless the signed-in user has one of roles. It
// expects RequireAuthenticated to run first.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, ok := SnapshotFromContext(r.Context())
			if ok && snap.Profile != nil {
				for _, role := range roles {
					if snap.Profile.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(authError{Error: "not allowed for this role", Status: string(snap.Status)})
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
