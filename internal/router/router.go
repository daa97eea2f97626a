// Package router maps session state to the top-level view the portal renders.
package router

import (
	"sync"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/session"
)

// ViewKind names a top-level view.
type ViewKind string

const (
	ViewLoading            ViewKind = "loading"
	ViewSignIn             ViewKind = "sign-in"
	ViewCandidateDashboard ViewKind = "candidate-dashboard"
	ViewTeamDashboard      ViewKind = "team-dashboard"
	ViewAdminDashboard     ViewKind = "admin-dashboard"
	ViewUnknownRole        ViewKind = "unknown-role"
)

// Paths of the views that have a route.
const (
	PathSignIn             = "/login"
	PathCandidateDashboard = "/candidate/dashboard"
	PathTeamDashboard      = "/team/dashboard"
	PathAdminDashboard     = "/admin/dashboard"
)

// View is the resolved view selection.
type View struct {
	Kind ViewKind `json:"kind"`
	Path string   `json:"path,omitempty"`
	// Role is the raw role for unknown-role views, and the cached profile's
	// role as a provisional hint while loading.
	Role domain.Role `json:"role,omitempty"`
}

// Resolve returns the view for snap. It is defined for every input.
func Resolve(snap session.Snapshot) View {
	switch snap.Status {
	case domain.StatusAuthenticated:
		if snap.Profile == nil {
			return View{Kind: ViewSignIn, Path: PathSignIn}
		}
		return forRole(snap.Profile.Role)
	case domain.StatusUnauthenticated:
		return View{Kind: ViewSignIn, Path: PathSignIn}
	default:
		v := View{Kind: ViewLoading}
		if snap.CachedProfile != nil {
			v.Role = snap.CachedProfile.Role
		}
		return v
	}
}

// DashboardPath returns the dashboard route for role, or "" when the role has
// no dashboard.
func DashboardPath(role domain.Role) string {
	return forRole(role).Path
}

func forRole(role domain.Role) View {
	switch role {
	case domain.RoleCandidate:
		return View{Kind: ViewCandidateDashboard, Path: PathCandidateDashboard}
	case domain.RoleTeam:
		return View{Kind: ViewTeamDashboard, Path: PathTeamDashboard}
	case domain.RoleAdmin:
		return View{Kind: ViewAdminDashboard, Path: PathAdminDashboard}
	default:
		return View{Kind: ViewUnknownRole, Role: role}
	}
}

// Decision is the outcome of evaluating a snapshot for one mounted view.
type Decision struct {
	View View `json:"view"`
	// Redirect is the path to navigate to, set once per transition into
	// the unauthenticated state.
	Redirect string `json:"redirect,omitempty"`
}

// Navigator tracks one view instance so that sign-in redirects fire once per
// transition instead of on every re-render.
type Navigator struct {
	mu         sync.Mutex
	redirected bool
}

// NewNavigator creates a navigator for a freshly mounted view.
func NewNavigator() *Navigator {
	return &Navigator{}
}

// Evaluate resolves snap and decides whether navigation is due.
func (n *Navigator) Evaluate(snap session.Snapshot) Decision {
	view := Resolve(snap)

	n.mu.Lock()
	defer n.mu.Unlock()

	if view.Kind != ViewSignIn {
		n.redirected = false
		return Decision{View: view}
	}
	if n.redirected {
		return Decision{View: view}
	}
	n.redirected = true
	return Decision{View: view, Redirect: view.Path}
}
