package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/footballnetwork/portal/internal/auth"
	"github.com/footballnetwork/portal/internal/config"
	"github.com/footballnetwork/portal/internal/dashboard"
	"github.com/footballnetwork/portal/internal/identity"
	"github.com/footballnetwork/portal/internal/inbox"
	"github.com/footballnetwork/portal/internal/marketplace"
	"github.com/footballnetwork/portal/internal/router"
	"github.com/footballnetwork/portal/internal/session"
	"github.com/go-chi/chi/v5"
)

// SessionHandler handles session, sign-in and sign-out endpoints.
type SessionHandler struct {
	*Handler
	cfg *config.Config

	// loginMu rejects overlapping sign-in attempts.
	loginMu sync.Mutex
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler, cfg *config.Config) *SessionHandler {
	return &SessionHandler{Handler: base, cfg: cfg}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.Get("/config", h.GetConfig)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/register/team", h.RegisterTeam)
	r.Post("/auth/register/candidate", h.RegisterCandidate)
	r.Post("/auth/verify-email", h.VerifyEmail)
}

type sessionResponse struct {
	session.Snapshot
	View router.View `json:"view"`
}

func newSessionResponse(snap session.Snapshot) sessionResponse {
	return sessionResponse{Snapshot: snap, View: router.Resolve(snap)}
}

// GetSession returns the session snapshot and the view it resolves to.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := identity.SnapshotFromContext(r.Context())
	if !ok {
		snap = h.sessions.Snapshot()
	}
	JSON(w, http.StatusOK, newSessionResponse(snap))
}

// GetConfig returns the settings the front-end needs.
func (h *SessionHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"inbox_poll_interval_ms": inbox.DefaultInterval.Milliseconds(),
		"featured_jobs_limit":    dashboard.DefaultFeaturedLimit,
		"sign_in_path":           router.PathSignIn,
	}
	if h.cfg != nil {
		resp["inbox_poll_interval_ms"] = h.cfg.Inbox.PollInterval.Milliseconds()
		resp["featured_jobs_limit"] = h.cfg.Dashboard.FeaturedJobsLimit
	}
	JSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in with email and password.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if !h.loginMu.TryLock() {
		slog.Warn("Sign-in already in progress")
		Error(w, http.StatusConflict, "login_in_progress")
		return
	}
	defer h.loginMu.Unlock()

	profile, err := h.auth.Login(r.Context(), marketplace.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrSessionSuperseded) {
			Error(w, http.StatusConflict, "session changed during sign-in")
			return
		}
		upstreamError(w, err, "Login failed")
		return
	}

	slog.Info("User signed in", "user_id", profile.ID, "role", profile.Role)
	JSON(w, http.StatusOK, newSessionResponse(h.sessions.Snapshot()))
}

// Logout clears the session and persisted credentials.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		// The in-memory session is already cleared at this point.
		slog.Error("Failed to clear persisted credentials", "error", err)
	}
	JSON(w, http.StatusOK, newSessionResponse(h.sessions.Snapshot()))
}
