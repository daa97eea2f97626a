package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/footballnetwork/portal/internal/auth"
	"github.com/footballnetwork/portal/internal/marketplace"
)

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// RegisterTeam creates a team account. The new account signs in only after
// its email is verified, so the session is left untouched.
func (h *SessionHandler) RegisterTeam(w http.ResponseWriter, r *http.Request) {
	var req marketplace.TeamRegistration
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.ClubName = strings.TrimSpace(req.ClubName)
	switch {
	case !validEmail(req.Email):
		Error(w, http.StatusBadRequest, "a valid email is required")
		return
	case req.Password == "":
		Error(w, http.StatusBadRequest, "password is required")
		return
	case req.ClubName == "":
		Error(w, http.StatusBadRequest, "club_name is required")
		return
	}

	profile, err := h.market.RegisterTeam(r.Context(), req)
	if err != nil {
		upstreamError(w, err, "Registration failed")
		return
	}
	slog.Info("Team registered", "user_id", profile.ID)
	JSON(w, http.StatusCreated, profile)
}

// RegisterCandidate creates a candidate account.
func (h *SessionHandler) RegisterCandidate(w http.ResponseWriter, r *http.Request) {
	var req marketplace.CandidateRegistration
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case !validEmail(req.Email):
		Error(w, http.StatusBadRequest, "a valid email is required")
		return
	case req.Password == "":
		Error(w, http.StatusBadRequest, "password is required")
		return
	}

	profile, err := h.market.RegisterCandidate(r.Context(), req)
	if err != nil {
		upstreamError(w, err, "Registration failed")
		return
	}
	slog.Info("Candidate registered", "user_id", profile.ID)
	JSON(w, http.StatusCreated, profile)
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  int    `json:"code"`
}

// VerifyEmail confirms a new account. The front-end sends the user to the
// sign-in view afterwards.
func (h *SessionHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) || req.Code <= 0 {
		Error(w, http.StatusBadRequest, "email and code are required")
		return
	}

	if err := h.market.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		upstreamError(w, err, "Verification failed")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// UpdateProfile edits the signed-in user's profile and returns the refreshed
// session.
func (h *ResourceHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req marketplace.ProfileUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Empty() {
		Error(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if _, err := h.auth.UpdateProfile(r.Context(), req); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
			Error(w, http.StatusUnauthorized, "authentication required")
		case errors.Is(err, auth.ErrSessionSuperseded):
			Error(w, http.StatusConflict, "session changed during update")
		default:
			upstreamError(w, err, "Error updating profile")
		}
		return
	}
	JSON(w, http.StatusOK, newSessionResponse(h.sessions.Snapshot()))
}

// GetCandidate returns one candidate's profile.
func (h *ResourceHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	profile, err := h.market.GetCandidateProfile(r.Context(), id)
	if err != nil {
		upstreamError(w, err, "Error loading candidate")
		return
	}
	JSON(w, http.StatusOK, profile)
}

// ActivateUser re-enables a user account.
func (h *ResourceHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setUserActive(w, r, true)
}

// DeactivateUser disables a user account.
func (h *ResourceHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setUserActive(w, r, false)
}

func (h *ResourceHandler) setUserActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	profile, err := h.market.SetUserActive(r.Context(), id, active)
	if err != nil {
		upstreamError(w, err, "Error updating user")
		return
	}
	slog.Info("User activation changed", "user_id", id, "active", active)
	JSON(w, http.StatusOK, profile)
}
