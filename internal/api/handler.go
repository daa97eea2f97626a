// Package api provides HTTP handlers for the portal front-end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/footballnetwork/portal/internal/dashboard"
	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/marketplace"
	"github.com/footballnetwork/portal/internal/session"
)

// Authenticator signs the portal in and out.
type Authenticator interface {
	Login(ctx context.Context, creds marketplace.Credentials) (*domain.Profile, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, u marketplace.ProfileUpdate) (*domain.Profile, error)
}

// Marketplace is the slice of the API client the resource views call directly.
type Marketplace interface {
	GetConversationThreads(ctx context.Context) ([]domain.Thread, error)
	SendMessage(ctx context.Context, receiverID int64, content string) (*domain.Message, error)
	ListVacancies(ctx context.Context, f marketplace.VacancyFilter) (domain.Page[domain.Vacancy], error)
	SearchCandidates(ctx context.Context, f marketplace.CandidateFilter) (domain.Page[domain.Profile], error)
	GetCandidateProfile(ctx context.Context, candidateID int64) (*domain.Profile, error)

	RegisterTeam(ctx context.Context, in marketplace.TeamRegistration) (*domain.Profile, error)
	RegisterCandidate(ctx context.Context, in marketplace.CandidateRegistration) (*domain.Profile, error)
	VerifyEmail(ctx context.Context, email string, code int) error
	SetUserActive(ctx context.Context, userID int64, active bool) (*domain.Profile, error)

	GetVacancy(ctx context.Context, id int64) (*domain.Vacancy, error)
	CreateVacancy(ctx context.Context, in marketplace.VacancyInput) (*domain.Vacancy, error)
	UpdateVacancy(ctx context.Context, id int64, in marketplace.VacancyInput) (*domain.Vacancy, error)
	DeleteVacancy(ctx context.Context, id int64) error
	CloseVacancy(ctx context.Context, id int64) error
	ActivateVacancy(ctx context.Context, id int64) error
	Apply(ctx context.Context, vacancyID int64, coverLetter string) (*domain.Application, error)
	UpdateApplicationStatus(ctx context.Context, id int64, status string) (*domain.Application, error)
}

// DashboardLoader loads the data of the resolved dashboard view.
type DashboardLoader interface {
	Load(ctx context.Context, snap session.Snapshot) (*dashboard.Data, error)
}

// Handler provides common handler dependencies.
type Handler struct {
	sessions   *session.Store
	auth       Authenticator
	market     Marketplace
	dashboards DashboardLoader
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(sessions *session.Store, auth Authenticator, market Marketplace, dashboards DashboardLoader) *Handler {
	return &Handler{
		sessions:   sessions,
		auth:       auth,
		market:     market,
		dashboards: dashboards,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// upstreamError maps a marketplace failure to a response. Client errors keep
// their status and detail; everything else is a bad gateway with fallback.
func upstreamError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, marketplace.ErrNoCredential) {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var apiErr *marketplace.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		msg := apiErr.Detail
		if msg == "" {
			msg = fallback
		}
		Error(w, apiErr.StatusCode, msg)
		return
	}

	slog.Warn("Marketplace request failed", "error", err)
	Error(w, http.StatusBadGateway, fallback)
}
