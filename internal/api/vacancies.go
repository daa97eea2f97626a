package api

import (
	"net/http"
	"strings"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/marketplace"
)

// validateVacancy checks a create (full) or update (partial) body and
// returns the first problem.
func validateVacancy(in *marketplace.VacancyInput, create bool) string {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case create && in.Title == "":
		return "title is required"
	case !create && *in == (marketplace.VacancyInput{}):
		return "nothing to update"
	case in.Status != "" && !domain.ValidVacancyStatus(in.Status):
		return "unknown vacancy status"
	case in.SalaryMin != nil && *in.SalaryMin < 0, in.SalaryMax != nil && *in.SalaryMax < 0:
		return "salary cannot be negative"
	case in.SalaryMin != nil && in.SalaryMax != nil && *in.SalaryMin > *in.SalaryMax:
		return "salary_min cannot exceed salary_max"
	}
	return ""
}

// GetVacancy returns one vacancy.
func (h *ResourceHandler) GetVacancy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.market.GetVacancy(r.Context(), id)
	if err != nil {
		upstreamError(w, err, "Error loading vacancy")
		return
	}
	JSON(w, http.StatusOK, v)
}

// CreateVacancy posts a vacancy for the signed-in team.
func (h *ResourceHandler) CreateVacancy(w http.ResponseWriter, r *http.Request) {
	var req marketplace.VacancyInput
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateVacancy(&req, true); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}

	v, err := h.market.CreateVacancy(r.Context(), req)
	if err != nil {
		upstreamError(w, err, "Error creating vacancy")
		return
	}
	JSON(w, http.StatusCreated, v)
}

// UpdateVacancy edits a vacancy. A body with only a status moves the vacancy
// between active, draft and closed.
func (h *ResourceHandler) UpdateVacancy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req marketplace.VacancyInput
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateVacancy(&req, false); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}

	v, err := h.market.UpdateVacancy(r.Context(), id, req)
	if err != nil {
		upstreamError(w, err, "Error updating vacancy")
		return
	}
	JSON(w, http.StatusOK, v)
}

// DeleteVacancy removes a vacancy.
func (h *ResourceHandler) DeleteVacancy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.market.DeleteVacancy(r.Context(), id); err != nil {
		upstreamError(w, err, "Error deleting vacancy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseVacancy stops a vacancy from taking applications.
func (h *ResourceHandler) CloseVacancy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.market.CloseVacancy(r.Context(), id); err != nil {
		upstreamError(w, err, "Error closing vacancy")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": domain.VacancyClosed})
}

// ActivateVacancy publishes a vacancy.
func (h *ResourceHandler) ActivateVacancy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.market.ActivateVacancy(r.Context(), id); err != nil {
		upstreamError(w, err, "Error activating vacancy")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": domain.VacancyActive})
}

type applyRequest struct {
	VacancyID   int64  `json:"vacancy_id"`
	CoverLetter string `json:"cover_letter"`
}

// Apply submits the signed-in candidate's application.
func (h *ResourceHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VacancyID <= 0 {
		Error(w, http.StatusBadRequest, "vacancy_id is required")
		return
	}

	app, err := h.market.Apply(r.Context(), req.VacancyID, strings.TrimSpace(req.CoverLetter))
	if err != nil {
		upstreamError(w, err, "Error submitting application")
		return
	}
	JSON(w, http.StatusCreated, app)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateApplicationStatus accepts or declines an application.
func (h *ResourceHandler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !domain.ValidApplicationStatus(req.Status) {
		Error(w, http.StatusBadRequest, "unknown application status")
		return
	}

	app, err := h.market.UpdateApplicationStatus(r.Context(), id, req.Status)
	if err != nil {
		upstreamError(w, err, "Error updating application")
		return
	}
	JSON(w, http.StatusOK, app)
}
