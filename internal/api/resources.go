package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/identity"
	"github.com/footballnetwork/portal/internal/marketplace"
	"github.com/go-chi/chi/v5"
)

const maxMessageLength = 4000

// ResourceHandler serves the authenticated resource views.
type ResourceHandler struct {
	*Handler
}

// NewResourceHandler creates a new resource handler.
func NewResourceHandler(base *Handler) *ResourceHandler {
	return &ResourceHandler{Handler: base}
}

// RegisterRoutes registers resource routes behind the authentication gate.
func (h *ResourceHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(identity.RequireAuthenticated)
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/messages/threads", h.GetThreads)
		r.Post("/messages", h.SendMessage)
		r.Get("/vacancies", h.ListVacancies)
		r.Get("/candidates", h.SearchCandidates)
		r.Get("/candidates/{id}", h.GetCandidate)
		r.Get("/vacancies/{id}", h.GetVacancy)
		r.Patch("/profile", h.UpdateProfile)

		r.With(identity.RequireRole(domain.RoleCandidate)).Post("/applications", h.Apply)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireRole(domain.RoleTeam))
			r.Post("/vacancies", h.CreateVacancy)
			r.Put("/vacancies/{id}", h.UpdateVacancy)
			r.Delete("/vacancies/{id}", h.DeleteVacancy)
			r.Post("/vacancies/{id}/close", h.CloseVacancy)
			r.Post("/vacancies/{id}/activate", h.ActivateVacancy)
			r.Patch("/applications/{id}/status", h.UpdateApplicationStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireRole(domain.RoleAdmin))
			r.Post("/admin/users/{id}/activate", h.ActivateUser)
			r.Post("/admin/users/{id}/deactivate", h.DeactivateUser)
		})
	})
}

// GetDashboard returns the current role's dashboard data.
func (h *ResourceHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, _ := identity.SnapshotFromContext(r.Context())
	data, err := h.dashboards.Load(r.Context(), snap)
	if err != nil {
		JSON(w, http.StatusBadGateway, data)
		return
	}
	JSON(w, http.StatusOK, data)
}

// GetThreads lists the conversation threads without touching the badge.
func (h *ResourceHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.market.GetConversationThreads(r.Context())
	if err != nil {
		upstreamError(w, err, "Error loading conversations")
		return
	}
	if threads == nil {
		threads = []domain.Thread{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"threads":      threads,
		"unread_total": domain.TotalUnread(threads),
	})
}

type sendRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
}

// SendMessage sends a direct message.
func (h *ResourceHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	switch {
	case req.ReceiverID <= 0:
		Error(w, http.StatusBadRequest, "receiver_id is required")
		return
	case req.Content == "":
		Error(w, http.StatusBadRequest, "content is required")
		return
	case len(req.Content) > maxMessageLength:
		Error(w, http.StatusBadRequest, "content is too long")
		return
	}

	msg, err := h.market.SendMessage(r.Context(), req.ReceiverID, req.Content)
	if err != nil {
		upstreamError(w, err, "Error sending message")
		return
	}
	JSON(w, http.StatusCreated, msg)
}

// ListVacancies searches vacancies.
func (h *ResourceHandler) ListVacancies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := queryParser{q: q}
	f := marketplace.VacancyFilter{
		Role:            q.Get("role"),
		Location:        q.Get("location"),
		ExperienceLevel: q.Get("experience_level"),
		PositionType:    q.Get("position_type"),
		SalaryMin:       p.num64("salary_min"),
		SalaryMax:       p.num64("salary_max"),
		Limit:           p.num("limit"),
		Offset:          p.num("offset"),
	}
	if p.err != "" {
		Error(w, http.StatusBadRequest, p.err)
		return
	}
	if f.SalaryMin > 0 && f.SalaryMax > 0 && f.SalaryMin > f.SalaryMax {
		Error(w, http.StatusBadRequest, "salary_min cannot exceed salary_max")
		return
	}

	page, err := h.market.ListVacancies(r.Context(), f)
	if err != nil {
		upstreamError(w, err, "Error loading vacancies")
		return
	}
	if page.Items == nil {
		page.Items = []domain.Vacancy{}
	}
	JSON(w, http.StatusOK, page)
}

// SearchCandidates searches candidate profiles.
func (h *ResourceHandler) SearchCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := queryParser{q: q}
	f := marketplace.CandidateFilter{
		Role:            q.Get("role"),
		Location:        q.Get("location"),
		ExperienceLevel: q.Get("experience_level"),
		Position:        q.Get("position"),
		Limit:           p.num("limit"),
		Offset:          p.num("offset"),
	}
	if p.err != "" {
		Error(w, http.StatusBadRequest, p.err)
		return
	}

	page, err := h.market.SearchCandidates(r.Context(), f)
	if err != nil {
		upstreamError(w, err, "Error loading candidates")
		return
	}
	if page.Items == nil {
		page.Items = []domain.Profile{}
	}
	JSON(w, http.StatusOK, page)
}

// queryParser reads non-negative integers and keeps the first error.
type queryParser struct {
	q   url.Values
	err string
}

func (p *queryParser) num64(key string) int64 {
	v := strings.TrimSpace(p.q.Get(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		if p.err == "" {
			p.err = key + " must be a non-negative integer"
		}
		return 0
	}
	return n
}

func (p *queryParser) num(key string) int {
	return int(p.num64(key))
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID reads a positive integer URL parameter, answering 400 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		Error(w, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return id, true
}
