package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/footballnetwork/portal/internal/domain"
)

// VacancyInput is the body of a vacancy create or update. On update, empty
// fields are left unchanged, so a status-only update carries just Status.
type VacancyInput struct {
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	Requirements    string `json:"requirements,omitempty"`
	Location        string `json:"location,omitempty"`
	PositionType    string `json:"position_type,omitempty"`
	ExperienceLevel string `json:"experience_level,omitempty"`
	ExpiryDate      string `json:"expiry_date,omitempty"`
	SalaryMin       *int64 `json:"salary_min,omitempty"`
	SalaryMax       *int64 `json:"salary_max,omitempty"`
	Status          string `json:"status,omitempty"`
}

func vacancyPath(id int64) string {
	return fmt.Sprintf("/v1/vacancies/%d", id)
}

// GetVacancy fetches one vacancy.
func (c *Client) GetVacancy(ctx context.Context, id int64) (*domain.Vacancy, error) {
	var v domain.Vacancy
	if err := c.getJSON(ctx, vacancyPath(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVacancy posts a new vacancy for the signed-in team.
func (c *Client) CreateVacancy(ctx context.Context, in VacancyInput) (*domain.Vacancy, error) {
	var v domain.Vacancy
	if err := c.sendJSON(ctx, http.MethodPost, "/v1/vacancies", in, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVacancy replaces the given fields of a vacancy.
func (c *Client) UpdateVacancy(ctx context.Context, id int64, in VacancyInput) (*domain.Vacancy, error) {
	var v domain.Vacancy
	if err := c.sendJSON(ctx, http.MethodPut, vacancyPath(id), in, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteVacancy removes a vacancy.
func (c *Client) DeleteVacancy(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodDelete, vacancyPath(id), nil, nil)
}

// CloseVacancy stops a vacancy from taking applications.
func (c *Client) CloseVacancy(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodPost, vacancyPath(id)+"/close", nil, nil)
}

// ActivateVacancy publishes a draft or closed vacancy. The upstream route
// takes the id as a query parameter.
func (c *Client) ActivateVacancy(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("vacancy_id", strconv.FormatInt(id, 10))
	return c.do(ctx, request{method: http.MethodPost, path: "/v1/vacancies/vacancies/activate", query: q}, nil)
}

// Apply submits the signed-in candidate's application to a vacancy.
func (c *Client) Apply(ctx context.Context, vacancyID int64, coverLetter string) (*domain.Application, error) {
	in := struct {
		VacancyID   int64  `json:"vacancy_id"`
		CoverLetter string `json:"cover_letter,omitempty"`
	}{vacancyID, coverLetter}
	var app domain.Application
	if err := c.sendJSON(ctx, http.MethodPost, "/v1/applications", in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateApplicationStatus accepts or declines an application.
func (c *Client) UpdateApplicationStatus(ctx context.Context, id int64, status string) (*domain.Application, error) {
	in := struct {
		Status string `json:"status"`
	}{status}
	var app domain.Application
	path := fmt.Sprintf("/v1/applications/%d/status", id)
	if err := c.sendJSON(ctx, http.MethodPatch, path, in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
