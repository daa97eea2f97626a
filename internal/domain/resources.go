package domain

import "time"

// Vacancy is a job posted by a team.
type Vacancy struct {
	ID              int64     `json:"id"`
	TeamID          int64     `json:"team_id,omitempty"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Requirements    string    `json:"requirements,omitempty"`
	Location        string    `json:"location,omitempty"`
	ExperienceLevel string    `json:"experience_level,omitempty"`
	PositionType    string    `json:"position_type,omitempty"`
	SalaryMin       *int64    `json:"salary_min,omitempty"`
	SalaryMax       *int64    `json:"salary_max,omitempty"`
	Status          string    `json:"status,omitempty"`
	ExpiryDate      string    `json:"expiry_date,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Vacancy statuses.
const (
	VacancyActive = "active"
	VacancyDraft  = "draft"
	VacancyClosed = "closed"
)

// Application is a candidate's application to a vacancy.
type Application struct {
	ID          int64     `json:"id"`
	VacancyID   int64     `json:"vacancy_id"`
	CandidateID int64     `json:"candidate_id"`
	Status      string    `json:"status"`
	CoverLetter string    `json:"cover_letter,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Candidate and Vacancy are attached locally on the team dashboard.
	Candidate *Profile `json:"candidate,omitempty"`
	Vacancy   *Vacancy `json:"vacancy,omitempty"`
}

// Application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationDeclined = "declined"
)

// ValidApplicationStatus reports whether s is a status a team may set.
func ValidApplicationStatus(s string) bool {
	switch s {
	case ApplicationPending, ApplicationAccepted, ApplicationDeclined:
		return true
	}
	return false
}

// ValidVacancyStatus reports whether s is a known vacancy status.
func ValidVacancyStatus(s string) bool {
	switch s {
	case VacancyActive, VacancyDraft, VacancyClosed:
		return true
	}
	return false
}

// Page is a paginated list response.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
