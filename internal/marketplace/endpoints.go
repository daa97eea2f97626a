package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/footballnetwork/portal/internal/domain"
)

// Credentials are the sign-in form values.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for an access token. It does not change the
// client's default credential.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	form := url.Values{}
	form.Set("username", creds.Email)
	form.Set("password", creds.Password)

	var tok tokenResponse
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/v1/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		anonymous:   true,
	}, &tok)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("login response carried no access token")
	}
	return tok.AccessToken, nil
}

// GetCurrentProfile fetches the profile of the default credential's owner.
func (c *Client) GetCurrentProfile(ctx context.Context) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.getJSON(ctx, "/v1/auth/me", nil, &p); err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, ErrMalformedProfile
	}
	return &p, nil
}

// GetConversationThreads lists the current user's conversation threads.
func (c *Client) GetConversationThreads(ctx context.Context) ([]domain.Thread, error) {
	var threads []domain.Thread
	if err := c.getJSON(ctx, "/v1/messages/threads", nil, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// GetConversation returns the message history with one counterpart.
func (c *Client) GetConversation(ctx context.Context, counterpartID int64) ([]domain.Message, error) {
	var msgs []domain.Message
	path := "/v1/messages/conversation/" + strconv.FormatInt(counterpartID, 10)
	if err := c.getJSON(ctx, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkMessageRead marks one message as read.
func (c *Client) MarkMessageRead(ctx context.Context, messageID int64) error {
	path := fmt.Sprintf("/v1/messages/%d/read", messageID)
	return c.sendJSON(ctx, http.MethodPatch, path, nil, nil)
}

// SendMessage sends content to receiverID.
func (c *Client) SendMessage(ctx context.Context, receiverID int64, content string) (*domain.Message, error) {
	in := struct {
		ReceiverID int64  `json:"receiver_id"`
		Content    string `json:"content"`
	}{receiverID, content}

	var msg domain.Message
	if err := c.sendJSON(ctx, http.MethodPost, "/v1/messages", in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// VacancyFilter narrows a vacancy search. Zero values are omitted.
type VacancyFilter struct {
	Role            string
	Location        string
	SalaryMin       int64
	SalaryMax       int64
	ExperienceLevel string
	PositionType    string
	Limit           int
	Offset          int
}

func (f VacancyFilter) values() url.Values {
	q := url.Values{}
	setString(q, "role", f.Role)
	setString(q, "location", f.Location)
	setInt(q, "salary_min", f.SalaryMin)
	setInt(q, "salary_max", f.SalaryMax)
	setString(q, "experience_level", f.ExperienceLevel)
	setString(q, "position_type", f.PositionType)
	setInt(q, "limit", int64(f.Limit))
	setInt(q, "offset", int64(f.Offset))
	return q
}

// ListVacancies searches published vacancies.
func (c *Client) ListVacancies(ctx context.Context, f VacancyFilter) (domain.Page[domain.Vacancy], error) {
	var page domain.Page[domain.Vacancy]
	err := c.getJSON(ctx, "/v1/vacancies", f.values(), &page)
	return page, err
}

// CandidateFilter narrows a talent search. Zero values are omitted.
type CandidateFilter struct {
	Role            string
	Location        string
	ExperienceLevel string
	Position        string
	Limit           int
	Offset          int
}

func (f CandidateFilter) values() url.Values {
	q := url.Values{}
	setString(q, "role", f.Role)
	setString(q, "location", f.Location)
	setString(q, "experience_level", f.ExperienceLevel)
	setString(q, "position", f.Position)
	setInt(q, "limit", int64(f.Limit))
	setInt(q, "offset", int64(f.Offset))
	return q
}

// SearchCandidates searches candidate profiles.
func (c *Client) SearchCandidates(ctx context.Context, f CandidateFilter) (domain.Page[domain.Profile], error) {
	var page domain.Page[domain.Profile]
	err := c.getJSON(ctx, "/v1/candidates", f.values(), &page)
	return page, err
}

// MyApplications lists the current candidate's applications.
func (c *Client) MyApplications(ctx context.Context) ([]domain.Application, error) {
	var apps []domain.Application
	err := c.getJSON(ctx, "/v1/applications/my-applications", nil, &apps)
	return apps, err
}

// PendingApplications lists applications awaiting the current team's decision.
func (c *Client) PendingApplications(ctx context.Context) ([]domain.Application, error) {
	var apps []domain.Application
	err := c.getJSON(ctx, "/v1/applications/pending", nil, &apps)
	return apps, err
}

// MyVacancies lists the current team's vacancies.
func (c *Client) MyVacancies(ctx context.Context) ([]domain.Vacancy, error) {
	var vacs []domain.Vacancy
	err := c.getJSON(ctx, "/v1/vacancies/my-vacancies", nil, &vacs)
	return vacs, err
}

// ListUsers lists platform users for administrators.
func (c *Client) ListUsers(ctx context.Context, limit int) (domain.Page[domain.Profile], error) {
	q := url.Values{}
	setInt(q, "limit", int64(limit))
	var page domain.Page[domain.Profile]
	err := c.getJSON(ctx, "/v1/admin/users", q, &page)
	return page, err
}

func setString(q url.Values, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		q.Set(key, v)
	}
}

func setInt(q url.Values, key string, v int64) {
	if v > 0 {
		q.Set(key, strconv.FormatInt(v, 10))
	}
}
