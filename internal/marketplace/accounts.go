package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/footballnetwork/portal/internal/domain"
)

// TeamRegistration is the team sign-up form.
type TeamRegistration struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ClubName     string `json:"club_name"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// CandidateRegistration is the candidate sign-up form. Plan names the
// membership tier; paid tiers are settled outside this client.
type CandidateRegistration struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Position   string `json:"position,omitempty"`
	Experience string `json:"experience_level,omitempty"`
	Skills     string `json:"skills,omitempty"`
	Plan       string `json:"selected_plan,omitempty"`
}

// ProfileUpdate is a partial edit of the current user's profile. Nil fields
// are left unchanged.
type ProfileUpdate struct {
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	Position        *string `json:"position,omitempty"`
	ExperienceLevel *string `json:"experience_level,omitempty"`
	Location        *string `json:"location,omitempty"`
	Qualification   *string `json:"qualification,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Position == nil &&
		u.ExperienceLevel == nil && u.Location == nil && u.Qualification == nil
}

// RegisterTeam creates a team account. The account stays inactive until the
// email is verified.
func (c *Client) RegisterTeam(ctx context.Context, in TeamRegistration) (*domain.Profile, error) {
	body := struct {
		TeamRegistration
		Role domain.Role `json:"role"`
	}{in, domain.RoleTeam}
	var p domain.Profile
	if err := c.postAnonymous(ctx, "/v1/auth/register/team", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RegisterCandidate creates a candidate account.
func (c *Client) RegisterCandidate(ctx context.Context, in CandidateRegistration) (*domain.Profile, error) {
	body := struct {
		CandidateRegistration
		Role domain.Role `json:"role"`
	}{in, domain.RoleCandidate}
	var p domain.Profile
	if err := c.postAnonymous(ctx, "/v1/auth/register/candidate", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VerifyEmail confirms an account with the emailed code.
func (c *Client) VerifyEmail(ctx context.Context, email string, code int) error {
	q := url.Values{}
	q.Set("email", email)
	q.Set("code", strconv.Itoa(code))
	return c.postAnonymous(ctx, "/v1/auth/verify-email", q, nil, nil)
}

// UpdateProfile applies a partial edit and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, u ProfileUpdate) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.sendJSON(ctx, http.MethodPatch, "/v1/auth/profile", u, &p); err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, ErrMalformedProfile
	}
	return &p, nil
}

// GetCandidateProfile fetches a candidate's public profile.
func (c *Client) GetCandidateProfile(ctx context.Context, candidateID int64) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/candidates/%d", candidateID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetUserActive activates or deactivates a user account. Admin only.
func (c *Client) SetUserActive(ctx context.Context, userID int64, active bool) (*domain.Profile, error) {
	action := "deactivate"
	if active {
		action = "activate"
	}
	var p domain.Profile
	path := fmt.Sprintf("/v1/admin/users/%d/%s", userID, action)
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
