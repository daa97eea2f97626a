// Package domain contains core domain types for the Football Network portal.
package domain

import "strings"

// Role identifies which side of the marketplace a user belongs to.
// Values outside the known set are carried verbatim.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleTeam      Role = "team"
	RoleAdmin     Role = "admin"
)

// Known returns true for roles the portal has a dashboard for.
func (r Role) Known() bool {
	switch r {
	case RoleCandidate, RoleTeam, RoleAdmin:
		return true
	}
	return false
}

// Profile is the current user's record as returned by the marketplace API.
type Profile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      Role   `json:"role"`
	ClubName  string `json:"club_name,omitempty"`
	Position  string `json:"position,omitempty"`
	IsActive  bool   `json:"is_active"`

	ExperienceLevel string `json:"experience_level,omitempty"`
	Location        string `json:"location,omitempty"`
	Qualification   string `json:"qualification,omitempty"`
	Skills          string `json:"skills,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
}

// DisplayName returns the club name for teams, the full name when known,
// and the email otherwise.
func (p *Profile) DisplayName() string {
	if p.Role == RoleTeam && p.ClubName != "" {
		return p.ClubName
	}
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	return p.Email
}

// Clone returns a copy of the profile, or nil for a nil receiver.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
