// Package dashboard loads the data behind each role's dashboard view.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/marketplace"
	"github.com/footballnetwork/portal/internal/router"
	"github.com/footballnetwork/portal/internal/session"
	"golang.org/x/sync/errgroup"
)

// DefaultFeaturedLimit caps the featured vacancies on the candidate dashboard.
const DefaultFeaturedLimit = 5

const adminUsersLimit = 100

// candidateFetchLimit bounds concurrent candidate lookups on the team view.
const candidateFetchLimit = 4

// Error texts shown by the dashboard views.
const (
	ErrTextData         = "Error loading data"
	ErrTextApplications = "Failed to load applications"
	ErrTextUsers        = "Error loading users"
)

// API is the slice of the marketplace client the dashboards read.
type API interface {
	MyApplications(ctx context.Context) ([]domain.Application, error)
	ListVacancies(ctx context.Context, f marketplace.VacancyFilter) (domain.Page[domain.Vacancy], error)
	MyVacancies(ctx context.Context) ([]domain.Vacancy, error)
	PendingApplications(ctx context.Context) ([]domain.Application, error)
	ListUsers(ctx context.Context, limit int) (domain.Page[domain.Profile], error)
	GetCandidateProfile(ctx context.Context, candidateID int64) (*domain.Profile, error)
}

// Data is the payload of one dashboard view. Only the sections of the
// resolved view are populated.
type Data struct {
	View router.View `json:"view"`

	// candidate
	Applications      []domain.Application `json:"applications,omitempty"`
	FeaturedVacancies []domain.Vacancy     `json:"featured_vacancies,omitempty"`

	// team
	Vacancies           []domain.Vacancy     `json:"vacancies,omitempty"`
	PendingApplications []domain.Application `json:"pending_applications,omitempty"`

	// admin
	Users      []domain.Profile `json:"users,omitempty"`
	TotalUsers int              `json:"total_users,omitempty"`

	Err string `json:"error,omitempty"`
}

// Loader fetches dashboard data for the current session.
type Loader struct {
	api           API
	featuredLimit int
	logger        *slog.Logger
}

// NewLoader creates a loader. A non-positive featuredLimit uses the default.
func NewLoader(api API, featuredLimit int, logger *slog.Logger) *Loader {
	if featuredLimit <= 0 {
		featuredLimit = DefaultFeaturedLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{api: api, featuredLimit: featuredLimit, logger: logger}
}

// Load resolves the view for snap and fetches its data. On failure the
// returned Data carries the view and a human-readable Err alongside the error.
// Views without data (loading, sign-in, unknown role) return no error.
func (l *Loader) Load(ctx context.Context, snap session.Snapshot) (*Data, error) {
	data := &Data{View: router.Resolve(snap)}

	var err error
	switch data.View.Kind {
	case router.ViewCandidateDashboard:
		err = l.loadCandidate(ctx, snap.Profile, data)
	case router.ViewTeamDashboard:
		err = l.loadTeam(ctx, data)
	case router.ViewAdminDashboard:
		err = l.loadAdmin(ctx, data)
	default:
		return data, nil
	}
	if err != nil {
		l.logger.Warn("Dashboard load failed", "view", data.View.Kind, "error", err)
		return data, err
	}
	return data, nil
}

func (l *Loader) loadCandidate(ctx context.Context, profile *domain.Profile, data *Data) error {
	var apps []domain.Application
	var vacancies []domain.Vacancy

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apps, err = l.api.MyApplications(gctx)
		if err != nil {
			return fmt.Errorf("my applications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		page, err := l.api.ListVacancies(gctx, marketplace.VacancyFilter{})
		if err != nil {
			return fmt.Errorf("list vacancies: %w", err)
		}
		vacancies = page.Items
		return nil
	})
	if err := g.Wait(); err != nil {
		data.Err = ErrTextData
		return err
	}

	data.Applications = apps
	data.FeaturedVacancies = Featured(vacancies, profile.Position, l.featuredLimit)
	return nil
}

func (l *Loader) loadTeam(ctx context.Context, data *Data) error {
	var vacancies []domain.Vacancy
	var pending []domain.Application

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		// A failed vacancy list renders as empty.
		if vacancies, err = l.api.MyVacancies(gctx); err != nil {
			l.logger.Warn("Failed to load team vacancies", "error", err)
			vacancies = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if pending, err = l.api.PendingApplications(gctx); err != nil {
			return fmt.Errorf("pending applications: %w", err)
		}
		return nil
	})
	err := g.Wait()

	data.Vacancies = vacancies
	if err != nil {
		data.Err = ErrTextApplications
		return err
	}
	data.PendingApplications = l.attachDetails(ctx, pending, vacancies)
	return nil
}

// attachDetails adds each applicant's profile and the applied-for vacancy to
// pending applications. Profiles are fetched once per candidate; a failed
// lookup leaves that application without a profile.
func (l *Loader) attachDetails(ctx context.Context, apps []domain.Application, vacancies []domain.Vacancy) []domain.Application {
	byID := make(map[int64]*domain.Vacancy, len(vacancies))
	for i := range vacancies {
		byID[vacancies[i].ID] = &vacancies[i]
	}

	var mu sync.Mutex
	profiles := make(map[int64]*domain.Profile)
	seen := make(map[int64]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(candidateFetchLimit)
	for _, app := range apps {
		id := app.CandidateID
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			p, err := l.api.GetCandidateProfile(gctx, id)
			if err != nil {
				l.logger.Debug("Failed to load candidate profile", "candidate_id", id, "error", err)
				return nil
			}
			mu.Lock()
			profiles[id] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Application, len(apps))
	for i, app := range apps {
		app.Candidate = profiles[app.CandidateID]
		if v, ok := byID[app.VacancyID]; ok {
			vc := *v
			app.Vacancy = &vc
		}
		out[i] = app
	}
	return out
}

func (l *Loader) loadAdmin(ctx context.Context, data *Data) error {
	page, err := l.api.ListUsers(ctx, adminUsersLimit)
	if err != nil {
		data.Err = ErrTextUsers
		return fmt.Errorf("list users: %w", err)
	}
	data.Users = page.Items
	data.TotalUsers = page.Total
	return nil
}

// Featured picks up to limit vacancies whose position type matches position,
// case-insensitively. An empty position matches every vacancy.
func Featured(vacancies []domain.Vacancy, position string, limit int) []domain.Vacancy {
	position = strings.TrimSpace(position)
	var out []domain.Vacancy
	for _, v := range vacancies {
		if len(out) == limit {
			break
		}
		if position != "" && !strings.EqualFold(v.PositionType, position) {
			continue
		}
		out = append(out, v)
	}
	return out
}
