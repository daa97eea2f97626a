package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/marketplace"
	"github.com/footballnetwork/portal/internal/session"
	"github.com/golang-jwt/jwt/v5"
)

type fakeAPI struct {
	mu         sync.Mutex
	token      string
	tokens     []string
	calls      int
	profile    *domain.Profile
	err        error
	loginToken string
	loginErr   error
	// gate, when set, blocks GetCurrentProfile until closed.
	gate    chan struct{}
	started chan struct{}
	// loginGate, when set, blocks Login until closed.
	loginGate    chan struct{}
	loginStarted chan struct{}
	// updateGate, when set, blocks UpdateProfile until closed.
	updateGate    chan struct{}
	updateStarted chan struct{}
	updated       *domain.Profile
}

func (f *fakeAPI) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.tokens = append(f.tokens, token)
}

func (f *fakeAPI) Login(ctx context.Context, _ marketplace.Credentials) (string, error) {
	if f.loginStarted != nil {
		f.loginStarted <- struct{}{}
	}
	if f.loginGate != nil {
		select {
		case <-f.loginGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.loginToken, f.loginErr
}

func (f *fakeAPI) GetCurrentProfile(ctx context.Context) (*domain.Profile, error) {
	f.mu.Lock()
	f.calls++
	gate, started := f.gate, f.started
	profile, err := f.profile, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return profile.Clone(), nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, _ marketplace.ProfileUpdate) (*domain.Profile, error) {
	if f.updateStarted != nil {
		f.updateStarted <- struct{}{}
	}
	if f.updateGate != nil {
		select {
		case <-f.updateGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.updated.Clone(), nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAPI) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type memLocal struct {
	mu      sync.Mutex
	token   string
	profile *domain.Profile
	cleared int
}

func (m *memLocal) LoadToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memLocal) SaveToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memLocal) LoadProfile(context.Context) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile.Clone(), nil
}

func (m *memLocal) SaveProfile(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = p.Clone()
	return nil
}

func (m *memLocal) ClearCredentials(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.profile = nil
	m.cleared++
	return nil
}

func (m *memLocal) Ping(context.Context) error { return nil }
func (m *memLocal) Close() error               { return nil }

func recordStatuses(s *session.Store) func() []domain.AuthStatus {
	var mu sync.Mutex
	var statuses []domain.AuthStatus
	s.Subscribe(func(snap session.Snapshot) {
		mu.Lock()
		statuses = append(statuses, snap.Status)
		mu.Unlock()
	})
	return func() []domain.AuthStatus {
		mu.Lock()
		defer mu.Unlock()
		return append([]domain.AuthStatus(nil), statuses...)
	}
}

func TestBootstrapWithoutToken(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{}
	b := NewBootstrapper(sessions, api, &memLocal{}, nil)
	statuses := recordStatuses(sessions)

	if err := b.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if api.callCount() != 0 {
		t.Fatalf("expected no network call, got %d", api.callCount())
	}
	got := statuses()
	if len(got) != 1 || got[0] != domain.StatusUnauthenticated {
		t.Fatalf("expected direct transition to unauthenticated, got %v", got)
	}
}

func TestBootstrapSuccess(t *testing.T) {
	sessions := session.New()
	profile := &domain.Profile{ID: 5, Email: "striker@club.test", Role: domain.RoleCandidate}
	api := &fakeAPI{profile: profile}
	local := &memLocal{token: "tok-5"}
	b := NewBootstrapper(sessions, api, local, nil)

	if err := b.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	snap := sessions.Snapshot()
	if snap.Status != domain.StatusAuthenticated || snap.Profile == nil || snap.Profile.ID != 5 {
		t.Fatalf("expected authenticated session, got %+v", snap)
	}
	if api.currentToken() != "tok-5" {
		t.Fatalf("expected credential attached, got %q", api.currentToken())
	}
	if local.profile == nil || local.profile.ID != 5 {
		t.Fatal("expected profile snapshot to be cached")
	}
}

func TestBootstrapUnauthorizedDoesNotHang(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{err: &marketplace.APIError{StatusCode: http.StatusUnauthorized, Detail: "expired"}}
	local := &memLocal{token: "stale"}
	b := NewBootstrapper(sessions, api, local, nil)
	statuses := recordStatuses(sessions)

	if err := b.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	got := statuses()
	if len(got) == 0 || got[len(got)-1] != domain.StatusUnauthenticated {
		t.Fatalf("expected final status unauthenticated, got %v", got)
	}
	if got[0] != domain.StatusPending {
		t.Fatalf("expected pending first, got %v", got)
	}
	if api.currentToken() != "" {
		t.Fatalf("expected credential dropped, got %q", api.currentToken())
	}
	if local.cleared != 1 {
		t.Fatalf("expected local credentials cleared once, got %d", local.cleared)
	}
}

func TestBootstrapNetworkFailureKeepsPersistedToken(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{err: errors.New("connection refused")}
	local := &memLocal{token: "tok"}
	b := NewBootstrapper(sessions, api, local, nil)

	_ = b.Bootstrap(context.Background())

	if sessions.Snapshot().Status != domain.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", sessions.Snapshot().Status)
	}
	if local.token != "tok" {
		t.Fatal("a transient failure must not wipe the persisted token")
	}
}

func TestBootstrapIsIdempotentForSameToken(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{profile: &domain.Profile{ID: 1, Role: domain.RoleTeam}}
	b := NewBootstrapper(sessions, api, &memLocal{token: "tok"}, nil)

	for i := 0; i < 3; i++ {
		if err := b.Bootstrap(context.Background()); err != nil {
			t.Fatalf("Bootstrap %d failed: %v", i, err)
		}
	}
	if api.callCount() != 1 {
		t.Fatalf("expected one profile fetch, got %d", api.callCount())
	}
}

func TestConcurrentBootstrapCollapses(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{
		profile: &domain.Profile{ID: 1, Role: domain.RoleTeam},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 4),
	}
	b := NewBootstrapper(sessions, api, &memLocal{token: "tok"}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Bootstrap(context.Background())
	}()
	<-api.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Bootstrap(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	if api.callCount() != 1 {
		t.Fatalf("expected one profile fetch, got %d", api.callCount())
	}
	if sessions.Snapshot().Status != domain.StatusAuthenticated {
		t.Fatalf("expected authenticated, got %s", sessions.Snapshot().Status)
	}
}

func TestLogoutDiscardsLateProfile(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{
		profile: &domain.Profile{ID: 1, Role: domain.RoleCandidate},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	local := &memLocal{token: "tok"}
	b := NewBootstrapper(sessions, api, local, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Bootstrap(context.Background())
	}()
	<-api.started

	if err := b.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	close(api.gate)
	<-done

	snap := sessions.Snapshot()
	if snap.Status == domain.StatusAuthenticated || snap.Profile != nil || snap.UnreadMessageCount != 0 {
		t.Fatalf("late profile resurrected the session: %+v", snap)
	}
	if api.currentToken() != "" {
		t.Fatalf("expected no credential after logout, got %q", api.currentToken())
	}
	if local.profile != nil {
		t.Fatal("late profile must not be cached after logout")
	}
}

func TestLogoutDiscardsLateLogin(t *testing.T) {
	sessions := session.New()
	sessions.ClearUser()
	api := &fakeAPI{
		loginToken:   "tok-late",
		profile:      &domain.Profile{ID: 4, Role: domain.RoleTeam},
		loginGate:    make(chan struct{}),
		loginStarted: make(chan struct{}, 1),
	}
	local := &memLocal{}
	b := NewBootstrapper(sessions, api, local, nil)

	type result struct {
		profile *domain.Profile
		err     error
	}
	done := make(chan result, 1)
	go func() {
		p, err := b.Login(context.Background(), marketplace.Credentials{Email: "club@fn.test", Password: "pw"})
		done <- result{p, err}
	}()
	<-api.loginStarted

	if err := b.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	close(api.loginGate)
	res := <-done

	if !errors.Is(res.err, ErrSessionSuperseded) || res.profile != nil {
		t.Fatalf("expected superseded login, got profile=%v err=%v", res.profile, res.err)
	}
	snap := sessions.Snapshot()
	if snap.Status != domain.StatusUnauthenticated || snap.Profile != nil || snap.Token != "" {
		t.Fatalf("logout was undone by a late sign-in: %+v", snap)
	}
	local.mu.Lock()
	persisted := local.token
	local.mu.Unlock()
	if persisted != "" {
		t.Fatalf("late sign-in token persisted: %q", persisted)
	}
	if api.callCount() != 0 {
		t.Fatalf("expected no profile fetch, got %d", api.callCount())
	}
}

func TestCachedProfileVisibleOnlyWhilePending(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{
		profile: &domain.Profile{ID: 2, Role: domain.RoleTeam},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	local := &memLocal{token: "tok", profile: &domain.Profile{ID: 2, Role: domain.RoleCandidate}}
	b := NewBootstrapper(sessions, api, local, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Bootstrap(context.Background())
	}()
	<-api.started

	snap := sessions.Snapshot()
	if snap.Status != domain.StatusPending || snap.CachedProfile == nil {
		t.Fatalf("expected pending with cached profile, got %+v", snap)
	}

	close(api.gate)
	<-done

	snap = sessions.Snapshot()
	if snap.CachedProfile != nil || snap.Profile.Role != domain.RoleTeam {
		t.Fatalf("expected live profile to replace the cache, got %+v", snap)
	}
}

func TestExpiredJWTSkipsNetwork(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	sessions := session.New()
	api := &fakeAPI{profile: &domain.Profile{ID: 7, Role: domain.RoleCandidate}}
	local := &memLocal{token: token}
	b := NewBootstrapper(sessions, api, local, nil)

	_ = b.Bootstrap(context.Background())

	if api.callCount() != 0 {
		t.Fatalf("expected no network call for expired token, got %d", api.callCount())
	}
	if sessions.Snapshot().Status != domain.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", sessions.Snapshot().Status)
	}
	if local.token != "" {
		t.Fatal("expected expired token to be cleared")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	sign := func(claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque", "not-a-jwt", false},
		{"no exp", sign(jwt.RegisteredClaims{Subject: "1"}), false},
		{"future exp", sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}), false},
		{"past exp", sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := tokenExpired(tt.token, now); got != tt.want {
				t.Errorf("tokenExpired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{loginToken: "fresh", profile: &domain.Profile{ID: 3, Role: domain.RoleAdmin}}
	local := &memLocal{}
	b := NewBootstrapper(sessions, api, local, nil)

	p, err := b.Login(context.Background(), marketplace.Credentials{Email: "admin@fn.test", Password: "pw"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if p.Role != domain.RoleAdmin {
		t.Fatalf("unexpected profile %+v", p)
	}
	if local.token != "fresh" {
		t.Fatalf("expected token persisted, got %q", local.token)
	}
	if snap := sessions.Snapshot(); !snap.Authenticated() || snap.Token != "fresh" {
		t.Fatalf("expected authenticated session with fresh token, got %+v", snap)
	}

	// A later bootstrap with the same token must not refetch.
	_ = b.Bootstrap(context.Background())
	if api.callCount() != 1 {
		t.Fatalf("expected one profile fetch, got %d", api.callCount())
	}
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	sessions := session.New()
	sessions.ClearUser()
	api := &fakeAPI{loginErr: &marketplace.APIError{StatusCode: http.StatusUnauthorized, Detail: "Incorrect username or password"}}
	b := NewBootstrapper(sessions, api, &memLocal{}, nil)

	before := sessions.Snapshot().Generation
	if _, err := b.Login(context.Background(), marketplace.Credentials{Email: "x", Password: "y"}); err == nil {
		t.Fatal("expected login error")
	}
	if sessions.Snapshot().Generation != before {
		t.Fatal("a rejected login must not touch the session")
	}
}

func TestUpdateProfileReplacesSessionUser(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{
		loginToken: "tok",
		profile:    &domain.Profile{ID: 5, Role: domain.RoleCandidate, Position: "Winger"},
		updated:    &domain.Profile{ID: 5, Role: domain.RoleCandidate, Position: "Striker", Location: "Porto"},
	}
	local := &memLocal{}
	b := NewBootstrapper(sessions, api, local, nil)

	if _, err := b.Login(context.Background(), marketplace.Credentials{Email: "w@fn.test", Password: "pw"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	pos := "Striker"
	p, err := b.UpdateProfile(context.Background(), marketplace.ProfileUpdate{Position: &pos})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if p.Position != "Striker" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if snap := sessions.Snapshot(); !snap.Authenticated() || snap.Profile.Position != "Striker" || snap.Profile.Location != "Porto" {
		t.Fatalf("session profile not replaced: %+v", snap.Profile)
	}
	local.mu.Lock()
	cached := local.profile
	local.mu.Unlock()
	if cached == nil || cached.Position != "Striker" {
		t.Fatalf("cached snapshot not refreshed: %+v", cached)
	}
}

func TestUpdateProfileRequiresSignedInUser(t *testing.T) {
	sessions := session.New()
	sessions.ClearUser()
	b := NewBootstrapper(sessions, &fakeAPI{}, &memLocal{}, nil)

	if _, err := b.UpdateProfile(context.Background(), marketplace.ProfileUpdate{}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestLogoutDiscardsLateProfileEdit(t *testing.T) {
	sessions := session.New()
	api := &fakeAPI{
		loginToken:    "tok",
		profile:       &domain.Profile{ID: 5, Role: domain.RoleCandidate},
		updated:       &domain.Profile{ID: 5, Role: domain.RoleCandidate, Location: "Porto"},
		updateGate:    make(chan struct{}),
		updateStarted: make(chan struct{}, 1),
	}
	local := &memLocal{}
	b := NewBootstrapper(sessions, api, local, nil)
	if _, err := b.Login(context.Background(), marketplace.Credentials{Email: "w@fn.test", Password: "pw"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.UpdateProfile(context.Background(), marketplace.ProfileUpdate{})
		done <- err
	}()
	<-api.updateStarted

	if err := b.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	close(api.updateGate)

	if err := <-done; !errors.Is(err, ErrSessionSuperseded) {
		t.Fatalf("expected ErrSessionSuperseded, got %v", err)
	}
	if snap := sessions.Snapshot(); snap.Status != domain.StatusUnauthenticated || snap.Profile != nil {
		t.Fatalf("late edit resurrected the session: %+v", snap)
	}
	local.mu.Lock()
	cached := local.profile
	local.mu.Unlock()
	if cached != nil {
		t.Fatalf("late edit cached after logout: %+v", cached)
	}
}
