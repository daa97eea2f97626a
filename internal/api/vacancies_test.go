package api

import (
	"net/http"
	"testing"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/marketplace"
)

func TestWriteRoutesRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.ClearUser()

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/vacancies"},
		{http.MethodPut, "/api/vacancies/9"},
		{http.MethodDelete, "/api/vacancies/9"},
		{http.MethodPost, "/api/applications"},
		{http.MethodPatch, "/api/applications/4/status"},
		{http.MethodPatch, "/api/profile"},
		{http.MethodPost, "/api/admin/users/7/activate"},
	}
	for _, rt := range routes {
		rr := env.do(rt.method, rt.path, `{}`)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", rt.method, rt.path, rr.Code)
		}
	}
	if calls := env.market.called(); len(calls) != 0 {
		t.Fatalf("expected no upstream calls, got %v", calls)
	}
}

func TestWriteRoutesCheckRole(t *testing.T) {
	tests := []struct {
		name   string
		role   domain.Role
		method string
		path   string
		body   string
	}{
		{"candidate cannot post vacancy", domain.RoleCandidate, http.MethodPost, "/api/vacancies", `{"title":"Analyst"}`},
		{"candidate cannot decide application", domain.RoleCandidate, http.MethodPatch, "/api/applications/4/status", `{"status":"accepted"}`},
		{"team cannot apply", domain.RoleTeam, http.MethodPost, "/api/applications", `{"vacancy_id":9}`},
		{"team cannot deactivate users", domain.RoleTeam, http.MethodPost, "/api/admin/users/7/deactivate", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.signIn(tt.role)

			rr := env.do(tt.method, tt.path, tt.body)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rr.Code)
			}
			if calls := env.market.called(); len(calls) != 0 {
				t.Fatalf("expected no upstream calls, got %v", calls)
			}
		})
	}
}

func TestCreateVacancy(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(domain.RoleTeam)

	rr := env.do(http.MethodPost, "/api/vacancies", `{"title":"  Analyst ","salary_min":1000,"salary_max":2000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if env.market.vacancyIn.Title != "Analyst" || *env.market.vacancyIn.SalaryMax != 2000 {
		t.Fatalf("unexpected vacancy input %+v", env.market.vacancyIn)
	}
	if got := decode(t, rr)["status"]; got != domain.VacancyDraft {
		t.Fatalf("expected draft vacancy, got %v", got)
	}
}

func TestCreateVacancyValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"description":"x"}`},
		{"salary range inverted", `{"title":"Analyst","salary_min":3000,"salary_max":2000}`},
		{"negative salary", `{"title":"Analyst","salary_min":-1}`},
		{"unknown status", `{"title":"Analyst","status":"archived"}`},
		{"malformed body", `{"title":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.signIn(domain.RoleTeam)

			rr := env.do(http.MethodPost, "/api/vacancies", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestVacancyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(domain.RoleTeam)

	steps := []struct {
		method string
		path   string
		body   string
		want   int
		call   string
	}{
		{http.MethodGet, "/api/vacancies/9", "", http.StatusOK, "GetVacancy"},
		{http.MethodPut, "/api/vacancies/9", `{"status":"closed"}`, http.StatusOK, "UpdateVacancy"},
		{http.MethodPost, "/api/vacancies/9/activate", "", http.StatusOK, "ActivateVacancy"},
		{http.MethodPost, "/api/vacancies/9/close", "", http.StatusOK, "CloseVacancy"},
		{http.MethodDelete, "/api/vacancies/9", "", http.StatusNoContent, "DeleteVacancy"},
	}
	for _, st := range steps {
		rr := env.do(st.method, st.path, st.body)
		if rr.Code != st.want {
			t.Fatalf("%s %s: expected %d, got %d", st.method, st.path, st.want, rr.Code)
		}
	}

	calls := env.market.called()
	if len(calls) != len(steps) {
		t.Fatalf("expected %d upstream calls, got %v", len(steps), calls)
	}
	for i, st := range steps {
		if calls[i] != st.call {
			t.Errorf("call %d: expected %s, got %s", i, st.call, calls[i])
		}
	}
	if env.market.vacancyIn != (marketplace.VacancyInput{Status: domain.VacancyClosed}) {
		t.Errorf("status-only update carried extra fields: %+v", env.market.vacancyIn)
	}
}

func TestUpdateVacancyRejectsEmptyBodyAndBadID(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(domain.RoleTeam)

	if rr := env.do(http.MethodPut, "/api/vacancies/9", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty update: expected 400, got %d", rr.Code)
	}
	if rr := env.do(http.MethodDelete, "/api/vacancies/abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rr.Code)
	}
	if calls := env.market.called(); len(calls) != 0 {
		t.Fatalf("expected no upstream calls, got %v", calls)
	}
}

func TestApply(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(domain.RoleCandidate)

	if rr := env.do(http.MethodPost, "/api/applications", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing vacancy: expected 400, got %d", rr.Code)
	}

	rr := env.do(http.MethodPost, "/api/applications", `{"vacancy_id":9}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if got := decode(t, rr)["status"]; got != domain.ApplicationPending {
		t.Fatalf("expected pending application, got %v", got)
	}
}

func TestApplyDuplicateKeepsUpstreamDetail(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(domain.RoleCandidate)
	env.market.err = &marketplace.APIError{StatusCode: http.StatusBadRequest, Detail: "Already applied"}

	rr := env.do(http.MethodPost, "/api/applications", `{"vacancy_id":9}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := decode(t, rr)["error"]; got != "Already applied" {
		t.Fatalf("expected upstream detail, got %v", got)
	}
}

func TestUpdateApplicationStatus(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(domain.RoleTeam)

	if rr := env.do(http.MethodPatch, "/api/applications/4/status", `{"status":"maybe"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected 400, got %d", rr.Code)
	}

	rr := env.do(http.MethodPatch, "/api/applications/4/status", `{"status":"declined"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if env.market.statusIn != domain.ApplicationDeclined {
		t.Fatalf("expected declined, got %q", env.market.statusIn)
	}
}
