package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("API_BASE_URL", "http://localhost:8000/")
	t.Setenv("DB_PATH", "./data/portal.db")
	t.Setenv("API_TIMEOUT", "15s")
	t.Setenv("INBOX_POLL_INTERVAL", "7")
	t.Setenv("FEATURED_JOBS_LIMIT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.Inbox.PollInterval != 7*time.Second {
		t.Errorf("expected 7s poll interval, got %s", cfg.Inbox.PollInterval)
	}
	if cfg.APITimeout != 15*time.Second || cfg.Dashboard.FeaturedJobsLimit != 5 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:       "8080",
			APIBaseURL: "https://api.example.com",
			DBPath:     "x.db",
			APITimeout: time.Second,
			Inbox:      InboxConfig{PollInterval: time.Second},
			Dashboard:  DashboardConfig{FeaturedJobsLimit: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"relative api url", func(c *Config) { c.APIBaseURL = "/api" }, true},
		{"zero poll interval", func(c *Config) { c.Inbox.PollInterval = 0 }, true},
		{"zero timeout", func(c *Config) { c.APITimeout = 0 }, true},
		{"zero featured limit", func(c *Config) { c.Dashboard.FeaturedJobsLimit = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("D_GO", "250ms")
	t.Setenv("D_SECONDS", "3")
	t.Setenv("D_BAD", "soon")

	if got := getEnvDuration("D_GO", time.Second); got != 250*time.Millisecond {
		t.Errorf("D_GO = %s", got)
	}
	if got := getEnvDuration("D_SECONDS", time.Second); got != 3*time.Second {
		t.Errorf("D_SECONDS = %s", got)
	}
	if got := getEnvDuration("D_BAD", time.Second); got != time.Second {
		t.Errorf("D_BAD = %s", got)
	}
	if got := getEnvDuration("D_MISSING", 2*time.Second); got != 2*time.Second {
		t.Errorf("D_MISSING = %s", got)
	}
}

func TestIsDevelopment(t *testing.T) {
	if !(&Config{}).IsDevelopment() {
		t.Error("empty FRONTEND_URL should be development")
	}
	if (&Config{FrontendURL: "https://portal.example.com"}).IsDevelopment() {
		t.Error("public FRONTEND_URL should not be development")
	}
}
