// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	APIBaseURL  string // marketplace REST API root, e.g. https://api.example.com
	DBPath      string
	APITimeout  time.Duration
	Inbox       InboxConfig
	Dashboard   DashboardConfig
	Debug       bool
}

// InboxConfig controls the messaging poller.
type InboxConfig struct {
	PollInterval time.Duration
}

// DashboardConfig controls dashboard data loading.
type DashboardConfig struct {
	FeaturedJobsLimit int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		APIBaseURL:  strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		DBPath:      getEnv("DB_PATH", "./data/portal.db"),
		APITimeout:  getEnvDuration("API_TIMEOUT", 15*time.Second),
		Inbox: InboxConfig{
			PollInterval: getEnvDuration("INBOX_POLL_INTERVAL", 7*time.Second),
		},
		Dashboard: DashboardConfig{
			FeaturedJobsLimit: getEnvInt("FEATURED_JOBS_LIMIT", 5),
		},
		Debug: getEnvBool("DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be > 0")
	}
	if c.Inbox.PollInterval <= 0 {
		return fmt.Errorf("INBOX_POLL_INTERVAL must be > 0")
	}
	if c.Dashboard.FeaturedJobsLimit <= 0 {
		return fmt.Errorf("FEATURED_JOBS_LIMIT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("7s") and bare seconds ("7").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
