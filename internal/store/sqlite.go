package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/footballnetwork/portal/internal/domain"
	_ "modernc.org/sqlite"
)

var _ LocalState = (*SQLiteStore)(nil)

// SQLiteStore implements LocalState using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writes to avoid SQLITE_BUSY between clear and save
}

// NewSQLite creates a new SQLite-backed local state store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps :memory: databases shared and writes ordered.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS local_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) put(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
	INSERT INTO local_state (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	return withRetry(ctx, "put "+key, func() error {
		if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().Unix()); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
		return nil
	})
}

// LoadToken returns the persisted access token.
func (s *SQLiteStore) LoadToken(ctx context.Context) (string, error) {
	token, _, err := s.get(ctx, KeyAccessToken)
	return strings.TrimSpace(token), err
}

// SaveToken persists the access token.
func (s *SQLiteStore) SaveToken(ctx context.Context, token string) error {
	return s.put(ctx, KeyAccessToken, token)
}

// LoadProfile returns the cached profile snapshot. A corrupt snapshot is
// logged and treated as absent.
func (s *SQLiteStore) LoadProfile(ctx context.Context) (*domain.Profile, error) {
	raw, ok, err := s.get(ctx, KeyCurrentUser)
	if err != nil || !ok {
		return nil, err
	}

	var p domain.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		slog.Warn("Ignoring unreadable cached profile", "error", err)
		return nil, nil
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

// SaveProfile replaces the cached profile snapshot.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil {
		return errors.New("save profile: nil profile")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.put(ctx, KeyCurrentUser, string(data))
}

// ClearCredentials removes the token and the cached profile.
func (s *SQLiteStore) ClearCredentials(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return withRetry(ctx, "clear credentials", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM local_state WHERE key IN (?, ?)`, KeyAccessToken, KeyCurrentUser)
		if err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		return nil
	})
}

// withRetry runs op with exponential backoff while SQLite reports a lock conflict.
func withRetry(ctx context.Context, name string, op func() error) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = op(); err == nil {
			return nil
		}
		if !isConflict(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("Local state write hit a lock, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// isConflict reports SQLITE_BUSY and "database is locked" errors.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
