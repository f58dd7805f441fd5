// Package state persists analyzed views and their column lineage in SQLite.
// It tracks scan runs, view columns and the base columns each one derives
// from, and answers direct-dependency queries over that lineage.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var errNotOpen = errors.New("database not opened")

// ErrNotFound is returned when a view or run does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the state of a scan run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one scan over a set of view definitions.
type Run struct {
	ID          string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Views       int
	Failures    int
	Error       string
}

// View is a stored view summary.
type View struct {
	Name        string    `json:"name" yaml:"name"`
	Origin      string    `json:"origin" yaml:"origin"`
	RunID       string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Columns     int       `json:"columns" yaml:"columns"`
	Diagnostics int       `json:"diagnostics" yaml:"diagnostics"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// ViewColumn is a stored output column with its lineage.
type ViewColumn struct {
	View       string   `json:"view" yaml:"view"`
	Name       string   `json:"column_name" yaml:"column_name"`
	Index      int      `json:"index" yaml:"index"`
	Expression string   `json:"expression" yaml:"expression"`
	BaseTable  string   `json:"base_table,omitempty" yaml:"base_table,omitempty"`
	Lineage    []string `json:"lineage" yaml:"lineage"`
}

// Edge links a base column to a view column derived from it.
type Edge struct {
	View         string `json:"view" yaml:"view"`
	Column       string `json:"column" yaml:"column"`
	SourceTable  string `json:"source_table" yaml:"source_table"`
	SourceColumn string `json:"source_column" yaml:"source_column"`
}

// Store is the SQLite state store. Writes go through a single connection.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// an in-memory database. A nil logger discards log output.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// An in-memory database lives in one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Debug("opened state store", slog.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string { return s.path }

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

func generateID() string {
	return uuid.New().String()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
