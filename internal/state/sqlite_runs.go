package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateRun starts a new scan run.
func (s *Store) CreateRun(ctx context.Context) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	run := &Run{
		ID:        generateID(),
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.logger.Debug("scan run created", slog.String("run_id", run.ID))
	return run, nil
}

// CompleteRun marks a run finished with its counts.
func (s *Store) CompleteRun(ctx context.Context, id string, status RunStatus, views, failures int, errMsg string) error {
	if s.db == nil {
		return errNotOpen
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE scan_runs SET status = ?, completed_at = ?, views = ?, failures = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), views, failures, nullableString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, completed_at, views, failures, error FROM scan_runs WHERE id = ?`,
		id,
	), id)
}

// LatestRun returns the most recent run, or nil when there is none.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, completed_at, views, failures, error
		 FROM scan_runs ORDER BY started_at DESC LIMIT 1`,
	), "")
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return run, err
}

func (s *Store) scanRun(row *sql.Row, id string) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&run.ID, &run.Status, &run.StartedAt, &completedAt, &run.Views, &run.Failures, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}
