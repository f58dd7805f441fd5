package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapsql/pkg/lineage"
)

// SaveView stores the analysis of a view, replacing its previous columns and
// lineage in one transaction. runID may be empty.
func (s *Store) SaveView(ctx context.Context, runID, name, origin string, res *lineage.Result) error {
	if s.db == nil {
		return errNotOpen
	}
	if name == "" {
		return errors.New("view name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var diagCount int
	if res != nil {
		diagCount = len(res.Diagnostics)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO views (name, origin, run_id, diagnostics, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     origin = excluded.origin,
		     run_id = excluded.run_id,
		     diagnostics = excluded.diagnostics,
		     updated_at = excluded.updated_at`,
		name, origin, nullableString(runID), diagCount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save view %s: %w", name, err)
	}

	// Lineage rows cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM view_columns WHERE view_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete existing columns: %w", err)
	}

	if res != nil && res.Lineage != nil {
		for i, col := range res.Lineage.Columns {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO view_columns (view_name, column_name, column_index, expression, base_table)
				 VALUES (?, ?, ?, ?, ?)`,
				name, col.Name, i, col.Expression, nullableString(col.BaseTable),
			); err != nil {
				return fmt.Errorf("failed to insert column %s: %w", col.Name, err)
			}

			for j, ref := range col.Lineage {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO column_lineage (view_name, column_index, source_index, source_table, source_column)
					 VALUES (?, ?, ?, ?, ?)`,
					name, i, j, ref.Table, ref.Column,
				); err != nil {
					return fmt.Errorf("failed to insert lineage for column %s: %w", col.Name, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit view %s: %w", name, err)
	}
	s.logger.Debug("view saved", slog.String("view", name), slog.String("run_id", runID))
	return nil
}

// DeleteView removes a view and everything stored for it.
func (s *Store) DeleteView(ctx context.Context, name string) error {
	if s.db == nil {
		return errNotOpen
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete view %s: %w", name, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("view %s: %w", name, ErrNotFound)
	}
	return nil
}

// ListViews returns every stored view ordered by name.
func (s *Store) ListViews(ctx context.Context) ([]View, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT v.name, v.origin, COALESCE(v.run_id, ''), v.diagnostics, v.updated_at,
		        (SELECT COUNT(*) FROM view_columns c WHERE c.view_name = v.name)
		 FROM views v ORDER BY v.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var views []View
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.Name, &v.Origin, &v.RunID, &v.Diagnostics, &v.UpdatedAt, &v.Columns); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// GetViewColumns returns a view's columns in projection order with their
// lineage.
func (s *Store) GetViewColumns(ctx context.Context, name string) ([]ViewColumn, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM views WHERE name = ?`, name).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("view %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.column_index, c.column_name, c.expression, COALESCE(c.base_table, ''),
		        l.source_table, l.source_column
		 FROM view_columns c
		 LEFT JOIN column_lineage l
		     ON l.view_name = c.view_name AND l.column_index = c.column_index
		 WHERE c.view_name = ?
		 ORDER BY c.column_index, l.source_index`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []ViewColumn
	for rows.Next() {
		var (
			idx               int
			colName, expr, bt string
			srcTable, srcCol  sql.NullString
		)
		if err := rows.Scan(&idx, &colName, &expr, &bt, &srcTable, &srcCol); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if len(cols) == 0 || cols[len(cols)-1].Index != idx {
			cols = append(cols, ViewColumn{
				View:       stored,
				Name:       colName,
				Index:      idx,
				Expression: expr,
				BaseTable:  bt,
				Lineage:    []string{},
			})
		}
		if srcCol.Valid {
			ref := lineage.Ref{Table: srcTable.String, Column: srcCol.String}
			last := &cols[len(cols)-1]
			last.Lineage = append(last.Lineage, ref.String())
		}
	}
	return cols, rows.Err()
}

// Downstream returns the view columns whose lineage names table.column
// directly. An empty column matches every column of the table.
func (s *Store) Downstream(ctx context.Context, table, column string) ([]Edge, error) {
	return s.queryEdges(ctx,
		`WHERE l.source_table = ? COLLATE NOCASE AND (? = '' OR l.source_column = ? COLLATE NOCASE)`,
		table, column, column,
	)
}

// LineageEdges returns every stored lineage edge.
func (s *Store) LineageEdges(ctx context.Context) ([]Edge, error) {
	return s.queryEdges(ctx, "")
}

func (s *Store) queryEdges(ctx context.Context, where string, args ...any) ([]Edge, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT l.view_name, c.column_name, l.source_table, l.source_column
		 FROM column_lineage l
		 JOIN view_columns c ON c.view_name = l.view_name AND c.column_index = l.column_index
		 `+where+`
		 ORDER BY l.view_name, l.column_index, l.source_index`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.View, &e.Column, &e.SourceTable, &e.SourceColumn); err != nil {
			return nil, fmt.Errorf("failed to scan lineage: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
