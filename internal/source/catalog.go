package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Flavor selects the catalog queries for a database.
type Flavor string

// Supported catalog flavors, named after their database/sql drivers.
const (
	FlavorPostgres Flavor = "pgx"
	FlavorSQLite   Flavor = "sqlite"
)

// Catalog reads view definitions and table columns from a live database.
type Catalog struct {
	DB     *sql.DB
	Flavor Flavor
	Logger *slog.Logger
}

// OpenCatalog connects to a database with the named driver.
func OpenCatalog(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Catalog, error) {
	flavor := Flavor(driver)
	if flavor != FlavorPostgres && flavor != FlavorSQLite {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("connecting to catalog", slog.String("driver", driver))

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	return &Catalog{DB: db, Flavor: flavor, Logger: logger}, nil
}

// Close closes the connection.
func (c *Catalog) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

const postgresViewsQuery = `SELECT table_schema, table_name, view_definition
FROM information_schema.views
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name`

const postgresColumnsQuery = `SELECT table_schema, table_name, column_name
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name, ordinal_position`

const sqliteViewsQuery = `SELECT '', name, sql
FROM sqlite_master
WHERE type = 'view'
ORDER BY name`

const sqliteColumnsQuery = `SELECT '', m.name, p.name
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`

func (c *Catalog) queries() (views, columns string) {
	if c.Flavor == FlavorPostgres {
		return postgresViewsQuery, postgresColumnsQuery
	}
	return sqliteViewsQuery, sqliteColumnsQuery
}

// List implements Lister. Bodies stored without their CREATE VIEW header
// are wrapped so that the view name survives analysis.
func (c *Catalog) List(ctx context.Context) ([]Definition, error) {
	viewsQuery, _ := c.queries()
	rows, err := c.DB.QueryContext(ctx, viewsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []Definition
	for rows.Next() {
		var schema, name string
		var body sql.NullString
		if err := rows.Scan(&schema, &name, &body); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		qualified := qualify(schema, name)
		if !body.Valid || strings.TrimSpace(body.String) == "" {
			c.Logger.Warn("view has no readable definition", slog.String("view", qualified))
			continue
		}
		defs = append(defs, Definition{
			Name:   qualified,
			Origin: "catalog:" + string(c.Flavor) + "/" + qualified,
			SQL:    wrapDefinition(qualified, body.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	return defs, nil
}

// Columns reads the column names of every table and view.
func (c *Catalog) Columns(ctx context.Context) (lineage.Schema, error) {
	_, columnsQuery := c.queries()
	rows, err := c.DB.QueryContext(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	schema := lineage.Schema{}
	for rows.Next() {
		var tableSchema, table, column string
		if err := rows.Scan(&tableSchema, &table, &column); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		key := qualify(tableSchema, table)
		schema[key] = append(schema[key], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	return schema, nil
}

func qualify(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// wrapDefinition prefixes a bare query body with CREATE VIEW.
func wrapDefinition(name, body string) string {
	body = strings.TrimSuffix(strings.TrimSpace(body), ";")
	if strings.HasPrefix(strings.ToUpper(body), "CREATE") {
		return body
	}
	return "CREATE VIEW " + name + " AS " + body
}
