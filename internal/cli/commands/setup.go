package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapsql/internal/cli/config"
	"github.com/leapstack-labs/leapsql/internal/cli/output"
	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// EngineOptions builds lineage engine options from the configuration.
// extra is merged into the catalog file, taking precedence.
func (c *CommandContext) EngineOptions(extra lineage.Schema) (lineage.Options, error) {
	schema := lineage.Schema{}
	if c.Cfg.CatalogPath != "" {
		loaded, err := lineage.LoadSchema(c.Cfg.CatalogPath)
		if err != nil {
			return lineage.Options{}, err
		}
		for table, cols := range loaded {
			schema[table] = cols
		}
	}
	for table, cols := range extra {
		schema[table] = cols
	}

	opts := lineage.Options{
		Dialect:  c.Cfg.Dialect,
		MaxDepth: c.Cfg.MaxDepth,
		Logger:   c.Logger,
	}
	if len(schema) > 0 {
		opts.Catalog = schema
	}
	return opts, nil
}

// NewEngine creates a lineage engine from the configuration.
func (c *CommandContext) NewEngine() (*lineage.Engine, error) {
	opts, err := c.EngineOptions(nil)
	if err != nil {
		return nil, err
	}
	return lineage.NewEngine(opts)
}

// OpenStore opens and migrates the state store. The returned cleanup
// function closes it.
func (c *CommandContext) OpenStore(ctx context.Context) (*state.Store, func(), error) {
	if c.Cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(c.Cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	store, err := state.Open(c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// getConfig returns the loaded configuration, or defaults when commands run
// without the root command (as in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Dialect:      config.DefaultDialect,
		OutputFormat: config.DefaultOutput,
		MaxDepth:     config.DefaultMaxDepth,
		Workers:      config.DefaultWorkers,
		StatePath:    config.DefaultStateFile,
		Source:       config.SourceConfig{Pattern: config.DefaultPattern},
		Server:       config.ServerConfig{Addr: config.DefaultServerAddr},
	}
}
