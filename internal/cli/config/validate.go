package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
)

// Output modes accepted by the output key.
var validOutputs = []string{"auto", "json", "yaml", "table", "text"}

// Database drivers accepted by source.driver.
var validDrivers = []string{"pgx", "sqlite"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := dialect.Get(c.Dialect); !ok {
		return fmt.Errorf("unknown dialect %q\nHint: available dialects are %s", c.Dialect, strings.Join(dialect.List(), ", "))
	}
	if !slices.Contains(validOutputs, strings.ToLower(c.OutputFormat)) {
		return fmt.Errorf("unknown output format %q (expected one of %s)", c.OutputFormat, strings.Join(validOutputs, ", "))
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Source.Driver != "" && !slices.Contains(validDrivers, c.Source.Driver) {
		return fmt.Errorf("unknown source driver %q (expected one of %s)", c.Source.Driver, strings.Join(validDrivers, ", "))
	}
	if c.Source.Driver != "" && c.Source.DSN == "" {
		return fmt.Errorf("source.dsn is required when source.driver is %q", c.Source.Driver)
	}
	return nil
}
