// Package config provides configuration management for the viewlineage CLI.
//
// Values are layered with koanf: built-in defaults, then viewlineage.yaml,
// then VIEWLINEAGE_* environment variables, then explicitly set flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	Dialect      string       `koanf:"dialect"`
	OutputFormat string       `koanf:"output"`
	MaxDepth     int          `koanf:"max_depth"`
	Workers      int          `koanf:"workers"`
	StatePath    string       `koanf:"state_path"`
	CatalogPath  string       `koanf:"catalog_path"`
	Verbose      bool         `koanf:"verbose"`
	Source       SourceConfig `koanf:"source"`
	Server       ServerConfig `koanf:"server"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// SourceConfig selects where view definitions are read from. Dir wins when
// both a directory and a database are configured.
type SourceConfig struct {
	Dir     string `koanf:"dir"`
	Pattern string `koanf:"pattern"`
	Driver  string `koanf:"driver"` // pgx or sqlite
	DSN     string `koanf:"dsn"`
}

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Default configuration values.
const (
	DefaultDialect    = "tsql"
	DefaultOutput     = "auto" // Auto-detect: TTY=table, non-TTY=json
	DefaultMaxDepth   = 64
	DefaultWorkers    = 4
	DefaultStateFile  = ".viewlineage/state.db"
	DefaultPattern    = "*.sql"
	DefaultServerAddr = "127.0.0.1:8470"
)

// Config file names searched in the project root.
var configFileNames = []string{"viewlineage.yaml", "viewlineage.yml"}
