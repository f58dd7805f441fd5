package lineage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog describes the columns of known tables. It is optional: without
// one, `*` stays unexpanded and unqualified columns are attributed to every
// table in scope.
type Catalog interface {
	// Columns returns the columns of table, matched case-insensitively by
	// qualified name or by its last name part.
	Columns(table string) ([]string, bool)
}

// Schema is a Catalog backed by a map of table name to column names.
type Schema map[string][]string

// Columns implements Catalog.
func (s Schema) Columns(table string) ([]string, bool) {
	if len(s) == 0 {
		return nil, false
	}
	if cols, ok := s[table]; ok {
		return cols, true
	}
	lower := strings.ToLower(table)
	last := lower
	if i := strings.LastIndexByte(lower, '.'); i >= 0 {
		last = lower[i+1:]
	}
	var byLast []string
	found := false
	for name, cols := range s {
		n := strings.ToLower(name)
		if n == lower {
			return cols, true
		}
		if n == last || strings.HasSuffix(n, "."+last) && !strings.Contains(lower, ".") {
			byLast, found = cols, true
		}
	}
	return byLast, found
}

// schemaFile is the on-disk catalog layout:
//
//	tables:
//	  dbo.orders: [order_id, customer_id, order_date]
type schemaFile struct {
	Tables map[string][]string `yaml:"tables"`
}

// ParseSchema decodes a YAML catalog document.
func ParseSchema(data []byte) (Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return Schema(f.Tables), nil
}

// LoadSchema reads a YAML catalog file.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseSchema(data)
}

// hasColumn reports whether cols contains name, ignoring case.
func hasColumn(cols []string, name string) bool {
	for _, c := range cols {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
