// Package dialect describes the SQL dialects understood by the lexer and
// renderer.
//
// A dialect only changes how text is tokenized, quoted and rendered. Lineage
// resolution is identical for every dialect. Built-in dialects are registered
// at init time and looked up by name:
//
//	d, ok := dialect.Get("tsql")
package dialect

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/token"
)

// Dialect holds the lexical and rendering rules of one SQL dialect.
type Dialect struct {
	Name        string
	Description string

	// QuoteOpen and QuoteClose are used when an identifier must be quoted.
	QuoteOpen  byte
	QuoteClose byte

	// Lexer switches
	BracketIdentifiers  bool // [name]
	BacktickIdentifiers bool // `name`
	DoubleColonCast     bool // expr::type
	HashTempTables      bool // #temp names

	// AliasAssignment enables the `alias = expr` projection form.
	AliasAssignment bool
	// TypeFirstConvert parses CONVERT(type, expr [, style]) as a cast.
	TypeFirstConvert bool
	// ValueFirstConvert parses CONVERT(expr, type) and CONVERT(expr USING cs).
	ValueFirstConvert bool

	reserved map[string]struct{}
}

// IsReserved reports whether word must be quoted when used as an identifier.
func (d *Dialect) IsReserved(word string) bool {
	lower := strings.ToLower(word)
	if token.IsReservedWord(lower) {
		return true
	}
	_, ok := d.reserved[lower]
	return ok
}

// QuoteIdent renders name as an identifier, quoting it when quoted is set or
// when the bare form would not lex back to the same identifier.
func (d *Dialect) QuoteIdent(name string, quoted bool) string {
	if !quoted && !d.needsQuote(name) {
		return name
	}
	closing := string(d.QuoteClose)
	escaped := strings.ReplaceAll(name, closing, closing+closing)
	return string(d.QuoteOpen) + escaped + closing
}

func (d *Dialect) needsQuote(name string) bool {
	if name == "" {
		return true
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= 0x80:
		case c >= '0' && c <= '9':
			if i == 0 {
				return true
			}
		case c == '#' && d.HashTempTables && i == 0:
		default:
			return true
		}
	}
	return d.IsReserved(name)
}

// Builder assembles a Dialect.
type Builder struct {
	d *Dialect
}

// New starts a dialect definition with ANSI double-quote identifiers.
func New(name string) *Builder {
	return &Builder{d: &Dialect{
		Name:       name,
		QuoteOpen:  '"',
		QuoteClose: '"',
		reserved:   make(map[string]struct{}),
	}}
}

// Describe sets a one-line description.
func (b *Builder) Describe(s string) *Builder {
	b.d.Description = s
	return b
}

// Quotes sets the identifier quote characters used for rendering.
func (b *Builder) Quotes(open, closing byte) *Builder {
	b.d.QuoteOpen = open
	b.d.QuoteClose = closing
	return b
}

// Brackets enables [bracketed] identifiers.
func (b *Builder) Brackets() *Builder {
	b.d.BracketIdentifiers = true
	return b
}

// Backticks enables `backtick` identifiers.
func (b *Builder) Backticks() *Builder {
	b.d.BacktickIdentifiers = true
	return b
}

// DoubleColonCast enables the postfix :: cast operator.
func (b *Builder) DoubleColonCast() *Builder {
	b.d.DoubleColonCast = true
	return b
}

// TempTables allows identifiers starting with '#'.
func (b *Builder) TempTables() *Builder {
	b.d.HashTempTables = true
	return b
}

// AliasAssignment enables `SELECT alias = expr`.
func (b *Builder) AliasAssignment() *Builder {
	b.d.AliasAssignment = true
	return b
}

// ConvertTypeFirst parses CONVERT(type, expr [, style]) as a cast.
func (b *Builder) ConvertTypeFirst() *Builder {
	b.d.TypeFirstConvert = true
	return b
}

// ConvertValueFirst parses CONVERT(expr, type) as a cast.
func (b *Builder) ConvertValueFirst() *Builder {
	b.d.ValueFirstConvert = true
	return b
}

// Reserved adds dialect reserved words.
func (b *Builder) Reserved(words ...string) *Builder {
	for _, w := range words {
		b.d.reserved[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Build returns the finished dialect.
func (b *Builder) Build() *Dialect {
	return b.d
}
