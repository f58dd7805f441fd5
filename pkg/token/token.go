// Package token defines the lexical tokens shared by the SQL lexer, parser
// and renderer.
//
// Only words that can never be used as bare identifiers are keyword tokens.
// Contextual words such as TOP, VIEW, ROWS or INTERVAL are lexed as IDENT and
// matched by literal in the parser.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // token.TokenType reads clearly at call sites
type TokenType int32

//nolint:revive // SQL token names are ALL_CAPS by convention
const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT   // identifier, bare or quoted
	NUMBER  // 123, 45.67, 1e10
	STRING  // 'hello'
	NSTRING // N'hello'
	PARAM   // @var, ?, $1, :name

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	AMP       // &
	PIPE      // |
	CARET     // ^
	TILDE     // ~
	DOT       // .
	COMMA     // ,
	SEMICOLON // ;
	DCOLON    // ::
	LPAREN    // (
	RPAREN    // )

	// Reserved keywords (alphabetical)
	ALL
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CREATE
	CROSS
	DESC
	DISTINCT
	ELSE
	END
	EXCEPT
	EXISTS
	FALSE
	FROM
	FULL
	GROUP
	HAVING
	ILIKE
	IN
	INNER
	INTERSECT
	IS
	JOIN
	LEFT
	LIKE
	LIMIT
	NOT
	NULL
	ON
	OR
	ORDER
	OUTER
	OVER
	RIGHT
	SELECT
	THEN
	TRUE
	UNION
	USING
	WHEN
	WHERE
	WITH
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:   "IDENT",
	NUMBER:  "NUMBER",
	STRING:  "STRING",
	NSTRING: "NSTRING",
	PARAM:   "PARAM",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "<>",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	AMP:       "&",
	PIPE:      "|",
	CARET:     "^",
	TILDE:     "~",
	DOT:       ".",
	COMMA:     ",",
	SEMICOLON: ";",
	DCOLON:    "::",
	LPAREN:    "(",
	RPAREN:    ")",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       ALL,
	"and":       AND,
	"as":        AS,
	"asc":       ASC,
	"between":   BETWEEN,
	"by":        BY,
	"case":      CASE,
	"cast":      CAST,
	"create":    CREATE,
	"cross":     CROSS,
	"desc":      DESC,
	"distinct":  DISTINCT,
	"else":      ELSE,
	"end":       END,
	"except":    EXCEPT,
	"exists":    EXISTS,
	"false":     FALSE,
	"from":      FROM,
	"full":      FULL,
	"group":     GROUP,
	"having":    HAVING,
	"ilike":     ILIKE,
	"in":        IN,
	"inner":     INNER,
	"intersect": INTERSECT,
	"is":        IS,
	"join":      JOIN,
	"left":      LEFT,
	"like":      LIKE,
	"limit":     LIMIT,
	"not":       NOT,
	"null":      NULL,
	"on":        ON,
	"or":        OR,
	"order":     ORDER,
	"outer":     OUTER,
	"over":      OVER,
	"right":     RIGHT,
	"select":    SELECT,
	"then":      THEN,
	"true":      TRUE,
	"union":     UNION,
	"using":     USING,
	"when":      WHEN,
	"where":     WHERE,
	"with":      WITH,
}

func init() {
	for word, t := range keywords {
		tokenNames[t] = upper(word)
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// Lookup returns the keyword token for a lowercase word, or IDENT.
func Lookup(word string) TokenType {
	if t, ok := keywords[word]; ok {
		return t
	}
	return IDENT
}

// IsKeyword reports whether t is a reserved keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t <= WITH
}

// IsReservedWord reports whether the lowercase word is a reserved keyword.
// The renderer uses it to decide when an identifier must be quoted.
func IsReservedWord(word string) bool {
	_, ok := keywords[word]
	return ok
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Quoted  bool // identifier written with quote characters
	Pos     Position
	End     Position
}
