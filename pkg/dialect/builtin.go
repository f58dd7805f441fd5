package dialect

// ANSI is the permissive default dialect.
var ANSI = New("ansi").
	Describe("ANSI SQL with double-quoted identifiers").
	Build()

// TSQL is Microsoft SQL Server / Azure Synapse.
var TSQL = New("tsql").
	Describe("T-SQL with [bracketed] identifiers, TOP and APPLY").
	Quotes('[', ']').
	Brackets().
	TempTables().
	AliasAssignment().
	ConvertTypeFirst().
	Reserved("top", "percent", "pivot", "unpivot", "apply", "tablesample", "user").
	Build()

// MySQL uses backtick identifiers.
var MySQL = New("mysql").
	Describe("MySQL / MariaDB with `backtick` identifiers").
	Quotes('`', '`').
	Backticks().
	ConvertValueFirst().
	Reserved("interval", "key", "natural").
	Build()

// Postgres is PostgreSQL.
var Postgres = New("postgres").
	Describe("PostgreSQL with :: casts").
	DoubleColonCast().
	Reserved("user", "table", "natural", "only", "window", "fetch", "offset").
	Build()

// DuckDB shares the Postgres lexical rules.
var DuckDB = New("duckdb").
	Describe("DuckDB with :: casts").
	DoubleColonCast().
	Reserved("qualify", "natural", "window").
	Build()

// Snowflake accepts :: casts.
var Snowflake = New("snowflake").
	Describe("Snowflake with :: casts").
	DoubleColonCast().
	Reserved("qualify", "natural").
	Build()

func init() {
	for _, d := range []*Dialect{ANSI, TSQL, MySQL, Postgres, DuckDB, Snowflake} {
		Register(d)
	}
}
