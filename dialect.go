package main

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Dialect defines the contract for database-specific SQL behavior.
// Each database a direct connection can point at (PostgreSQL, MySQL, SQLite)
// implements this interface.
type Dialect interface {
	// Name returns a short display name ("postgres", "mysql", "sqlite").
	Name() string

	// DriverName returns the database/sql driver name used to open the connection.
	DriverName() string

	// BuildDSN constructs a DSN from environment variables.
	BuildDSN(getenv func(string) string) (string, error)

	// DatabaseName extracts the database/file name from a DSN string.
	DatabaseName(dsn string) string

	// Placeholder returns the positional parameter marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// QuoteIdent quotes a validated, possibly schema-qualified identifier.
	QuoteIdent(name string) string

	// SupportsReturning reports whether INSERT/UPDATE/DELETE ... RETURNING * is available.
	SupportsReturning() bool

	// ListTablesQuery returns the SQL query and arguments to list tables in a schema.
	// Result columns are table_name, table_type and table_schema.
	ListTablesQuery(schema string) (string, []any)

	// DescribeColumnsQuery returns the SQL query and arguments to read column info for a table.
	DescribeColumnsQuery(table string) (string, []any)

	// ScanColumnRow scans a single row from the describe query result into a column map.
	ScanColumnRow(rows *sql.Rows) (map[string]any, error)

	// RemoveStringsAndComments strips string literals and comments from SQL
	// for safe keyword detection.
	RemoveStringsAndComments(sql string) string
}

// dialectFor maps a driver name to its dialect.
func dialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return &PostgresDialect{Driver: "postgres"}, nil
	case "pgx":
		return &PostgresDialect{Driver: "pgx"}, nil
	case "mysql":
		return &MySQLDialect{}, nil
	case "sqlite", "sqlite3":
		return &SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// validIdent reports whether name is a plain or schema-qualified SQL identifier.
func validIdent(name string) bool {
	return identPattern.MatchString(name)
}

// checkIdent returns a validation error when name cannot be safely quoted into SQL.
func checkIdent(field, name string) error {
	if name == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if !validIdent(name) {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("invalid identifier %q", name)}
	}
	return nil
}

// quoteParts quotes every dot-separated part of name with the given quote rune.
func quoteParts(name string, quote byte) string {
	parts := strings.Split(name, ".")
	q := string(quote)
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// missingEnv returns the names of the given variables that are unset.
func missingEnv(getenv func(string) string, names ...string) []string {
	var missing []string
	for _, n := range names {
		if getenv(n) == "" {
			missing = append(missing, n)
		}
	}
	return missing
}
