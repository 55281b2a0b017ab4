package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
)

// PostgresDialect implements Dialect for PostgreSQL (and Supabase) databases.
// Driver selects between lib/pq ("postgres") and pgx's database/sql driver ("pgx").
type PostgresDialect struct {
	Driver string
}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) DriverName() string {
	if d.Driver == "" {
		return "postgres"
	}
	return d.Driver
}

func (d *PostgresDialect) BuildDSN(getenv func(string) string) (string, error) {
	missing := missingEnv(getenv, "MCP_PG_HOST", "MCP_PG_PORT", "MCP_PG_DB", "MCP_PG_USER", "MCP_PG_PASSWORD")
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}
	sslmode := getenv("MCP_PG_SSLMODE")
	if sslmode == "" {
		sslmode = "prefer"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenv("MCP_PG_USER"), getenv("MCP_PG_PASSWORD")),
		Host:     getenv("MCP_PG_HOST") + ":" + getenv("MCP_PG_PORT"),
		Path:     "/" + getenv("MCP_PG_DB"),
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String(), nil
}

func (d *PostgresDialect) DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (d *PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d *PostgresDialect) QuoteIdent(name string) string { return quoteParts(name, '"') }

func (d *PostgresDialect) SupportsReturning() bool { return true }

func (d *PostgresDialect) ListTablesQuery(schema string) (string, []any) {
	return `SELECT table_name, table_type, table_schema
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`, []any{schema}
}

func (d *PostgresDialect) DescribeColumnsQuery(table string) (string, []any) {
	schema, name := "public", table
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}
	return `SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, []any{schema, name}
}

func (d *PostgresDialect) ScanColumnRow(rows *sql.Rows) (map[string]any, error) {
	var colName, dataType, isNullable string
	var colDefault sql.NullString
	var maxLen sql.NullInt64

	if err := rows.Scan(&colName, &dataType, &isNullable, &colDefault, &maxLen); err != nil {
		return nil, err
	}

	col := map[string]any{
		"column_name":              colName,
		"data_type":                dataType,
		"is_nullable":              isNullable,
		"column_default":           nil,
		"character_maximum_length": nil,
	}
	if colDefault.Valid {
		col["column_default"] = colDefault.String
	}
	if maxLen.Valid {
		col["character_maximum_length"] = maxLen.Int64
	}
	return col, nil
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. PostgreSQL-specific: no # comments, no backtick
// identifiers, handles $$ dollar-quoted strings, no backslash escaping by default.
func (d *PostgresDialect) RemoveStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		if i+1 < n && sql[i] == '-' && sql[i+1] == '-' {
			i = skipLineComment(sql, i)
			result.WriteByte(' ')
			continue
		}

		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			i = skipBlockComment(sql, i)
			result.WriteByte(' ')
			continue
		}

		// Dollar-quoted string $tag$...$tag$ or $$...$$
		if sql[i] == '$' {
			tagEnd := strings.Index(sql[i+1:], "$")
			if tagEnd >= 0 {
				tag := sql[i : i+tagEnd+2]
				closeIdx := strings.Index(sql[i+len(tag):], tag)
				if closeIdx >= 0 {
					i += len(tag) + closeIdx + len(tag)
					result.WriteString("''")
					continue
				}
			}
		}

		if sql[i] == '\'' {
			i = skipQuoted(sql, i, '\'', false)
			result.WriteString("''")
			continue
		}

		if sql[i] == '"' {
			i = copyQuotedIdent(&result, sql, i, '"', '"')
			continue
		}

		result.WriteByte(sql[i])
		i++
	}

	return result.String()
}

// skipLineComment returns the index of the newline ending the comment at i.
func skipLineComment(sql string, i int) int {
	for i < len(sql) && sql[i] != '\n' {
		i++
	}
	return i
}

// skipBlockComment returns the index just past the */ closing the comment at i.
func skipBlockComment(sql string, i int) int {
	n := len(sql)
	i += 2
	for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
		i++
	}
	i += 2
	if i > n {
		i = n
	}
	return i
}

// skipQuoted returns the index just past the literal opened by quote at i.
// Doubled quotes are escapes; backslash escapes are honored when backslash is set.
func skipQuoted(sql string, i int, quote byte, backslash bool) int {
	n := len(sql)
	i++
	for i < n {
		if sql[i] == quote {
			if i+1 < n && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		if backslash && sql[i] == '\\' && i+1 < n {
			i += 2
			continue
		}
		i++
	}
	return i
}

// copyQuotedIdent copies the identifier opened at i (open..close) verbatim into result.
func copyQuotedIdent(result *strings.Builder, sql string, i int, open, close byte) int {
	n := len(sql)
	result.WriteByte(open)
	i++
	for i < n {
		if sql[i] == close {
			if open == close && i+1 < n && sql[i+1] == close {
				result.WriteByte(close)
				result.WriteByte(close)
				i += 2
				continue
			}
			result.WriteByte(close)
			return i + 1
		}
		result.WriteByte(sql[i])
		i++
	}
	return i
}
