package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQLDialect implements Dialect for MySQL databases. MySQL has no RETURNING
// clause, so it only serves the direct connection (introspection and execute_sql).
type MySQLDialect struct{}

func (d *MySQLDialect) Name() string       { return "mysql" }
func (d *MySQLDialect) DriverName() string { return "mysql" }

func (d *MySQLDialect) BuildDSN(getenv func(string) string) (string, error) {
	missing := missingEnv(getenv, "MCP_MYSQL_HOST", "MCP_MYSQL_PORT", "MCP_MYSQL_DB", "MCP_MYSQL_USER", "MCP_MYSQL_PASSWORD")
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}

	cfg := mysql.NewConfig()
	cfg.User = getenv("MCP_MYSQL_USER")
	cfg.Passwd = getenv("MCP_MYSQL_PASSWORD")
	cfg.Net = "tcp"
	cfg.Addr = getenv("MCP_MYSQL_HOST") + ":" + getenv("MCP_MYSQL_PORT")
	cfg.DBName = getenv("MCP_MYSQL_DB")
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (d *MySQLDialect) DatabaseName(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return cfg.DBName
}

func (d *MySQLDialect) Placeholder(int) string { return "?" }

func (d *MySQLDialect) QuoteIdent(name string) string { return quoteParts(name, '`') }

func (d *MySQLDialect) SupportsReturning() bool { return false }

// ListTablesQuery maps the default "public" schema onto the connected database.
func (d *MySQLDialect) ListTablesQuery(schema string) (string, []any) {
	return `SELECT table_name AS table_name, table_type AS table_type, table_schema AS table_schema
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, 'public'), DATABASE())
		ORDER BY table_name`, []any{schema}
}

func (d *MySQLDialect) DescribeColumnsQuery(table string) (string, []any) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return `SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
			FROM information_schema.columns
			WHERE table_schema = ? AND table_name = ?
			ORDER BY ordinal_position`, []any{table[:i], table[i+1:]}
	}
	return `SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, []any{table}
}

func (d *MySQLDialect) ScanColumnRow(rows *sql.Rows) (map[string]any, error) {
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
// for safe keyword detection. MySQL-specific: supports # comments, backtick
// identifiers, and backslash escaping in strings.
func (d *MySQLDialect) RemoveStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		if i+1 < n && sql[i] == '-' && sql[i+1] == '-' {
			i = skipLineComment(sql, i)
			result.WriteByte(' ')
			continue
		}

		if sql[i] == '#' {
			i = skipLineComment(sql, i)
			result.WriteByte(' ')
			continue
		}

		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			i = skipBlockComment(sql, i)
			result.WriteByte(' ')
			continue
		}

		if sql[i] == '\'' {
			i = skipQuoted(sql, i, '\'', true)
			result.WriteString("''")
			continue
		}

		// Double quotes delimit strings unless ANSI_QUOTES is on.
		if sql[i] == '"' {
			i = skipQuoted(sql, i, '"', true)
			result.WriteString(`""`)
			continue
		}

		if sql[i] == '`' {
			i = copyQuotedIdent(&result, sql, i, '`', '`')
			continue
		}

		result.WriteByte(sql[i])
		i++
	}

	return result.String()
}
