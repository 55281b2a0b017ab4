package main

import (
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite databases (modernc.org/sqlite).
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) BuildDSN(getenv func(string) string) (string, error) {
	dbPath := getenv("MCP_SQLITE_PATH")
	if dbPath == "" {
		return "", fmt.Errorf("missing required environment variable: MCP_SQLITE_PATH")
	}
	if !strings.Contains(dbPath, "_pragma=") {
		sep := "?"
		if strings.Contains(dbPath, "?") {
			sep = "&"
		}
		dbPath += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	return dbPath, nil
}

func (d *SQLiteDialect) DatabaseName(dsn string) string {
	path := dsn
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	name = strings.TrimSuffix(name, ".db")
	name = strings.TrimSuffix(name, ".sqlite")
	name = strings.TrimSuffix(name, ".sqlite3")
	return name
}

func (d *SQLiteDialect) Placeholder(int) string { return "?" }

func (d *SQLiteDialect) QuoteIdent(name string) string { return quoteParts(name, '"') }

func (d *SQLiteDialect) SupportsReturning() bool { return true }

// ListTablesQuery ignores schema: SQLite has one database per file.
func (d *SQLiteDialect) ListTablesQuery(string) (string, []any) {
	return `SELECT name AS table_name,
			CASE type WHEN 'view' THEN 'VIEW' ELSE 'BASE TABLE' END AS table_type,
			'main' AS table_schema
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`, nil
}

func (d *SQLiteDialect) DescribeColumnsQuery(table string) (string, []any) {
	// PRAGMA table_info cannot use ? placeholders, so we embed the table name safely.
	if i := strings.IndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table, "'", "''")), nil
}

func (d *SQLiteDialect) ScanColumnRow(rows *sql.Rows) (map[string]any, error) {
	// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
	var cid int
	var name, colType string
	var notNull, pk int
	var dfltValue sql.NullString

	if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
		return nil, err
	}

	isNullable := "YES"
	if notNull == 1 {
		isNullable = "NO"
	}

	col := map[string]any{
		"column_name":    name,
		"data_type":      colType,
		"is_nullable":    isNullable,
		"column_default": nil,
	}
	if pk > 0 {
		col["column_key"] = "PRI"
	}
	if dfltValue.Valid {
		col["column_default"] = dfltValue.String
	}
	return col, nil
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. SQLite-specific: no # comments, no backslash
// escaping, supports backtick and [bracket] identifiers.
func (d *SQLiteDialect) RemoveStringsAndComments(sql string) string {
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

		if sql[i] == '\'' {
			i = skipQuoted(sql, i, '\'', false)
			result.WriteString("''")
			continue
		}

		switch sql[i] {
		case '"':
			i = copyQuotedIdent(&result, sql, i, '"', '"')
			continue
		case '`':
			i = copyQuotedIdent(&result, sql, i, '`', '`')
			continue
		case '[':
			i = copyQuotedIdent(&result, sql, i, '[', ']')
			continue
		}

		result.WriteByte(sql[i])
		i++
	}

	return result.String()
}
