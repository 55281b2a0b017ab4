package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	ConnectionTimeout = 10 * time.Second
	DefaultMaxRows    = 10000
)

// SQLResult is the outcome of a raw statement. Columns is empty when the
// statement produced no result set.
type SQLResult struct {
	Columns   []string
	Rows      []Row
	Truncated bool
}

// HasResultSet reports whether the backend described a result shape.
func (r *SQLResult) HasResultSet() bool { return len(r.Columns) > 0 }

// SQLDirectConn is a DirectConn over a single shared database/sql connection.
type SQLDirectConn struct {
	db      *sql.DB
	dialect Dialect
	maxRows int
}

// OpenDirect opens and pings the direct connection. The pool is capped at one
// connection: the handle is opened once and shared for the process lifetime.
func OpenDirect(ctx context.Context, dialect Dialect, dsn string, maxRows int) (*SQLDirectConn, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewSQLDirectConn(db, dialect, maxRows), nil
}

// NewSQLDirectConn wraps an already opened database handle.
func NewSQLDirectConn(db *sql.DB, dialect Dialect, maxRows int) *SQLDirectConn {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &SQLDirectConn{db: db, dialect: dialect, maxRows: maxRows}
}

func (c *SQLDirectConn) DB() *sql.DB       { return c.db }
func (c *SQLDirectConn) Dialect() Dialect { return c.dialect }

func (c *SQLDirectConn) ListTables(ctx context.Context, schema string) ([]Row, error) {
	query, args := c.dialect.ListTablesQuery(schema)
	res, err := queryRows(ctx, c.db, 0, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return res.Rows, nil
}

func (c *SQLDirectConn) DescribeColumns(ctx context.Context, table string) ([]Row, error) {
	if err := checkIdent("table_name", table); err != nil {
		return nil, err
	}
	query, args := c.dialect.DescribeColumnsQuery(table)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := []Row{}
	for rows.Next() {
		col, err := c.dialect.ScanColumnRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	return columns, nil
}

func (c *SQLDirectConn) CountRows(ctx context.Context, table string) (int, error) {
	if err := checkIdent("table_name", table); err != nil {
		return 0, err
	}
	var count int
	query := "SELECT COUNT(*) FROM " + c.dialect.QuoteIdent(table)
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", table, err)
	}
	return count, nil
}

func (c *SQLDirectConn) SelectRows(ctx context.Context, table string, limit int) ([]Row, error) {
	if err := checkIdent("table_name", table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", c.dialect.QuoteIdent(table), limit)
	res, err := queryRows(ctx, c.db, 0, query)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", table, err)
	}
	return res.Rows, nil
}

// Execute runs query with positional params. Rows beyond maxRows are dropped
// and the result is marked truncated.
func (c *SQLDirectConn) Execute(ctx context.Context, query string, params []any) (*SQLResult, error) {
	return queryRows(ctx, c.db, c.maxRows, query, params...)
}

func (c *SQLDirectConn) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryRows runs query and scans every row into a Row. maxRows <= 0 means unlimited.
func queryRows(ctx context.Context, q querier, maxRows int, query string, args ...any) (*SQLResult, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	res := &SQLResult{Columns: columns, Rows: []Row{}}
	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			res.Truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(res.Rows)+1, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			// Convert []byte to string for JSON serialization
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return res, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
