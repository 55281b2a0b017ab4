package main

import (
	"context"
	"errors"
	"log/slog"
)

// SelectQuery describes a record-client read.
type SelectQuery struct {
	Columns    []string // empty or ["*"] selects every column
	Filters    FilterSet
	OrderBy    string
	Descending bool
	Limit      *int // nil means no limit
}

// RecordClient is the high-level, table-oriented backend.
type RecordClient interface {
	Select(ctx context.Context, table string, q SelectQuery) ([]Row, error)
	Count(ctx context.Context, table string) (int, error)
	Insert(ctx context.Context, table string, data Row) ([]Row, error)
	Update(ctx context.Context, table string, data Row, filters FilterSet) ([]Row, error)
	Delete(ctx context.Context, table string, filters FilterSet) ([]Row, error)
}

// DirectConn is the low-level SQL backend used for introspection and raw SQL.
type DirectConn interface {
	ListTables(ctx context.Context, schema string) ([]Row, error)
	DescribeColumns(ctx context.Context, table string) ([]Row, error)
	CountRows(ctx context.Context, table string) (int, error)
	SelectRows(ctx context.Context, table string, limit int) ([]Row, error)
	Execute(ctx context.Context, query string, params []any) (*SQLResult, error)
	Close() error
}

// fallbackTables is reported by list_tables when the catalogue cannot be introspected.
var fallbackTables = []string{
	"users",
	"user_progress",
	"training_items",
	"quiz_responses",
	"certificates",
	"security_events",
	"user_sessions",
}

// DataAccess picks a backend per operation: the direct connection when present,
// otherwise the record client, otherwise ErrClientNotInitialized.
type DataAccess struct {
	records RecordClient
	direct  DirectConn
	logger  *slog.Logger
}

// NewDataAccess wraps the available backends. Either may be nil.
func NewDataAccess(records RecordClient, direct DirectConn, logger *slog.Logger) *DataAccess {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DataAccess{direct: direct, logger: logger}
	if records != nil {
		d.records = &loggingRecords{next: records, logger: logger}
	}
	return d
}

func (d *DataAccess) HasRecords() bool { return d != nil && d.records != nil }
func (d *DataAccess) HasDirect() bool  { return d != nil && d.direct != nil }

// Records returns the record client or ErrClientNotInitialized.
func (d *DataAccess) Records() (RecordClient, error) {
	if !d.HasRecords() {
		return nil, ErrClientNotInitialized
	}
	return d.records, nil
}

// Direct returns the direct connection or ErrDirectUnavailable.
func (d *DataAccess) Direct() (DirectConn, error) {
	if !d.HasDirect() {
		return nil, ErrDirectUnavailable
	}
	return d.direct, nil
}

// ListTables never fails: without a working direct connection it reports the
// known table list.
func (d *DataAccess) ListTables(ctx context.Context, schema string) []Row {
	if d.HasDirect() {
		tables, err := d.direct.ListTables(ctx, schema)
		if err == nil {
			return tables
		}
		d.logger.Warn("table introspection failed, using fallback list", "schema", schema, "error", err)
	}

	if schema == "" {
		schema = "public"
	}
	tables := make([]Row, 0, len(fallbackTables))
	for _, name := range fallbackTables {
		tables = append(tables, Row{"table_name": name, "table_type": "BASE TABLE", "table_schema": schema})
	}
	return tables
}

// DescribeTable returns column metadata and the row count. The record client
// cannot introspect columns, so columns is empty on that path.
func (d *DataAccess) DescribeTable(ctx context.Context, table string) ([]Row, int, error) {
	switch {
	case d.HasDirect():
		columns, err := d.direct.DescribeColumns(ctx, table)
		if err != nil {
			return nil, 0, err
		}
		count, err := d.direct.CountRows(ctx, table)
		if err != nil {
			return nil, 0, err
		}
		return columns, count, nil
	case d.HasRecords():
		count, err := d.records.Count(ctx, table)
		if err != nil {
			return nil, 0, err
		}
		return []Row{}, count, nil
	default:
		return nil, 0, ErrClientNotInitialized
	}
}

// SampleRows returns up to n rows of table.
func (d *DataAccess) SampleRows(ctx context.Context, table string, n int) ([]Row, error) {
	switch {
	case d.HasDirect():
		return d.direct.SelectRows(ctx, table, n)
	case d.HasRecords():
		return d.records.Select(ctx, table, SelectQuery{Limit: &n})
	default:
		return nil, ErrClientNotInitialized
	}
}

// Close releases the direct connection, if any.
func (d *DataAccess) Close() error {
	if d.HasDirect() {
		return d.direct.Close()
	}
	return nil
}

// loggingRecords logs every record-client call at debug level with its
// filters in caller order.
type loggingRecords struct {
	next   RecordClient
	logger *slog.Logger
}

func (l *loggingRecords) Select(ctx context.Context, table string, q SelectQuery) ([]Row, error) {
	rows, err := l.next.Select(ctx, table, q)
	l.log(ctx, "select", table, q.Filters, len(rows), err)
	return rows, err
}

func (l *loggingRecords) Count(ctx context.Context, table string) (int, error) {
	n, err := l.next.Count(ctx, table)
	l.log(ctx, "count", table, FilterSet{}, n, err)
	return n, err
}

func (l *loggingRecords) Insert(ctx context.Context, table string, data Row) ([]Row, error) {
	rows, err := l.next.Insert(ctx, table, data)
	l.log(ctx, "insert", table, FilterSet{}, len(rows), err)
	return rows, err
}

func (l *loggingRecords) Update(ctx context.Context, table string, data Row, filters FilterSet) ([]Row, error) {
	rows, err := l.next.Update(ctx, table, data, filters)
	l.log(ctx, "update", table, filters, len(rows), err)
	return rows, err
}

func (l *loggingRecords) Delete(ctx context.Context, table string, filters FilterSet) ([]Row, error) {
	rows, err := l.next.Delete(ctx, table, filters)
	l.log(ctx, "delete", table, filters, len(rows), err)
	return rows, err
}

func (l *loggingRecords) log(ctx context.Context, op, table string, filters FilterSet, rows int, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		l.logger.DebugContext(ctx, "record call failed", "op", op, "table", table, "filters", filters.String(), "error", err)
		return
	}
	l.logger.DebugContext(ctx, "record call", "op", op, "table", table, "filters", filters.String(), "rows", rows)
}
