package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// fakeRecords is an in-memory RecordClient that records every call.
type fakeRecords struct {
	mu     sync.Mutex
	tables map[string][]Row
	fail   map[string]error
	calls  []string
	nextID int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{tables: map[string][]Row{}, fail: map[string]error{}}
}

func (f *fakeRecords) record(op, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+table)
	return f.fail[table]
}

func (f *fakeRecords) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func matches(row Row, filters FilterSet) bool {
	ok := true
	filters.Each(func(column string, value any) {
		if fmt.Sprint(row[column]) != fmt.Sprint(value) {
			ok = false
		}
	})
	return ok
}

func (f *fakeRecords) Select(_ context.Context, table string, q SelectQuery) ([]Row, error) {
	if err := f.record("select", table); err != nil {
		return nil, err
	}
	out := []Row{}
	for _, r := range f.tables[table] {
		if q.Limit != nil && len(out) >= *q.Limit {
			break
		}
		if matches(r, q.Filters) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Count(_ context.Context, table string) (int, error) {
	if err := f.record("count", table); err != nil {
		return 0, err
	}
	return len(f.tables[table]), nil
}

func (f *fakeRecords) Insert(_ context.Context, table string, data Row) ([]Row, error) {
	if err := f.record("insert", table); err != nil {
		return nil, err
	}
	f.nextID++
	row := Row{"id": int64(f.nextID)}
	for k, v := range data {
		row[k] = v
	}
	f.tables[table] = append(f.tables[table], row)
	return []Row{row}, nil
}

func (f *fakeRecords) Update(_ context.Context, table string, data Row, filters FilterSet) ([]Row, error) {
	if err := f.record("update", table); err != nil {
		return nil, err
	}
	out := []Row{}
	for _, r := range f.tables[table] {
		if matches(r, filters) {
			for k, v := range data {
				r[k] = v
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Delete(_ context.Context, table string, filters FilterSet) ([]Row, error) {
	if err := f.record("delete", table); err != nil {
		return nil, err
	}
	var kept, deleted []Row
	for _, r := range f.tables[table] {
		if matches(r, filters) {
			deleted = append(deleted, r)
		} else {
			kept = append(kept, r)
		}
	}
	f.tables[table] = kept
	return deleted, nil
}

// fakeDirect is a DirectConn returning canned results.
type fakeDirect struct {
	mu       sync.Mutex
	tables   []Row
	listErr  error
	result   *SQLResult
	execErr  error
	executed []string
	params   [][]any
}

func (f *fakeDirect) ListTables(context.Context, string) ([]Row, error) {
	return f.tables, f.listErr
}

func (f *fakeDirect) DescribeColumns(_ context.Context, table string) ([]Row, error) {
	return []Row{{"column_name": "id", "data_type": "integer", "is_nullable": "NO"}}, nil
}

func (f *fakeDirect) CountRows(context.Context, string) (int, error) { return 2, nil }

func (f *fakeDirect) SelectRows(_ context.Context, _ string, limit int) ([]Row, error) {
	return []Row{{"id": int64(1)}, {"id": int64(2)}}[:min(limit, 2)], nil
}

func (f *fakeDirect) Execute(_ context.Context, query string, params []any) (*SQLResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, query)
	f.params = append(f.params, params)
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.result == nil {
		return &SQLResult{}, nil
	}
	return f.result, nil
}

func (f *fakeDirect) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDispatcher wires the full registry over the given backends; either may be nil.
func newTestDispatcher(records RecordClient, direct DirectConn) *Dispatcher {
	logger := discardLogger()
	return NewDispatcher(NewToolRegistry(Classifier{}), NewDataAccess(records, direct, logger), logger)
}
