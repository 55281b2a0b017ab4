package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_UnknownToolIsSuccess(t *testing.T) {
	d := newTestDispatcher(newFakeRecords(), nil)

	res := d.Invoke(context.Background(), "drop_everything", Arguments{})

	assert.Equal(t, Success, res.Kind)
	env := res.Envelope()
	assert.False(t, env.IsError)
	assert.Equal(t, "Unknown tool: drop_everything", env.Text)
}

func TestInvoke_EmptyNameFails(t *testing.T) {
	d := newTestDispatcher(newFakeRecords(), nil)

	res := d.Invoke(context.Background(), "", Arguments{})

	assert.Equal(t, Failure, res.Kind)
	assert.Equal(t, "Error: tool name is required", res.Text())
}

func TestInvoke_MissingRequiredArgument(t *testing.T) {
	records := newFakeRecords()
	d := newTestDispatcher(records, nil)

	res := d.Invoke(context.Background(), "describe_table", Arguments{})

	require.Equal(t, Failure, res.Kind)
	assert.Contains(t, res.Text(), `invalid argument "table_name": is required`)
	assert.Empty(t, records.Calls())
}

func TestInvoke_HandlerErrorBecomesFailure(t *testing.T) {
	records := newFakeRecords()
	records.fail["users"] = errors.New("connection reset by peer")
	d := newTestDispatcher(records, nil)

	res := d.Invoke(context.Background(), "query_table", Arguments{"table_name": "users"})

	require.Equal(t, Failure, res.Kind)
	assert.Equal(t, "Error: querying table users: connection reset by peer", res.Text())
	assert.True(t, res.Envelope().IsError)
}

func TestInvoke_RecoversPanics(t *testing.T) {
	registry := &ToolRegistry{tools: map[string]registeredTool{}}
	registry.register(ToolSpec{Name: "boom"}, func(context.Context, Arguments, *DataAccess) (any, error) {
		panic("handler exploded")
	})
	d := NewDispatcher(registry, NewDataAccess(nil, nil, discardLogger()), discardLogger())

	var res Result
	require.NotPanics(t, func() {
		res = d.Invoke(context.Background(), "boom", Arguments{})
	})
	assert.Equal(t, Failure, res.Kind)
	assert.Equal(t, "Error: handler exploded", res.Text())

	// the dispatcher lock was released
	res = d.Invoke(context.Background(), "boom", Arguments{})
	assert.Equal(t, Failure, res.Kind)
}

func TestInvoke_UnencodablePayloadIsFailure(t *testing.T) {
	registry := &ToolRegistry{tools: map[string]registeredTool{}}
	registry.register(ToolSpec{Name: "inf"}, func(context.Context, Arguments, *DataAccess) (any, error) {
		return map[string]any{"x": math.Inf(1)}, nil
	})
	d := NewDispatcher(registry, NewDataAccess(nil, nil, discardLogger()), discardLogger())

	res := d.Invoke(context.Background(), "inf", Arguments{})

	assert.Equal(t, Failure, res.Kind)
	env := res.Envelope()
	assert.True(t, env.IsError)
	assert.True(t, strings.HasPrefix(env.Text, "Error: encoding result: json: unsupported value"), env.Text)
}

func TestInvoke_AppliesDefaults(t *testing.T) {
	var seen Arguments
	registry := &ToolRegistry{tools: map[string]registeredTool{}}
	registry.register(ToolSpec{
		Name: "echo",
		Params: []ParamSpec{
			{Name: "limit", Type: TypeInteger, Default: 100},
			{Name: "schema", Type: TypeString, Default: "public"},
		},
	}, func(_ context.Context, args Arguments, _ *DataAccess) (any, error) {
		seen = args
		return "ok", nil
	})
	d := NewDispatcher(registry, NewDataAccess(nil, nil, discardLogger()), discardLogger())

	res := d.Invoke(context.Background(), "echo", Arguments{"schema": "auth"})

	assert.Equal(t, "ok", res.Text())
	assert.Equal(t, 100, seen["limit"])
	assert.Equal(t, "auth", seen["schema"])
}

func TestInvoke_ClientNotInitialized(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	for _, name := range []string{"query_table", "insert_data", "get_user_progress", "backup_database"} {
		args := Arguments{"table_name": "users", "data": map[string]any{"a": 1}, "user_id": "u1"}
		res := d.Invoke(context.Background(), name, args)
		assert.Equal(t, Failure, res.Kind, name)
		assert.Equal(t, "Error: database client not initialized", res.Text(), name)
	}
}

func TestResultText(t *testing.T) {
	res := successResult(map[string]any{"count": 1})
	assert.Equal(t, "{\n  \"count\": 1\n}", res.Text())

	assert.Equal(t, "plain", successResult("plain").Text())
	assert.Equal(t, "Error: nope", failureResult("nope").Text())

	env := successResult(map[string]any{"x": math.NaN()}).Envelope()
	assert.True(t, env.IsError)
	assert.True(t, strings.HasPrefix(env.Text, "Error: encoding result:"), env.Text)

	b, err := json.Marshal(failureResult("nope").Envelope())
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"Error: nope","isError":true}`, string(b))
}

func TestToolRegistry_Catalogue(t *testing.T) {
	registry := NewToolRegistry(Classifier{})

	var names []string
	for _, tool := range registry.Tools() {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.Equal(t, []string{
		"list_tables", "describe_table", "query_table", "insert_data", "update_data",
		"delete_data", "execute_sql", "get_user_progress", "get_training_analytics", "backup_database",
	}, names)

	spec, _, ok := registry.Lookup("query_table")
	require.True(t, ok)
	schema, err := json.Marshal(spec.InputSchema())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"table_name": {"type": "string", "description": "Name of the table to query"},
			"columns": {"type": "array", "items": {"type": "string"}, "description": "Columns to select (default: all)"},
			"filters": {"type": "object", "description": "Filters to apply (key-value pairs, combined with AND)"},
			"limit": {"type": "integer", "description": "Maximum number of rows to return (default: 100)", "default": 100},
			"order_by": {"type": "string", "description": "Column to order by"},
			"descending": {"type": "boolean", "description": "Order descending (default: false)"}
		},
		"required": ["table_name"]
	}`, string(schema))
}

func TestToolRegistry_RejectsDuplicates(t *testing.T) {
	registry := NewToolRegistry(Classifier{})
	assert.Panics(t, func() {
		registry.register(listTablesSpec, listTables)
	})
}
