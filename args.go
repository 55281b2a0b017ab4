package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	ErrClientNotInitialized = errors.New("database client not initialized")
	ErrDirectUnavailable    = errors.New("direct SQL execution requires a direct database connection")
	ErrUnknownResource      = errors.New("unknown resource")
)

// ValidationError reports an argument problem detected before any backend call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// Row is a single record as returned by either backend.
type Row = map[string]any

// Arguments are the named inputs of one tool invocation.
// Top-level object values decoded by decodeArguments are kept as ordered maps
// so FilterSets preserve the caller's column order.
type Arguments map[string]any

// decodeArguments decodes a JSON object of tool arguments.
func decodeArguments(raw json.RawMessage) (Arguments, error) {
	args := Arguments{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}

	for key, value := range fields {
		trimmed := strings.TrimSpace(string(value))
		if strings.HasPrefix(trimmed, "{") {
			om := orderedmap.New[string, any]()
			if err := json.Unmarshal(value, om); err != nil {
				return nil, fmt.Errorf("argument %q: %w", key, err)
			}
			args[key] = om
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, fmt.Errorf("argument %q: %w", key, err)
		}
		args[key] = v
	}
	return args, nil
}

// Has reports whether key is present with a non-nil value.
func (a Arguments) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

func (a Arguments) Str(key string) (string, error) {
	if !a.Has(key) {
		return "", nil
	}
	s, err := cast.ToStringE(a[key])
	if err != nil {
		return "", &ValidationError{Field: key, Reason: "must be a string"}
	}
	return s, nil
}

func (a Arguments) Bool(key string) (bool, error) {
	if !a.Has(key) {
		return false, nil
	}
	b, err := cast.ToBoolE(a[key])
	if err != nil {
		return false, &ValidationError{Field: key, Reason: "must be a boolean"}
	}
	return b, nil
}

// Int returns the integer value of key and whether it was present.
func (a Arguments) Int(key string) (int, bool, error) {
	if !a.Has(key) {
		return 0, false, nil
	}
	if _, ok := a[key].(bool); ok {
		return 0, true, &ValidationError{Field: key, Reason: "must be an integer"}
	}
	if f, ok := a[key].(float64); ok && f != math.Trunc(f) {
		return 0, true, &ValidationError{Field: key, Reason: "must be an integer"}
	}
	n, err := cast.ToIntE(a[key])
	if err != nil {
		return 0, true, &ValidationError{Field: key, Reason: "must be an integer"}
	}
	return n, true, nil
}

func (a Arguments) Strings(key string) ([]string, error) {
	if !a.Has(key) {
		return nil, nil
	}
	switch a[key].(type) {
	case []string, []any:
	default:
		return nil, &ValidationError{Field: key, Reason: "must be an array of strings"}
	}
	out, err := cast.ToStringSliceE(a[key])
	if err != nil {
		return nil, &ValidationError{Field: key, Reason: "must be an array of strings"}
	}
	return out, nil
}

func (a Arguments) Slice(key string) ([]any, error) {
	if !a.Has(key) {
		return nil, nil
	}
	switch v := a[key].(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return nil, &ValidationError{Field: key, Reason: "must be an array"}
	}
}

// Object returns the object value of key as a Row.
func (a Arguments) Object(key string) (Row, error) {
	if !a.Has(key) {
		return nil, nil
	}
	switch v := a[key].(type) {
	case map[string]any:
		return v, nil
	case *orderedmap.OrderedMap[string, any]:
		row := make(Row, v.Len())
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			row[pair.Key] = pair.Value
		}
		return row, nil
	default:
		return nil, &ValidationError{Field: key, Reason: "must be an object"}
	}
}

// withDefaults returns a copy of a with every absent parameter of spec set to its default.
func (a Arguments) withDefaults(spec ToolSpec) Arguments {
	out := make(Arguments, len(a)+len(spec.Params))
	for k, v := range a {
		out[k] = v
	}
	for _, p := range spec.Params {
		if !out.Has(p.Name) && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// FilterSet is an ordered set of column = value constraints joined with AND.
// The zero value is an empty set.
type FilterSet struct {
	pairs *orderedmap.OrderedMap[string, any]
}

// Add appends (or replaces) the constraint for column.
func (f *FilterSet) Add(column string, value any) {
	if f.pairs == nil {
		f.pairs = orderedmap.New[string, any]()
	}
	f.pairs.Set(column, value)
}

func (f FilterSet) Len() int {
	if f.pairs == nil {
		return 0
	}
	return f.pairs.Len()
}

// Each calls fn for every constraint in insertion order.
func (f FilterSet) Each(fn func(column string, value any)) {
	if f.pairs == nil {
		return
	}
	for pair := f.pairs.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

func (f FilterSet) MarshalJSON() ([]byte, error) {
	if f.pairs == nil {
		return []byte("{}"), nil
	}
	return f.pairs.MarshalJSON()
}

func (f FilterSet) String() string {
	var parts []string
	f.Each(func(column string, value any) {
		parts = append(parts, fmt.Sprintf("%s=%v", column, value))
	})
	return strings.Join(parts, " AND ")
}

// parseFilterSet converts a filters argument into a FilterSet. Plain maps carry
// no order and are added in sorted column order.
func parseFilterSet(v any) (FilterSet, error) {
	var fs FilterSet
	add := func(column string, value any) error {
		if !validIdent(column) {
			return &ValidationError{Field: "filters", Reason: fmt.Sprintf("invalid column %q", column)}
		}
		if !isScalar(value) {
			return &ValidationError{Field: "filters", Reason: fmt.Sprintf("malformed filter value for column %q: only scalar equality values are supported", column)}
		}
		fs.Add(column, normalizeValue(value))
		return nil
	}

	switch m := v.(type) {
	case nil:
		return fs, nil
	case *orderedmap.OrderedMap[string, any]:
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			if err := add(pair.Key, pair.Value); err != nil {
				return FilterSet{}, err
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := add(k, m[k]); err != nil {
				return FilterSet{}, err
			}
		}
	default:
		return FilterSet{}, &ValidationError{Field: "filters", Reason: "must be an object"}
	}
	return fs, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float32, float64, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

// normalizeValue turns whole JSON numbers into int64 so integer columns compare exactly.
func normalizeValue(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

// sortedKeys returns the keys of row in lexical order.
func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
