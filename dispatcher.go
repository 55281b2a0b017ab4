package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ResultKind tags a Result.
type ResultKind int

const (
	Success ResultKind = iota
	Failure
)

// Result is the normalized outcome of one invocation: a payload on Success,
// a message on Failure.
type Result struct {
	Kind    ResultKind
	Payload any
	Message string
}

func successResult(payload any) Result { return Result{Kind: Success, Payload: payload} }
func failureResult(msg string) Result  { return Result{Kind: Failure, Message: msg} }

// encodeResult renders a handler payload: strings verbatim, anything else as
// 2-space indented JSON. A payload that cannot be encoded is a Failure.
func encodeResult(payload any) Result {
	if s, ok := payload.(string); ok {
		return successResult(s)
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return failureResult(fmt.Sprintf("encoding result: %v", err))
	}
	return successResult(string(b))
}

// Text renders the result for the wire. Failures read "Error: <message>".
func (r Result) Text() string { return r.Envelope().Text }

// Response is the transport-neutral envelope.
type Response struct {
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

func (r Result) Envelope() Response {
	if r.Kind == Success {
		if _, ok := r.Payload.(string); !ok {
			r = encodeResult(r.Payload)
		}
	}
	if r.Kind == Failure {
		return Response{Text: "Error: " + r.Message, IsError: true}
	}
	return Response{Text: r.Payload.(string)}
}

// Dispatcher routes tool invocations to registry handlers. Invocations are
// serialized: each one runs to completion before the next starts.
type Dispatcher struct {
	registry *ToolRegistry
	data     *DataAccess
	logger   *slog.Logger
	mu       sync.Mutex
}

func NewDispatcher(registry *ToolRegistry, data *DataAccess, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, data: data, logger: logger}
}

// Registry exposes the catalogue the dispatcher routes against.
func (d *Dispatcher) Registry() *ToolRegistry { return d.registry }

// Invoke runs the named tool. It never panics and never returns a raw backend
// error: every outcome is a Result. Unknown tools yield a Success carrying
// "Unknown tool: <name>".
func (d *Dispatcher) Invoke(ctx context.Context, name string, args Arguments) (res Result) {
	if name == "" {
		return failureResult("tool name is required")
	}

	spec, handler, ok := d.registry.Lookup(name)
	if !ok {
		d.logger.Warn("unknown tool", "tool", name)
		return successResult(fmt.Sprintf("Unknown tool: %s", name))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("tool panicked", "tool", name, "panic", p)
			res = failureResult(fmt.Sprint(p))
		}
		if res.Kind == Failure {
			d.logger.Warn("tool failed", "tool", name, "error", res.Message, "duration", time.Since(start))
		} else {
			d.logger.Debug("tool completed", "tool", name, "duration", time.Since(start))
		}
	}()

	args = args.withDefaults(spec)
	d.logger.Debug("invoking tool", "tool", name, slog.Group("args", logArgs(args)...))

	for _, p := range spec.Params {
		if p.Required && !args.Has(p.Name) {
			return failureResult((&ValidationError{Field: p.Name, Reason: "is required"}).Error())
		}
	}

	payload, err := handler(ctx, args, d.data)
	if err != nil {
		return failureResult(err.Error())
	}
	return encodeResult(payload)
}

// logArgs renders filters through FilterSet so they log in caller order.
func logArgs(args Arguments) []any {
	out := make([]any, 0, len(args)*2)
	for _, k := range sortedKeys(args) {
		v := args[k]
		if k == "filters" {
			if fs, err := parseFilterSet(v); err == nil {
				v = fs.String()
			}
		}
		out = append(out, slog.Any(k, v))
	}
	return out
}
