package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-interview-relay/pkg/conversation"
)

// Call outcomes reported to the Recorder.
const (
	OutcomeOK             = "ok"
	OutcomeFailed         = "failed"
	OutcomeNotImplemented = "not_implemented"
)

// Dispatcher routes agent function calls to tools.
type Dispatcher struct {
	tools    map[string]Tool
	order    []string
	recorder Recorder
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher over tools.
func NewDispatcher(tools []Tool, recorder Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		tools:    make(map[string]Tool, len(tools)),
		recorder: recorder,
		logger:   logger.With("component", "tools"),
	}
	for _, t := range tools {
		if _, dup := d.tools[t.Name]; !dup {
			d.order = append(d.order, t.Name)
		}
		d.tools[t.Name] = t
	}
	return d
}

// Declarations returns the declarations for every registered tool.
func (d *Dispatcher) Declarations() []conversation.FunctionDecl {
	tools := make([]Tool, 0, len(d.order))
	for _, name := range d.order {
		tools = append(tools, d.tools[name])
	}
	return Declarations(tools)
}

// Dispatch runs one call and returns exactly one response carrying its id.
func (d *Dispatcher) Dispatch(ctx context.Context, call conversation.FunctionCall) conversation.FunctionCallResponse {
	resp := conversation.FunctionCallResponse{ID: call.ID, Name: call.Name}

	tool, ok := d.tools[call.Name]
	if !ok {
		d.logger.Warn("unknown function", "name", call.Name, "call_id", call.ID)
		d.record(call.Name, OutcomeNotImplemented)
		resp.Content = fmt.Sprintf(notImplementedFn, call.Name)
		return resp
	}

	start := time.Now()
	result, err := d.invoke(ctx, tool, parseArgs(call.Arguments))
	if err != nil {
		d.logger.Warn("function failed",
			"name", call.Name,
			"call_id", call.ID,
			"error", err,
		)
		d.record(call.Name, OutcomeFailed)
		resp.Content = tool.Fallback
		if resp.Content == "" {
			resp.Content = fmt.Sprintf("Sorry, %s failed. Please continue without it.", call.Name)
		}
		return resp
	}

	d.logger.Debug("function done",
		"name", call.Name,
		"call_id", call.ID,
		"duration", time.Since(start),
	)
	d.record(call.Name, OutcomeOK)
	resp.Content = result
	return resp
}

// invoke turns a handler panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, tool Tool, args map[string]any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tools: %s panicked: %v", tool.Name, r)
		}
	}()
	return tool.Handler(ctx, args)
}

func (d *Dispatcher) record(name, outcome string) {
	if d.recorder != nil {
		d.recorder.RecordFunctionCall(name, outcome)
	}
}
