/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "chainguard.ai.triagent.trace"

// ToolCall is one gateway operation invoked during a stage execution.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Params    map[string]any `json:"params"`
	Result    any            `json:"result"`
	Err       error          `json:"error,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`

	trace *Trace
	mu    sync.Mutex
	span  oteltrace.Span
}

// Trace records one model invocation from prompt to final output, including
// the ordered log of tool calls it made. The tool-call log is what makes the
// read-only policy auditable after the fact.
type Trace struct {
	ID          string         `json:"id"`
	Stage       string         `json:"stage"`
	InputPrompt string         `json:"input_prompt"`
	ToolCalls   []*ToolCall    `json:"tool_calls"`
	Result      any            `json:"result"`
	Err         error          `json:"error,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	InputTokens int64          `json:"input_tokens,omitempty"`
	OutputToks  int64          `json:"output_tokens,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	recorder Recorder
	mu       sync.Mutex
	ctx      context.Context
	span     oteltrace.Span
}

// Recorder receives completed traces.
type Recorder interface {
	Record(t *Trace)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(t *Trace)

// Record implements Recorder.
func (f RecorderFunc) Record(t *Trace) { f(t) }

// discard is the recorder used when the caller does not care about traces.
type discard struct{}

func (discard) Record(*Trace) {}

// Start opens a trace for one stage execution and its backing OTel span.
func Start(ctx context.Context, stage, prompt string, rec Recorder) *Trace {
	if rec == nil {
		rec = discard{}
	}
	tr := otel.Tracer(tracerName, oteltrace.WithInstrumentationVersion("1.0.0"))
	ctx, span := tr.Start(ctx, "stage.execution", oteltrace.WithAttributes(
		attribute.String("stage", stage),
		attribute.Int("prompt_length", len(prompt)),
	))

	return &Trace{
		ID:          newTraceID(),
		Stage:       stage,
		InputPrompt: prompt,
		ToolCalls:   []*ToolCall{},
		StartTime:   time.Now(),
		Metadata:    make(map[string]any),
		recorder:    rec,
		ctx:         ctx,
		span:        span,
	}
}

// StartToolCall opens a tool-call record nested under this trace.
func (t *Trace) StartToolCall(id, name string, params map[string]any) *ToolCall {
	tr := otel.Tracer(tracerName, oteltrace.WithInstrumentationVersion("1.0.0"))
	_, span := tr.Start(t.ctx, "stage.tool_call", oteltrace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.id", id),
	))

	return &ToolCall{
		ID:        id,
		Name:      name,
		Params:    params,
		StartTime: time.Now(),
		trace:     t,
		span:      span,
	}
}

// BadToolCall records an invocation that never ran: unknown tool, bad
// arguments, or an operation outside the client's capability scope.
func (t *Trace) BadToolCall(id, name string, params map[string]any, err error) {
	tr := otel.Tracer(tracerName, oteltrace.WithInstrumentationVersion("1.0.0"))
	_, span := tr.Start(t.ctx, "stage.tool_call", oteltrace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.id", id),
		attribute.String("error", err.Error()),
	))
	span.SetStatus(codes.Error, err.Error())
	span.End()

	now := time.Now()
	tc := &ToolCall{
		ID:        id,
		Name:      name,
		Params:    params,
		StartTime: now,
		EndTime:   now,
		Err:       err,
		trace:     t,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ToolCalls = append(t.ToolCalls, tc)
}

// RecordTokenUsage attaches model and token counts to the trace span so
// consumption is visible without cross-referencing metrics.
func (t *Trace) RecordTokenUsage(model string, inputTokens, outputTokens int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.InputTokens += inputTokens
	t.OutputToks += outputTokens
	if t.span != nil {
		t.span.SetAttributes(
			attribute.String("model", model),
			attribute.Int64("tokens.input", t.InputTokens),
			attribute.Int64("tokens.output", t.OutputToks),
			attribute.Int64("tokens.total", t.InputTokens+t.OutputToks),
		)
	}
}

// Complete closes the trace and hands it to the recorder.
func (t *Trace) Complete(result any, err error) {
	t.mu.Lock()
	t.Result = result
	t.Err = err
	t.EndTime = time.Now()
	rec := t.recorder
	span := t.span
	t.mu.Unlock()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	rec.Record(t)
}

// Complete closes the tool call and appends it to the parent trace's log.
func (tc *ToolCall) Complete(result any, err error) {
	tc.mu.Lock()
	tc.Result = result
	tc.Err = err
	tc.EndTime = time.Now()
	parent := tc.trace
	span := tc.span
	tc.mu.Unlock()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()
	parent.ToolCalls = append(parent.ToolCalls, tc)
}

// Duration returns the total duration of the trace.
func (t *Trace) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// OperationNames returns the names of every tool call recorded on the trace,
// in invocation order. Used by policy-compliance checks.
func (t *Trace) OperationNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.ToolCalls))
	for _, tc := range t.ToolCalls {
		names = append(names, tc.Name)
	}
	return names
}

func newTraceID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("trace-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
