/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"

	"chainguard.dev/triagent/trace"
)

// EventKind classifies the events emitted during one model invocation.
type EventKind int

const (
	// EventPartial carries intermediate model text that is not the answer.
	EventPartial EventKind = iota
	// EventToolCall marks the model requesting a tool invocation.
	EventToolCall
	// EventToolResult carries the result handed back for a tool call.
	EventToolResult
	// EventFinal carries the invocation's terminal content.
	EventFinal
	// EventError carries a failure; the stream ends after it.
	EventError
)

// Part is one piece of event content: text, or a structured payload.
type Part struct {
	Text string
	Data map[string]any
}

// Event is one entry in the ordered, finite stream produced by an invocation.
type Event struct {
	Kind  EventKind
	Parts []Part
	Err   error
}

// ToolCall is a provider-independent representation of a tool invocation
// requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Parameter describes a single tool parameter.
type Parameter struct {
	Name        string
	Type        string // "string", "integer", "boolean", "number"
	Description string
	Required    bool
}

// Tool defines a tool once, with a single handler that works with any
// provider. The handler's returned map is serialized back to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     func(ctx context.Context, call ToolCall, tr *trace.Trace) map[string]any
}

// Request is one model invocation: a rendered system instruction, a rendered
// user prompt, and the tool set the stage is allowed to use.
type Request struct {
	// Stage labels the invocation in traces and logs.
	Stage string
	// System is the role instruction; may be empty.
	System string
	// Prompt is the user-turn text.
	Prompt string
	// Tools is the allow-listed tool set, keyed by tool name.
	Tools map[string]Tool
}

// Invoker executes one model invocation and streams its events. The channel
// is closed when the invocation finishes; a terminal failure arrives as an
// EventError before close. Implementations run the tool-call loop internally,
// dispatching to the handlers in Request.Tools.
//
// Invoker is the seam between the deterministic pipeline and the
// non-deterministic model: tests swap in scripted implementations.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (<-chan Event, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req Request) (<-chan Event, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (<-chan Event, error) {
	return f(ctx, req)
}
