/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/triagent/trace"
)

// Config configures a concrete model invoker.
type Config struct {
	// Model selects the provider by prefix: gemini-* uses Google's
	// Generative AI SDK, claude-* uses Anthropic's SDK, and gpt-* or
	// openrouter/* uses the OpenAI-compatible chat completions API.
	Model string

	// APIKey authenticates against the selected provider.
	APIKey string

	// BaseURL overrides the provider endpoint. Used to point the
	// OpenAI-compatible invoker at OpenRouter.
	BaseURL string

	// MaxOutputTokens caps generation; 0 uses the provider default.
	MaxOutputTokens int32

	// Temperature for generation; invokers default to 0.1 when zero.
	Temperature float32

	// Retry configures backoff for transient provider errors.
	Retry RetryConfig

	// Recorder receives the completed trace of every invocation.
	Recorder trace.Recorder
}

// New builds the invoker for the configured model.
func New(ctx context.Context, cfg Config) (Invoker, error) {
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	model := strings.ToLower(cfg.Model)
	switch {
	case strings.HasPrefix(model, "gemini-"):
		return newGeminiInvoker(ctx, cfg)
	case strings.HasPrefix(model, "claude-"):
		return newClaudeInvoker(cfg)
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "openrouter/"):
		return newOpenAIInvoker(cfg)
	default:
		return nil, fmt.Errorf("unsupported model: %s (expected gemini-*, claude-*, gpt-*, or openrouter/*)", cfg.Model)
	}
}

// stream wraps the event channel so invoker loops read naturally. Every send
// races the invocation context, so a reader that walks away after
// cancellation never strands the provider goroutine on a full buffer.
type stream struct {
	ctx context.Context
	ch  chan Event
}

func newStream(ctx context.Context) *stream {
	// Buffered so emitting never blocks a provider loop on a slow reader
	// for short bursts; the drain side still applies backpressure overall.
	return &stream{ctx: ctx, ch: make(chan Event, 16)}
}

func (s *stream) events() <-chan Event { return s.ch }

func (s *stream) close() { close(s.ch) }

func (s *stream) send(ev Event) {
	select {
	case s.ch <- ev:
	case <-s.ctx.Done():
	}
}

func (s *stream) partial(text string) {
	s.send(Event{Kind: EventPartial, Parts: []Part{{Text: text}}})
}

func (s *stream) toolCall(call ToolCall) {
	s.send(Event{Kind: EventToolCall, Parts: []Part{{Data: map[string]any{
		"id": call.ID, "name": call.Name, "args": call.Args,
	}}}})
}

func (s *stream) toolResult(call ToolCall, result map[string]any) {
	s.send(Event{Kind: EventToolResult, Parts: []Part{{Data: map[string]any{
		"id": call.ID, "name": call.Name, "result": result,
	}}}})
}

func (s *stream) final(parts ...Part) {
	s.send(Event{Kind: EventFinal, Parts: parts})
}

func (s *stream) fail(err error) {
	s.send(Event{Kind: EventError, Err: err})
}

// dispatchTool runs one tool call against the request's tool set, recording
// it on the trace. Unknown tools produce an error result for the model, not a
// failed invocation.
func dispatchTool(ctx context.Context, req Request, tr *trace.Trace, call ToolCall) map[string]any {
	tool, ok := req.Tools[call.Name]
	if !ok {
		tr.BadToolCall(call.ID, call.Name, call.Args, fmt.Errorf("unknown tool: %q", call.Name))
		return map[string]any{"error": fmt.Sprintf("unknown tool: %q", call.Name)}
	}
	return tool.Handler(ctx, call, tr)
}
