/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/triagent/trace"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"
)

// claudeInvoker drives an Anthropic messages conversation, executing tool
// calls until the model produces terminal text.
type claudeInvoker struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
	retry       RetryConfig
	metrics     *genAIMetrics
	recorder    trace.Recorder
}

func newClaudeInvoker(cfg Config) (Invoker, error) {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	inv := &claudeInvoker{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: float64(cfg.Temperature),
		maxTokens:   int64(cfg.MaxOutputTokens),
		retry:       cfg.Retry,
		metrics:     newGenAIMetrics(),
		recorder:    cfg.Recorder,
	}
	if inv.temperature == 0 {
		inv.temperature = 0.1
	}
	if inv.maxTokens == 0 {
		inv.maxTokens = 8192
	}
	return inv, nil
}

// Invoke implements Invoker.
func (c *claudeInvoker) Invoke(ctx context.Context, req Request) (<-chan Event, error) {
	s := newStream(ctx)
	go c.run(ctx, req, s)
	return s.events(), nil
}

func (c *claudeInvoker) run(ctx context.Context, req Request, s *stream) {
	defer s.close()
	log := clog.FromContext(ctx)

	tr := trace.Start(ctx, req.Stage, req.Prompt, c.recorder)
	var finalText string
	var runErr error
	defer func() {
		tr.Complete(finalText, runErr)
	}()

	fail := func(err error) {
		runErr = err
		s.fail(err)
	}

	toolDefs := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
	for _, tool := range req.Tools {
		def := claudeDefinition(tool)
		toolDefs = append(toolDefs, anthropic.ToolUnionParam{OfTool: &def})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(req.Prompt),
			},
		}},
		Tools: toolDefs,
	}
	params.Temperature = anthropic.Float(c.temperature)
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	log.With("model", c.model).With("stage", req.Stage).
		With("prompt_length", len(req.Prompt)).
		Info("Starting Claude conversation")

	for {
		message, err := retryWithBackoff(ctx, c.retry, "stream_message", isRetryableClaudeError, func() (anthropic.Message, error) {
			stream := c.client.Messages.NewStreaming(ctx, params)
			var msg anthropic.Message
			for stream.Next() {
				event := stream.Current()
				if err := msg.Accumulate(event); err != nil {
					return msg, fmt.Errorf("failed to accumulate event: %w", err)
				}
			}
			if err := stream.Err(); err != nil {
				return msg, err
			}
			return msg, nil
		})
		if err != nil {
			fail(fmt.Errorf("failed to stream Claude response: %w", err))
			return
		}

		if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
			c.metrics.recordTokens(ctx, c.model, req.Stage, message.Usage.InputTokens, message.Usage.OutputTokens)
			tr.RecordTokenUsage(c.model, message.Usage.InputTokens, message.Usage.OutputTokens)
		}

		var toolUses []anthropic.ToolUseBlock
		var textContent string
		for _, content := range message.Content {
			switch content.Type {
			case "text":
				textContent = content.Text
			case "tool_use":
				toolUses = append(toolUses, anthropic.ToolUseBlock{
					ID:    content.ID,
					Name:  content.Name,
					Input: content.Input,
				})
			case "thinking", "redacted_thinking":
				s.partial(content.Thinking)
			}
		}

		if len(toolUses) > 0 {
			if textContent != "" {
				s.partial(textContent)
			}
			params.Messages = append(params.Messages, message.ToParam())

			var results []anthropic.ContentBlockParamUnion
			for _, use := range toolUses {
				call := ToolCall{ID: use.ID, Name: use.Name, Args: decodeToolInput(use.Input)}
				s.toolCall(call)
				c.metrics.recordToolCall(ctx, c.model, req.Stage, call.Name)

				result := dispatchTool(ctx, req, tr, call)
				s.toolResult(call, result)

				resultBytes, err := json.Marshal(result)
				if err != nil {
					fail(fmt.Errorf("failed to marshal tool result: %w", err))
					return
				}
				results = append(results, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: use.ID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: string(resultBytes)},
						}},
					},
				})
			}

			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: results,
			})
			continue
		}

		if textContent != "" {
			finalText = textContent
			s.final(Part{Text: textContent})
			return
		}

		fail(errors.New("no content in Claude response"))
		return
	}
}

// claudeDefinition converts a provider-independent tool definition into an
// Anthropic tool parameter.
func claudeDefinition(tool Tool) anthropic.ToolParam {
	properties := make(map[string]any, len(tool.Parameters))
	var required []string
	for _, p := range tool.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return anthropic.ToolParam{
		Name:        tool.Name,
		Description: anthropic.String(tool.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}
}

// decodeToolInput unmarshals the raw tool_use input block into args.
func decodeToolInput(input json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(input) > 0 {
		// Malformed input surfaces as empty args; the tool handler reports
		// the missing parameters back to the model.
		_ = json.Unmarshal(input, &args)
	}
	return args
}

// isRetryableClaudeError returns true for rate limit, overloaded, and
// transient server errors.
func isRetryableClaudeError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 503, 504, 529:
			return true
		}
	}
	return false
}
