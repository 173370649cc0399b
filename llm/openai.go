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
	"strings"

	"chainguard.dev/triagent/trace"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// openaiInvoker drives an OpenAI-compatible chat completions conversation.
// Models prefixed openrouter/ are routed through OpenRouter's endpoint,
// which speaks the same wire protocol.
type openaiInvoker struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	retry       RetryConfig
	metrics     *genAIMetrics
	recorder    trace.Recorder
}

func newOpenAIInvoker(cfg Config) (Invoker, error) {
	model := cfg.Model
	baseURL := cfg.BaseURL
	if rest, ok := strings.CutPrefix(model, "openrouter/"); ok {
		model = rest
		if baseURL == "" {
			baseURL = openRouterBaseURL
		}
	}

	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	inv := &openaiInvoker{
		client:      openai.NewClient(opts...),
		model:       model,
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
func (o *openaiInvoker) Invoke(ctx context.Context, req Request) (<-chan Event, error) {
	s := newStream(ctx)
	go o.run(ctx, req, s)
	return s.events(), nil
}

func (o *openaiInvoker) run(ctx context.Context, req Request, s *stream) {
	defer s.close()
	log := clog.FromContext(ctx)

	tr := trace.Start(ctx, req.Stage, req.Prompt, o.recorder)
	var finalText string
	var runErr error
	defer func() {
		tr.Complete(finalText, runErr)
	}()

	fail := func(err error) {
		runErr = err
		s.fail(err)
	}

	tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
	for _, tool := range req.Tools {
		tools = append(tools, openai.ChatCompletionToolParam{Function: openaiDefinition(tool)})
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            messages,
		Tools:               tools,
		Temperature:         openai.Float(o.temperature),
		MaxCompletionTokens: openai.Int(o.maxTokens),
	}

	log.With("model", o.model).With("stage", req.Stage).
		With("prompt_length", len(req.Prompt)).
		Info("Starting chat completions conversation")

	for {
		resp, err := retryWithBackoff(ctx, o.retry, "chat_completion", isRetryableOpenAIError, func() (*openai.ChatCompletion, error) {
			return o.client.Chat.Completions.New(ctx, params)
		})
		if err != nil {
			fail(fmt.Errorf("failed to create chat completion: %w", err))
			return
		}
		if len(resp.Choices) == 0 {
			fail(errors.New("no choices in chat completion response"))
			return
		}

		if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
			o.metrics.recordTokens(ctx, o.model, req.Stage, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			tr.RecordTokenUsage(o.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) > 0 {
			if message.Content != "" {
				s.partial(message.Content)
			}
			params.Messages = append(params.Messages, message.ToParam())

			for _, tc := range message.ToolCalls {
				args := map[string]any{}
				if raw := tc.Function.Arguments; raw != "" {
					// Malformed arguments surface as empty args; the tool
					// handler reports the missing parameters to the model.
					_ = json.Unmarshal([]byte(raw), &args)
				}
				call := ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args}
				s.toolCall(call)
				o.metrics.recordToolCall(ctx, o.model, req.Stage, call.Name)

				result := dispatchTool(ctx, req, tr, call)
				s.toolResult(call, result)

				resultBytes, err := json.Marshal(result)
				if err != nil {
					fail(fmt.Errorf("failed to marshal tool result: %w", err))
					return
				}
				params.Messages = append(params.Messages, openai.ToolMessage(string(resultBytes), tc.ID))
			}
			continue
		}

		if message.Content != "" {
			finalText = message.Content
			s.final(Part{Text: message.Content})
			return
		}

		fail(errors.New("no content in chat completion response"))
		return
	}
}

// openaiDefinition converts a provider-independent tool definition into a
// function definition for the chat completions API.
func openaiDefinition(tool Tool) openai.FunctionDefinitionParam {
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
	return openai.FunctionDefinitionParam{
		Name:        tool.Name,
		Description: openai.String(tool.Description),
		Parameters: openai.FunctionParameters{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

// isRetryableOpenAIError returns true for rate limit and transient server
// errors.
func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 503, 504:
			return true
		}
	}
	return false
}
