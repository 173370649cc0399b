/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/triagent/trace"
	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"
)

// geminiInvoker drives a Gemini chat session, executing tool calls until the
// model produces terminal text.
type geminiInvoker struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	retry           RetryConfig
	metrics         *genAIMetrics
	recorder        trace.Recorder
}

func newGeminiInvoker(ctx context.Context, cfg Config) (Invoker, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Google AI client: %w", err)
	}

	inv := &geminiInvoker{
		client:          client,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		retry:           cfg.Retry,
		metrics:         newGenAIMetrics(),
		recorder:        cfg.Recorder,
	}
	if inv.temperature == 0 {
		inv.temperature = 0.1
	}
	if inv.maxOutputTokens == 0 {
		inv.maxOutputTokens = 8192
	}
	return inv, nil
}

// Invoke implements Invoker.
func (g *geminiInvoker) Invoke(ctx context.Context, req Request) (<-chan Event, error) {
	s := newStream(ctx)
	go g.run(ctx, req, s)
	return s.events(), nil
}

func (g *geminiInvoker) run(ctx context.Context, req Request, s *stream) {
	defer s.close()
	log := clog.FromContext(ctx)

	tr := trace.Start(ctx, req.Stage, req.Prompt, g.recorder)
	var finalText string
	var runErr error
	defer func() {
		tr.Complete(finalText, runErr)
	}()

	fail := func(err error) {
		runErr = err
		s.fail(err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     ptr(g.temperature),
		MaxOutputTokens: g.maxOutputTokens,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
	for _, tool := range req.Tools {
		declarations = append(declarations, geminiDeclaration(tool))
	}
	if len(declarations) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	log.With("model", g.model).With("stage", req.Stage).Info("Creating Google AI chat session")
	chat, err := g.client.Chats.Create(ctx, g.model, config, nil)
	if err != nil {
		fail(fmt.Errorf("failed to create chat with model %q: %w", g.model, err))
		return
	}

	response, err := retryWithBackoff(ctx, g.retry, "send_message", isRetryableGeminiError, func() (*genai.GenerateContentResponse, error) {
		return chat.SendMessage(ctx, genai.Part{Text: req.Prompt})
	})
	if err != nil {
		fail(fmt.Errorf("failed to send message: %w", err))
		return
	}
	g.recordUsage(ctx, req.Stage, tr, response)

	for {
		if len(response.Candidates) == 0 {
			fail(errors.New("no content generated - no candidates"))
			return
		}
		candidate := response.Candidates[0]

		if candidate.FinishReason == genai.FinishReasonMalformedFunctionCall {
			log.With("finish_message", candidate.FinishMessage).
				Warn("Model attempted a malformed function call, asking it to retry")

			var names []string
			for _, decl := range declarations {
				names = append(names, decl.Name)
			}
			retryMsg := genai.Part{Text: fmt.Sprintf("The function call was malformed. Please try again using the available functions: %v", names)}
			response, err = retryWithBackoff(ctx, g.retry, "send_malformed_retry", isRetryableGeminiError, func() (*genai.GenerateContentResponse, error) {
				return chat.SendMessage(ctx, retryMsg)
			})
			if err != nil {
				fail(fmt.Errorf("failed to send retry message after malformed function call: %w", err))
				return
			}
			g.recordUsage(ctx, req.Stage, tr, response)
			continue
		}

		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			fail(errors.New("no content generated - empty candidate"))
			return
		}

		var calls []*genai.FunctionCall
		var responseText string
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Thought:
				s.partial(part.Text)
			case part.Text != "":
				responseText = part.Text
			case part.FunctionCall != nil:
				calls = append(calls, part.FunctionCall)
			}
		}

		if len(calls) > 0 {
			if responseText != "" {
				s.partial(responseText)
			}
			var resultParts []*genai.Part
			for _, fc := range calls {
				call := ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}
				s.toolCall(call)
				g.metrics.recordToolCall(ctx, g.model, req.Stage, call.Name)

				result := dispatchTool(ctx, req, tr, call)
				s.toolResult(call, result)

				resultParts = append(resultParts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       fc.ID,
						Name:     fc.Name,
						Response: result,
					},
				})
			}

			response, err = retryWithBackoff(ctx, g.retry, "send_tool_responses", isRetryableGeminiError, func() (*genai.GenerateContentResponse, error) {
				return chat.Send(ctx, resultParts...)
			})
			if err != nil {
				fail(fmt.Errorf("failed to send tool responses: %w", err))
				return
			}
			g.recordUsage(ctx, req.Stage, tr, response)
			continue
		}

		if responseText != "" {
			finalText = responseText
			s.final(Part{Text: responseText})
			return
		}

		fail(errors.New("unexpected response format from model"))
		return
	}
}

func (g *geminiInvoker) recordUsage(ctx context.Context, stage string, tr *trace.Trace, resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	in := int64(resp.UsageMetadata.PromptTokenCount)
	out := int64(resp.UsageMetadata.CandidatesTokenCount)
	g.metrics.recordTokens(ctx, g.model, stage, in, out)
	tr.RecordTokenUsage(g.model, in, out)
}

// geminiDeclaration converts a provider-independent tool definition into a
// Gemini function declaration.
func geminiDeclaration(tool Tool) *genai.FunctionDeclaration {
	properties := make(map[string]*genai.Schema, len(tool.Parameters))
	var required []string
	for _, p := range tool.Parameters {
		properties[p.Name] = &genai.Schema{
			Type:        geminiType(p.Type),
			Description: p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: properties,
			Required:   required,
		},
	}
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "number":
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}

// ptr is a helper to create a pointer to a value.
func ptr[T any](v T) *T {
	return &v
}

// isRetryableGeminiError returns true for rate limit, quota exhaustion, and
// transient server errors.
func isRetryableGeminiError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "Internal error") ||
		strings.Contains(errStr, "server error")
}
