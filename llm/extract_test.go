/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm_test

import (
	"context"
	"errors"
	"testing"

	"chainguard.dev/triagent/llm"
)

func TestExtractFinal(t *testing.T) {
	tests := []struct {
		name   string
		events []llm.Event
		want   llm.Output
		wantOK bool
	}{{
		name: "ignores partials before the final event",
		events: []llm.Event{
			{Kind: llm.EventPartial, Parts: []llm.Part{{Text: "thinking..."}}},
			{Kind: llm.EventToolCall, Parts: []llm.Part{{Data: map[string]any{"name": "get_issue"}}}},
			{Kind: llm.EventFinal, Parts: []llm.Part{{Text: "all set"}}},
		},
		want:   llm.Output{Kind: llm.OutputText, Text: "all set"},
		wantOK: true,
	}, {
		name: "trims surrounding whitespace",
		events: []llm.Event{
			{Kind: llm.EventFinal, Parts: []llm.Part{{Text: "  done  "}}},
		},
		want:   llm.Output{Kind: llm.OutputText, Text: "done"},
		wantOK: true,
	}, {
		name: "first text part wins",
		events: []llm.Event{
			{Kind: llm.EventFinal, Parts: []llm.Part{
				{Text: "first"},
				{Text: "second"},
			}},
		},
		want:   llm.Output{Kind: llm.OutputText, Text: "first"},
		wantOK: true,
	}, {
		name: "structured payload when no text part",
		events: []llm.Event{
			{Kind: llm.EventFinal, Parts: []llm.Part{
				{Data: map[string]any{"status": "merged"}},
			}},
		},
		want:   llm.Output{Kind: llm.OutputStructured, Data: map[string]any{"status": "merged"}},
		wantOK: true,
	}, {
		name: "text wins over structured within the final event",
		events: []llm.Event{
			{Kind: llm.EventFinal, Parts: []llm.Part{
				{Data: map[string]any{"status": "merged"}},
				{Text: "merged"},
			}},
		},
		want:   llm.Output{Kind: llm.OutputText, Text: "merged"},
		wantOK: true,
	}, {
		name: "no final event",
		events: []llm.Event{
			{Kind: llm.EventPartial, Parts: []llm.Part{{Text: "still going"}}},
		},
		wantOK: false,
	}, {
		name: "final event with only whitespace text",
		events: []llm.Event{
			{Kind: llm.EventFinal, Parts: []llm.Part{{Text: "   "}}},
		},
		wantOK: false,
	}, {
		name:   "empty sequence",
		events: nil,
		wantOK: false,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := llm.ExtractFinal(test.events)
			if ok != test.wantOK {
				t.Fatalf("ExtractFinal() ok = %v, wanted = %v", ok, test.wantOK)
			}
			if !ok {
				return
			}
			if got.Kind != test.want.Kind {
				t.Errorf("ExtractFinal() kind = %v, wanted = %v", got.Kind, test.want.Kind)
			}
			if got.Text != test.want.Text {
				t.Errorf("ExtractFinal() text = %q, wanted = %q", got.Text, test.want.Text)
			}
			if test.want.Data != nil {
				if got.Data["status"] != test.want.Data["status"] {
					t.Errorf("ExtractFinal() data = %v, wanted = %v", got.Data, test.want.Data)
				}
			}
		})
	}
}

func TestDrain(t *testing.T) {
	t.Run("collects until close", func(t *testing.T) {
		ch := make(chan llm.Event, 3)
		ch <- llm.Event{Kind: llm.EventPartial, Parts: []llm.Part{{Text: "a"}}}
		ch <- llm.Event{Kind: llm.EventFinal, Parts: []llm.Part{{Text: "b"}}}
		close(ch)

		events, err := llm.Drain(context.Background(), ch)
		if err != nil {
			t.Fatalf("Drain() = %v, wanted no error", err)
		}
		if len(events) != 2 {
			t.Fatalf("Drain() collected %d events, wanted = 2", len(events))
		}
	})

	t.Run("surfaces stream errors", func(t *testing.T) {
		wantErr := errors.New("model unavailable")
		ch := make(chan llm.Event, 2)
		ch <- llm.Event{Kind: llm.EventPartial, Parts: []llm.Part{{Text: "a"}}}
		ch <- llm.Event{Kind: llm.EventError, Err: wantErr}
		close(ch)

		events, err := llm.Drain(context.Background(), ch)
		if !errors.Is(err, wantErr) {
			t.Errorf("Drain() error = %v, wanted = %v", err, wantErr)
		}
		if len(events) != 2 {
			t.Errorf("Drain() collected %d events, wanted = 2", len(events))
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ch := make(chan llm.Event)

		_, err := llm.Drain(ctx, ch)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Drain() error = %v, wanted context.Canceled", err)
		}
	})
}
