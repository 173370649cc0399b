/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"strings"
)

// OutputKind tags what the final event carried.
type OutputKind int

const (
	// OutputText means the invocation terminated with plain text.
	OutputText OutputKind = iota
	// OutputStructured means the invocation terminated with a structured
	// payload (for example a function result) rather than text.
	OutputStructured
)

// Output is the tagged terminal content of one invocation.
type Output struct {
	Kind OutputKind
	// Text is the trimmed final text when Kind is OutputText.
	Text string
	// Data is the structured payload when Kind is OutputStructured.
	Data map[string]any
}

// ExtractFinal scans an ordered event sequence, skipping everything until the
// final event, and extracts its first content-bearing part. Text wins over
// structured content within the final event; surrounding whitespace is
// trimmed. The second return is false when no event is final or the final
// event carries no content.
func ExtractFinal(events []Event) (Output, bool) {
	for _, ev := range events {
		if ev.Kind != EventFinal {
			continue
		}
		for _, part := range ev.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return Output{Kind: OutputText, Text: text}, true
			}
		}
		for _, part := range ev.Parts {
			if part.Data != nil {
				return Output{Kind: OutputStructured, Data: part.Data}, true
			}
		}
		return Output{}, false
	}
	return Output{}, false
}

// Drain collects every event from the stream until it closes or the context
// is canceled. A stream error (EventError) is kept in the returned slice so
// callers see the full sequence, and also returned as the error.
func Drain(ctx context.Context, events <-chan Event) ([]Event, error) {
	var collected []Event
	var failure error
	for {
		select {
		case <-ctx.Done():
			return collected, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return collected, failure
			}
			collected = append(collected, ev)
			if ev.Kind == EventError && failure == nil {
				failure = ev.Err
			}
		}
	}
}
