/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package trace

import (
	"fmt"
	"io"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// AuditLog collects the traces from one turn so the gateway operations each
// stage invoked can be inspected or rendered after the chain completes.
type AuditLog struct {
	mu     sync.Mutex
	traces []*Trace
}

// NewAuditLog returns an empty audit log. It implements Recorder.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Record implements Recorder.
func (a *AuditLog) Record(t *Trace) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.traces = append(a.traces, t)
}

// Reset clears the log for the next turn.
func (a *AuditLog) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.traces = nil
}

// Traces returns the recorded traces in completion order.
func (a *AuditLog) Traces() []*Trace {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Trace, len(a.traces))
	copy(out, a.traces)
	return out
}

// OperationsByStage returns the gateway operation names each stage invoked.
func (a *AuditLog) OperationsByStage() map[string][]string {
	ops := make(map[string][]string)
	for _, t := range a.Traces() {
		ops[t.Stage] = append(ops[t.Stage], t.OperationNames()...)
	}
	return ops
}

// WriteReport renders a markdown table of every tool call in the log.
func (a *AuditLog) WriteReport(w io.Writer) error {
	tbl := newAuditTable([]string{"Stage", "Operation", "Duration", "Outcome"}, w)
	for _, t := range a.Traces() {
		for _, tc := range t.ToolCalls {
			outcome := "ok"
			if tc.Err != nil {
				outcome = tc.Err.Error()
			}
			tbl.Append([]string{t.Stage, tc.Name, tc.EndTime.Sub(tc.StartTime).String(), outcome})
		}
		if len(t.ToolCalls) == 0 {
			tbl.Append([]string{t.Stage, "(none)", t.Duration().String(), summarizeOutcome(t)})
		}
	}
	return tbl.Render()
}

func summarizeOutcome(t *Trace) string {
	if t.Err != nil {
		return fmt.Sprintf("error: %v", t.Err)
	}
	return "ok"
}

// newAuditTable creates a table writer with the formatting used for all
// triagent reports.
func newAuditTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 100,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
