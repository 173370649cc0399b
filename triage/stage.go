/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package triage

import (
	"context"
	"fmt"

	"chainguard.dev/triagent/gateway"
	"chainguard.dev/triagent/llm"
	"chainguard.dev/triagent/session"
	"github.com/chainguard-dev/clog"
)

// Session state keys the stages hand results to each other through.
const (
	// StateKeyIssue holds the issue reader's extracted issue.
	StateKeyIssue = "issue"
	// StateKeyNavigation holds the navigator's diagnosis. This is the one
	// canonical key; every consumer reads it.
	StateKeyNavigation = "repo_navigation"
	// StateKeyFix holds the code fix output.
	StateKeyFix = "code_fix"
	// StateKeySummary holds the final markdown report.
	StateKeySummary = "summary"
	// StateKeyResponse holds the orchestrator's answer for the turn.
	StateKeyResponse = "response"
)

// Stage is one specialist step of the triage pipeline.
type Stage struct {
	// Name identifies the stage in logs, traces, and metrics.
	Name string

	// OutputKey is the session state key the stage's output lands under.
	OutputKey string

	// Tools builds the tool surface the stage's model may call. Nil means
	// the stage works purely from state.
	Tools func(sess *session.Session) map[string]llm.Tool

	// Instruction renders the stage's system instruction from session
	// state. Missing upstream state degrades to placeholder text rather
	// than blocking the stage.
	Instruction func(sess *session.Session) (string, error)

	// Validate checks the stage output before it is committed to state.
	// Nil means any non-empty output is accepted.
	Validate func(response string) error
}

// IssueReaderStage reads GitHub and extracts the issue to triage. Alongside
// the read-only gateway tools it carries get_github_owner, so the model can
// recover the owner even when the orchestrator has not seeded it.
func IssueReaderStage(gw *gateway.Client, resolver *gateway.Resolver) Stage {
	return Stage{
		Name:      "issue_reader",
		OutputKey: StateKeyIssue,
		Tools: func(sess *session.Session) map[string]llm.Tool {
			tools := gw.Tools()
			if resolver != nil {
				owner := resolver.Tool(func(ctx context.Context, key string, value any) {
					if err := sess.PutState(ctx, key, value); err != nil {
						clog.FromContext(ctx).With("error", err).Warn("Failed to store owner in session state")
					}
				})
				tools[owner.Name] = owner
			}
			return tools
		},
		Instruction: func(sess *session.Session) (string, error) {
			return IssueReaderInstruction(sess.StateString(gateway.StateKeyUser))
		},
		Validate: func(response string) error {
			if _, err := Decode[IssueRecord](response); err != nil {
				return fmt.Errorf("issue reader output is not a valid issue record: %w", err)
			}
			return nil
		},
	}
}

// NavigatorStage locates the file and function responsible for the issue.
func NavigatorStage(gw *gateway.Client) Stage {
	return Stage{
		Name:      "repo_navigator",
		OutputKey: StateKeyNavigation,
		Tools: func(*session.Session) map[string]llm.Tool {
			return gw.Tools()
		},
		Instruction: func(sess *session.Session) (string, error) {
			return NavigatorInstruction(sess.StateString(StateKeyIssue))
		},
		Validate: func(response string) error {
			if _, err := Decode[NavigationRecord](response); err != nil {
				return fmt.Errorf("navigator output is not a valid navigation record: %w", err)
			}
			return nil
		},
	}
}

// CodeFixStage rewrites the affected file. It works purely from the
// navigator's output and gets no tools at all: a fix is a function of state,
// not of further repository reads.
func CodeFixStage() Stage {
	return Stage{
		Name:      "code_fix",
		OutputKey: StateKeyFix,
		Instruction: func(sess *session.Session) (string, error) {
			return CodeFixInstruction(sess.StateString(StateKeyNavigation))
		},
		Validate: func(response string) error {
			if _, err := Decode[FixRecord](response); err != nil {
				return fmt.Errorf("code fix output is not a valid fix record: %w", err)
			}
			return nil
		},
	}
}

// SummaryStage renders the final markdown report. Earlier outputs that are
// missing render as "Not available" rather than failing the report.
func SummaryStage(gw *gateway.Client) Stage {
	return Stage{
		Name:      "summary",
		OutputKey: StateKeySummary,
		Tools: func(*session.Session) map[string]llm.Tool {
			return gw.Tools()
		},
		Instruction: func(sess *session.Session) (string, error) {
			return SummaryInstruction(
				sess.StateString(StateKeyIssue),
				sess.StateString(StateKeyNavigation),
				sess.StateString(StateKeyFix),
			)
		},
	}
}

// DefaultStages is the standard four-stage triage pipeline over a read-only
// gateway client.
func DefaultStages(gw *gateway.Client, resolver *gateway.Resolver) []Stage {
	return []Stage{
		IssueReaderStage(gw, resolver),
		NavigatorStage(gw),
		CodeFixStage(),
		SummaryStage(gw),
	}
}
