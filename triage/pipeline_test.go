/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package triage_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chainguard.dev/triagent/gateway"
	"chainguard.dev/triagent/llm"
	"chainguard.dev/triagent/session"
	"chainguard.dev/triagent/triage"
)

const (
	issueJSON = `{"title": "Fix login API returns 401 error", "body": "401 after JWT update", "issue_number": "42", "problem_summary": "Authentication fails"}`
	navJSON   = `{"target_file": "auth.py", "target_function": "verify_token", "reasoning": "token verification rejects valid tokens", "code_snippet": "def verify_token(token): ...", "full_file": "def verify_token(token): ..."}`
	fixJSON   = `{"updated_file": "def verify_token(token):\n    return decode(token)", "code_fix_summary": "Fixed token verification"}`
	reportMD  = "# 📝 Issue Resolution Report\n\n## 1. 🚨 Issue Overview\n- **Title:** Fix login API returns 401 error"
)

// scriptedInvoker returns canned final output per stage and records every
// request it sees.
type scriptedInvoker struct {
	outputs  map[string]string
	requests []llm.Request
}

func (s *scriptedInvoker) Invoke(_ context.Context, req llm.Request) (<-chan llm.Event, error) {
	s.requests = append(s.requests, req)
	ch := make(chan llm.Event, 1)
	output, ok := s.outputs[req.Stage]
	if !ok {
		ch <- llm.Event{Kind: llm.EventError, Err: fmt.Errorf("no scripted output for stage %s", req.Stage)}
	} else {
		ch <- llm.Event{Kind: llm.EventFinal, Parts: []llm.Part{{Text: output}}}
	}
	close(ch)
	return ch, nil
}

func fullScript() map[string]string {
	return map[string]string{
		"issue_reader":   issueJSON,
		"repo_navigator": navJSON,
		"code_fix":       fixJSON,
		"summary":        reportMD,
	}
}

// newReadOnlyGateway builds a gateway client against a stub server. The
// pipeline tests never hit it; it only supplies the tool surface.
func newReadOnlyGateway(t *testing.T) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(http.NewServeMux())
	t.Cleanup(srv.Close)
	client, err := gateway.New(context.Background(), "test-token", gateway.ScopeReadOnly,
		gateway.WithBaseURL(srv.URL), gateway.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("gateway.New() = %v, wanted no error", err)
	}
	return client
}

func newTestSession(t *testing.T, state map[string]any) *session.Session {
	t.Helper()
	scope := session.Scope{App: "triagent", User: "alice"}
	sess, err := session.NewMemoryStore().Create(context.Background(), scope, session.NewID(), state)
	if err != nil {
		t.Fatalf("Create() = %v, wanted no error", err)
	}
	return sess
}

func TestRunnerThreadsStateThroughStages(t *testing.T) {
	ctx := context.Background()
	gw := newReadOnlyGateway(t)
	invoker := &scriptedInvoker{outputs: fullScript()}
	runner := triage.NewRunner(invoker, triage.DefaultStages(gw, gateway.NewResolver(gw))...)
	sess := newTestSession(t, map[string]any{gateway.StateKeyUser: "alice"})

	report, err := runner.Run(ctx, sess, "owner: alice, task: fetch issue #42 from repo booking-app")
	if err != nil {
		t.Fatalf("Run() = %v, wanted no error", err)
	}
	if !strings.HasPrefix(report, "# 📝 Issue Resolution Report") {
		t.Errorf("report = %q, wanted the resolution report heading", report)
	}

	for key, want := range map[string]string{
		triage.StateKeyIssue:      issueJSON,
		triage.StateKeyNavigation: navJSON,
		triage.StateKeyFix:        fixJSON,
		triage.StateKeySummary:    reportMD,
	} {
		if got := sess.StateString(key); got != want {
			t.Errorf("state %q = %q, wanted = %q", key, got, want)
		}
	}

	wantOrder := []string{"issue_reader", "repo_navigator", "code_fix", "summary"}
	if len(invoker.requests) != len(wantOrder) {
		t.Fatalf("invoked %d stages, wanted = %d", len(invoker.requests), len(wantOrder))
	}
	for i, want := range wantOrder {
		if invoker.requests[i].Stage != want {
			t.Errorf("stage[%d] = %s, wanted = %s", i, invoker.requests[i].Stage, want)
		}
	}
}

func TestRunnerStageInstructionsCarryState(t *testing.T) {
	ctx := context.Background()
	gw := newReadOnlyGateway(t)
	invoker := &scriptedInvoker{outputs: fullScript()}
	runner := triage.NewRunner(invoker, triage.DefaultStages(gw, gateway.NewResolver(gw))...)
	sess := newTestSession(t, map[string]any{gateway.StateKeyUser: "alice"})

	if _, err := runner.Run(ctx, sess, "task"); err != nil {
		t.Fatalf("Run() = %v, wanted no error", err)
	}

	if !strings.Contains(invoker.requests[0].System, "alice") {
		t.Error("issue reader instruction does not carry the owner")
	}
	if !strings.Contains(invoker.requests[1].System, issueJSON) {
		t.Error("navigator instruction does not carry the issue record")
	}
	if !strings.Contains(invoker.requests[2].System, navJSON) {
		t.Error("code fix instruction does not carry the navigation record")
	}
	sys := invoker.requests[3].System
	if !strings.Contains(sys, issueJSON) || !strings.Contains(sys, navJSON) || !strings.Contains(sys, fixJSON) {
		t.Error("summary instruction does not carry all three upstream outputs")
	}
}

func TestRunnerCodeFixStageHasNoTools(t *testing.T) {
	ctx := context.Background()
	gw := newReadOnlyGateway(t)
	invoker := &scriptedInvoker{outputs: fullScript()}
	runner := triage.NewRunner(invoker, triage.DefaultStages(gw, gateway.NewResolver(gw))...)
	sess := newTestSession(t, map[string]any{gateway.StateKeyUser: "alice"})

	if _, err := runner.Run(ctx, sess, "task"); err != nil {
		t.Fatalf("Run() = %v, wanted no error", err)
	}

	for _, req := range invoker.requests {
		switch req.Stage {
		case "code_fix":
			if len(req.Tools) != 0 {
				t.Errorf("code_fix got %d tools, wanted = 0", len(req.Tools))
			}
		default:
			if len(req.Tools) == 0 {
				t.Errorf("%s got no tools, wanted the read-only gateway set", req.Stage)
			}
			for name := range req.Tools {
				if name == "get_github_owner" {
					continue
				}
				if !gateway.ScopeReadOnly.Allows(name) {
					t.Errorf("%s exposes mutation tool %q", req.Stage, name)
				}
			}
		}
	}
}

func TestIssueReaderCarriesOwnerTool(t *testing.T) {
	ctx := context.Background()
	gw := newReadOnlyGateway(t)
	invoker := &scriptedInvoker{outputs: fullScript()}
	runner := triage.NewRunner(invoker, triage.DefaultStages(gw, gateway.NewResolver(gw))...)
	sess := newTestSession(t, map[string]any{gateway.StateKeyUser: "alice"})

	if _, err := runner.Run(ctx, sess, "task"); err != nil {
		t.Fatalf("Run() = %v, wanted no error", err)
	}

	if _, ok := invoker.requests[0].Tools["get_github_owner"]; !ok {
		t.Error("issue_reader does not expose get_github_owner")
	}
	for _, req := range invoker.requests[1:] {
		if _, ok := req.Tools["get_github_owner"]; ok {
			t.Errorf("%s exposes get_github_owner, wanted issue_reader only", req.Stage)
		}
	}
}

func TestRunnerStageFailureAborts(t *testing.T) {
	ctx := context.Background()
	gw := newReadOnlyGateway(t)
	script := fullScript()
	// Navigator returns prose instead of the navigation record.
	script["repo_navigator"] = "I could not locate the file."
	invoker := &scriptedInvoker{outputs: script}
	runner := triage.NewRunner(invoker, triage.DefaultStages(gw, gateway.NewResolver(gw))...)
	sess := newTestSession(t, map[string]any{gateway.StateKeyUser: "alice"})

	_, err := runner.Run(ctx, sess, "task")
	if err == nil {
		t.Fatal("Run() = nil, wanted validation error")
	}
	if !strings.Contains(err.Error(), "repo_navigator") {
		t.Errorf("error = %v, wanted the failing stage named", err)
	}

	// Completed stage output stays; failed and later stages never commit.
	if sess.StateString(triage.StateKeyIssue) != issueJSON {
		t.Error("issue state missing after downstream failure")
	}
	if sess.StateString(triage.StateKeyNavigation) != "" {
		t.Error("navigation state committed despite validation failure")
	}
	if sess.StateString(triage.StateKeyFix) != "" || sess.StateString(triage.StateKeySummary) != "" {
		t.Error("later stages ran after a failure")
	}
	if len(invoker.requests) != 2 {
		t.Errorf("invoked %d stages after failure, wanted = 2", len(invoker.requests))
	}
}

func TestRunnerToleratesMissingUpstreamState(t *testing.T) {
	ctx := context.Background()
	gw := newReadOnlyGateway(t)
	invoker := &scriptedInvoker{outputs: fullScript()}
	// Navigator alone, with no issue in state: the stage still runs, with
	// the missing section rendered as a placeholder.
	runner := triage.NewRunner(invoker, triage.NavigatorStage(gw))
	sess := newTestSession(t, map[string]any{gateway.StateKeyUser: "alice"})

	if _, err := runner.Run(ctx, sess, "task"); err != nil {
		t.Fatalf("Run() = %v, wanted no error", err)
	}
	if len(invoker.requests) != 1 {
		t.Fatalf("model invoked %d times, wanted = 1", len(invoker.requests))
	}
	if !strings.Contains(invoker.requests[0].System, "Not available") {
		t.Error("navigator instruction does not mark the missing issue as Not available")
	}
	if got := sess.StateString(triage.StateKeyNavigation); got != navJSON {
		t.Errorf("state %q = %q, wanted the navigator output", triage.StateKeyNavigation, got)
	}
}
