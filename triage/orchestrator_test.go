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
	"chainguard.dev/triagent/triage"
)

// newOrchestrator wires an orchestrator whose owner lookups hit a counting
// stub server.
func newOrchestrator(t *testing.T, invoker *scriptedInvoker, userCalls *int) *triage.Orchestrator {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		*userCalls++
		fmt.Fprint(w, `{"login": "alice"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := gateway.New(context.Background(), "test-token", gateway.ScopeReadOnly,
		gateway.WithBaseURL(srv.URL), gateway.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("gateway.New() = %v, wanted no error", err)
	}
	resolver := gateway.NewResolver(client)
	runner := triage.NewRunner(invoker, triage.DefaultStages(client, resolver)...)
	return triage.NewOrchestrator(resolver, runner)
}

func TestHandleTurnResolvesOwnerOnce(t *testing.T) {
	ctx := context.Background()
	var userCalls int
	invoker := &scriptedInvoker{outputs: fullScript()}
	orch := newOrchestrator(t, invoker, &userCalls)
	sess := newTestSession(t, nil)

	for i := 0; i < 2; i++ {
		response := orch.HandleTurn(ctx, sess, "fetch issue #42 from repo booking-app")
		if !strings.HasPrefix(response, "# 📝 Issue Resolution Report") {
			t.Fatalf("response = %q, wanted the resolution report", response)
		}
	}

	if userCalls != 1 {
		t.Errorf("user endpoint hit %d times across turns, wanted = 1", userCalls)
	}
	if got := sess.StateString(gateway.StateKeyUser); got != "alice" {
		t.Errorf("state %q = %q, wanted = alice", gateway.StateKeyUser, got)
	}
}

func TestHandleTurnReusesOwnerFromState(t *testing.T) {
	ctx := context.Background()
	var userCalls int
	invoker := &scriptedInvoker{outputs: fullScript()}
	orch := newOrchestrator(t, invoker, &userCalls)
	sess := newTestSession(t, map[string]any{gateway.StateKeyUser: "bob"})

	orch.HandleTurn(ctx, sess, "check my repo")
	if userCalls != 0 {
		t.Errorf("user endpoint hit %d times with owner in state, wanted = 0", userCalls)
	}
	if !strings.Contains(invoker.requests[0].Prompt, "owner: bob") {
		t.Errorf("delegation prompt = %q, wanted owner from session state", invoker.requests[0].Prompt)
	}
}

func TestHandleTurnDelegationFormat(t *testing.T) {
	ctx := context.Background()
	var userCalls int
	invoker := &scriptedInvoker{outputs: fullScript()}
	orch := newOrchestrator(t, invoker, &userCalls)
	sess := newTestSession(t, nil)

	orch.HandleTurn(ctx, sess, "fetch issue #42 from repo booking-app")
	want := "owner: alice, task: fetch issue #42 from repo booking-app"
	if got := invoker.requests[0].Prompt; got != want {
		t.Errorf("delegation prompt = %q, wanted = %q", got, want)
	}
}

func TestHandleTurnFlattensErrors(t *testing.T) {
	ctx := context.Background()
	var userCalls int
	script := fullScript()
	delete(script, "issue_reader")
	invoker := &scriptedInvoker{outputs: script}
	orch := newOrchestrator(t, invoker, &userCalls)
	sess := newTestSession(t, nil)

	response := orch.HandleTurn(ctx, sess, "triage my repo")
	if !strings.HasPrefix(response, "Error: ") {
		t.Fatalf("response = %q, wanted a flattened Error: line", response)
	}
	// The flattened response is still recorded for the turn.
	if got := sess.StateString(triage.StateKeyResponse); got != response {
		t.Errorf("state %q = %q, wanted = %q", triage.StateKeyResponse, got, response)
	}
}

func TestHandleTurnStoresResponse(t *testing.T) {
	ctx := context.Background()
	var userCalls int
	invoker := &scriptedInvoker{outputs: fullScript()}
	orch := newOrchestrator(t, invoker, &userCalls)
	sess := newTestSession(t, nil)

	response := orch.HandleTurn(ctx, sess, "fetch issue #42")
	if got := sess.StateString(triage.StateKeyResponse); got != response {
		t.Errorf("state %q = %q, wanted the returned response", triage.StateKeyResponse, got)
	}
}
