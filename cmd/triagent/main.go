/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the interactive GitHub issue triage agent: a
// four-stage pipeline (issue reader, repository navigator, code fix,
// summary) fronted by a deterministic orchestrator.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chainguard.dev/triagent/gateway"
	"chainguard.dev/triagent/llm"
	"chainguard.dev/triagent/session"
	"chainguard.dev/triagent/trace"
	"chainguard.dev/triagent/triage"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
)

// appName scopes every stored session.
const appName = "triagent"

type config struct {
	// GitHubToken authenticates the gateway. The pipeline runs read-only,
	// so a fine-grained token with read access suffices.
	GitHubToken string `env:"GITHUB_PERSONAL_ACCESS_TOKEN,required"`

	// Model selects the provider by prefix: gemini-*, claude-*, gpt-*, or
	// openrouter/*.
	Model string `env:"TRIAGE_MODEL,default=gemini-2.5-flash-lite"`

	GoogleAPIKey     string `env:"GOOGLE_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`

	// SessionDB is the SQLite path for resumable sessions. Empty keeps
	// sessions in memory for the life of the process.
	SessionDB string `env:"SESSION_DB"`

	// SessionUser scopes stored sessions, so one database can serve
	// several users without mixing their state.
	SessionUser string `env:"SESSION_USER,default=default"`

	// AuditReport prints a markdown table of every model trace and tool
	// call on exit.
	AuditReport bool `env:"AUDIT_REPORT,default=false"`
}

// apiKey picks the provider credential matching the configured model.
func (c config) apiKey() string {
	model := strings.ToLower(c.Model)
	switch {
	case strings.HasPrefix(model, "gemini-"):
		return c.GoogleAPIKey
	case strings.HasPrefix(model, "claude-"):
		return c.AnthropicAPIKey
	case strings.HasPrefix(model, "openrouter/"):
		return c.OpenRouterAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		clog.FatalContextf(ctx, "opening session store: %v", err)
	}

	gw, err := gateway.New(ctx, cfg.GitHubToken, gateway.ScopeReadOnly)
	if err != nil {
		clog.FatalContextf(ctx, "creating gateway client: %v", err)
	}
	resolver := gateway.NewResolver(gw)

	audit := trace.NewAuditLog()
	invoker, err := llm.New(ctx, llm.Config{
		Model:    cfg.Model,
		APIKey:   cfg.apiKey(),
		Retry:    llm.DefaultRetryConfig(),
		Recorder: audit,
	})
	if err != nil {
		clog.FatalContextf(ctx, "creating model invoker: %v", err)
	}
	clog.InfoContextf(ctx, "Using model %s", cfg.Model)

	scope := session.Scope{App: appName, User: cfg.SessionUser}
	sess, err := resumeOrCreate(ctx, store, resolver, scope)
	if err != nil {
		clog.FatalContextf(ctx, "preparing session: %v", err)
	}

	runner := triage.NewRunner(invoker, triage.DefaultStages(gw, resolver)...)
	orch := triage.NewOrchestrator(resolver, runner)

	if err := interact(ctx, orch, sess); err != nil {
		clog.FatalContextf(ctx, "reading input: %v", err)
	}

	if cfg.AuditReport {
		if err := audit.WriteReport(os.Stdout); err != nil {
			clog.WarnContextf(ctx, "writing audit report: %v", err)
		}
	}
}

func newStore(ctx context.Context, cfg config) (session.Store, error) {
	if cfg.SessionDB == "" {
		return session.NewMemoryStore(), nil
	}
	return session.OpenSQLite(ctx, cfg.SessionDB)
}

// resumeOrCreate picks up the user's oldest existing session or starts a
// fresh one with the authenticated owner already in state.
func resumeOrCreate(ctx context.Context, store session.Store, resolver *gateway.Resolver, scope session.Scope) (*session.Session, error) {
	ids, err := store.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		sess, err := store.Get(ctx, scope, ids[0])
		if err != nil {
			return nil, err
		}
		clog.InfoContextf(ctx, "Resumed session %s", sess.ID)
		return sess, nil
	}

	owner, err := resolver.Owner(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := store.Create(ctx, scope, session.NewID(), map[string]any{
		gateway.StateKeyUser: owner,
	})
	if err != nil {
		return nil, err
	}
	fmt.Printf("✓ GitHub user initialized: %s\n", owner)
	return sess, nil
}

// interact runs the read-eval loop until EOF, cancellation, or an exit
// command.
func interact(ctx context.Context, orch *triage.Orchestrator, sess *session.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		switch strings.ToLower(query) {
		case "exit", "quit":
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Println(orch.HandleTurn(ctx, sess, query))
	}
}
