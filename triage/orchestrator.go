/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package triage

import (
	"context"
	"fmt"

	"chainguard.dev/triagent/gateway"
	"chainguard.dev/triagent/session"
	"github.com/chainguard-dev/clog"
)

// Orchestrator is the deterministic front of the pipeline. It resolves the
// GitHub owner, delegates the user's query to the stage runner, and flattens
// failures into a response the user can read. It never performs GitHub
// operations itself.
type Orchestrator struct {
	resolver *gateway.Resolver
	runner   *Runner
}

// NewOrchestrator builds an orchestrator over an owner resolver and a stage
// runner.
func NewOrchestrator(resolver *gateway.Resolver, runner *Runner) *Orchestrator {
	return &Orchestrator{resolver: resolver, runner: runner}
}

// HandleTurn processes one user query against a session and always returns a
// printable response: either the pipeline's report or a flattened
// "Error: <message>" line. The response is also stored in session state.
func (o *Orchestrator) HandleTurn(ctx context.Context, sess *session.Session, query string) string {
	log := clog.FromContext(ctx).With("session", sess.ID)

	response, err := o.handle(ctx, sess, query)
	if err != nil {
		log.With("error", err).Error("Turn failed")
		response = fmt.Sprintf("Error: %s", err)
	}
	if err := sess.PutState(ctx, StateKeyResponse, response); err != nil {
		log.With("error", err).Warn("Failed to store response in session state")
	}
	return response
}

func (o *Orchestrator) handle(ctx context.Context, sess *session.Session, query string) (string, error) {
	owner := sess.StateString(gateway.StateKeyUser)
	if owner == "" {
		resolved, err := o.resolver.Owner(ctx)
		if err != nil {
			return "", err
		}
		if err := sess.PutState(ctx, gateway.StateKeyUser, resolved); err != nil {
			return "", fmt.Errorf("failed to store owner in session state: %w", err)
		}
		owner = resolved
	}

	// Delegation format matches what the stage instructions expect.
	task := fmt.Sprintf("owner: %s, task: %s", owner, query)
	return o.runner.Run(ctx, sess, task)
}
