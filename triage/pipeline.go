/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chainguard.dev/triagent/llm"
	"chainguard.dev/triagent/session"
	"github.com/chainguard-dev/clog"
)

// Runner executes the triage stages strictly in order, threading each
// stage's output into session state before the next stage starts.
type Runner struct {
	invoker llm.Invoker
	stages  []Stage
}

// NewRunner builds a runner over the given invoker and stage order.
func NewRunner(invoker llm.Invoker, stages ...Stage) *Runner {
	return &Runner{invoker: invoker, stages: stages}
}

// Run executes every stage against the session for one task. It returns the
// last stage's output (the markdown report for the default pipeline). A
// stage failure aborts the remaining stages; state written by completed
// stages stays in the session.
func (r *Runner) Run(ctx context.Context, sess *session.Session, task string) (string, error) {
	var final string
	for _, stage := range r.stages {
		output, err := r.runStage(ctx, sess, stage, task)
		if err != nil {
			return "", fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		final = output
	}
	return final, nil
}

func (r *Runner) runStage(ctx context.Context, sess *session.Session, stage Stage, task string) (string, error) {
	log := clog.FromContext(ctx).With("stage", stage.Name).With("session", sess.ID)

	system, err := stage.Instruction(sess)
	if err != nil {
		return "", err
	}

	var tools map[string]llm.Tool
	if stage.Tools != nil {
		tools = stage.Tools(sess)
	}

	log.With("tools", len(tools)).Info("Running stage")
	events, err := r.invoker.Invoke(ctx, llm.Request{
		Stage:  stage.Name,
		System: system,
		Prompt: task,
		Tools:  tools,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke model: %w", err)
	}

	collected, err := llm.Drain(ctx, events)
	if err != nil {
		return "", err
	}
	output, ok := llm.ExtractFinal(collected)
	if !ok {
		return "", fmt.Errorf("model produced no final output")
	}

	text := output.Text
	if output.Kind == llm.OutputStructured {
		encoded, err := json.Marshal(output.Data)
		if err != nil {
			return "", fmt.Errorf("failed to encode structured output: %w", err)
		}
		text = string(encoded)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model produced empty output")
	}

	if stage.Validate != nil {
		if err := stage.Validate(text); err != nil {
			return "", err
		}
	}

	if err := sess.PutState(ctx, stage.OutputKey, text); err != nil {
		return "", fmt.Errorf("failed to store output under %q: %w", stage.OutputKey, err)
	}
	log.With("output_length", len(text)).Info("Stage complete")
	return text, nil
}
