/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package triage implements the multi-stage GitHub issue triage pipeline:
// an issue reader, a repository navigator, a code fix stage, and a summary
// stage, run strictly in order with their outputs threaded through session
// state. The orchestrator fronts the pipeline, resolving the authenticated
// owner and flattening failures into readable responses.
package triage
