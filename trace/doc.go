/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package trace records model invocations and their tool calls.
//
// Each stage execution opens a Trace, nested OTel spans cover the invocation
// and every tool call, and a Recorder receives the completed trace. AuditLog
// is the standard recorder for a turn: it keeps the per-stage tool-call log so
// the read-only operation policy can be verified after the chain runs, and can
// render the log as a markdown table.
package trace
