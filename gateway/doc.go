/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gateway is the capability-scoped GitHub surface for the triage
// pipeline. It exposes a fixed catalogue of operations, enforces read-only
// versus read-write scope before any network traffic, and binds the
// catalogue to model-facing tools.
package gateway
