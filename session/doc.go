/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package session stores per-conversation state for the triage pipeline.
// A session carries the key-value facts stages hand to each other; stores
// come in an in-memory flavor and a SQLite flavor that survives restarts.
package session
