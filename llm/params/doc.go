/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package params provides typed extraction of tool call arguments and
// error-result construction for tool handlers.
package params
