/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prompt builds model instruction text from templates with explicit
// placeholder binding.
//
// Templates use {{name}} placeholders. Binding is immutable (each Bind returns
// a new Template) so package-level templates can be shared across turns, and
// Render fails on any unbound placeholder so malformed prompts never reach a
// model:
//
//	tmpl := prompt.MustNew(`Owner is {{owner}}. Request: {{request}}`)
//	bound, err := tmpl.Bind("owner", owner)
//	...
//	text, err := bound.Render()
//
// Structured state is injected with BindJSON or BindYAML rather than manual
// string assembly.
package prompt
