/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prompt

// Panic-on-error helpers for package-level template variables whose text is
// known to be valid at compile time.

// Must wraps a (*Template, error) return and panics on error:
//
//	var report = prompt.Must(prompt.New(`Hello {{name}}`))
func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}
	return t
}

// MustNew creates a template from a literal and panics on error.
func MustNew(text literal) *Template {
	return Must(New(text))
}

// MustBind binds a literal string value and panics on error.
func (t *Template) MustBind(name string, value string) *Template {
	return Must(t.Bind(name, value))
}

// MustBindJSON binds a JSON-rendered value and panics on error.
func (t *Template) MustBindJSON(name string, data any) *Template {
	return Must(t.BindJSON(name, data))
}
