/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prompt

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"
)

// literal is a private alias so template text and literal binds can only be
// supplied as untainted string literals by the calling package.
type literal = string

// Template is an instruction template with {{placeholder}} slots.
// Binding methods return a new Template; the receiver is never mutated, so a
// package-level template can be re-bound on every turn.
type Template struct {
	text  string
	slots map[string]slot
}

// New parses a template and registers one slot per distinct placeholder.
func New(text literal) (*Template, error) {
	slots := make(map[string]slot)
	parsed, err := walk(text, func(name string) (string, error) {
		if _, ok := slots[name]; !ok {
			slots[name] = &unbound{name: name}
		}
		return fmt.Sprintf("{{%s}}", name), nil
	})
	if err != nil {
		return nil, err
	}
	return &Template{text: parsed, slots: slots}, nil
}

// Placeholders returns the set of placeholder names found in the template.
func (t *Template) Placeholders() map[string]struct{} {
	names := make(map[string]struct{}, len(t.slots))
	for name := range t.slots {
		names[name] = struct{}{}
	}
	return names
}

// Bind fills a placeholder with a literal string value.
func (t *Template) Bind(name string, value string) (*Template, error) {
	return t.bind(name, &boundString{val: value})
}

// BindJSON fills a placeholder with the JSON rendering of a value.
func (t *Template) BindJSON(name string, data any) (*Template, error) {
	return t.bind(name, &boundJSON{data: data})
}

// BindYAML fills a placeholder with the YAML rendering of a value.
func (t *Template) BindYAML(name string, data any) (*Template, error) {
	return t.bind(name, &boundYAML{data: data})
}

func (t *Template) bind(name string, s slot) (*Template, error) {
	existing, ok := t.slots[name]
	if !ok {
		return nil, fmt.Errorf("placeholder %q not found in template", name)
	}
	if _, open := existing.(*unbound); !open {
		return nil, fmt.Errorf("placeholder %q already bound", name)
	}
	next := &Template{text: t.text, slots: maps.Clone(t.slots)}
	next.slots[name] = s
	return next, nil
}

// Render produces the final prompt text. Any placeholder still unbound is an
// error rather than leaking "{{name}}" into a model prompt.
func (t *Template) Render() (string, error) {
	values := make(map[string]string, len(t.slots))
	for name, s := range t.slots {
		val, err := s.value()
		if err != nil {
			return "", err
		}
		values[name] = val
	}
	return walk(t.text, func(name string) (string, error) {
		if val, ok := values[name]; ok {
			return val, nil
		}
		return "", fmt.Errorf("internal error: no value for placeholder %q", name)
	})
}

// resolve provides the replacement text for a placeholder during a walk.
type resolve func(name string) (string, error)

// walk tokenizes the template and invokes resolve for each placeholder.
func walk(text string, fn resolve) (string, error) {
	var out strings.Builder
	for len(text) > 0 {
		start := strings.Index(text, "{{")
		if start == -1 {
			out.WriteString(text)
			break
		}
		out.WriteString(text[:start])

		end := strings.Index(text[start:], "}}")
		if end == -1 {
			return "", errors.New("unclosed placeholder: missing '}}'")
		}
		end += start + 2

		name := strings.TrimSpace(text[start+2 : end-2])
		if !validName(name) {
			return "", fmt.Errorf("invalid placeholder name %q", name)
		}
		replacement, err := fn(name)
		if err != nil {
			return "", err
		}
		out.WriteString(replacement)

		text = text[end:]
	}
	return out.String(), nil
}

// validName accepts identifiers of the form letter (letter|digit|underscore)*.
func validName(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	if !unicode.IsLetter(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
