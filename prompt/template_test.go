/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prompt_test

import (
	"strings"
	"testing"

	"chainguard.dev/triagent/prompt"
)

func TestNew(t *testing.T) {
	t.Run("no placeholders", func(t *testing.T) {
		tmpl, err := prompt.New("plain instruction text")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := len(tmpl.Placeholders()); got != 0 {
			t.Errorf("placeholder count: got = %d, wanted = 0", got)
		}
	})

	t.Run("distinct placeholders", func(t *testing.T) {
		tmpl, err := prompt.New("Owner: {{owner}}\nRequest: {{request}}")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		names := tmpl.Placeholders()
		for _, want := range []string{"owner", "request"} {
			if _, ok := names[want]; !ok {
				t.Errorf("placeholder %q: got = absent, wanted = present", want)
			}
		}
	})

	t.Run("repeated placeholder registers once", func(t *testing.T) {
		tmpl, err := prompt.New("{{data}} then {{data}}")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := len(tmpl.Placeholders()); got != 1 {
			t.Errorf("placeholder count: got = %d, wanted = 1", got)
		}
	})

	t.Run("unclosed placeholder", func(t *testing.T) {
		if _, err := prompt.New("broken {{data"); err == nil {
			t.Error("New() error = nil, wanted unclosed placeholder error")
		}
	})

	t.Run("invalid placeholder name", func(t *testing.T) {
		if _, err := prompt.New("bad {{1data}}"); err == nil {
			t.Error("New() error = nil, wanted invalid name error")
		}
	})
}

func TestRender(t *testing.T) {
	t.Run("literal bind", func(t *testing.T) {
		tmpl := prompt.MustNew("Hello {{name}}")
		bound, err := tmpl.Bind("name", "alice")
		if err != nil {
			t.Fatalf("Bind() error = %v", err)
		}
		got, err := bound.Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if got != "Hello alice" {
			t.Errorf("Render() = %q, wanted %q", got, "Hello alice")
		}
	})

	t.Run("json bind", func(t *testing.T) {
		tmpl := prompt.MustNew("State:\n{{state}}")
		bound, err := tmpl.BindJSON("state", map[string]string{"issue": "42"})
		if err != nil {
			t.Fatalf("BindJSON() error = %v", err)
		}
		got, err := bound.Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(got, `"issue": "42"`) {
			t.Errorf("Render() = %q, wanted JSON state embedded", got)
		}
	})

	t.Run("unbound placeholder fails", func(t *testing.T) {
		tmpl := prompt.MustNew("Hello {{name}}")
		if _, err := tmpl.Render(); err == nil {
			t.Error("Render() error = nil, wanted unbound placeholder error")
		}
	})

	t.Run("rebinding fails", func(t *testing.T) {
		tmpl := prompt.MustNew("Hello {{name}}")
		bound := tmpl.MustBind("name", "alice")
		if _, err := bound.Bind("name", "bob"); err == nil {
			t.Error("Bind() error = nil, wanted already-bound error")
		}
	})

	t.Run("binding is immutable", func(t *testing.T) {
		tmpl := prompt.MustNew("Hello {{name}}")
		first := tmpl.MustBind("name", "alice")
		second := tmpl.MustBind("name", "bob")
		got1, _ := first.Render()
		got2, _ := second.Render()
		if got1 != "Hello alice" || got2 != "Hello bob" {
			t.Errorf("independent binds: got %q and %q", got1, got2)
		}
	})
}
