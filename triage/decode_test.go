/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package triage_test

import (
	"testing"

	"chainguard.dev/triagent/triage"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{{
		name:     "plain json untouched",
		response: `{"title": "x"}`,
		want:     `{"title": "x"}`,
	}, {
		name:     "surrounding whitespace trimmed",
		response: "  \n{\"title\": \"x\"}\n  ",
		want:     `{"title": "x"}`,
	}, {
		name:     "json fence block",
		response: "Here is the result:\n```json\n{\"title\": \"x\"}\n```\nHope that helps.",
		want:     `{"title": "x"}`,
	}, {
		name:     "bare fence wrapper",
		response: "```\n{\"title\": \"x\"}\n```",
		want:     `{"title": "x"}`,
	}, {
		name:     "json fence wrapper without newlines",
		response: "```json{\"title\": \"x\"}```",
		want:     `{"title": "x"}`,
	}, {
		name:     "unterminated fence block",
		response: "```json\n{\"title\": \"x\"}",
		want:     `{"title": "x"}`,
	}, {
		name:     "multiline payload preserved",
		response: "```json\n{\n  \"title\": \"x\"\n}\n```",
		want:     "{\n  \"title\": \"x\"\n}",
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := triage.StripFences(test.response); got != test.want {
				t.Errorf("StripFences() = %q, wanted = %q", got, test.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("issue record", func(t *testing.T) {
		response := "```json\n" + `{
			"title": "Fix login API returns 401 error",
			"body": "The login API returns a 401 Unauthorized",
			"issue_number": "42",
			"referenced_files": ["auth.py"],
			"error_messages": ["401 Unauthorized"],
			"problem_summary": "Authentication fails due to misconfigured JWT secret"
		}` + "\n```"

		record, err := triage.Decode[triage.IssueRecord](response)
		if err != nil {
			t.Fatalf("Decode() = %v, wanted no error", err)
		}
		if record.IssueNumber != "42" {
			t.Errorf("issue_number = %q, wanted = %q", record.IssueNumber, "42")
		}
		if len(record.ReferencedFiles) != 1 || record.ReferencedFiles[0] != "auth.py" {
			t.Errorf("referenced_files = %v, wanted = [auth.py]", record.ReferencedFiles)
		}
	})

	t.Run("fix record escapes round-trip", func(t *testing.T) {
		response := `{"updated_file": "import jwt\ndef verify_token(token):\n    pass", "code_fix_summary": "fixed it"}`
		record, err := triage.Decode[triage.FixRecord](response)
		if err != nil {
			t.Fatalf("Decode() = %v, wanted no error", err)
		}
		if record.UpdatedFile != "import jwt\ndef verify_token(token):\n    pass" {
			t.Errorf("updated_file = %q, wanted newline-expanded content", record.UpdatedFile)
		}
	})

	t.Run("empty payload fails", func(t *testing.T) {
		if _, err := triage.Decode[triage.IssueRecord]("```json\n```"); err == nil {
			t.Error("Decode() = nil, wanted error for empty payload")
		}
	})

	t.Run("prose fails", func(t *testing.T) {
		if _, err := triage.Decode[triage.IssueRecord]("I could not find the issue."); err == nil {
			t.Error("Decode() = nil, wanted error for non-JSON response")
		}
	})
}

func TestSchemaFor(t *testing.T) {
	schema := triage.SchemaFor[triage.NavigationRecord]()
	if schema == nil {
		t.Fatal("SchemaFor() = nil, wanted a schema")
	}
	for _, property := range []string{"target_file", "target_function", "reasoning", "code_snippet", "full_file"} {
		if _, ok := schema.Properties.Get(property); !ok {
			t.Errorf("schema missing property %q", property)
		}
	}
	required := map[string]bool{}
	for _, name := range schema.Required {
		required[name] = true
	}
	if !required["target_file"] {
		t.Errorf("target_file not required, schema.Required = %v", schema.Required)
	}
}
