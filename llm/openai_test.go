/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"testing"

	"github.com/openai/openai-go"
)

func TestOpenAIDefinition(t *testing.T) {
	tool := Tool{
		Name:        "get_file_contents",
		Description: "Fetch a file from a repository.",
		Parameters: []Parameter{
			{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
			{Name: "path", Type: "string", Description: "File path", Required: true},
			{Name: "ref", Type: "string", Description: "Git ref"},
		},
	}

	// The function definition rides inside the chat completions tool param.
	param := openai.ChatCompletionToolParam{Function: openaiDefinition(tool)}

	if got := param.Function.Name; got != "get_file_contents" {
		t.Errorf("Function.Name = %q, wanted = %q", got, "get_file_contents")
	}
	properties, ok := param.Function.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatalf("Parameters[properties] = %T, wanted map[string]any", param.Function.Parameters["properties"])
	}
	if len(properties) != 3 {
		t.Errorf("got %d properties, wanted = 3", len(properties))
	}
	owner, ok := properties["owner"].(map[string]any)
	if !ok {
		t.Fatalf("properties[owner] = %T, wanted map[string]any", properties["owner"])
	}
	if got := owner["type"]; got != "string" {
		t.Errorf("owner type = %v, wanted = string", got)
	}
	required, ok := param.Function.Parameters["required"].([]string)
	if !ok {
		t.Fatalf("Parameters[required] = %T, wanted []string", param.Function.Parameters["required"])
	}
	if len(required) != 2 {
		t.Errorf("got %d required parameters, wanted = 2", len(required))
	}
}
