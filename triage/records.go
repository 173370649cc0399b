/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package triage

import "github.com/invopop/jsonschema"

// IssueRecord is what the issue reader stage extracts from GitHub: the
// problem statement and everything referenced around it.
type IssueRecord struct {
	Title           string   `json:"title" jsonschema:"required,description=Title of the issue"`
	Body            string   `json:"body" jsonschema:"required,description=Body of the issue as reported"`
	IssueNumber     string   `json:"issue_number" jsonschema:"required,description=Issue number as a string"`
	ReferencedFiles []string `json:"referenced_files,omitempty" jsonschema:"description=Files referenced in the issue"`
	ErrorMessages   []string `json:"error_messages,omitempty" jsonschema:"description=Error messages associated with the issue"`
	ProblemSummary  string   `json:"problem_summary" jsonschema:"required,description=Short summary of the core problem"`
}

// NavigationRecord is the navigator stage's diagnosis: where in the
// repository the issue lives and why.
type NavigationRecord struct {
	TargetFile     string `json:"target_file" jsonschema:"required,description=Path of the file responsible for the issue"`
	TargetFunction string `json:"target_function" jsonschema:"required,description=Function or block responsible for the issue"`
	Reasoning      string `json:"reasoning" jsonschema:"required,description=Why this location is the most likely source"`
	CodeSnippet    string `json:"code_snippet" jsonschema:"required,description=Minimal snippet showing the problem"`
	FullFile       string `json:"full_file" jsonschema:"required,description=Entire content of the target file"`
}

// FixRecord is the code fix stage's output: the corrected file and a summary
// of what changed.
type FixRecord struct {
	UpdatedFile    string `json:"updated_file" jsonschema:"required,description=Entire updated file content"`
	CodeFixSummary string `json:"code_fix_summary" jsonschema:"required,description=Brief summary of the changes made"`
}

// reflector is configured for model-facing schemas: inline definitions,
// required derived from tags.
var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	AllowAdditionalProperties:  true,
	DoNotReference:             true,
}

// SchemaFor derives the JSON schema for a record type. Stage prompts embed
// these so the model sees the exact contract the decoder enforces.
func SchemaFor[T any]() *jsonschema.Schema {
	var zero T
	return reflector.Reflect(&zero)
}
