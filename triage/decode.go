/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package triage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences returns the JSON payload of a model response that may be
// wrapped in markdown code fences. A ```json block on its own lines wins;
// otherwise leading and trailing fences are trimmed off the whole response.
func StripFences(response string) string {
	lines := strings.Split(response, "\n")
	var block []string
	inBlock := false
	for _, line := range lines {
		switch {
		case !inBlock && strings.TrimSpace(line) == "```json":
			inBlock = true
		case inBlock && strings.TrimSpace(line) == "```":
			return strings.TrimSpace(strings.Join(block, "\n"))
		case inBlock:
			block = append(block, line)
		}
	}
	if inBlock {
		// Unterminated block; use what we collected.
		return strings.TrimSpace(strings.Join(block, "\n"))
	}

	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// Decode strips fences from a model response and unmarshals the payload
// into T.
func Decode[T any](response string) (T, error) {
	var record T
	payload := StripFences(response)
	if payload == "" {
		return record, fmt.Errorf("response contains no JSON payload")
	}
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return record, fmt.Errorf("failed to decode response: %w", err)
	}
	return record, nil
}
