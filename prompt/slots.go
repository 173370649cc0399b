/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prompt

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// slot is a value that will be substituted into the template at Render time.
type slot interface {
	value() (string, error)
}

// unbound is the initial state of every slot.
type unbound struct {
	name string
}

func (u *unbound) value() (string, error) {
	return "", fmt.Errorf("unbound placeholder: %s", u.name)
}

type boundString struct {
	val string
}

func (b *boundString) value() (string, error) {
	return b.val, nil
}

type boundJSON struct {
	data any
}

func (b *boundJSON) value() (string, error) {
	bytes, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON placeholder value: %w", err)
	}
	return string(bytes), nil
}

type boundYAML struct {
	data any
}

func (b *boundYAML) value() (string, error) {
	bytes, err := yaml.Marshal(b.data)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML placeholder value: %w", err)
	}
	return string(bytes), nil
}
