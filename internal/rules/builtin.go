// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rules

import (
	_ "embed"
	"fmt"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the rule bundle compiled into the binary.
func Builtin() (*Bundle, error) {
	b, err := Decode(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin bundle: %w", err)
	}
	return b, nil
}
