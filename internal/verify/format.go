// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultContextLines  = 3
	defaultMaxTestOutput = 4096
)

// FormatConfig configures Format.
type FormatConfig struct {
	Dir           string // Base for relative diagnostic paths
	ContextLines  int    // Source lines around each diagnostic (default 3)
	MaxTestOutput int    // Test output cap in bytes (default 4096)
}

// Format renders a failed verification for the terminal. Diagnostics in
// migrated files come first, with their source context.
func Format(res *Result, cfg FormatConfig) string {
	if res.Success() {
		return "verification passed\n"
	}
	contextLines := cfg.ContextLines
	if contextLines == 0 {
		contextLines = defaultContextLines
	}
	maxTestOutput := cfg.MaxTestOutput
	if maxTestOutput == 0 {
		maxTestOutput = defaultMaxTestOutput
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "verification failed: build=%s vet=%s test=%s\n\n", status(res.BuildOK), status(res.VetOK), status(res.TestOK))

	migrated := res.Migrated()
	if len(migrated) > 0 {
		buf.WriteString("## In migrated files\n\n")
		for _, d := range migrated {
			fmt.Fprintf(&buf, "### %s\n\n", d)
			if snippet := codeContext(filepath.Join(cfg.Dir, d.File), d.Line, contextLines); snippet != "" {
				buf.WriteString("```\n" + snippet + "```\n\n")
			}
		}
	}
	if other := len(res.Diagnostics) - len(migrated); other > 0 {
		buf.WriteString("## Elsewhere\n\n")
		for _, d := range res.Diagnostics {
			if !d.Migrated {
				fmt.Fprintf(&buf, "- %s\n", d)
			}
		}
		buf.WriteString("\n")
	}

	if !res.BuildOK && len(res.Diagnostics) == 0 && res.BuildOut != "" {
		buf.WriteString("## Build output\n\n```\n" + res.BuildOut + "```\n\n")
	}
	if !res.TestOK && res.TestOut != "" {
		out := res.TestOut
		if len(out) > maxTestOutput {
			out = out[:maxTestOutput] + "\n... (truncated)\n"
		}
		buf.WriteString("## Test output\n\n```\n" + out + "```\n\n")
	}
	return buf.String()
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}

// codeContext returns numbered lines around line, marking it.
func codeContext(file string, line, contextLines int) string {
	data, err := os.ReadFile(file)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	start := max(0, line-contextLines-1)
	end := min(len(lines), line+contextLines)

	var buf strings.Builder
	for i := start; i < end; i++ {
		marker := "  "
		if i+1 == line {
			marker = "> "
		}
		fmt.Fprintf(&buf, "%s%4d │ %s\n", marker, i+1, lines[i])
	}
	return buf.String()
}
