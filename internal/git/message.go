// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

const maxSubjectLength = 72

// Migration describes one project run for its commit message.
type Migration struct {
	RunID          string
	Project        string         // Display name, usually the module path
	TargetVersions []string       // Go release targets
	Rules          map[string]int // Rule name to successful applications
	Files          []string       // Project-relative paths of the written files
}

// buildFiles are files whose change alone is a build change rather than a
// source refactor.
var buildFiles = map[string]bool{
	"go.mod":     true,
	"go.sum":     true,
	"go.work":    true,
	"Dockerfile": true,
	"Makefile":   true,
}

// Message renders a conventional commit message for a migration.
func Message(m Migration) string {
	sections := []string{subject(m)}

	if len(m.Rules) > 0 {
		names := make([]string, 0, len(m.Rules))
		for name := range m.Rules {
			names = append(names, name)
		}
		slices.Sort(names)
		var b strings.Builder
		b.WriteString("Rules applied:")
		for _, name := range names {
			fmt.Fprintf(&b, "\n- %s (%d)", name, m.Rules[name])
		}
		sections = append(sections, b.String())
	}
	if len(m.Files) > 0 {
		var b strings.Builder
		b.WriteString("Modified files:")
		for _, f := range m.Files {
			fmt.Fprintf(&b, "\n- %s", f)
		}
		sections = append(sections, b.String())
	}

	trailers := migratedByTrailer
	if m.RunID != "" {
		trailers += "\n" + runIDTrailer + m.RunID
	}
	sections = append(sections, trailers)
	return strings.Join(sections, "\n\n")
}

// commitType is "build" when only build files changed.
func commitType(files []string) string {
	for _, f := range files {
		if !buildFiles[path.Base(f)] {
			return "refactor"
		}
	}
	return "build"
}

func subject(m Migration) string {
	name := m.Project
	if name == "" {
		name = "project"
	}
	summary := "migrate " + name
	if len(m.TargetVersions) > 0 {
		summary += " to go " + strings.Join(m.TargetVersions, ", ")
	}

	s := fmt.Sprintf("%s: %s", commitType(m.Files), summary)
	if len(s) > maxSubjectLength {
		s = s[:maxSubjectLength-3] + "..."
	}
	return s
}
