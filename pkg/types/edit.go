// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import "fmt"

// Edit replaces text in a non-Go project file such as a Dockerfile, a CI
// workflow or a Makefile. With IsCreate set it writes a new file instead.
type Edit struct {
	FilePath   string
	OldContent string // Empty for create and append
	NewContent string
	IsCreate   bool
}

// MatchStage is the matching strategy that located an edit's old text.
// Stages are tried in declaration order.
type MatchStage int

const (
	StageExact MatchStage = iota
	StageWhitespaceNormalized
	StageFuzzy
	StageNone
)

var stageNames = [...]string{"exact", "whitespace_normalized", "fuzzy", "none"}

func (s MatchStage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// ApplyResult is the file content after one edit and how it matched.
// Similarity is 1 unless Stage is StageFuzzy.
type ApplyResult struct {
	FilePath   string
	Stage      MatchStage
	Similarity float64
	Content    []byte
}

// Diagnostic is the error returned when an edit's old text is not in the
// file. It points at the region that came closest.
type Diagnostic struct {
	FilePath         string
	SearchText       string
	ClosestMatch     string
	Similarity       float64
	ClosestLineStart int // 1-based, inclusive
	ClosestLineEnd   int
}

func (d Diagnostic) Error() string {
	if d.ClosestMatch == "" {
		return "no match found in " + d.FilePath
	}
	return fmt.Sprintf("no match in %s (closest match at lines %d-%d, similarity %.2f)",
		d.FilePath, d.ClosestLineStart, d.ClosestLineEnd, d.Similarity)
}

// Applier applies an Edit to in-memory file content.
type Applier interface {
	ApplyContent(content []byte, edit Edit) (*ApplyResult, error)
}
