// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editor applies search/replace edits to the text of non-Go
// project files: CI workflows, Dockerfiles, Makefiles, service configs.
// It works on content only; callers own reading and writing.
package editor

import (
	"fmt"

	"github.com/petar-djukic/go-porter/pkg/types"
)

const defaultThreshold = 0.8

// Editor locates the search text with progressively looser matching:
// byte-exact, then whitespace-insensitive per line, then the most similar
// line window at or above Threshold.
type Editor struct {
	Threshold float64 // Minimum fuzzy similarity (default 0.8)
}

var _ types.Applier = (*Editor)(nil)

// ApplyContent returns content with edit applied. A create edit requires
// nil content. An empty OldContent appends NewContent. When no stage
// matches, the error is a *types.Diagnostic naming the closest region.
func (e *Editor) ApplyContent(content []byte, edit types.Edit) (*types.ApplyResult, error) {
	switch {
	case edit.IsCreate:
		if content != nil {
			return nil, fmt.Errorf("%s already exists", edit.FilePath)
		}
		return e.result(edit.FilePath, []byte(edit.NewContent), types.StageExact, 1), nil
	case edit.OldContent == "" && edit.NewContent == "":
		return nil, fmt.Errorf("empty edit for %s", edit.FilePath)
	case edit.OldContent == "":
		out := append(append([]byte{}, content...), edit.NewContent...)
		return e.result(edit.FilePath, out, types.StageExact, 1), nil
	}

	text := string(content)
	r, ok := locate(text, edit.OldContent, e.threshold())
	if !ok {
		return nil, diagnose(edit.FilePath, text, edit.OldContent)
	}
	out := text[:r.start] + edit.NewContent + text[r.end:]
	return e.result(edit.FilePath, []byte(out), r.stage, r.similarity), nil
}

func (e *Editor) result(path string, content []byte, stage types.MatchStage, sim float64) *types.ApplyResult {
	return &types.ApplyResult{FilePath: path, Stage: stage, Similarity: sim, Content: content}
}

func (e *Editor) threshold() float64 {
	if e.Threshold > 0 {
		return e.Threshold
	}
	return defaultThreshold
}

func diagnose(path, content, search string) *types.Diagnostic {
	d := &types.Diagnostic{FilePath: path, SearchText: search}
	d.ClosestMatch, d.Similarity, d.ClosestLineStart, d.ClosestLineEnd = closest(content, search)
	return d
}
