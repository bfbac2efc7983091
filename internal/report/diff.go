// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package report renders migration results: unified diffs of the
// rewritten files and a JSON export of the execution ledger.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"
)

// DefaultContext is the number of unchanged lines around each hunk.
const DefaultContext = 3

type lineOp struct {
	kind byte // ' ', '-' or '+'
	text string
}

// FileDiff computes the unified diff of one file. It returns nil when
// the contents are equal. A nil before marks a file being created.
func FileDiff(rel string, before, after []byte, context int) *diff.FileDiff {
	if string(before) == string(after) {
		return nil
	}
	ops := lineOps(string(before), string(after))
	fd := &diff.FileDiff{OrigName: "a/" + rel, NewName: "b/" + rel}
	if before == nil {
		fd.OrigName = "/dev/null"
	}
	fd.Hunks = hunks(ops, context)
	return fd
}

// lineOps diffs two texts line by line.
func lineOps(a, b string) []lineOp {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var ops []lineOp
	for _, d := range diffs {
		kind := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, l := range splitLines(d.Text) {
			ops = append(ops, lineOp{kind: kind, text: l})
		}
	}
	return ops
}

// splitLines splits text after every newline; a final line without one
// is kept.
func splitLines(text string) []string {
	var out []string
	for text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}

// hunks groups changed lines with their context. Changes closer than
// twice the context share a hunk.
func hunks(ops []lineOp, context int) []*diff.Hunk {
	if context < 0 {
		context = DefaultContext
	}
	var changed []int
	for i, op := range ops {
		if op.kind != ' ' {
			changed = append(changed, i)
		}
	}

	var out []*diff.Hunk
	for i := 0; i < len(changed); {
		j := i
		for j+1 < len(changed) && changed[j+1]-changed[j] <= 2*context+1 {
			j++
		}
		start := max(0, changed[i]-context)
		end := min(len(ops), changed[j]+context+1)
		out = append(out, hunk(ops, start, end))
		i = j + 1
	}
	return out
}

func hunk(ops []lineOp, start, end int) *diff.Hunk {
	var origBefore, newBefore int32
	for _, op := range ops[:start] {
		if op.kind != '+' {
			origBefore++
		}
		if op.kind != '-' {
			newBefore++
		}
	}

	h := &diff.Hunk{}
	var body strings.Builder
	for _, op := range ops[start:end] {
		if op.kind != '+' {
			h.OrigLines++
		}
		if op.kind != '-' {
			h.NewLines++
		}
		body.WriteByte(op.kind)
		body.WriteString(op.text)
		if !strings.HasSuffix(op.text, "\n") {
			body.WriteByte('\n')
		}
	}
	h.Body = []byte(body.String())

	h.OrigStartLine = origBefore
	if h.OrigLines > 0 {
		h.OrigStartLine++
	}
	h.NewStartLine = newBefore
	if h.NewLines > 0 {
		h.NewStartLine++
	}
	return h
}

// Diff renders the unified diff of outputs against the files under root,
// in path order. Files missing on disk diff as creations.
func Diff(root string, outputs map[string][]byte, context int) ([]byte, error) {
	paths := make([]string, 0, len(outputs))
	for rel := range outputs {
		paths = append(paths, rel)
	}
	slices.Sort(paths)

	var fds []*diff.FileDiff
	for _, rel := range paths {
		old, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		if fd := FileDiff(rel, old, outputs[rel], context); fd != nil {
			fds = append(fds, fd)
		}
	}
	if len(fds) == 0 {
		return nil, nil
	}
	out, err := diff.PrintMultiFileDiff(fds)
	if err != nil {
		return nil, fmt.Errorf("rendering diff: %w", err)
	}
	return out, nil
}

// DiffStats summarises a rendered patch.
type DiffStats struct {
	Files        int
	LinesAdded   int
	LinesRemoved int
}

// Stats parses a unified diff and counts its changes.
func Stats(patch []byte) (DiffStats, error) {
	fds, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return DiffStats{}, fmt.Errorf("parsing diff: %w", err)
	}
	stats := DiffStats{Files: len(fds)}
	for _, fd := range fds {
		for _, h := range fd.Hunks {
			for _, line := range strings.Split(string(h.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					stats.LinesAdded++
				case strings.HasPrefix(line, "-"):
					stats.LinesRemoved++
				}
			}
		}
	}
	return stats, nil
}
