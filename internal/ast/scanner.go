// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ast parses Go projects into syntax trees, indexes the constructs
// rewrite rules can target, and provides the tree mutation primitives the
// action handlers are built from.
package ast

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"golang.org/x/sync/errgroup"
)

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{
	"vendor":       true,
	".git":         true,
	"testdata":     true,
	"node_modules": true,
}

// ScanOptions controls a directory scan.
type ScanOptions struct {
	Concurrency int      // Parser goroutines; <= 0 means runtime.NumCPU()
	Only        []string // Slash-separated relative paths to restrict the scan to (empty = all)
}

// ScanResult is a parsed project. Keys of Files and Sources are
// slash-separated paths relative to Root.
type ScanResult struct {
	Root    string
	FileSet *token.FileSet
	Files   map[string]*ast.File
	Sources map[string][]byte
	Errors  []ScanError
}

// Paths lists every scanned file in lexical order.
func (r *ScanResult) Paths() []string {
	paths := make([]string, 0, len(r.Sources))
	for p := range r.Sources {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// ScanError is a read or parse failure of one file.
type ScanError struct {
	FilePath string
	Err      error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("%s: %v", e.FilePath, e.Err)
}

func (e ScanError) Unwrap() error { return e.Err }

// ScanDir parses every .go file under dir. Vendored, testdata and
// gitignored paths are left out. Raw bytes are kept next to each tree so
// untouched files can be written back verbatim.
//
// A file that fails to parse is reported in ScanResult.Errors, together
// with whatever partial tree go/parser produced, and the scan goes on.
func ScanDir(dir string, opts ScanOptions) (*ScanResult, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving directory: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	rels, err := collect(root, opts.Only)
	if err != nil {
		return nil, err
	}

	res := &ScanResult{
		Root:    root,
		FileSet: token.NewFileSet(),
		Files:   make(map[string]*ast.File, len(rels)),
		Sources: make(map[string][]byte, len(rels)),
	}
	parsed := parseAll(res.FileSet, root, rels, opts.Concurrency)

	for i, rel := range rels {
		p := parsed[i]
		if p.src != nil {
			res.Sources[rel] = p.src
		}
		if p.file != nil {
			res.Files[rel] = p.file
		}
		if p.err != nil {
			res.Errors = append(res.Errors, ScanError{FilePath: rel, Err: p.err})
		}
	}
	return res, nil
}

type parsedFile struct {
	src  []byte
	file *ast.File
	err  error
}

// parseAll reads and parses rels with at most workers goroutines. The
// result is index-aligned with rels.
func parseAll(fset *token.FileSet, root string, rels []string, workers int) []parsedFile {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]parsedFile, len(rels))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, rel := range rels {
		g.Go(func() error {
			full := filepath.Join(root, filepath.FromSlash(rel))
			src, err := os.ReadFile(full)
			if err != nil {
				out[i].err = err
				return nil
			}
			f, err := parser.ParseFile(fset, full, src, parser.ParseComments)
			out[i] = parsedFile{src: src, file: f, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// collect walks root and returns the sorted slash paths of the Go files
// to parse.
func collect(root string, only []string) ([]string, error) {
	var want map[string]bool
	if len(only) > 0 {
		want = make(map[string]bool, len(only))
		for _, p := range only {
			want[filepath.ToSlash(filepath.Clean(p))] = true
		}
	}
	ignore := loadIgnore(root)

	var rels []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel := relSlash(root, path)
		parts := strings.Split(rel, "/")
		if d.IsDir() {
			if ignoredDirs[d.Name()] || ignore.Match(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(rel, ".go") || ignore.Match(parts, false) {
			return nil
		}
		if want == nil || want[rel] {
			rels = append(rels, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	slices.Sort(rels)
	return rels, nil
}

// loadIgnore builds a matcher from the root .gitignore. A missing file
// yields a matcher that matches nothing.
func loadIgnore(root string) gitignore.Matcher {
	var patterns []gitignore.Pattern
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return gitignore.NewMatcher(nil)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns)
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
