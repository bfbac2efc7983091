// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/internal/rewriter"
)

const ioutilLib = `package lib

import "io/ioutil"

func Load(p string) ([]byte, error) {
	return ioutil.ReadFile(p)
}
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"pkg/x/y.go", true},
		{"pkg/x/y_test.go", false},
		{"go.mod", true},
		{"go.sum", false},
		{"service.yaml", true},
		{"config/service.yml", true},
		{"README.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Relevant(tt.path))
		})
	}
}

func TestMarkAndDrain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.go", "package b\n")
	writeFile(t, dir, "a.go", "package a\n")
	w := New(Config{Dir: dir})

	assert.True(t, w.mark("b.go"))
	assert.True(t, w.mark("a.go"))
	assert.True(t, w.mark("gone.go"))
	assert.False(t, w.mark("notes.txt"))

	assert.Equal(t, []string{"a.go", "b.go"}, w.drain(), "sorted, deleted files dropped")
	assert.Empty(t, w.drain())
}

func TestMark_IgnoresOwnWrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	w := New(Config{Dir: dir})

	w.remember([]string{"a.go"})
	assert.False(t, w.mark("a.go"), "unchanged since the handler wrote it")

	writeFile(t, dir, "a.go", "package a\n\nvar X = 1\n")
	assert.True(t, w.mark("a.go"), "edited after the handler wrote it")
	assert.True(t, w.mark("a.go"), "digest forgotten after the first real edit")
}

func TestIncremental_MigratesOnlyChangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/app\n\ngo 1.15\n")
	writeFile(t, dir, "a/a.go", ioutilLib)
	writeFile(t, dir, "b/b.go", ioutilLib)

	open := func(ctx context.Context, only []string) (rewriter.Rewriter, error) {
		return rewriter.Open(ctx, dir, nil, rewriter.Options{TargetVersions: []string{"1.22"}, Only: only}, rewriter.Deps{})
	}
	var results []*rewriter.ProjectResult
	handle := Incremental(open, func(res *rewriter.ProjectResult) { results = append(results, res) })

	written, err := handle(context.Background(), []string{"a/a.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/a.go"}, written)
	require.Len(t, results, 1)

	assert.Contains(t, readFile(t, dir, "a/a.go"), "os.ReadFile(p)")
	assert.Equal(t, ioutilLib, readFile(t, dir, "b/b.go"))
	assert.Contains(t, readFile(t, dir, "go.mod"), "go 1.15", "project actions are not replayed")
}

func TestIncremental_FullRunOnModuleChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/app\n\ngo 1.15\n")
	writeFile(t, dir, "a/a.go", ioutilLib)

	open := func(ctx context.Context, only []string) (rewriter.Rewriter, error) {
		assert.Empty(t, only)
		return rewriter.Open(ctx, dir, nil, rewriter.Options{TargetVersions: []string{"1.22"}, Only: only}, rewriter.Deps{})
	}
	written, err := Incremental(open, nil)(context.Background(), []string{"a/a.go", "go.mod"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/a.go", "go.mod"}, written)
	assert.Contains(t, readFile(t, dir, "go.mod"), "go 1.22")
}

func TestRun_DeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module m\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))

	w := New(Config{Dir: dir, Debounce: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		batches [][]string
	)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) ([]string, error) {
			mu.Lock()
			defer mu.Unlock()
			batches = append(batches, changed)
			return nil, nil
		})
	}()

	// Give the watcher time to register the tree.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "pkg/x.go", "package pkg\n")
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "notes.txt", "ignored\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		seen := map[string]bool{}
		for _, b := range batches {
			for _, rel := range b {
				seen[rel] = true
			}
		}
		return seen["main.go"] && seen["pkg/x.go"]
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	for _, b := range batches {
		assert.NotContains(t, b, "notes.txt")
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
