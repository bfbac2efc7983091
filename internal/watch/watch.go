// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package watch re-runs the migration incrementally as files change.
// Filesystem events are collected per path and delivered in batches once
// the tree has been quiet for the debounce interval.
package watch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// skipDirs are never watched.
var skipDirs = map[string]bool{".git": true, "vendor": true, "testdata": true, "node_modules": true}

// Handler migrates the changed files. It returns the files it wrote so
// their own change events are not fed back into it.
type Handler func(ctx context.Context, changed []string) (written []string, err error)

// Config configures a Watcher.
type Config struct {
	Dir      string
	Debounce time.Duration // Quiet period before a batch is delivered (default 300ms)
	Logger   *slog.Logger
}

// Watcher delivers debounced batches of changed project files.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	written map[string][32]byte // Content digest of files the handler wrote
}

// New returns a watcher over cfg.Dir.
func New(cfg Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger.With("project", cfg.Dir),
		pending: make(map[string]bool),
		written: make(map[string][32]byte),
	}
}

// Relevant reports whether a project-relative path can affect the
// migration: Go sources other than tests, go.mod and service configs.
func Relevant(rel string) bool {
	base := filepath.Base(rel)
	switch {
	case base == "go.mod", base == "service.yaml", base == "service.yml":
		return true
	case strings.HasSuffix(base, "_test.go"):
		return false
	default:
		return strings.HasSuffix(base, ".go")
	}
}

// Run watches until ctx is done, calling handle for each batch. Handler
// errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.cfg.Dir); err != nil {
		return err
	}
	w.logger.Info("watching", "debounce", w.cfg.Debounce)

	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.observe(fw, ev) {
				timer.Reset(w.cfg.Debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			batch := w.drain()
			if len(batch) == 0 {
				continue
			}
			w.logger.Info("files changed", "count", len(batch))
			written, err := handle(ctx, batch)
			if err != nil {
				w.logger.Error("incremental run failed", "error", err)
			}
			w.remember(written)
		}
	}
}

// observe records one event and reports whether it added pending work.
func (w *Watcher) observe(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.logger.Warn("watching new directory", "dir", ev.Name, "error", err)
			}
			return false
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	rel, err := filepath.Rel(w.cfg.Dir, ev.Name)
	if err != nil {
		return false
	}
	return w.mark(filepath.ToSlash(rel))
}

// mark queues rel unless it is irrelevant or unchanged since the handler
// wrote it.
func (w *Watcher) mark(rel string) bool {
	if !Relevant(rel) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if digest, ok := w.written[rel]; ok {
		if data, err := os.ReadFile(filepath.Join(w.cfg.Dir, rel)); err == nil && sha256.Sum256(data) == digest {
			return false
		}
		delete(w.written, rel)
	}
	w.pending[rel] = true
	return true
}

// drain returns the pending paths that still exist, sorted.
func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for rel := range w.pending {
		if _, err := os.Stat(filepath.Join(w.cfg.Dir, rel)); err == nil {
			out = append(out, rel)
		}
	}
	clear(w.pending)
	slices.Sort(out)
	return out
}

func (w *Watcher) remember(written []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rel := range written {
		data, err := os.ReadFile(filepath.Join(w.cfg.Dir, rel))
		if err != nil {
			continue
		}
		w.written[rel] = sha256.Sum256(data)
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
