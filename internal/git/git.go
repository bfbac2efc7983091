// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package git commits migration results and undoes them.
package git

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	migratedByTrailer = "Migrated-By: go-porter"
	runIDTrailer      = "Run-Id: "
	dirtyCommitMsg    = "chore: save uncommitted changes before migration"
)

// ErrNotPorterCommit is returned when undo targets a commit go-porter
// did not make.
var ErrNotPorterCommit = errors.New("not a go-porter commit")

// ErrDirtyWorkTree is returned when uncommitted changes exist and
// DirtyCommit is false.
var ErrDirtyWorkTree = errors.New("uncommitted changes exist")

// ErrNoGit is returned when the project is not inside a git repository.
var ErrNoGit = errors.New("not a git repository")

// Config configures git integration.
type Config struct {
	WorkDir     string // Project directory, anywhere inside the repository
	AutoCommit  bool   // Commit migrated files
	DirtyCommit bool   // Commit dirty files before migrating
}

// Repo wraps the repository that holds a project.
type Repo struct {
	repo   *gogit.Repository
	cfg    Config
	root   string
	prefix string // Project directory relative to root, slash separated
}

// Open finds the repository containing cfg.WorkDir.
func Open(cfg Config) (*Repo, error) {
	r, err := gogit.PlainOpenWithOptions(cfg.WorkDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}
	root := wt.Filesystem.Root()

	abs, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.WorkDir, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return nil, fmt.Errorf("locating %s in %s: %w", abs, root, err)
	}
	prefix := filepath.ToSlash(rel)
	if prefix == "." {
		prefix = ""
	}
	return &Repo{repo: r, cfg: cfg, root: root, prefix: prefix}, nil
}

// Root returns the repository's working tree root.
func (r *Repo) Root() string { return r.root }

// repoPath maps a project-relative path to a repository path.
func (r *Repo) repoPath(rel string) string {
	return path.Join(r.prefix, filepath.ToSlash(rel))
}

// IsDirty reports staged or unstaged changes anywhere in the work tree.
func (r *Repo) IsDirty() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("getting status: %w", err)
	}
	return !status.IsClean(), nil
}

// IsPorterCommit reports whether HEAD carries the go-porter trailer.
func (r *Repo) IsPorterCommit() (bool, error) {
	c, err := r.head()
	if err != nil {
		return false, err
	}
	return isPorterMessage(c.Message), nil
}

// LastRunID returns the run id recorded on HEAD, or "" when HEAD is not
// a migration commit.
func (r *Repo) LastRunID() (string, error) {
	c, err := r.head()
	if err != nil {
		return "", err
	}
	if !isPorterMessage(c.Message) {
		return "", nil
	}
	return RunIDOf(c.Message), nil
}

func (r *Repo) head() (*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}
	c, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting commit: %w", err)
	}
	return c, nil
}

func isPorterMessage(msg string) bool {
	for _, line := range strings.Split(msg, "\n") {
		if strings.TrimSpace(line) == migratedByTrailer {
			return true
		}
	}
	return false
}

// RunIDOf extracts the Run-Id trailer of a commit message.
func RunIDOf(msg string) string {
	for _, line := range strings.Split(msg, "\n") {
		if id, ok := strings.CutPrefix(strings.TrimSpace(line), runIDTrailer); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// commitCount returns the number of commits reachable from HEAD.
func (r *Repo) commitCount() (int, error) {
	iter, err := r.repo.Log(&gogit.LogOptions{})
	if err != nil {
		return 0, err
	}
	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	return count, err
}
