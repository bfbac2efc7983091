// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	authorName  = "go-porter"
	authorEmail = "noreply@go-porter"
)

func signature() *object.Signature {
	return &object.Signature{Name: authorName, Email: authorEmail, When: time.Now()}
}

// HandleDirty commits uncommitted changes on their own, or fails with
// ErrDirtyWorkTree when Config.DirtyCommit is false.
func (r *Repo) HandleDirty() error {
	dirty, err := r.IsDirty()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if !r.cfg.DirtyCommit {
		return ErrDirtyWorkTree
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if _, err := wt.Add("."); err != nil {
		return fmt.Errorf("staging dirty files: %w", err)
	}
	if _, err := wt.Commit(dirtyCommitMsg, &gogit.CommitOptions{Author: signature()}); err != nil {
		return fmt.Errorf("committing dirty files: %w", err)
	}
	return nil
}

// Commit stages exactly the migrated files and commits them. It returns
// the new commit hash, or "" when auto-commit is off or nothing changed.
func (r *Repo) Commit(m Migration) (string, error) {
	if !r.cfg.AutoCommit || len(m.Files) == 0 {
		return "", nil
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	for _, f := range m.Files {
		if _, err := wt.Add(r.repoPath(f)); err != nil {
			return "", fmt.Errorf("staging %s: %w", f, err)
		}
	}
	hash, err := wt.Commit(Message(m), &gogit.CommitOptions{Author: signature()})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return hash.String(), nil
}

// Undo reverts the last migration commit. The files it touched get their
// parent content back, files it created are removed, and HEAD and the
// index move to the parent. It returns the undone run id.
func (r *Repo) Undo() (string, error) {
	c, err := r.head()
	if err != nil {
		return "", err
	}
	if !isPorterMessage(c.Message) {
		return "", ErrNotPorterCommit
	}
	if c.NumParents() == 0 {
		return "", fmt.Errorf("cannot undo: HEAD is the initial commit")
	}
	parent, err := c.Parent(0)
	if err != nil {
		return "", fmt.Errorf("getting parent commit: %w", err)
	}

	// Step 1: restore the touched files from the parent tree.
	if err := r.restore(parent, c); err != nil {
		return "", err
	}

	// Step 2: move HEAD and the index back.
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: parent.Hash, Mode: gogit.MixedReset}); err != nil {
		return "", fmt.Errorf("resetting to parent: %w", err)
	}
	return RunIDOf(c.Message), nil
}

func (r *Repo) restore(parent, c *object.Commit) error {
	from, err := parent.Tree()
	if err != nil {
		return fmt.Errorf("reading parent tree: %w", err)
	}
	to, err := c.Tree()
	if err != nil {
		return fmt.Errorf("reading commit tree: %w", err)
	}
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return fmt.Errorf("diffing trees: %w", err)
	}

	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name
		}
		dst := filepath.Join(r.root, filepath.FromSlash(name))

		f, err := from.File(name)
		if errors.Is(err, object.ErrFileNotFound) {
			if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("removing %s: %w", name, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		content, err := f.Contents()
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("restoring %s: %w", name, err)
		}
		if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
			return fmt.Errorf("restoring %s: %w", name, err)
		}
	}
	return nil
}
