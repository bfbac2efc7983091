// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDirty_CleanRepo(t *testing.T) {
	dir := seedRepo(t)
	repo, err := Open(Config{WorkDir: dir, DirtyCommit: true})
	require.NoError(t, err)

	require.NoError(t, repo.HandleDirty())

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleDirty_CommitsDirtyFiles(t *testing.T) {
	dir := seedRepo(t)
	repo, err := Open(Config{WorkDir: dir, DirtyCommit: true})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dirty.go"), []byte("package main\n"), 0o644))

	require.NoError(t, repo.HandleDirty())

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	head, err := repo.head()
	require.NoError(t, err)
	assert.Equal(t, dirtyCommitMsg, head.Message)
}

func TestHandleDirty_ReturnsErrorWhenDisabled(t *testing.T) {
	dir := seedRepo(t)
	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dirty.go"), []byte("package main\n"), 0o644))

	assert.ErrorIs(t, repo.HandleDirty(), ErrDirtyWorkTree)
}

func TestCommit_StagesOnlyMigratedFiles(t *testing.T) {
	dir := seedRepo(t)
	repo, err := Open(Config{WorkDir: dir, AutoCommit: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() { _ = any(nil) }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("notes\n"), 0o644))

	hash, err := repo.Commit(Migration{RunID: "r1", Files: []string{"main.go"}})
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// scratch.txt stays untracked.
	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.True(t, dirty)

	id, err := repo.LastRunID()
	require.NoError(t, err)
	assert.Equal(t, "r1", id)
}

func TestCommit_Noop(t *testing.T) {
	dir := seedRepo(t)

	off, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)
	hash, err := off.Commit(Migration{Files: []string{"main.go"}})
	require.NoError(t, err)
	assert.Empty(t, hash)

	on, err := Open(Config{WorkDir: dir, AutoCommit: true})
	require.NoError(t, err)
	hash, err = on.Commit(Migration{})
	require.NoError(t, err)
	assert.Empty(t, hash)

	count, err := on.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCommit_ProjectInSubdirectory(t *testing.T) {
	dir := seedRepo(t)
	commitFiles(t, dir, "add svc", map[string]string{"svc/go.mod": "module svc\n\ngo 1.15\n"})

	repo, err := Open(Config{WorkDir: filepath.Join(dir, "svc"), AutoCommit: true})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "svc", "go.mod"), []byte("module svc\n\ngo 1.22\n"), 0o644))

	_, err = repo.Commit(Migration{Files: []string{"go.mod"}})
	require.NoError(t, err)

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestUndo_RestoresParentContent(t *testing.T) {
	dir := seedRepo(t)
	repo, err := Open(Config{WorkDir: dir, AutoCommit: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() { /* migrated */ }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM golang:1.22\n"), 0o644))
	_, err = repo.Commit(Migration{RunID: "r2", Files: []string{"main.go", "Dockerfile"}})
	require.NoError(t, err)

	id, err := repo.Undo()
	require.NoError(t, err)
	assert.Equal(t, "r2", id)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	content, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {}\n", string(content))

	_, err = os.Stat(filepath.Join(dir, "Dockerfile"))
	assert.True(t, os.IsNotExist(err), "created file removed")

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestUndo_RefusesForeignCommit(t *testing.T) {
	dir := seedRepo(t)
	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)

	_, err = repo.Undo()
	assert.ErrorIs(t, err, ErrNotPorterCommit)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCommit_AfterHandleDirty(t *testing.T) {
	dir := seedRepo(t)
	repo, err := Open(Config{WorkDir: dir, AutoCommit: true, DirtyCommit: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.go"), []byte("package main\n"), 0o644))
	require.NoError(t, repo.HandleDirty())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() { println() }\n"), 0o644))
	_, err = repo.Commit(Migration{Files: []string{"main.go"}})
	require.NoError(t, err)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	ok, err := repo.IsPorterCommit()
	require.NoError(t, err)
	assert.True(t, ok)
}
