// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package porter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/rewriter"
)

const ioutilMain = `package main

import (
	"fmt"
	"io/ioutil"
)

func main() {
	data, err := ioutil.ReadFile("x.txt")
	fmt.Println(string(data), err)
}
`

const goMod = "module example.com/app\n\ngo 1.15\n"

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(ioutilMain), 0o644))
	return dir
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func commitAll(t *testing.T, dir string) {
	t.Helper()
	r, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := r.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestAnalyze_DoesNotWrite(t *testing.T) {
	dir := writeProject(t)
	r := NewRunner(Settings{TargetVersions: []string{"1.22"}}, Deps{})

	res, err := r.Analyze(context.Background(), dir)
	require.NoError(t, err)
	assert.Contains(t, res.Actions.Files, "main.go")
	assert.Empty(t, res.ModifiedFiles)
	assert.Equal(t, ioutilMain, readFile(t, dir, "main.go"))
}

func TestRun_DryRunRendersDiff(t *testing.T) {
	dir := writeProject(t)
	r := NewRunner(Settings{TargetVersions: []string{"1.22"}, DryRun: true, Git: true}, Deps{})

	reports, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	patch := string(reports[0].Diff)
	assert.Contains(t, patch, "-\tdata, err := ioutil.ReadFile(\"x.txt\")")
	assert.Contains(t, patch, "+\tdata, err := os.ReadFile(\"x.txt\")")
	assert.Contains(t, patch, "+go 1.22")
	assert.Empty(t, reports[0].Commit)
	assert.Equal(t, ioutilMain, readFile(t, dir, "main.go"))
}

func TestRun_CommitsAndUndoes(t *testing.T) {
	dir := writeProject(t)
	commitAll(t, dir)
	r := NewRunner(Settings{TargetVersions: []string{"1.22"}, Git: true}, Deps{})

	reports, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	rep := reports[0]
	require.NotEmpty(t, rep.Commit)
	assert.Contains(t, readFile(t, dir, "main.go"), "os.ReadFile(")

	id, err := Undo(dir)
	require.NoError(t, err)
	assert.Equal(t, rep.Result.RunID, id)
	assert.Equal(t, ioutilMain, readFile(t, dir, "main.go"))
	assert.Equal(t, goMod, readFile(t, dir, "go.mod"))
}

func TestRun_WithoutRepositoryStillMigrates(t *testing.T) {
	dir := writeProject(t)
	r := NewRunner(Settings{TargetVersions: []string{"1.22"}, Git: true}, Deps{})

	reports, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Commit)
	assert.Empty(t, reports[0].Result.Errors)
	assert.Contains(t, readFile(t, dir, "main.go"), "os.ReadFile(")
}

func TestRun_DirtyTreeRefused(t *testing.T) {
	dir := writeProject(t)
	commitAll(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.go"), []byte("package main\n"), 0o644))
	r := NewRunner(Settings{TargetVersions: []string{"1.22"}, Git: true}, Deps{})

	reports, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.NotEmpty(t, reports[0].Result.Errors)
	assert.Contains(t, reports[0].Result.Errors[0], "uncommitted changes")
	assert.Equal(t, ioutilMain, readFile(t, dir, "main.go"))
}

func TestRun_VerificationFailure(t *testing.T) {
	dir := writeProject(t)
	fail := func(_ context.Context, _, name string, args ...string) (string, error) {
		if strings.Join(args, " ") == "build ./..." {
			return "./main.go:9:15: undefined: os\n", errors.New("exit status 1")
		}
		return "", nil
	}
	r := NewRunner(Settings{TargetVersions: []string{"1.22"}, Verify: true}, Deps{VerifyRun: fail})

	reports, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	rep := reports[0]
	require.NotNil(t, rep.Verification)
	assert.False(t, rep.Verification.Success())
	require.Len(t, rep.Verification.Migrated(), 1)
	assert.Contains(t, rep.Result.Warnings, "verification failed")
}

func TestRun_IsolatesFailingProject(t *testing.T) {
	good := writeProject(t)
	missing := filepath.Join(t.TempDir(), "missing")
	r := NewRunner(Settings{TargetVersions: []string{"1.22"}, DryRun: true}, Deps{})

	reports, err := r.Run(context.Background(), []string{missing, good})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.NotEmpty(t, reports[0].Result.Errors)
	assert.Empty(t, reports[1].Result.Errors)
	assert.NotEmpty(t, reports[1].Diff)
}

func TestMigration(t *testing.T) {
	res := &rewriter.ProjectResult{
		RunID:          "r",
		ProjectPath:    "/src/app",
		TargetVersions: []string{"1.22"},
		ModifiedFiles:  []string{"a.go"},
		Executed: action.Ledger{
			"a.go": {
				{Action: action.Action{RuleName: "ioutil-readfile"}, FilePath: "a.go", TimesRun: 2},
				{Action: action.Action{RuleName: "xnet-context"}, FilePath: "a.go", InvalidExecutions: 1},
			},
			"b.go": {{Action: action.Action{RuleName: "ioutil-readfile"}, FilePath: "b.go", TimesRun: 1}},
		},
	}
	m := Migration(res)
	assert.Equal(t, "app", m.Project)
	assert.Equal(t, map[string]int{"ioutil-readfile": 3}, m.Rules)
	assert.Equal(t, []string{"a.go"}, m.Files)
	assert.Equal(t, "r", m.RunID)
}
