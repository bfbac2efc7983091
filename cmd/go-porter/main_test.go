// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/pkg/porter"
)

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "go-porter "+version+"\n", out.String())
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging("debug"))
	assert.NoError(t, setupLogging("WARN"))
	assert.Error(t, setupLogging("loud"))
}

func TestPrintResults_Text(t *testing.T) {
	var out bytes.Buffer
	results := []*porter.Result{
		{Project: "a", ProjectType: "Library", ModifiedFiles: []string{"x.go"}, Applied: 3, Invalid: 1, Diff: "--- a/x.go\n+++ b/x.go\n"},
		{Project: "b", ProjectType: "GopathWebUI", Excluded: true},
		{Project: "c", ProjectType: "Command", Errors: []string{"boom"}},
	}
	require.NoError(t, printResults(&out, "text", results))

	text := out.String()
	assert.Contains(t, text, "a: 1 files, 3 applied, 1 stale (Library)\n\n--- a/x.go\n")
	assert.Contains(t, text, "b: GopathWebUI projects are not migrated\n")
	assert.Contains(t, text, "c: nothing to migrate (Command)\n  error: boom\n")
}

func TestPrintResults_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printResults(&out, "json", []*porter.Result{{Project: "a"}}))
	assert.Contains(t, out.String(), `"Project": "a"`)
}

func TestDirsOf(t *testing.T) {
	assert.Equal(t, []string{"."}, dirsOf(nil))
	assert.Equal(t, []string{"x", "y"}, dirsOf([]string{"x", "y"}))
}
