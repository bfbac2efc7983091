// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/editor"
	"github.com/petar-djukic/go-porter/internal/plan"
	"github.com/petar-djukic/go-porter/pkg/types"
)

const appMod = `module example.com/app

go 1.16

require (
	github.com/dgrijalva/jwt-go v3.2.0+incompatible
	golang.org/x/sync v0.1.0
)

replace github.com/dgrijalva/jwt-go => ../jwt-go
`

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newAction(t *testing.T, op action.Op, key, value string) action.Action {
	t.Helper()
	a, err := action.Default.New("test-rule", op, key, value)
	require.NoError(t, err)
	return a
}

func loadApp(t *testing.T) (string, *Module) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", appMod)
	m, err := Load(dir)
	require.NoError(t, err)
	return dir, m
}

func TestLoad(t *testing.T) {
	_, m := loadApp(t)
	assert.Equal(t, "example.com/app", m.Path())
	assert.Equal(t, "1.16", m.GoVersion())
	assert.Equal(t, []string{"github.com/dgrijalva/jwt-go", "golang.org/x/sync"}, m.Requires())
	v, ok := m.Version("golang.org/x/sync")
	assert.True(t, ok)
	assert.Equal(t, "v0.1.0", v)
	assert.Equal(t, "../jwt-go", m.Replaces()["github.com/dgrijalva/jwt-go"])

	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNoModFile)
}

func TestResolvePackages(t *testing.T) {
	got := ResolvePackages([]types.PackageAction{
		types.NewPackageAction("Foo", "v2.0.0"),
		types.NewPackageAction("Bar", ""),
		types.NewPackageAction("Foo", "v1.0.0"),
		types.NewPackageAction("Bar", "v0.3.0"),
		types.NewPackageAction("Foo", "v2.1.0"),
	})
	assert.Equal(t, []types.PackageAction{
		{Name: "Foo", Version: "v2.1.0"},
		{Name: "Bar", Version: "v0.3.0"},
	}, got)
}

func TestApplier_PackagesAndModuleOps(t *testing.T) {
	dir, m := loadApp(t)
	a := &Applier{Root: dir, Module: m, Editor: &editor.Editor{}}

	pa := plan.Empty()
	pa.Packages = []types.PackageAction{
		types.NewPackageAction("github.com/golang-jwt/jwt/v4", "v4.5.2"),
		types.NewPackageAction("golang.org/x/sync", "v0.0.1"), // older: kept as is
	}
	pa.ProjectLevel = []action.Action{
		newAction(t, action.OpModuleDropRequire, "go.mod", "github.com/dgrijalva/jwt-go"),
		newAction(t, action.OpModuleDropReplace, "go.mod", "github.com/dgrijalva/jwt-go"),
		newAction(t, action.OpModuleGoVersion, "go.mod", "1.22"),
		newAction(t, action.OpModuleGoVersion, "go.mod", "1.21"),
	}
	out := a.Apply(pa)

	mod := string(out.Outputs["go.mod"])
	assert.Contains(t, mod, "go 1.22")
	assert.Contains(t, mod, "github.com/golang-jwt/jwt/v4 v4.5.2")
	assert.Contains(t, mod, "golang.org/x/sync v0.1.0")
	assert.NotContains(t, mod, "dgrijalva")

	require.Len(t, out.Packages, 2)
	assert.Equal(t, "v0.1.0", out.Packages[1].OriginalVersion)

	execs := out.Ledger["go.mod"]
	require.Len(t, execs, 4)
	assert.Equal(t, 1, execs[2].TimesRun)
	assert.Equal(t, 0, execs[3].TimesRun)
	assert.Equal(t, 1, execs[3].InvalidExecutions)
}

func TestApplier_ProjectFiles(t *testing.T) {
	dir, m := loadApp(t)
	writeFile(t, dir, ".github/workflows/ci.yml", "steps:\n  - uses: actions/setup-go@v4\n    with:\n      go-version: \"1.16\"\n")
	a := &Applier{Root: dir, Module: m, Editor: &editor.Editor{}}

	pa := plan.Empty()
	pa.ProjectLevel = []action.Action{
		newAction(t, action.OpFileReplaceText, ".github/workflows/ci.yml", `go-version: "1.16" => go-version: "1.22"`),
		newAction(t, action.OpFileReplaceText, ".github/workflows/ci.yml", "actions/setup-go@v4 => actions/setup-go@v5"),
		newAction(t, action.OpProjectCreateFile, ".go-version", "1.22\n"),
		newAction(t, action.OpProjectCreateFile, "go.mod", "module clobbered\n"),
	}
	out := a.Apply(pa)

	ci := string(out.Outputs[".github/workflows/ci.yml"])
	assert.Contains(t, ci, `go-version: "1.22"`)
	assert.Contains(t, ci, "actions/setup-go@v5")
	assert.Equal(t, "1.22\n", string(out.Outputs[".go-version"]))
	assert.NotContains(t, out.Outputs, "go.mod")

	run, invalid := out.Ledger.Totals()
	assert.Equal(t, 3, run)
	assert.Equal(t, 1, invalid)

	// Re-applying to the migrated file is a stale match, not an error.
	writeFile(t, dir, ".github/workflows/ci.yml", ci)
	again := a.Apply(&plan.ProjectActions{ProjectLevel: pa.ProjectLevel[:1]})
	assert.Empty(t, again.Warnings)
	_, invalid = again.Ledger.Totals()
	assert.Equal(t, 1, invalid)
}

func TestApplier_References(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writeFile(t, app, "go.mod", "module example.com/app\n\ngo 1.22\n")
	writeFile(t, root, "shared/go.mod", "module example.com/shared\n\ngo 1.22\n")
	m, err := Load(app)
	require.NoError(t, err)

	a := &Applier{Root: app, Module: m}
	pa := plan.Build(nil, plan.Config{
		ProjectFile: filepath.Join(app, "go.mod"),
		References: []plan.Reference{
			{Path: filepath.Join(root, "shared")},
			{Path: filepath.Join(root, "absent")},
		},
	})
	out := a.Apply(pa)

	assert.Contains(t, string(out.Outputs["go.mod"]), "replace example.com/shared => ../shared")
	assert.Equal(t, []string{filepath.Join(root, "absent")}, out.Missing)
}

func TestApplier_GopathProject(t *testing.T) {
	a := &Applier{Root: t.TempDir()}
	pa := plan.Empty()
	pa.Packages = []types.PackageAction{types.NewPackageAction("example.com/x", "v1.0.0")}
	pa.ProjectLevel = []action.Action{newAction(t, action.OpModuleGoVersion, "go.mod", "1.22")}
	out := a.Apply(pa)

	assert.Empty(t, out.Outputs)
	assert.Len(t, out.Warnings, 2)
	_, invalid := out.Ledger.Totals()
	assert.Equal(t, 1, invalid)
}

func TestSplitReplacement(t *testing.T) {
	old, repl, ok := SplitReplacement("a => b")
	assert.True(t, ok)
	assert.Equal(t, "a", old)
	assert.Equal(t, "b", repl)

	old, repl, ok = SplitReplacement("line1\nline2\n=>\nnew1")
	assert.True(t, ok)
	assert.Equal(t, "line1\nline2", old)
	assert.Equal(t, "new1", repl)

	_, _, ok = SplitReplacement("no separator")
	assert.False(t, ok)
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "../shared", localPath("../shared"))
	assert.Equal(t, "./lib", localPath("lib"))
	assert.Equal(t, ".", localPath("."))
}
