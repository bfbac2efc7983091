// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package replacer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/internal/action"
)

const pkgPath = "example.com/app/svc"

func newAction(t *testing.T, rule string, op action.Op, key, value string) action.Action {
	t.Helper()
	a, err := action.Default.New(rule, op, key, value)
	require.NoError(t, err)
	return a
}

func apply(t *testing.T, src string, actions ...action.Action) *FileResult {
	t.Helper()
	res, err := (&Replacer{}).ApplyFile(context.Background(), File{
		Path: "svc/svc.go", PkgPath: pkgPath, Source: []byte(src), Actions: actions,
	})
	require.NoError(t, err)
	require.Len(t, res.Executions, len(actions))
	return res
}

const ioutilSource = `package svc

import (
	"fmt"
	"io/ioutil"
)

func Load(path string) ([]byte, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return data, nil
}

func LoadTwice(a, b string) {
	_, _ = ioutil.ReadFile(a)
	_, _ = ioutil.ReadFile(b)
}
`

func TestApplyFile_PassThroughWithoutActions(t *testing.T) {
	src := "package svc\n\nvar  x = 1 // odd spacing stays\n"
	res := apply(t, src)
	assert.Equal(t, src, string(res.Content))
	assert.False(t, res.Changed)
}

func TestApplyFile_PassThroughWhenNothingResolves(t *testing.T) {
	src := "package svc\n\nfunc  f() {}\n"
	res := apply(t, src, newAction(t, "r", action.OpInvocationReplace, "io/ioutil.ReadFile", "os.ReadFile"))
	assert.Equal(t, src, string(res.Content))
	assert.False(t, res.Changed)
	assert.Equal(t, 0, res.Executions[0].TimesRun)
	assert.Equal(t, 1, res.Executions[0].InvalidExecutions)
}

func TestApplyFile_InvocationReplaceSettlesImports(t *testing.T) {
	res := apply(t, ioutilSource, newAction(t, "ioutil", action.OpInvocationReplace, "io/ioutil.ReadFile", "os.ReadFile"))
	out := string(res.Content)

	assert.True(t, res.Changed)
	assert.Contains(t, out, "data, err := os.ReadFile(path)")
	assert.Contains(t, out, `"os"`)
	assert.Contains(t, out, `"fmt"`)
	assert.NotContains(t, out, "ioutil")
	assert.Equal(t, 3, res.Executions[0].TimesRun)
	assert.Equal(t, 0, res.Executions[0].InvalidExecutions)
}

func TestApplyFile_ShadowedQualifierIsStale(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		keep    []string
		want    []string
		run     int
		invalid int
	}{
		{
			name: "parameter",
			src: `package svc

import "io/ioutil"

func Load(os string) ([]byte, error) {
	return ioutil.ReadFile(os)
}

func Read(path string) ([]byte, error) {
	return ioutil.ReadFile(path)
}
`,
			keep:    []string{"return ioutil.ReadFile(os)", `"io/ioutil"`},
			want:    []string{"return os.ReadFile(path)", `"os"`},
			run:     1,
			invalid: 1,
		},
		{
			name: "local variable",
			src: `package svc

import "io/ioutil"

func Load() ([]byte, error) {
	os := "config.yaml"
	return ioutil.ReadFile(os)
}
`,
			keep:    []string{"return ioutil.ReadFile(os)"},
			run:     0,
			invalid: 1,
		},
		{
			name: "package variable",
			src: `package svc

import "io/ioutil"

var os = "config.yaml"

func Load() ([]byte, error) {
	return ioutil.ReadFile(os)
}
`,
			keep:    []string{"return ioutil.ReadFile(os)"},
			run:     0,
			invalid: 1,
		},
		{
			name: "block ended",
			src: `package svc

import "io/ioutil"

func Load(path string) ([]byte, error) {
	if os := path; os == "" {
		return nil, nil
	}
	return ioutil.ReadFile(path)
}
`,
			want:    []string{"return os.ReadFile(path)"},
			run:     1,
			invalid: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := apply(t, tt.src, newAction(t, "ioutil", action.OpInvocationReplace, "io/ioutil.ReadFile", "os.ReadFile"))
			out := string(res.Content)

			for _, s := range tt.keep {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			assert.NotContains(t, out, "os.ReadFile(os)")
			assert.Equal(t, tt.run, res.Executions[0].TimesRun)
			assert.Equal(t, tt.invalid, res.Executions[0].InvalidExecutions)
			if tt.run == 0 {
				assert.Equal(t, tt.src, out)
			}
		})
	}
}

func TestApplyFile_SingleImportStaysUngrouped(t *testing.T) {
	src := `package svc

import "io/ioutil"

func Load(path string) ([]byte, error) {
	return ioutil.ReadFile(path)
}
`
	res := apply(t, src, newAction(t, "ioutil", action.OpInvocationReplace, "io/ioutil.ReadFile", "os.ReadFile"))
	out := string(res.Content)

	assert.Contains(t, out, "import \"os\"\n")
	assert.NotContains(t, out, "import (")
	assert.NotContains(t, out, "ioutil")
}

func TestApplyFile_NoDoubleApplication(t *testing.T) {
	src := `package svc

import "golang.org/x/net/context"

func Run(ctx context.Context) error { return ctx.Err() }
`
	set := action.NewSet(
		newAction(t, "rule-a", action.OpImportRename, "golang.org/x/net/context", "context"),
		newAction(t, "rule-b", action.OpImportRename, "golang.org/x/net/context", "context"),
	)
	res := apply(t, src, set.Items()...)

	assert.Contains(t, string(res.Content), `import "context"`)
	assert.NotContains(t, string(res.Content), "x/net")
	assert.Equal(t, 1, res.Executions[0].TimesRun)
}

func TestApplyFile_StaleMatch(t *testing.T) {
	src := `package svc

type Foo struct {
	Name string
}
`
	res := apply(t, src,
		newAction(t, "rename", action.OpTypeRename, pkgPath+".Foo", "Bar"),
		newAction(t, "extend", action.OpTypeAddField, pkgPath+".Foo", "Extra int"),
	)
	out := string(res.Content)

	assert.Contains(t, out, "type Bar struct")
	assert.NotContains(t, out, "Extra")
	assert.Equal(t, 1, res.Executions[0].TimesRun)
	assert.Equal(t, 0, res.Executions[1].TimesRun)
	assert.Equal(t, 1, res.Executions[1].InvalidExecutions)
}

func TestApplyFile_StructTags(t *testing.T) {
	src := "package svc\n\ntype User struct {\n\tName string `json:\"name\" bson:\"name\"`\n\tID   string `bson:\"_id\"`\n}\n"
	res := apply(t, src, newAction(t, "drop-bson", action.OpAttributeRemove, "bson", ""))
	out := string(res.Content)

	assert.NotContains(t, out, "bson")
	assert.Contains(t, out, "`json:\"name\"`")
	assert.Equal(t, 2, res.Executions[0].TimesRun)
}

func TestApplyFile_ImportRemoveDeletesSpec(t *testing.T) {
	src := `package svc

import "strings"

func f() {}
`
	res := apply(t, src, newAction(t, "r", action.OpImportRemove, "strings", ""))
	assert.NotContains(t, string(res.Content), "import")
	assert.Equal(t, 1, res.Executions[0].TimesRun)
}

func TestApplyFile_FileCommentOnce(t *testing.T) {
	note := newAction(t, "r", action.OpFileAddComment, "svc/svc.go", "go-porter: migrated")
	res := apply(t, ioutilSource, note)
	assert.Contains(t, string(res.Content), "// go-porter: migrated\nfunc Load")
	assert.Equal(t, 1, res.Executions[0].TimesRun)

	again := apply(t, string(res.Content), note)
	assert.Equal(t, string(res.Content), string(again.Content))
	assert.Equal(t, 0, again.Executions[0].TimesRun)
	assert.Equal(t, 1, again.Executions[0].InvalidExecutions)
}

func TestApplyFile_UnknownOp(t *testing.T) {
	bogus := action.Action{Op: "bogus.op", Key: "x", RuleName: "r"}
	_, err := (&Replacer{}).ApplyFile(context.Background(), File{Path: "a.go", Source: []byte("package a\n"), Actions: []action.Action{bogus}})
	assert.ErrorIs(t, err, action.ErrNoHandler)
}

func TestApplyFile_IterationLimit(t *testing.T) {
	r := &Replacer{MaxIterations: 5}
	_, err := r.ApplyFile(context.Background(), File{
		Path: "svc/svc.go", PkgPath: pkgPath, Source: []byte(ioutilSource),
		Actions: []action.Action{newAction(t, "r", action.OpInvocationReplace, "io/ioutil.ReadFile", "os.ReadFile")},
	})
	assert.ErrorIs(t, err, ErrIterationLimit)
}

func TestApplyAll(t *testing.T) {
	replace := newAction(t, "r", action.OpInvocationReplace, "io/ioutil.ReadFile", "os.ReadFile")
	files := []File{
		{Path: "a.go", PkgPath: pkgPath, Source: []byte(ioutilSource), Actions: []action.Action{replace}},
		{Path: "broken.go", PkgPath: pkgPath, Source: []byte("package svc\nfunc {"), Actions: []action.Action{replace}},
		{Path: "c.go", PkgPath: pkgPath, Source: []byte("package svc\n")},
	}
	results, err := (&Replacer{Workers: 2}).ApplyAll(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Changed)
	assert.Error(t, results[1].Err)
	assert.Equal(t, "package svc\n", string(results[2].Content))

	ledger := Ledger(results)
	run, _ := ledger.Totals()
	assert.Equal(t, 3, run)
}

func TestApplyAll_MissingHandlerAborts(t *testing.T) {
	files := []File{{Path: "a.go", Source: []byte("package a\n"), Actions: []action.Action{{Op: "bogus.op"}}}}
	_, err := (&Replacer{}).ApplyAll(context.Background(), files)
	assert.ErrorIs(t, err, action.ErrNoHandler)
}
