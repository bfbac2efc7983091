// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rules

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/ast"
	"github.com/petar-djukic/go-porter/pkg/types"
)

const legacySource = `package store

import (
	"io"
	"io/ioutil"
)

type Reader interface {
	io.Closer
	Read() ([]byte, error)
}

func Load(path string) (interface{}, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	all, _ := ioutil.ReadAll(nil)
	_ = all
	return data, nil
}
`

func indexLegacy(t *testing.T) *ast.FileIndex {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "store/store.go", legacySource, parser.ParseComments)
	require.NoError(t, err)
	return ast.IndexFile(fset, file, "store/store.go", "example.com/app/store")
}

func decodeRules(t *testing.T, src string) []Rule {
	t.Helper()
	b, err := Decode([]byte(src))
	require.NoError(t, err)
	return b.Rules
}

func intPtr(n int) *int { return &n }

func TestDecode_KeepsValidRules(t *testing.T) {
	b, err := Decode([]byte(`
version: "1"
rules:
  - name: ok
    match: {import: io/ioutil}
    actions: [{op: import.remove}]
  - name: two-predicates
    match: {import: io/ioutil, type: Foo}
  - name: no-predicate
    match: {}
  - name: stray-args
    match: {member: os.Args, args: 1}
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	require.NotNil(t, b)
	require.Len(t, b.Rules, 1)
	assert.Equal(t, "ok", b.Rules[0].Name)
	assert.Equal(t, types.Import, b.Rules[0].Kind())
}

func TestDecode_MalformedDocument(t *testing.T) {
	b, err := Decode([]byte("rules: [unterminated"))
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestBuiltin_Decodes(t *testing.T) {
	b, err := Builtin()
	require.NoError(t, err)
	assert.NotEmpty(t, b.Version)
	assert.Greater(t, len(b.Rules), 10)
}

func TestRule_Selected(t *testing.T) {
	r := Rule{Name: "r", MinGo: "1.16", BeforeGo: "1.21", Requires: []string{"github.com/golang/*"}}

	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"unconstrained query", Query{}, false},
		{"target and source in range", Query{TargetVersions: []string{"1.22"}, SourceVersions: []string{"1.13"}, References: []string{"github.com/golang/protobuf"}}, true},
		{"target too old", Query{TargetVersions: []string{"1.15"}, References: []string{"github.com/golang/protobuf"}}, false},
		{"source already new", Query{SourceVersions: []string{"1.21"}, References: []string{"github.com/golang/protobuf"}}, false},
		{"any target suffices", Query{TargetVersions: []string{"1.10", "go1.18"}, References: []string{"github.com/golang/mock"}}, true},
		{"missing reference", Query{References: []string{"example.com/x"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Selected(tt.q))
		})
	}
}

func TestRule_SelectedByDialectAndType(t *testing.T) {
	r := Rule{Name: "r", Dialect: types.DialectGopath, ProjectTypes: []types.ProjectType{types.ProjectTypeGopathLibrary}}
	assert.True(t, r.Selected(Query{Dialect: types.DialectGopath, ProjectType: types.ProjectTypeGopathLibrary}))
	assert.False(t, r.Selected(Query{Dialect: types.DialectGo}))
	assert.False(t, r.Selected(Query{ProjectType: types.ProjectTypeLibrary}))
}

func TestMerge_LaterRuleReplaces(t *testing.T) {
	first := &Bundle{Version: "1", Rules: decodeRules(t, `
rules:
  - name: a
    match: {import: x}
  - name: b
    dialect: gopath
    match: {import: y}
`)}
	second := &Bundle{Version: "2", Rules: decodeRules(t, `
rules:
  - name: a
    description: replaced
    dialect: go
    match: {import: z}
`)}
	rs := Merge(first, nil, second)
	assert.Equal(t, "2", rs.Version)
	assert.Equal(t, 2, rs.Len())
	require.Len(t, rs.Go, 1)
	assert.Equal(t, "replaced", rs.Go[0].Description)
	require.Len(t, rs.Gopath, 1)
	assert.Equal(t, "b", rs.Gopath[0].Name)
}

func TestMatcher_MatchFile_Builtin(t *testing.T) {
	b, err := Builtin()
	require.NoError(t, err)
	m := &Matcher{}

	tokens := m.MatchFile(indexLegacy(t), b.Rules)
	byRule := make(map[string]*Token)
	for _, tok := range tokens {
		byRule[tok.RuleName] = tok
		assert.Equal(t, "store/store.go", tok.File)
	}

	readFile := byRule["ioutil-readfile"]
	require.NotNil(t, readFile)
	assert.Equal(t, types.Invocation, readFile.Node.Kind)
	items := readFile.Actions.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "io/ioutil.ReadFile", items[0].Key)
	assert.Equal(t, "os.ReadFile", items[0].Value)
	assert.Equal(t, action.OpInvocationReplace, items[0].Op)
	assert.Equal(t, readFile.Node.Span, items[0].Span)

	assert.NotNil(t, byRule["ioutil-readall"])
	assert.NotNil(t, byRule["empty-interface-any"])
	assert.Nil(t, byRule["ioutil-writefile"])
	assert.Nil(t, byRule["jwt-go-import"])
}

func TestMatcher_UnknownOpSkipsRule(t *testing.T) {
	rules := decodeRules(t, `
rules:
  - name: broken
    match: {import: io/ioutil}
    actions: [{op: import.teleport}]
  - name: fine
    match: {import: io/ioutil}
    actions: [{op: import.remove}]
`)
	tokens := (&Matcher{}).MatchFile(indexLegacy(t), rules)
	assert.Equal(t, []string{"fine"}, tokens.Rules())
}

func TestMatcher_KeyDefaults(t *testing.T) {
	rules := decodeRules(t, `
rules:
  - name: mixed
    match: {import: io/ioutil}
    actions:
      - {op: file.add-comment, value: "migrated"}
      - {op: invocation.add-comment, key: io/ioutil.ReadAll, value: "check"}
    project_actions:
      - {op: module.go-version, value: "1.22"}
    packages:
      - {name: example.com/lib}
  - name: kind-mismatch
    match: {import: io/ioutil}
    actions: [{op: invocation.add-comment, value: "no key"}]
`)
	tokens := (&Matcher{}).MatchFile(indexLegacy(t), rules)
	require.Len(t, tokens, 1)
	tok := tokens[0]

	items := tok.Actions.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "store/store.go", items[0].Key)
	assert.Equal(t, "io/ioutil.ReadAll", items[1].Key)
	require.Len(t, tok.ProjectLevelActions, 1)
	assert.Equal(t, ModFileKey, tok.ProjectLevelActions[0].Key)
	assert.Equal(t, []types.PackageAction{{Name: "example.com/lib", Version: types.AnyVersion}}, tok.Packages)
}

func TestMatcher_ArgsAndEmbeds(t *testing.T) {
	rules := []Rule{
		{Name: "one-arg", Match: Predicate{Invocation: "io/ioutil.*", Args: intPtr(1)}},
		{Name: "closers", Match: Predicate{Embeds: "io.Closer"}},
	}
	for i := range rules {
		require.NoError(t, rules[i].compile())
	}
	tokens := (&Matcher{}).MatchFile(indexLegacy(t), rules)

	var calls, decls []string
	for _, tok := range tokens {
		switch tok.RuleName {
		case "one-arg":
			calls = append(calls, tok.Node.Key)
		case "closers":
			decls = append(decls, tok.Node.Key)
		}
	}
	assert.ElementsMatch(t, []string{"io/ioutil.ReadFile", "io/ioutil.ReadAll"}, calls)
	assert.Equal(t, []string{"example.com/app/store.Reader"}, decls)
}

func TestMatcher_MatchProject_Modules(t *testing.T) {
	b, err := Builtin()
	require.NoError(t, err)
	table := ast.NewTable()
	table.Add(indexLegacy(t))

	m := &Matcher{Modules: []string{"github.com/dgrijalva/jwt-go", "golang.org/x/sync"}}
	tokens := m.MatchProject(table, b.Rules)

	var module *Token
	for _, tok := range tokens {
		if tok.RuleName == "jwt-go-module" {
			module = tok
		}
	}
	require.NotNil(t, module)
	assert.Equal(t, types.CompilationUnit, module.Node.Kind)
	assert.Empty(t, module.File)
	assert.Equal(t, 0, module.Actions.Len())
	require.Len(t, module.Packages, 1)
	assert.Equal(t, "github.com/golang-jwt/jwt/v4", module.Packages[0].Name)
	require.Len(t, module.ProjectLevelActions, 2)
	assert.Equal(t, action.OpModuleDropRequire, module.ProjectLevelActions[0].Op)
	assert.Equal(t, action.OpModuleDropReplace, module.ProjectLevelActions[1].Op)

	// MatchFile never evaluates module predicates.
	for _, tok := range m.MatchFile(indexLegacy(t), b.Rules) {
		assert.NotEqual(t, "jwt-go-module", tok.RuleName)
	}
}

func TestTokenSet_FilesAndRules(t *testing.T) {
	ts := TokenSet{
		{File: "a.go", RuleName: "x"},
		{File: "b.go", RuleName: "y"},
		{File: "a.go", RuleName: "x"},
		{File: "", RuleName: "z"},
	}
	assert.Equal(t, []string{"a.go", "b.go"}, ts.Files())
	assert.Equal(t, []string{"x", "y", "z"}, ts.Rules())
}
