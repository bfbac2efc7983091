// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"go/parser"
	"go/token"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/pkg/types"
)

const keysSource = `package store

import (
	"io"
	"io/ioutil"
	"os"

	ctx "golang.org/x/net/context"
)

type Store struct {
	Base
	Name string ` + "`json:\"name\" yaml:\"name,omitempty\"`" + `
}

type Loader interface {
	io.Closer
	Load(c ctx.Context) error
}

func (s *Store) Load(c ctx.Context) error {
	data, err := ioutil.ReadFile(s.Name)
	if err != nil {
		return err
	}
	_ = data[0]
	_, _ = os.Stdout.Seek(0, os.SEEK_SET)
	cfg := Config{Path: "x"}
	_ = cfg
	var v interface{} = len(data)
	_ = v
	return nil
}
`

func indexSource(t *testing.T, src string) *FileIndex {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "store/store.go", src, parser.ParseComments)
	require.NoError(t, err)
	return IndexFile(fset, file, "store/store.go", "example.com/app/store")
}

func keysByKind(fi *FileIndex) map[types.NodeKind][]string {
	out := make(map[types.NodeKind][]string)
	for _, e := range fi.Entries {
		out[e.Ref.Kind] = append(out[e.Ref.Kind], e.Ref.Key)
	}
	return out
}

func TestIndexFile_Keys(t *testing.T) {
	fi := indexSource(t, keysSource)
	keys := keysByKind(fi)

	tests := []struct {
		kind types.NodeKind
		key  string
	}{
		{types.CompilationUnit, "store/store.go"},
		{types.Namespace, "store"},
		{types.Import, "io/ioutil"},
		{types.Import, "golang.org/x/net/context"},
		{types.ClassDecl, "example.com/app/store.Store"},
		{types.InterfaceDecl, "example.com/app/store.Loader"},
		{types.MethodDecl, "example.com/app/store.Store.Load"},
		{types.AttributeList, "example.com/app/store.Store.Name"},
		{types.Attribute, "json"},
		{types.Attribute, "yaml"},
		{types.Invocation, "io/ioutil.ReadFile"},
		{types.Invocation, "len"},
		{types.Invocation, "*.Seek"},
		{types.MemberAccess, "*.Name"},
		{types.MemberAccess, "os.SEEK_SET"},
		{types.MemberAccess, "os.Stdout"},
		{types.MemberAccess, "golang.org/x/net/context.Context"},
		{types.ElementAccess, "data"},
		{types.ObjectCreation, "example.com/app/store.Config"},
		{types.Identifier, "data"},
		{types.Expression, "interface{}"},
		{types.Expression, "ioutil.ReadFile(s.Name)"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+" "+tt.key, func(t *testing.T) {
			assert.Contains(t, keys[tt.kind], tt.key)
		})
	}

	// Selector names and the package clause are not bare identifiers.
	assert.NotContains(t, keys[types.Identifier], "ReadFile")
	assert.NotContains(t, keys[types.Identifier], "store")
	assert.Equal(t, []string{"io", "io/ioutil", "os", "golang.org/x/net/context"}, fi.Imports)
	assert.Equal(t, "store", fi.Package)
}

func TestIndexFile_Facts(t *testing.T) {
	fi := indexSource(t, keysSource)

	find := func(kind types.NodeKind, key string) Entry {
		for _, e := range fi.Entries {
			if e.Ref.Kind == kind && e.Ref.Key == key {
				return e
			}
		}
		t.Fatalf("no %s %s", kind, key)
		return Entry{}
	}

	store := find(types.ClassDecl, "example.com/app/store.Store")
	assert.Equal(t, []string{"example.com/app/store.Base"}, store.Facts.Embeds)

	loader := find(types.InterfaceDecl, "example.com/app/store.Loader")
	assert.Equal(t, []string{"io.Closer"}, loader.Facts.Embeds)
	assert.Equal(t, []string{"Load"}, loader.Facts.Methods)

	assert.Equal(t, 1, find(types.Invocation, "io/ioutil.ReadFile").Facts.Args)
	assert.Equal(t, "name,omitempty", find(types.Attribute, "yaml").Facts.TagValue)

	span := find(types.Invocation, "io/ioutil.ReadFile").Ref.Span
	assert.Equal(t, span.StartLine, span.EndLine)
	assert.Greater(t, span.End, span.Start)
}

func TestResolver_FollowsCurrentImports(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "main.go", `package main

import "golang.org/x/net/context"

func run(c context.Context) {}
`, 0)
	require.NoError(t, err)
	r := NewResolver(file, "example.com/app", "main.go")

	path, ok := r.ImportPath("context")
	require.True(t, ok)
	assert.Equal(t, "golang.org/x/net/context", path)

	file.Imports[0].Path.Value = strconv.Quote("context")

	path, ok = r.ImportPath("context")
	require.True(t, ok)
	assert.Equal(t, "context", path)

	name, ok := r.LocalName("context")
	require.True(t, ok)
	assert.Equal(t, "context", name)
}

func TestResolver_LocalShadowsImport(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "main.go", `package main

import "os"

func run() {
	os := struct{ Exit func(int) }{}
	os.Exit(1)
}
`, 0)
	require.NoError(t, err)
	fi := IndexFile(fset, file, "main.go", "example.com/app")

	keys := keysByKind(fi)
	assert.Contains(t, keys[types.Invocation], "*.Exit")
	assert.NotContains(t, keys[types.Invocation], "os.Exit")
}

func TestDefaultImportName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"io/ioutil", "ioutil"},
		{"context", "context"},
		{"github.com/golang-jwt/jwt/v4", "jwt"},
		{"github.com/dgrijalva/jwt-go", "jwt"},
		{"gopkg.in/yaml.v3", "yaml"},
		{"k8s.io/api/core/v1", "v1"},
		{"github.com/sergi/go-diff", "diff"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultImportName(tt.path))
		})
	}
}

func TestPackagePath(t *testing.T) {
	assert.Equal(t, "example.com/app", PackagePath("example.com/app", "main.go"))
	assert.Equal(t, "example.com/app/store", PackagePath("example.com/app", "store/store.go"))
	assert.Equal(t, "store", PackagePath("", "store/store.go"))
	assert.Equal(t, "github.com/org/repo", GopathImportPath("/home/u/go/src/github.com/org/repo"))
	assert.Equal(t, "repo", GopathImportPath("/work/repo"))
}

func TestTable_Lookup(t *testing.T) {
	root := setupFixtures(t)
	scan, err := ScanDir(root, ScanOptions{})
	require.NoError(t, err)

	table := BuildTable(scan, func(rel string) string { return PackagePath("example.com/app", rel) })

	hits := table.ByKey(types.Invocation, "io/ioutil.ReadFile")
	require.Len(t, hits, 1)
	assert.Equal(t, "main.go", hits[0].File)

	imports := table.ByKey(types.Import, "golang.org/x/net/context")
	require.Len(t, imports, 1)
	assert.Equal(t, "store/store.go", imports[0].File)

	assert.NotEmpty(t, table.ByFile("main.go"))
	assert.Contains(t, table.Files(), "store/store.go")
	assert.Positive(t, table.CountByKind()[types.MethodDecl])
	assert.Len(t, table.ByKind(types.Import), 2)
}
