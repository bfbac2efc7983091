// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package action

import (
	goast "go/ast"
	"go/token"
	"slices"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/petar-djukic/go-porter/internal/ast"
)

// Context is what a handler sees of the tree it is rewriting. Cursor is
// nil for compilation-unit actions, which run at the root.
type Context struct {
	Fset     *token.FileSet
	File     *goast.File
	Resolver *ast.Resolver
	Cursor   *astutil.Cursor
	Site     ast.Site

	required []string
	released []string
}

// NewContext returns a context for one file pass.
func NewContext(fset *token.FileSet, file *goast.File, pkgPath, relPath string) *Context {
	return &Context{
		Fset:     fset,
		File:     file,
		Resolver: ast.NewResolver(file, pkgPath, relPath),
	}
}

// RequireImport records that rewritten code refers to path and returns
// the name to qualify it with. The import itself is added once the
// traversal is over, so the declaration list is not edited mid-walk.
func (c *Context) RequireImport(path string) string {
	if name, ok := c.Resolver.LocalName(path); ok {
		return name
	}
	if !slices.Contains(c.required, path) {
		c.required = append(c.required, path)
	}
	return ast.DefaultImportName(path)
}

// ReleaseImport records that a reference to path was rewritten away. The
// import is dropped after the traversal if nothing else uses it.
func (c *Context) ReleaseImport(path string) {
	if !slices.Contains(c.released, path) {
		c.released = append(c.released, path)
	}
}

// Required returns the import paths rewritten code needs.
func (c *Context) Required() []string { return c.required }

// Released returns the import paths that lost a reference.
func (c *Context) Released() []string { return c.released }

// QualifiedExpr builds the expression for a "path.Name" value anchored at
// pos, requiring the import. A value without a package part yields a bare
// identifier.
func (c *Context) QualifiedExpr(value string, pos token.Pos) goast.Expr {
	path, name := SplitQualified(value)
	if path == "" {
		return &goast.Ident{NamePos: pos, Name: name}
	}
	return &goast.SelectorExpr{
		X:   &goast.Ident{NamePos: pos, Name: c.RequireImport(path)},
		Sel: &goast.Ident{NamePos: pos, Name: name},
	}
}

// QualifierFree reports whether a "path.Name" value can be written at
// pos without its package name being captured by a declaration in scope.
func (c *Context) QualifierFree(value string, pos token.Pos) bool {
	path, _ := SplitQualified(value)
	if path == "" {
		return true
	}
	name, ok := c.Resolver.LocalName(path)
	if !ok {
		name = ast.DefaultImportName(path)
	}
	return !ast.Shadowed(c.File, name, pos)
}

// releaseQualifier releases the import behind a package-qualified selector.
func (c *Context) releaseQualifier(x goast.Expr) {
	sel, ok := x.(*goast.SelectorExpr)
	if !ok {
		return
	}
	if path, ok := c.Resolver.PackageOf(sel.X); ok {
		c.ReleaseImport(path)
	}
}

// SplitQualified splits "path.Name" at the last dot of the last path
// element: "gopkg.in/yaml.v3.Marshal" → ("gopkg.in/yaml.v3", "Marshal").
func SplitQualified(value string) (path, name string) {
	slash := strings.LastIndex(value, "/")
	dot := strings.LastIndex(value, ".")
	if dot <= slash {
		return "", value
	}
	return value[:dot], value[dot+1:]
}
