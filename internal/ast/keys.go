// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"go/ast"
	gotypes "go/types"
	"strconv"
	"strings"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// Resolver computes the logical keys of the constructs in one file.
// Package qualifiers are resolved against the file's current import list
// on every call, so a resolver stays correct while the tree is rewritten.
type Resolver struct {
	File    *ast.File
	PkgPath string // Import path of the file's package
	RelPath string // Slash-separated path relative to the project root
}

// NewResolver returns a resolver for file.
func NewResolver(file *ast.File, pkgPath, relPath string) *Resolver {
	return &Resolver{File: file, PkgPath: pkgPath, RelPath: relPath}
}

// Site describes where a node sits in the tree, as far as key computation
// needs to know. The walker fills it in; nodes do not record their parents.
type Site struct {
	TypeName    string // Innermost enclosing type declaration
	FieldName   string // Innermost enclosing struct field
	Tag         bool   // Node is the tag literal of a struct field
	CallFun     bool   // Node is the callee of a call expression
	Selector    bool   // Node is the Sel identifier of a selector expression
	PackageName bool   // Node is the package clause identifier
}

// allKinds lists node kinds in the order Refs reports them.
var allKinds = []types.NodeKind{
	types.CompilationUnit, types.Namespace, types.Import,
	types.ClassDecl, types.InterfaceDecl, types.MethodDecl,
	types.AttributeList, types.Attribute,
	types.Invocation, types.MemberAccess, types.ElementAccess, types.ObjectCreation,
	types.Identifier, types.Expression,
}

// Kinds returns every node kind n may be reported as, without computing
// any keys.
func Kinds(n ast.Node, site Site) []types.NodeKind {
	var out []types.NodeKind
	for _, k := range allKinds {
		if matchesKind(k, n, site) {
			out = append(out, k)
		}
	}
	return out
}

func matchesKind(kind types.NodeKind, n ast.Node, site Site) bool {
	switch kind {
	case types.ClassDecl:
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return false
		}
		_, iface := ts.Type.(*ast.InterfaceType)
		return !iface
	case types.InterfaceDecl:
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return false
		}
		_, iface := ts.Type.(*ast.InterfaceType)
		return iface
	case types.MethodDecl:
		_, ok := n.(*ast.FuncDecl)
		return ok
	case types.AttributeList, types.Attribute:
		_, ok := n.(*ast.BasicLit)
		return ok && site.Tag
	case types.Import:
		_, ok := n.(*ast.ImportSpec)
		return ok
	case types.Namespace:
		_, ok := n.(*ast.Ident)
		return ok && site.PackageName
	case types.Invocation:
		_, ok := n.(*ast.CallExpr)
		return ok
	case types.MemberAccess:
		_, ok := n.(*ast.SelectorExpr)
		return ok && !site.CallFun
	case types.ElementAccess:
		_, ok := n.(*ast.IndexExpr)
		return ok
	case types.ObjectCreation:
		lit, ok := n.(*ast.CompositeLit)
		return ok && lit.Type != nil
	case types.Identifier:
		_, ok := n.(*ast.Ident)
		return ok && !site.PackageName && !site.Selector
	case types.CompilationUnit:
		_, ok := n.(*ast.File)
		return ok
	case types.Expression:
		_, ok := n.(ast.Expr)
		return ok && !site.Tag && !site.PackageName && !site.Selector
	}
	return false
}

// Keys returns the keys n has when viewed as kind. Most kinds yield one
// key; an Attribute literal yields one per tag entry. A node that is not
// of the given kind yields nil.
func (r *Resolver) Keys(kind types.NodeKind, n ast.Node, site Site) []string {
	if !matchesKind(kind, n, site) {
		return nil
	}
	var key string
	switch kind {
	case types.ClassDecl, types.InterfaceDecl:
		key = r.qualify(n.(*ast.TypeSpec).Name.Name)
	case types.MethodDecl:
		key = r.FuncKey(n.(*ast.FuncDecl))
	case types.AttributeList:
		key = r.qualify(site.TypeName, site.FieldName)
	case types.Attribute:
		var keys []string
		for _, e := range ParseTag(n.(*ast.BasicLit).Value) {
			keys = append(keys, e.Key)
		}
		return keys
	case types.Import:
		key = ImportPathOf(n.(*ast.ImportSpec))
	case types.Namespace, types.Identifier:
		key = n.(*ast.Ident).Name
	case types.Invocation:
		key = r.CalleeKey(n.(*ast.CallExpr).Fun)
	case types.MemberAccess:
		key = r.SelectorKey(n.(*ast.SelectorExpr))
	case types.ElementAccess:
		key = r.ValueKey(n.(*ast.IndexExpr).X)
	case types.ObjectCreation:
		key = r.TypeKey(n.(*ast.CompositeLit).Type)
	case types.CompilationUnit:
		key = r.RelPath
	case types.Expression:
		key = gotypes.ExprString(n.(ast.Expr))
	}
	if key == "" {
		return nil
	}
	return []string{key}
}

// HasKey reports whether n, viewed as kind, carries key.
func (r *Resolver) HasKey(kind types.NodeKind, n ast.Node, site Site, key string) bool {
	for _, k := range r.Keys(kind, n, site) {
		if k == key {
			return true
		}
	}
	return false
}

// Refs returns every reference n produces, in kind order.
func (r *Resolver) Refs(n ast.Node, site Site, span types.Span) []types.NodeRef {
	var refs []types.NodeRef
	for _, kind := range Kinds(n, site) {
		for _, key := range r.Keys(kind, n, site) {
			refs = append(refs, types.NodeRef{Kind: kind, Key: key, Span: span})
		}
	}
	return refs
}

// FuncKey returns pkgpath.Func for functions and pkgpath.Recv.Method for methods.
func (r *Resolver) FuncKey(fd *ast.FuncDecl) string {
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		if recv := baseTypeName(fd.Recv.List[0].Type); recv != "" {
			return r.qualify(recv, fd.Name.Name)
		}
	}
	return r.qualify(fd.Name.Name)
}

// CalleeKey resolves the callee of a call. Package functions resolve to
// path.Func, local functions to pkgpath.Func, and method calls on values
// to *.Method. Builtins keep their bare name.
func (r *Resolver) CalleeKey(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.ParenExpr:
		return r.CalleeKey(f.X)
	case *ast.IndexExpr:
		return r.CalleeKey(f.X)
	case *ast.IndexListExpr:
		return r.CalleeKey(f.X)
	case *ast.Ident:
		if f.Obj == nil && isPredeclared(f.Name) {
			return f.Name
		}
		return r.qualify(f.Name)
	case *ast.SelectorExpr:
		return r.SelectorKey(f)
	}
	return ""
}

// SelectorKey returns path.Name when the selector's operand is a package
// qualifier and *.Name otherwise.
func (r *Resolver) SelectorKey(sel *ast.SelectorExpr) string {
	if path, ok := r.PackageOf(sel.X); ok {
		return path + "." + sel.Sel.Name
	}
	return "*." + sel.Sel.Name
}

// ValueKey keys an operand: selectors and calls as above, identifiers by
// name, anything else by its rendering.
func (r *Resolver) ValueKey(x ast.Expr) string {
	switch e := x.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return r.SelectorKey(e)
	case *ast.CallExpr:
		return r.CalleeKey(e.Fun)
	case *ast.ParenExpr:
		return r.ValueKey(e.X)
	}
	return gotypes.ExprString(x)
}

// TypeKey returns the qualified name of a type expression. Pointers and
// generic instantiations key as their base type; unnamed composite types
// key as their rendering.
func (r *Resolver) TypeKey(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		if t.Obj == nil && isPredeclared(t.Name) {
			return t.Name
		}
		return r.qualify(t.Name)
	case *ast.SelectorExpr:
		return r.SelectorKey(t)
	case *ast.StarExpr:
		return r.TypeKey(t.X)
	case *ast.ParenExpr:
		return r.TypeKey(t.X)
	case *ast.IndexExpr:
		return r.TypeKey(t.X)
	case *ast.IndexListExpr:
		return r.TypeKey(t.X)
	}
	return gotypes.ExprString(expr)
}

// PackageOf reports the import path x names when x is a package qualifier.
// Identifiers resolved to a local declaration by the parser are never
// package qualifiers, even when they shadow an import name.
func (r *Resolver) PackageOf(x ast.Expr) (string, bool) {
	id, ok := x.(*ast.Ident)
	if !ok || id.Obj != nil {
		return "", false
	}
	return r.ImportPath(id.Name)
}

// ImportPath returns the import path bound to a local package name.
func (r *Resolver) ImportPath(local string) (string, bool) {
	for _, spec := range r.File.Imports {
		path := ImportPathOf(spec)
		if path != "" && ImportName(spec) == local {
			return path, true
		}
	}
	return "", false
}

// LocalName returns the name the file uses for an imported path.
func (r *Resolver) LocalName(path string) (string, bool) {
	for _, spec := range r.File.Imports {
		if ImportPathOf(spec) == path {
			return ImportName(spec), true
		}
	}
	return "", false
}

func (r *Resolver) qualify(parts ...string) string {
	var kept []string
	if r.PkgPath != "" {
		kept = append(kept, r.PkgPath)
	}
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// ImportPathOf returns the unquoted path of an import spec, or "" if the
// literal is malformed.
func ImportPathOf(spec *ast.ImportSpec) string {
	if spec == nil || spec.Path == nil {
		return ""
	}
	path, err := strconv.Unquote(spec.Path.Value)
	if err != nil {
		return ""
	}
	return path
}

// ImportName returns the explicit name of an import or its default name.
func ImportName(spec *ast.ImportSpec) string {
	if spec.Name != nil {
		return spec.Name.Name
	}
	return DefaultImportName(ImportPathOf(spec))
}

// DefaultImportName guesses the package name of an import path from its
// last element: major-version suffixes are skipped, gopkg.in ".vN"
// suffixes and "go-"/"-go" affixes are trimmed. The guess matches the
// declared package name for conventionally named modules only.
func DefaultImportName(path string) string {
	elems := strings.Split(path, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name, 2) {
		name = elems[len(elems)-2]
	}
	if i := strings.LastIndex(name, ".v"); i > 0 && isMajorVersion(name[i+1:], 0) {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, "-go")
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

func isMajorVersion(s string, min int) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	n, err := strconv.Atoi(s[1:])
	return err == nil && n >= min
}

func isPredeclared(name string) bool {
	return gotypes.Universe.Lookup(name) != nil
}

// baseTypeName strips pointers and type parameters from a receiver type.
func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.ParenExpr:
		return baseTypeName(t.X)
	case *ast.IndexExpr:
		return baseTypeName(t.X)
	case *ast.IndexListExpr:
		return baseTypeName(t.X)
	}
	return ""
}

// FieldName returns the first declared name of a field, or the base type
// name of an embedded field.
func FieldName(f *ast.Field) string {
	if len(f.Names) > 0 {
		return f.Names[0].Name
	}
	switch t := f.Type.(type) {
	case *ast.SelectorExpr:
		return t.Sel.Name
	default:
		return baseTypeName(t)
	}
}
