// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"slices"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// ErrFunctionNotFound is returned when a function name does not exist in the AST.
var ErrFunctionNotFound = errors.New("function not found")

// ReplaceBody replaces the statements of fd with the parsed code. Comments
// that were inside the old body are dropped from the file.
func ReplaceBody(fset *token.FileSet, file *ast.File, fd *ast.FuncDecl, code string) error {
	stmts, err := ParseStatements(fset, code)
	if err != nil {
		return fmt.Errorf("parsing replacement code: %w", err)
	}
	if fd.Body == nil {
		fd.Body = &ast.BlockStmt{Lbrace: fd.Type.End(), Rbrace: fd.Type.End()}
	} else {
		dropComments(file, fd.Body.Lbrace, fd.Body.Rbrace)
	}
	for _, stmt := range stmts {
		Anchor(stmt, fd.Body.Lbrace)
	}
	fd.Body.List = stmts
	fd.Body.Rbrace = fd.Body.Lbrace
	return nil
}

// AddFunction parses a complete function source string and appends it to
// the file's declaration list. A function with the same name already in
// the file is left alone and reported as not added.
func AddFunction(fset *token.FileSet, file *ast.File, funcSource string) (bool, error) {
	// Wrap in a package declaration so parser.ParseFile works.
	wrapped := "package _\n\n" + funcSource
	parsed, err := parser.ParseFile(fset, "", wrapped, parser.ParseComments)
	if err != nil {
		return false, fmt.Errorf("parsing function source: %w", err)
	}

	added := false
	for _, decl := range parsed.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || FindFunc(file, fd.Name.Name) != nil {
			continue
		}
		file.Decls = append(file.Decls, fd)
		if fd.Doc != nil {
			file.Comments = append(file.Comments, fd.Doc)
		}
		added = true
	}
	return added, nil
}

// FindFunc locates a top-level function (not a method) by name.
func FindFunc(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Recv == nil && fd.Name.Name == name {
			return fd
		}
	}
	return nil
}

// AddField parses "Name Type `tag`" and appends it to st. Adding a field
// whose name already exists fails.
func AddField(fset *token.FileSet, st *ast.StructType, decl string) error {
	field, err := ParseField(fset, "struct", decl)
	if err != nil {
		return err
	}
	name := FieldName(field)
	if HasField(st.Fields, name) {
		return fmt.Errorf("field %s already declared", name)
	}
	Anchor(field, st.Fields.Closing)
	st.Fields.List = append(st.Fields.List, field)
	return nil
}

// AddMethod parses "Name(params) results" and appends it to an interface.
func AddMethod(fset *token.FileSet, it *ast.InterfaceType, decl string) error {
	field, err := ParseField(fset, "interface", decl)
	if err != nil {
		return err
	}
	name := FieldName(field)
	if HasField(it.Methods, name) {
		return fmt.Errorf("method %s already declared", name)
	}
	Anchor(field, it.Methods.Closing)
	it.Methods.List = append(it.Methods.List, field)
	return nil
}

// RemoveField removes the named field (or method) from a field list. A
// field declaring several names loses only the named one. It reports
// whether anything was removed.
func RemoveField(fl *ast.FieldList, name string) bool {
	if fl == nil {
		return false
	}
	removed := false
	fields := make([]*ast.Field, 0, len(fl.List))
	for _, field := range fl.List {
		if len(field.Names) == 0 {
			if FieldName(field) == name {
				removed = true
				continue
			}
			fields = append(fields, field)
			continue
		}
		names := slices.DeleteFunc(slices.Clone(field.Names), func(id *ast.Ident) bool {
			return id.Name == name
		})
		if len(names) == len(field.Names) {
			fields = append(fields, field)
			continue
		}
		removed = true
		if len(names) > 0 {
			cp := *field
			cp.Names = names
			fields = append(fields, &cp)
		}
	}
	fl.List = fields
	return removed
}

// HasField reports whether a field list declares name.
func HasField(fl *ast.FieldList, name string) bool {
	if fl == nil {
		return false
	}
	for _, field := range fl.List {
		if len(field.Names) == 0 && FieldName(field) == name {
			return true
		}
		for _, id := range field.Names {
			if id.Name == name {
				return true
			}
		}
	}
	return false
}

// AddImport adds an import path to the file. Uses astutil.AddImport which
// handles deduplication.
func AddImport(fset *token.FileSet, file *ast.File, path string) bool {
	return astutil.AddImport(fset, file, path)
}

// RemoveOneImport deletes the first import of path and reports whether
// one was found. Callers loop until it returns false to remove duplicates.
func RemoveOneImport(fset *token.FileSet, file *ast.File, path string) bool {
	for _, spec := range file.Imports {
		if ImportPathOf(spec) != path {
			continue
		}
		name := ""
		if spec.Name != nil {
			name = spec.Name.Name
		}
		gd := importDeclOf(file, spec)
		if !astutil.DeleteNamedImport(fset, file, name, path) {
			return false
		}
		if gd != nil {
			collapseImportGroup(gd)
		}
		return true
	}
	return false
}

func importDeclOf(file *ast.File, spec *ast.ImportSpec) *ast.GenDecl {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		for _, s := range gd.Specs {
			if s == spec {
				return gd
			}
		}
	}
	return nil
}

// collapseImportGroup drops the parentheses of an import group left with
// one spec, unless that spec carries a comment.
func collapseImportGroup(gd *ast.GenDecl) {
	if len(gd.Specs) != 1 || !gd.Lparen.IsValid() {
		return
	}
	spec := gd.Specs[0].(*ast.ImportSpec)
	if spec.Doc != nil || spec.Comment != nil {
		return
	}
	// The printer breaks the line when the spec sits below the keyword.
	if spec.Name != nil {
		spec.Name.NamePos = gd.Lparen
	}
	spec.Path.ValuePos = gd.Lparen
	spec.EndPos = token.NoPos
	gd.Lparen, gd.Rparen = token.NoPos, token.NoPos
}

// HasImport reports whether the file imports path.
func HasImport(file *ast.File, path string) bool {
	for _, spec := range file.Imports {
		if ImportPathOf(spec) == path {
			return true
		}
	}
	return false
}

// UsesImport reports whether the file refers to the imported path.
func UsesImport(file *ast.File, path string) bool {
	return astutil.UsesImport(file, path)
}

// ReferencesPackage reports whether any selector in the file is qualified
// by an unresolved identifier called name, i.e. code that needs a package
// of that name imported.
func ReferencesPackage(file *ast.File, name string) bool {
	found := false
	ast.Inspect(file, func(n ast.Node) bool {
		if found {
			return false
		}
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok && id.Obj == nil && id.Name == name {
			found = true
		}
		return true
	})
	return found
}

// SyncImports rebuilds file.Imports from the import declarations and drops
// import declarations left empty by node deletion.
func SyncImports(file *ast.File) {
	file.Imports = file.Imports[:0]
	decls := file.Decls[:0]
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			decls = append(decls, decl)
			continue
		}
		if len(gd.Specs) == 0 {
			continue
		}
		for _, spec := range gd.Specs {
			file.Imports = append(file.Imports, spec.(*ast.ImportSpec))
		}
		decls = append(decls, decl)
	}
	file.Decls = decls
}

// AddComment inserts a comment at pos, keeping file.Comments sorted. Line
// comments are written as //, inline ones as /* */. Newlines in text are
// folded into spaces.
func AddComment(file *ast.File, pos token.Pos, text string, inline bool) {
	text = strings.Join(strings.Fields(text), " ")
	c := &ast.Comment{Slash: pos, Text: "// " + text}
	if inline {
		c.Text = "/* " + strings.ReplaceAll(text, "*/", "* /") + " */"
	}
	cg := &ast.CommentGroup{List: []*ast.Comment{c}}
	i, _ := slices.BinarySearchFunc(file.Comments, pos, func(g *ast.CommentGroup, p token.Pos) int {
		return int(g.Pos()) - int(p)
	})
	file.Comments = slices.Insert(file.Comments, i, cg)
}

// HasComment reports whether a comment containing text starts in [from, to).
func HasComment(file *ast.File, from, to token.Pos, text string) bool {
	for _, cg := range file.Comments {
		if cg.Pos() >= from && cg.Pos() < to && strings.Contains(cg.Text(), text) {
			return true
		}
	}
	return false
}

// ParseStatements parses a string of Go statements by wrapping them in a
// function body.
func ParseStatements(fset *token.FileSet, code string) ([]ast.Stmt, error) {
	wrapped := "package _\nfunc _() {\n" + code + "\n}"
	f, err := parser.ParseFile(fset, "", wrapped, 0)
	if err != nil {
		return nil, err
	}

	for _, decl := range f.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			return fd.Body.List, nil
		}
	}

	return nil, fmt.Errorf("no statements found in replacement code")
}

// ParseExpr parses a Go expression into fset and anchors it at pos.
func ParseExpr(fset *token.FileSet, src string, pos token.Pos) (ast.Expr, error) {
	expr, err := parser.ParseExprFrom(fset, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing expression %q: %w", src, err)
	}
	Anchor(expr, pos)
	return expr, nil
}

// ParseField parses one field of a struct or interface body, e.g.
// "Name string `json:\"name\"`" or "Close() error".
func ParseField(fset *token.FileSet, container, decl string) (*ast.Field, error) {
	src := "package _\ntype _ " + container + " {\n" + decl + "\n}"
	f, err := parser.ParseFile(fset, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing %s field %q: %w", container, decl, err)
	}
	ts := f.Decls[0].(*ast.GenDecl).Specs[0].(*ast.TypeSpec)
	var fl *ast.FieldList
	switch t := ts.Type.(type) {
	case *ast.StructType:
		fl = t.Fields
	case *ast.InterfaceType:
		fl = t.Methods
	}
	if fl == nil || len(fl.List) != 1 {
		return nil, fmt.Errorf("%s field %q must declare exactly one entry", container, decl)
	}
	return fl.List[0], nil
}

// dropComments removes comment groups lying strictly inside (from, to).
func dropComments(file *ast.File, from, to token.Pos) {
	file.Comments = slices.DeleteFunc(file.Comments, func(cg *ast.CommentGroup) bool {
		return cg.Pos() > from && cg.End() < to
	})
}
