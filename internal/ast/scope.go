// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"go/ast"
	"go/token"
)

// Shadowed reports whether name, written at pos, would refer to something
// declared in file instead of to an imported package: a package-level
// declaration, or a local one whose scope covers pos. Locals declared in
// the same statement as pos count as shadowing.
func Shadowed(file *ast.File, name string, pos token.Pos) bool {
	if name == "" || name == "_" {
		return false
	}
	for _, decl := range file.Decls {
		if declaresAtTop(decl, name) {
			return true
		}
		if decl.Pos() <= pos && pos < decl.End() && declaredLocally(decl, name, pos) {
			return true
		}
	}
	return false
}

func declaresAtTop(decl ast.Decl, name string) bool {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Recv == nil && d.Name.Name == name
	case *ast.GenDecl:
		if d.Tok == token.IMPORT {
			return false
		}
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.ValueSpec:
				for _, id := range s.Names {
					if id.Name == name {
						return true
					}
				}
			case *ast.TypeSpec:
				if s.Name.Name == name {
					return true
				}
			}
		}
	}
	return false
}

// declaredLocally walks root keeping the chain of enclosing nodes, so
// each declaring identifier can be checked against its innermost scope.
func declaredLocally(root ast.Node, name string, pos token.Pos) bool {
	var stack []ast.Node
	found := false
	ast.Inspect(root, func(n ast.Node) bool {
		if found {
			return false
		}
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		stack = append(stack, n)
		for _, id := range declaredBy(n, stack) {
			if id.Name == name && id.Pos() < pos && scopeCovers(stack, pos) {
				found = true
			}
		}
		return true
	})
	return found
}

// declaredBy lists the identifiers n introduces into a local scope.
// stack ends with n.
func declaredBy(n ast.Node, stack []ast.Node) []*ast.Ident {
	var ids []*ast.Ident
	switch x := n.(type) {
	case *ast.FuncDecl:
		ids = fieldNames(ids, x.Recv)
	case *ast.FuncType:
		if len(stack) < 2 {
			return nil
		}
		switch stack[len(stack)-2].(type) {
		case *ast.FuncDecl, *ast.FuncLit:
			ids = fieldNames(ids, x.TypeParams)
			ids = fieldNames(ids, x.Params)
			ids = fieldNames(ids, x.Results)
		}
	case *ast.AssignStmt:
		if x.Tok == token.DEFINE {
			ids = identsOf(ids, x.Lhs...)
		}
	case *ast.RangeStmt:
		if x.Tok == token.DEFINE {
			ids = identsOf(ids, x.Key, x.Value)
		}
	case *ast.ValueSpec:
		ids = append(ids, x.Names...)
	case *ast.TypeSpec:
		ids = append(ids, x.Name)
	}
	return ids
}

func fieldNames(ids []*ast.Ident, fl *ast.FieldList) []*ast.Ident {
	if fl == nil {
		return ids
	}
	for _, f := range fl.List {
		ids = append(ids, f.Names...)
	}
	return ids
}

func identsOf(ids []*ast.Ident, exprs ...ast.Expr) []*ast.Ident {
	for _, x := range exprs {
		if id, ok := x.(*ast.Ident); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// scopeCovers finds the innermost scope-opening node on the stack and
// reports whether pos lies inside it.
func scopeCovers(stack []ast.Node, pos token.Pos) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		switch s := stack[i].(type) {
		case *ast.FuncDecl, *ast.FuncLit, *ast.BlockStmt, *ast.IfStmt, *ast.ForStmt,
			*ast.RangeStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.CaseClause, *ast.CommClause:
			return s.Pos() <= pos && pos < s.End()
		}
	}
	return false
}
