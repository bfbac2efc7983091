// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// Visitor is called once per node after its children (innermost first).
// Returning false stops the traversal.
type Visitor func(c *astutil.Cursor, site Site) bool

// Walk traverses root in post-order using astutil.Apply and reports each
// node together with its Site. The visitor may replace or delete the
// current node through the cursor. Walk returns the possibly replaced root.
func Walk(root ast.Node, visit Visitor) ast.Node {
	var typeNames, fieldNames []string

	pre := func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.TypeSpec:
			typeNames = append(typeNames, n.Name.Name)
		case *ast.Field:
			fieldNames = append(fieldNames, FieldName(n))
		}
		return true
	}

	post := func(c *astutil.Cursor) bool {
		n := c.Node()
		site := Site{TypeName: last(typeNames), FieldName: last(fieldNames)}
		switch c.Parent().(type) {
		case *ast.Field:
			site.Tag = c.Name() == "Tag"
		case *ast.CallExpr:
			site.CallFun = c.Name() == "Fun"
		case *ast.SelectorExpr:
			site.Selector = c.Name() == "Sel"
		case *ast.File:
			site.PackageName = c.Name() == "Name"
		}

		ok := visit(c, site)

		switch n.(type) {
		case *ast.TypeSpec:
			typeNames = typeNames[:len(typeNames)-1]
		case *ast.Field:
			fieldNames = fieldNames[:len(fieldNames)-1]
		}
		return ok
	}

	return astutil.Apply(root, pre, post)
}

// SpanOf locates n in fset. Nodes synthesized without positions get a
// zero span.
func SpanOf(fset *token.FileSet, n ast.Node) types.Span {
	if n == nil || !n.Pos().IsValid() {
		return types.Span{}
	}
	start := fset.Position(n.Pos())
	end := fset.Position(n.End())
	return types.Span{
		Start:     start.Offset,
		End:       end.Offset,
		StartLine: start.Line,
		EndLine:   end.Line,
	}
}

func last(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
