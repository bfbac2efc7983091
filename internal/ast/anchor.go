// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"go/ast"
	"go/token"
)

// Anchor moves every valid position inside n to pos. Snippets parsed into
// a throwaway file carry line numbers unrelated to the file they are
// grafted into; anchoring them keeps the printer from inventing blank
// lines. Positions that are invalid stay invalid, since several node
// types use NoPos to encode syntax (an absent ellipsis, an ungrouped
// declaration).
func Anchor(n ast.Node, pos token.Pos) {
	set := func(p *token.Pos) {
		if p.IsValid() {
			*p = pos
		}
	}
	ast.Inspect(n, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.Ident:
			set(&x.NamePos)
		case *ast.BasicLit:
			set(&x.ValuePos)
		case *ast.CompositeLit:
			set(&x.Lbrace)
			set(&x.Rbrace)
		case *ast.ParenExpr:
			set(&x.Lparen)
			set(&x.Rparen)
		case *ast.IndexExpr:
			set(&x.Lbrack)
			set(&x.Rbrack)
		case *ast.IndexListExpr:
			set(&x.Lbrack)
			set(&x.Rbrack)
		case *ast.SliceExpr:
			set(&x.Lbrack)
			set(&x.Rbrack)
		case *ast.TypeAssertExpr:
			set(&x.Lparen)
			set(&x.Rparen)
		case *ast.CallExpr:
			set(&x.Lparen)
			set(&x.Ellipsis)
			set(&x.Rparen)
		case *ast.StarExpr:
			set(&x.Star)
		case *ast.UnaryExpr:
			set(&x.OpPos)
		case *ast.BinaryExpr:
			set(&x.OpPos)
		case *ast.KeyValueExpr:
			set(&x.Colon)
		case *ast.Ellipsis:
			set(&x.Ellipsis)
		case *ast.ArrayType:
			set(&x.Lbrack)
		case *ast.StructType:
			set(&x.Struct)
		case *ast.FuncType:
			set(&x.Func)
		case *ast.InterfaceType:
			set(&x.Interface)
		case *ast.MapType:
			set(&x.Map)
		case *ast.ChanType:
			set(&x.Begin)
			set(&x.Arrow)
		case *ast.FieldList:
			set(&x.Opening)
			set(&x.Closing)
		case *ast.BlockStmt:
			set(&x.Lbrace)
			set(&x.Rbrace)
		case *ast.AssignStmt:
			set(&x.TokPos)
		case *ast.ReturnStmt:
			set(&x.Return)
		case *ast.IfStmt:
			set(&x.If)
		case *ast.ForStmt:
			set(&x.For)
		case *ast.RangeStmt:
			set(&x.For)
			set(&x.TokPos)
			set(&x.Range)
		case *ast.IncDecStmt:
			set(&x.TokPos)
		case *ast.BranchStmt:
			set(&x.TokPos)
		case *ast.DeferStmt:
			set(&x.Defer)
		case *ast.GoStmt:
			set(&x.Go)
		case *ast.SwitchStmt:
			set(&x.Switch)
		case *ast.TypeSwitchStmt:
			set(&x.Switch)
		case *ast.CaseClause:
			set(&x.Case)
			set(&x.Colon)
		case *ast.SelectStmt:
			set(&x.Select)
		case *ast.CommClause:
			set(&x.Case)
			set(&x.Colon)
		case *ast.SendStmt:
			set(&x.Arrow)
		case *ast.LabeledStmt:
			set(&x.Colon)
		case *ast.EmptyStmt:
			set(&x.Semicolon)
		case *ast.GenDecl:
			set(&x.TokPos)
			set(&x.Lparen)
			set(&x.Rparen)
		case *ast.BadExpr:
			set(&x.From)
			set(&x.To)
		case *ast.BadStmt:
			set(&x.From)
			set(&x.To)
		}
		return true
	})
}
