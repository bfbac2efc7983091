// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package action

import (
	"fmt"
	goast "go/ast"
	"go/token"
	"slices"
	"strconv"

	"github.com/petar-djukic/go-porter/internal/ast"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// builtinHandlers is the op table. Every op the tool understands appears
// here exactly once.
func builtinHandlers() []Handler {
	return []Handler{
		// Compilation unit.
		{Op: OpFileAddImport, Kind: types.CompilationUnit, Scope: ScopeFile, NeedsValue: true,
			Summary: "add import", Validate: validAddImport, Apply: applyAddImport},
		{Op: OpFileRemoveImport, Kind: types.CompilationUnit, Scope: ScopeFile, NeedsValue: true,
			Summary: "remove unused import", Validate: validRemoveImport, Apply: applyRemoveImport},
		{Op: OpFileAddComment, Kind: types.CompilationUnit, Scope: ScopeFile, NeedsValue: true,
			Summary: "annotate file", Validate: validFileComment, Apply: applyFileComment},

		// Imports and package clause.
		{Op: OpImportRename, Kind: types.Import, NeedsValue: true,
			Summary: "rewrite import path", Validate: validImportRename, Apply: applyImportRename},
		{Op: OpImportRemove, Kind: types.Import,
			Summary: "remove import", Validate: validImportRemove, Apply: applyDelete},
		{Op: OpPackageRename, Kind: types.Namespace, NeedsValue: true,
			Summary: "rename package", Validate: validIdentValue, Apply: applyIdentRename},

		// Type declarations.
		{Op: OpTypeRename, Kind: types.ClassDecl, NeedsValue: true,
			Summary: "rename type", Validate: validIdentValue, Apply: applyTypeRename},
		{Op: OpTypeAddField, Kind: types.ClassDecl, NeedsValue: true,
			Summary: "add struct field", Validate: validAddField, Apply: applyAddField},
		{Op: OpTypeRemoveField, Kind: types.ClassDecl, NeedsValue: true,
			Summary: "remove struct field", Validate: validRemoveField, Apply: applyRemoveField},
		{Op: OpTypeAddComment, Kind: types.ClassDecl, NeedsValue: true,
			Summary: "annotate type", Validate: validDeclComment, Apply: applyDeclComment},
		{Op: OpInterfaceRename, Kind: types.InterfaceDecl, NeedsValue: true,
			Summary: "rename interface", Validate: validIdentValue, Apply: applyTypeRename},
		{Op: OpInterfaceAddMethod, Kind: types.InterfaceDecl, NeedsValue: true,
			Summary: "add interface method", Validate: validAddMethod, Apply: applyAddMethod},
		{Op: OpInterfaceRemoveMethod, Kind: types.InterfaceDecl, NeedsValue: true,
			Summary: "remove interface method", Validate: validRemoveMethod, Apply: applyRemoveMethod},

		// Functions and methods.
		{Op: OpMethodRename, Kind: types.MethodDecl, NeedsValue: true,
			Summary: "rename function", Validate: validIdentValue, Apply: applyFuncRename},
		{Op: OpMethodReplaceBody, Kind: types.MethodDecl, NeedsValue: true,
			Summary: "replace function body", Validate: validReplaceBody, Apply: applyReplaceBody},
		{Op: OpMethodAddComment, Kind: types.MethodDecl, NeedsValue: true,
			Summary: "annotate function", Validate: validDeclComment, Apply: applyDeclComment},

		// Struct tags.
		{Op: OpAttributesAdd, Kind: types.AttributeList, NeedsValue: true,
			Summary: "add struct tag entry", Validate: validAddTag, Apply: applyAddTag},
		{Op: OpAttributeRename, Kind: types.Attribute, NeedsValue: true,
			Summary: "rename struct tag key", Validate: validRenameTag, Apply: applyRenameTag},
		{Op: OpAttributeRemove, Kind: types.Attribute,
			Summary: "remove struct tag entry", Apply: applyRemoveTag},

		// Expressions.
		{Op: OpInvocationReplace, Kind: types.Invocation, NeedsValue: true,
			Summary: "replace callee", Validate: validQualified, Apply: applyInvocationReplace},
		{Op: OpInvocationAddComment, Kind: types.Invocation, NeedsValue: true,
			Summary: "annotate call", Validate: validCallComment, Apply: applyCallComment},
		{Op: OpMemberReplace, Kind: types.MemberAccess, NeedsValue: true,
			Summary: "replace member reference", Validate: validQualified, Apply: applyMemberReplace},
		{Op: OpElementReplaceTarget, Kind: types.ElementAccess, NeedsValue: true,
			Summary: "replace indexed operand", Validate: validQualified, Apply: applyElementReplace},
		{Op: OpObjectReplaceType, Kind: types.ObjectCreation, NeedsValue: true,
			Summary: "replace literal type", Validate: validQualified, Apply: applyObjectReplace},
		{Op: OpIdentifierRename, Kind: types.Identifier, NeedsValue: true,
			Summary: "rename identifier", Validate: validIdentValue, Apply: applyIdentRename},
		{Op: OpExpressionReplace, Kind: types.Expression, NeedsValue: true,
			Summary: "replace expression", Validate: validExpression, Apply: applyExpression},

		// Project files.
		{Op: OpModuleGoVersion, Kind: types.CompilationUnit, Scope: ScopeProject, NeedsValue: true,
			Summary: "set go directive"},
		{Op: OpModuleToolchain, Kind: types.CompilationUnit, Scope: ScopeProject, NeedsValue: true,
			Summary: "set toolchain directive"},
		{Op: OpModuleDropReplace, Kind: types.CompilationUnit, Scope: ScopeProject, NeedsValue: true,
			Summary: "drop replace directive"},
		{Op: OpModuleDropRequire, Kind: types.CompilationUnit, Scope: ScopeProject, NeedsValue: true,
			Summary: "drop requirement"},
		{Op: OpFileReplaceText, Kind: types.CompilationUnit, Scope: ScopeProject, NeedsValue: true,
			Summary: "replace text in project file"},
		{Op: OpProjectCreateFile, Kind: types.CompilationUnit, Scope: ScopeProject,
			Summary: "create project file"},
	}
}

func applyDelete(*Context, Action, goast.Node) (goast.Node, error) {
	return nil, nil
}

// --- compilation unit ---

func validAddImport(ctx *Context, a Action, _ goast.Node) bool {
	return !ast.HasImport(ctx.File, a.Value) &&
		ast.ReferencesPackage(ctx.File, ast.DefaultImportName(a.Value))
}

func applyAddImport(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	ast.AddImport(ctx.Fset, ctx.File, a.Value)
	return n, nil
}

func validRemoveImport(ctx *Context, a Action, _ goast.Node) bool {
	return ast.HasImport(ctx.File, a.Value) && !ast.UsesImport(ctx.File, a.Value)
}

// applyRemoveImport removes duplicates one at a time, re-scanning the
// import list after each removal.
func applyRemoveImport(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	for limit := len(ctx.File.Imports); limit >= 0; limit-- {
		if !ast.RemoveOneImport(ctx.Fset, ctx.File, a.Value) {
			break
		}
	}
	return n, nil
}

func validFileComment(ctx *Context, a Action, _ goast.Node) bool {
	return !ast.HasComment(ctx.File, ctx.File.Pos(), ctx.File.FileEnd, a.Value)
}

// applyFileComment places the note above the first declaration after the
// imports, or at the end of a file that has none.
func applyFileComment(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	pos := ctx.File.FileEnd
	for _, decl := range ctx.File.Decls {
		if gd, ok := decl.(*goast.GenDecl); ok && gd.Tok == token.IMPORT {
			continue
		}
		pos = declStart(decl) - 1
		break
	}
	ast.AddComment(ctx.File, pos, a.Value, false)
	return n, nil
}

// --- imports and package clause ---

func validImportRename(ctx *Context, a Action, _ goast.Node) bool {
	return !ast.HasImport(ctx.File, a.Value)
}

// applyImportRename rewrites the path in place: file.Imports holds the
// same spec pointers. When the default package name changes, the old name
// is kept as an explicit alias so references still resolve.
func applyImportRename(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	spec := n.(*goast.ImportSpec)
	oldName := ast.ImportName(spec)
	spec.Path.Value = strconv.Quote(a.Value)
	if spec.Name == nil && ast.DefaultImportName(a.Value) != oldName {
		spec.Name = &goast.Ident{NamePos: spec.Path.Pos(), Name: oldName}
	}
	return spec, nil
}

func validImportRemove(ctx *Context, a Action, _ goast.Node) bool {
	return !ast.UsesImport(ctx.File, a.Key)
}

func validIdentValue(_ *Context, a Action, _ goast.Node) bool {
	return token.IsIdentifier(a.Value)
}

func applyIdentRename(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	id := n.(*goast.Ident)
	return &goast.Ident{NamePos: id.NamePos, Name: a.Value}, nil
}

// --- type declarations ---

func applyTypeRename(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	ts := *n.(*goast.TypeSpec)
	ts.Name = &goast.Ident{NamePos: ts.Name.NamePos, Name: a.Value}
	return &ts, nil
}

func structOf(n goast.Node) *goast.StructType {
	ts, ok := n.(*goast.TypeSpec)
	if !ok {
		return nil
	}
	st, _ := ts.Type.(*goast.StructType)
	return st
}

func interfaceOf(n goast.Node) *goast.InterfaceType {
	ts, ok := n.(*goast.TypeSpec)
	if !ok {
		return nil
	}
	it, _ := ts.Type.(*goast.InterfaceType)
	return it
}

func validAddField(_ *Context, a Action, n goast.Node) bool {
	st := structOf(n)
	if st == nil {
		return false
	}
	field, err := ast.ParseField(token.NewFileSet(), "struct", a.Value)
	return err == nil && !ast.HasField(st.Fields, ast.FieldName(field))
}

func applyAddField(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	if err := ast.AddField(ctx.Fset, structOf(n), a.Value); err != nil {
		return nil, err
	}
	return n, nil
}

func validRemoveField(_ *Context, a Action, n goast.Node) bool {
	st := structOf(n)
	return st != nil && ast.HasField(st.Fields, a.Value)
}

func applyRemoveField(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	ast.RemoveField(structOf(n).Fields, a.Value)
	return n, nil
}

func validAddMethod(_ *Context, a Action, n goast.Node) bool {
	it := interfaceOf(n)
	if it == nil {
		return false
	}
	field, err := ast.ParseField(token.NewFileSet(), "interface", a.Value)
	return err == nil && !ast.HasField(it.Methods, ast.FieldName(field))
}

func applyAddMethod(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	if err := ast.AddMethod(ctx.Fset, interfaceOf(n), a.Value); err != nil {
		return nil, err
	}
	return n, nil
}

func validRemoveMethod(_ *Context, a Action, n goast.Node) bool {
	it := interfaceOf(n)
	return it != nil && ast.HasField(it.Methods, a.Value)
}

func applyRemoveMethod(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	ast.RemoveField(interfaceOf(n).Methods, a.Value)
	return n, nil
}

// --- functions ---

func applyFuncRename(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	fd := *n.(*goast.FuncDecl)
	fd.Name = &goast.Ident{NamePos: fd.Name.NamePos, Name: a.Value}
	return &fd, nil
}

func validReplaceBody(_ *Context, a Action, n goast.Node) bool {
	if _, ok := n.(*goast.FuncDecl); !ok {
		return false
	}
	_, err := ast.ParseStatements(token.NewFileSet(), a.Value)
	return err == nil
}

func applyReplaceBody(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	if err := ast.ReplaceBody(ctx.Fset, ctx.File, n.(*goast.FuncDecl), a.Value); err != nil {
		return nil, err
	}
	return n, nil
}

// --- comments on declarations ---

// declAnchor returns the doc comment of a declaration and the position a
// new comment line goes at: just before the declaration keyword, after
// any existing doc comment. Ungrouped type specs are annotated on their
// enclosing declaration.
func declAnchor(ctx *Context, n goast.Node) (*goast.CommentGroup, token.Pos) {
	switch d := n.(type) {
	case *goast.FuncDecl:
		return d.Doc, d.Pos() - 1
	case *goast.TypeSpec:
		if ctx.Cursor != nil {
			if gd, ok := ctx.Cursor.Parent().(*goast.GenDecl); ok && !gd.Lparen.IsValid() {
				return gd.Doc, gd.Pos() - 1
			}
		}
		return d.Doc, d.Pos() - 1
	}
	return nil, n.Pos() - 1
}

func validDeclComment(ctx *Context, a Action, n goast.Node) bool {
	doc, pos := declAnchor(ctx, n)
	from := pos
	if doc != nil {
		from = doc.Pos()
	}
	return !ast.HasComment(ctx.File, from, pos+1, a.Value)
}

func applyDeclComment(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	_, pos := declAnchor(ctx, n)
	ast.AddComment(ctx.File, pos, a.Value, false)
	return n, nil
}

func declStart(decl goast.Decl) token.Pos {
	switch d := decl.(type) {
	case *goast.FuncDecl:
		if d.Doc != nil {
			return d.Doc.Pos()
		}
	case *goast.GenDecl:
		if d.Doc != nil {
			return d.Doc.Pos()
		}
	}
	return decl.Pos()
}

// --- struct tags ---

func tagEntries(n goast.Node) []ast.TagEntry {
	return ast.ParseTag(n.(*goast.BasicLit).Value)
}

func hasTagKey(entries []ast.TagEntry, key string) bool {
	return slices.ContainsFunc(entries, func(e ast.TagEntry) bool { return e.Key == key })
}

func renderTag(n goast.Node, entries []ast.TagEntry) goast.Node {
	lit := n.(*goast.BasicLit)
	return &goast.BasicLit{ValuePos: lit.ValuePos, Kind: token.STRING, Value: ast.RenderTag(entries)}
}

func validAddTag(_ *Context, a Action, n goast.Node) bool {
	entry, err := ast.ParseTagEntry(a.Value)
	return err == nil && !hasTagKey(tagEntries(n), entry.Key)
}

func applyAddTag(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	entry, err := ast.ParseTagEntry(a.Value)
	if err != nil {
		return nil, err
	}
	return renderTag(n, append(tagEntries(n), entry)), nil
}

func validRenameTag(_ *Context, a Action, n goast.Node) bool {
	if _, err := ast.ParseTagEntry(a.Value + `:""`); err != nil {
		return false
	}
	return !hasTagKey(tagEntries(n), a.Value)
}

func applyRenameTag(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	entries := tagEntries(n)
	for i := range entries {
		if entries[i].Key == a.Key {
			entries[i].Key = a.Value
		}
	}
	return renderTag(n, entries), nil
}

func applyRemoveTag(_ *Context, a Action, n goast.Node) (goast.Node, error) {
	entries := slices.DeleteFunc(tagEntries(n), func(e ast.TagEntry) bool { return e.Key == a.Key })
	if len(entries) == 0 {
		return nil, nil
	}
	return renderTag(n, entries), nil
}

// --- expressions ---

// retarget swaps the named part of a callee or type operand for value,
// keeping generic instantiation and parentheses intact.
func retarget(ctx *Context, x goast.Expr, value string) goast.Expr {
	switch e := x.(type) {
	case *goast.IndexExpr:
		cp := *e
		cp.X = retarget(ctx, e.X, value)
		return &cp
	case *goast.IndexListExpr:
		cp := *e
		cp.X = retarget(ctx, e.X, value)
		return &cp
	case *goast.ParenExpr:
		cp := *e
		cp.X = retarget(ctx, e.X, value)
		return &cp
	}
	ctx.releaseQualifier(x)
	return ctx.QualifiedExpr(value, x.Pos())
}

// validQualified rejects a replacement whose package qualifier would be
// captured by a local name at the match site.
func validQualified(ctx *Context, a Action, n goast.Node) bool {
	return ctx.QualifierFree(a.Value, n.Pos())
}

func applyInvocationReplace(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	call := *n.(*goast.CallExpr)
	call.Fun = retarget(ctx, call.Fun, a.Value)
	return &call, nil
}

func validCallComment(ctx *Context, a Action, n goast.Node) bool {
	return !ast.HasComment(ctx.File, n.Pos()-1, n.Pos()+1, a.Value)
}

func applyCallComment(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	ast.AddComment(ctx.File, n.Pos()-1, a.Value, true)
	return n, nil
}

func applyMemberReplace(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	return retarget(ctx, n.(*goast.SelectorExpr), a.Value), nil
}

func applyElementReplace(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	ix := *n.(*goast.IndexExpr)
	ix.X = retarget(ctx, ix.X, a.Value)
	return &ix, nil
}

func applyObjectReplace(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	lit := *n.(*goast.CompositeLit)
	if lit.Type == nil {
		return nil, fmt.Errorf("composite literal has no type")
	}
	lit.Type = retarget(ctx, lit.Type, a.Value)
	return &lit, nil
}

func validExpression(_ *Context, a Action, _ goast.Node) bool {
	_, err := ast.ParseExpr(token.NewFileSet(), a.Value, token.NoPos)
	return err == nil
}

func applyExpression(ctx *Context, a Action, n goast.Node) (goast.Node, error) {
	return ast.ParseExpr(ctx.Fset, a.Value, n.Pos())
}
