// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"go/ast"
	"go/token"
	"slices"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// Facts are the side-table properties rule predicates test besides a
// node's kind and key.
type Facts struct {
	Embeds   []string // Embedded types of a struct or interface declaration
	Methods  []string // Method names of an interface declaration
	Args     int      // Argument count of an invocation
	TagValue string   // Value of an Attribute entry
}

// Entry is one indexed node reference with its facts.
type Entry struct {
	Ref   types.NodeRef
	Facts Facts
}

// FileIndex holds every node reference produced by one file.
type FileIndex struct {
	Path    string // Slash-separated path relative to the project root
	PkgPath string
	Package string   // Declared package name
	Imports []string // Import paths in source order
	Entries []Entry
}

// Refs returns the node references of the index in traversal order.
func (fi *FileIndex) Refs() []types.NodeRef {
	refs := make([]types.NodeRef, len(fi.Entries))
	for i, e := range fi.Entries {
		refs[i] = e.Ref
	}
	return refs
}

// IndexFile walks file and records a reference for every targetable node.
func IndexFile(fset *token.FileSet, file *ast.File, relPath, pkgPath string) *FileIndex {
	r := NewResolver(file, pkgPath, relPath)
	fi := &FileIndex{
		Path:    relPath,
		PkgPath: pkgPath,
		Package: file.Name.Name,
	}
	for _, spec := range file.Imports {
		if p := ImportPathOf(spec); p != "" {
			fi.Imports = append(fi.Imports, p)
		}
	}

	Walk(file, func(c *astutil.Cursor, site Site) bool {
		n := c.Node()
		span := SpanOf(fset, n)
		for _, kind := range Kinds(n, site) {
			if kind == types.Attribute {
				for _, tag := range ParseTag(n.(*ast.BasicLit).Value) {
					fi.Entries = append(fi.Entries, Entry{
						Ref:   types.NodeRef{Kind: kind, Key: tag.Key, Span: span},
						Facts: Facts{TagValue: tag.Value},
					})
				}
				continue
			}
			for _, key := range r.Keys(kind, n, site) {
				fi.Entries = append(fi.Entries, Entry{
					Ref:   types.NodeRef{Kind: kind, Key: key, Span: span},
					Facts: r.facts(kind, n),
				})
			}
		}
		return true
	})
	return fi
}

func (r *Resolver) facts(kind types.NodeKind, n ast.Node) Facts {
	var f Facts
	switch kind {
	case types.ClassDecl:
		if st, ok := n.(*ast.TypeSpec).Type.(*ast.StructType); ok && st.Fields != nil {
			for _, field := range st.Fields.List {
				if len(field.Names) == 0 {
					f.Embeds = append(f.Embeds, r.TypeKey(field.Type))
				}
			}
		}
	case types.InterfaceDecl:
		it := n.(*ast.TypeSpec).Type.(*ast.InterfaceType)
		if it.Methods == nil {
			break
		}
		for _, m := range it.Methods.List {
			if len(m.Names) == 0 {
				f.Embeds = append(f.Embeds, r.TypeKey(m.Type))
				continue
			}
			for _, name := range m.Names {
				f.Methods = append(f.Methods, name.Name)
			}
		}
	case types.Invocation:
		f.Args = len(n.(*ast.CallExpr).Args)
	}
	return f
}

// Table indexes the entries of many files for lookup by kind and key.
type Table struct {
	files   map[string]*FileIndex
	entries []tableEntry
	byKey   map[kindKey][]int
	byKind  map[types.NodeKind][]int
	byFile  map[string][]int
}

type kindKey struct {
	kind types.NodeKind
	key  string
}

type tableEntry struct {
	file string
	Entry
}

// Located is an entry together with the file it was found in.
type Located struct {
	File string
	Entry
}

// BuildTable indexes every file of a scan.
func BuildTable(scan *ScanResult, pkgPathOf func(relPath string) string) *Table {
	t := NewTable()
	for _, rel := range scan.Paths() {
		file, ok := scan.Files[rel]
		if !ok {
			continue
		}
		t.Add(IndexFile(scan.FileSet, file, rel, pkgPathOf(rel)))
	}
	return t
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		files:  make(map[string]*FileIndex),
		byKey:  make(map[kindKey][]int),
		byKind: make(map[types.NodeKind][]int),
		byFile: make(map[string][]int),
	}
}

// Add indexes the entries of one file.
func (t *Table) Add(fi *FileIndex) {
	t.files[fi.Path] = fi
	for _, e := range fi.Entries {
		idx := len(t.entries)
		t.entries = append(t.entries, tableEntry{file: fi.Path, Entry: e})
		k := kindKey{e.Ref.Kind, e.Ref.Key}
		t.byKey[k] = append(t.byKey[k], idx)
		t.byKind[e.Ref.Kind] = append(t.byKind[e.Ref.Kind], idx)
		t.byFile[fi.Path] = append(t.byFile[fi.Path], idx)
	}
}

// File returns the index of one file.
func (t *Table) File(path string) (*FileIndex, bool) {
	fi, ok := t.files[path]
	return fi, ok
}

// Files returns the indexed file paths in lexical order.
func (t *Table) Files() []string {
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// ByKey returns every entry with the given kind and key.
func (t *Table) ByKey(kind types.NodeKind, key string) []Located {
	return t.lookup(t.byKey[kindKey{kind, key}])
}

// ByKind returns every entry of the given kind.
func (t *Table) ByKind(kind types.NodeKind) []Located {
	return t.lookup(t.byKind[kind])
}

// ByFile returns every entry of one file.
func (t *Table) ByFile(path string) []Located {
	return t.lookup(t.byFile[path])
}

// CountByKind returns the number of entries per kind.
func (t *Table) CountByKind() map[types.NodeKind]int {
	out := make(map[types.NodeKind]int, len(t.byKind))
	for k, idx := range t.byKind {
		out[k] = len(idx)
	}
	return out
}

// Len returns the total number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) lookup(indices []int) []Located {
	if len(indices) == 0 {
		return nil
	}
	out := make([]Located, len(indices))
	for i, idx := range indices {
		out[i] = Located{File: t.entries[idx].file, Entry: t.entries[idx].Entry}
	}
	return out
}
