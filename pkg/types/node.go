// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types defines shared types used across go-porter packages.
package types

import (
	"fmt"
	"strings"
)

// NodeKind identifies the category of a syntax construct an action can target.
type NodeKind int

const (
	ClassDecl       NodeKind = iota // Struct or named non-interface type declaration
	InterfaceDecl                   // Interface type declaration
	MethodDecl                      // Function or method declaration
	Attribute                       // Single key:"value" entry of a struct tag
	AttributeList                   // Whole struct field tag
	Import                          // Import spec
	Namespace                       // Package clause
	Invocation                      // Call expression
	MemberAccess                    // Selector expression outside call position
	ElementAccess                   // Index expression
	ObjectCreation                  // Composite literal with an explicit type
	Identifier                      // Bare identifier
	CompilationUnit                 // Whole source file
	Expression                      // Any expression, keyed by its rendering
)

var nodeKindNames = [...]string{
	ClassDecl:       "ClassDecl",
	InterfaceDecl:   "InterfaceDecl",
	MethodDecl:      "MethodDecl",
	Attribute:       "Attribute",
	AttributeList:   "AttributeList",
	Import:          "Import",
	Namespace:       "Namespace",
	Invocation:      "Invocation",
	MemberAccess:    "MemberAccess",
	ElementAccess:   "ElementAccess",
	ObjectCreation:  "ObjectCreation",
	Identifier:      "Identifier",
	CompilationUnit: "CompilationUnit",
	Expression:      "Expression",
}

// String returns the human-readable name of the node kind.
func (k NodeKind) String() string {
	if k >= 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "Unknown"
}

// ParseNodeKind maps a kind name (case-insensitive) back to its NodeKind.
func ParseNodeKind(s string) (NodeKind, error) {
	for i, name := range nodeKindNames {
		if strings.EqualFold(name, s) {
			return NodeKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// MarshalText renders the kind by name so ledgers stay readable.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *NodeKind) UnmarshalText(b []byte) error {
	parsed, err := ParseNodeKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Span locates a construct in its source file.
type Span struct {
	Start     int // Byte offset of the first byte
	End       int // Byte offset one past the last byte
	StartLine int // 1-based
	EndLine   int // 1-based
}

func (s Span) String() string {
	if s.StartLine == s.EndLine {
		return fmt.Sprintf("%d", s.StartLine)
	}
	return fmt.Sprintf("%d-%d", s.StartLine, s.EndLine)
}

// NodeRef identifies a syntax construct by kind and stable logical key.
type NodeRef struct {
	Kind NodeKind
	Key  string // Qualified name, import path, tag key, etc.
	Span Span
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%s %s @%s", r.Kind, r.Key, r.Span)
}
