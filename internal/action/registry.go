// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package action

import (
	"fmt"
	goast "go/ast"
	"slices"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// Node and compilation-unit ops.
const (
	OpFileAddImport         Op = "file.add-import"
	OpFileRemoveImport      Op = "file.remove-import"
	OpFileAddComment        Op = "file.add-comment"
	OpImportRename          Op = "import.rename"
	OpImportRemove          Op = "import.remove"
	OpPackageRename         Op = "package.rename"
	OpTypeRename            Op = "type.rename"
	OpTypeAddField          Op = "type.add-field"
	OpTypeRemoveField       Op = "type.remove-field"
	OpTypeAddComment        Op = "type.add-comment"
	OpInterfaceRename       Op = "interface.rename"
	OpInterfaceAddMethod    Op = "interface.add-method"
	OpInterfaceRemoveMethod Op = "interface.remove-method"
	OpMethodRename          Op = "method.rename"
	OpMethodReplaceBody     Op = "method.replace-body"
	OpMethodAddComment      Op = "method.add-comment"
	OpAttributesAdd         Op = "attributes.add"
	OpAttributeRename       Op = "attribute.rename"
	OpAttributeRemove       Op = "attribute.remove"
	OpInvocationReplace     Op = "invocation.replace"
	OpInvocationAddComment  Op = "invocation.add-comment"
	OpMemberReplace         Op = "member.replace"
	OpElementReplaceTarget  Op = "element.replace-target"
	OpObjectReplaceType     Op = "object.replace-type"
	OpIdentifierRename      Op = "identifier.rename"
	OpExpressionReplace     Op = "expression.replace"
)

// Project-level ops. They are keyed by a project file path and applied by
// the project applier, never by the tree applier.
const (
	OpModuleGoVersion   Op = "module.go-version"
	OpModuleToolchain   Op = "module.toolchain"
	OpModuleDropReplace Op = "module.drop-replace"
	OpModuleDropRequire Op = "module.drop-require"
	OpFileReplaceText   Op = "file.replace-text"
	OpProjectCreateFile Op = "project.create-file"
)

// Scope tells which applier owns an op.
type Scope int

const (
	ScopeNode    Scope = iota // Tree applier, at each matching node
	ScopeFile                 // Tree applier, at the root after all children
	ScopeProject              // Project applier
)

func (s Scope) String() string {
	switch s {
	case ScopeNode:
		return "node"
	case ScopeFile:
		return "file"
	case ScopeProject:
		return "project"
	default:
		return "unknown"
	}
}

// ValidateFunc reports whether an action still applies to n. It runs after
// the key check, against the node as it is at that moment.
type ValidateFunc func(ctx *Context, a Action, n goast.Node) bool

// ApplyFunc transforms n. Returning n (possibly mutated) keeps it in
// place, returning another node replaces it, and returning nil deletes it.
type ApplyFunc func(ctx *Context, a Action, n goast.Node) (goast.Node, error)

// Handler is the registered implementation of one op.
type Handler struct {
	Op         Op
	Kind       types.NodeKind
	Scope      Scope
	Summary    string // Default action description
	NeedsValue bool   // Action must carry a value
	Validate   ValidateFunc
	Apply      ApplyFunc
}

// Valid re-checks a against n: the node must still carry the action's key
// and pass the op's own predicate.
func (h Handler) Valid(ctx *Context, a Action, n goast.Node) bool {
	if a.Kind != h.Kind || !ctx.Resolver.HasKey(a.Kind, n, ctx.Site, a.Key) {
		return false
	}
	if h.Validate == nil {
		return true
	}
	return h.Validate(ctx, a, n)
}

// Registry maps ops to handlers.
type Registry struct {
	handlers map[Op]Handler
}

// NewRegistry builds a registry from a handler table. Registering an op
// twice panics, as the table is static.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[Op]Handler, len(handlers))}
	for _, h := range handlers {
		if _, dup := r.handlers[h.Op]; dup {
			panic(fmt.Sprintf("action: op %s registered twice", h.Op))
		}
		r.handlers[h.Op] = h
	}
	return r
}

// Default is the registry holding every built-in op.
var Default = NewRegistry(builtinHandlers()...)

// Lookup returns the handler of op.
func (r *Registry) Lookup(op Op) (Handler, bool) {
	h, ok := r.handlers[op]
	return h, ok
}

// MustLookup returns the handler of op or an error wrapping ErrNoHandler.
func (r *Registry) MustLookup(a Action) (Handler, error) {
	h, ok := r.handlers[a.Op]
	if !ok || (h.Scope != ScopeProject && h.Apply == nil) {
		return Handler{}, fmt.Errorf("%w: %s (rule %q)", ErrNoHandler, a.Op, a.RuleName)
	}
	return h, nil
}

// New builds an action for op. It fails with ErrMissingTransform when op
// is empty or unknown, or when a value-carrying op has no value.
func (r *Registry) New(rule string, op Op, key, value string) (Action, error) {
	if op == "" {
		return Action{}, fmt.Errorf("%w: rule %q names no op", ErrMissingTransform, rule)
	}
	h, ok := r.handlers[op]
	if !ok {
		return Action{}, fmt.Errorf("%w: rule %q names unknown op %q", ErrMissingTransform, rule, op)
	}
	if h.NeedsValue && value == "" {
		return Action{}, fmt.Errorf("%w: rule %q: op %s needs a value", ErrMissingTransform, rule, op)
	}
	return Action{
		Name:        string(op),
		Kind:        h.Kind,
		Key:         key,
		Value:       value,
		Op:          op,
		Description: h.Summary,
		RuleName:    rule,
	}, nil
}

// Scope returns the scope of op, or false for an unknown op.
func (r *Registry) Scope(op Op) (Scope, bool) {
	h, ok := r.handlers[op]
	return h.Scope, ok
}

// Ops returns every registered op in lexical order.
func (r *Registry) Ops() []Op {
	ops := make([]Op, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// OpsFor returns the ops targeting kind in lexical order.
func (r *Registry) OpsFor(kind types.NodeKind) []Op {
	var ops []Op
	for op, h := range r.handlers {
		if h.Kind == kind {
			ops = append(ops, op)
		}
	}
	slices.Sort(ops)
	return ops
}
