// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package action defines rewrite actions: a transformation bound to the
// logical key of a syntax construct, compared structurally so equal
// actions proposed by different rules collapse into one.
package action

import (
	"errors"
	"fmt"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// Sentinel errors.
var (
	// ErrMissingTransform is returned when an action names no op or an op
	// the registry does not know.
	ErrMissingTransform = errors.New("action has no transformation")

	// ErrNoHandler is returned at apply time when the registry has no
	// handler for an action that was accepted at construction time.
	ErrNoHandler = errors.New("no handler registered for action")
)

// Op names a transformation. Ops are namespaced by the node kind they
// apply to, so an op implies its kind.
type Op string

// Action is one transformation bound to one construct.
type Action struct {
	Name        string         `json:"name" yaml:"name"`
	Kind        types.NodeKind `json:"kind" yaml:"kind"`
	Key         string         `json:"key" yaml:"key"`
	Value       string         `json:"value,omitempty" yaml:"value,omitempty"`
	Op          Op             `json:"op" yaml:"op"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	RuleName    string         `json:"rule,omitempty" yaml:"rule,omitempty"`
	Span        types.Span     `json:"-" yaml:"-"`
}

// Identity is the structural identity of an action.
type Identity struct {
	Key   string
	Value string
	Op    Op
}

// New builds an action for op, resolving its kind through the default
// registry. The name defaults to the op.
func New(rule string, op Op, key, value string) (Action, error) {
	return Default.New(rule, op, key, value)
}

// Identity returns the fields equality is defined on.
func (a Action) Identity() Identity {
	return Identity{Key: a.Key, Value: a.Value, Op: a.Op}
}

// Equal reports whether two actions perform the same transformation on the
// same key. Names, descriptions, rules and spans do not take part.
func (a Action) Equal(other Action) bool {
	return a.Identity() == other.Identity()
}

// Clone returns an independently owned copy of a.
func (a Action) Clone() Action {
	return a
}

// Retarget returns a clone of a bound to another site of the same key.
func (a Action) Retarget(span types.Span) Action {
	c := a.Clone()
	c.Span = span
	return c
}

func (a Action) String() string {
	if a.Value == "" {
		return fmt.Sprintf("%s %s", a.Op, a.Key)
	}
	return fmt.Sprintf("%s %s -> %s", a.Op, a.Key, a.Value)
}
