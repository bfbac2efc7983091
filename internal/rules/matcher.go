// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rules

import (
	"fmt"
	"log/slog"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/ast"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// ModFileKey is the project file module-level tokens and module.* actions
// are keyed by.
const ModFileKey = "go.mod"

// Matcher turns rule matches into tokens.
type Matcher struct {
	Registry *action.Registry // Defaults to action.Default
	Logger   *slog.Logger     // Defaults to slog.Default()
	Modules  []string         // Module paths required by the project's go.mod
}

func (m *Matcher) registry() *action.Registry {
	if m.Registry == nil {
		return action.Default
	}
	return m.Registry
}

func (m *Matcher) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// MatchFile emits one token per (rule, node) match in a single file.
// Module predicates are not evaluated.
func (m *Matcher) MatchFile(fi *ast.FileIndex, rules []Rule) TokenSet {
	t := ast.NewTable()
	t.Add(fi)
	return m.match(t, rules, false)
}

// MatchProject emits one token per (rule, node) match across every
// indexed file, plus one token per module predicate satisfied by go.mod.
func (m *Matcher) MatchProject(table *ast.Table, rules []Rule) TokenSet {
	return m.match(table, rules, true)
}

func (m *Matcher) match(table *ast.Table, rules []Rule, withModules bool) TokenSet {
	var tokens TokenSet
	for i := range rules {
		rule := &rules[i]
		if err := m.check(rule); err != nil {
			m.logger().Warn("skipping rule", "rule", rule.Name, "error", err)
			continue
		}
		if rule.module {
			if withModules {
				tokens = append(tokens, m.matchModules(rule)...)
			}
			continue
		}
		for _, hit := range m.candidates(table, rule) {
			if !rule.matchFacts(hit.Entry) {
				continue
			}
			tok, err := m.token(rule, hit.File, hit.Ref)
			if err != nil {
				m.logger().Warn("skipping rule match", "rule", rule.Name, "file", hit.File, "error", err)
				continue
			}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// candidates narrows the table to entries whose kind and key can match.
func (m *Matcher) candidates(table *ast.Table, rule *Rule) []ast.Located {
	if rule.Match.Embeds != "" {
		return append(table.ByKind(types.ClassDecl), table.ByKind(types.InterfaceDecl)...)
	}
	if !hasGlob(rule.pattern) {
		return table.ByKey(rule.kind, rule.pattern)
	}
	var out []ast.Located
	for _, hit := range table.ByKind(rule.kind) {
		if rule.matchKey(hit.Ref.Key) {
			out = append(out, hit)
		}
	}
	return out
}

// matchFacts applies the side-table parts of the predicate.
func (r *Rule) matchFacts(e ast.Entry) bool {
	if r.Match.Embeds != "" {
		for _, base := range e.Facts.Embeds {
			if matchPattern(r.Match.Embeds, base) {
				return true
			}
		}
		return false
	}
	if r.Match.Args != nil && e.Facts.Args != *r.Match.Args {
		return false
	}
	return true
}

func (m *Matcher) matchModules(rule *Rule) TokenSet {
	var tokens TokenSet
	for _, mod := range m.Modules {
		if !matchPattern(rule.pattern, mod) {
			continue
		}
		ref := types.NodeRef{Kind: types.CompilationUnit, Key: ModFileKey}
		tok, err := m.token(rule, "", ref)
		if err != nil {
			m.logger().Warn("skipping rule match", "rule", rule.Name, "module", mod, "error", err)
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// check verifies every op a rule names before any of its matches are
// turned into tokens, so a misconfigured rule is skipped as a whole.
func (m *Matcher) check(rule *Rule) error {
	if rule.pattern == "" {
		if err := rule.compile(); err != nil {
			return err
		}
	}
	reg := m.registry()
	lists := []struct {
		name  string
		specs []ActionSpec
	}{
		{"actions", rule.Actions},
		{"project_type_actions", rule.ProjectTypeActions},
		{"project_actions", rule.ProjectActions},
		{"project_file_actions", rule.ProjectFileActions},
	}
	for _, l := range lists {
		list := l.name
		for _, spec := range l.specs {
			h, ok := reg.Lookup(spec.Op)
			if !ok {
				_, err := reg.New(rule.Name, spec.Op, spec.Key, spec.Value)
				return err
			}
			if list != "actions" && h.Scope != action.ScopeProject {
				return fmt.Errorf("%w: %s in %s is not a project op", ErrInvalidRule, spec.Op, list)
			}
			if list == "actions" && h.Scope == action.ScopeNode && spec.Key == "" && h.Kind != rule.kind {
				return fmt.Errorf("%w: %s targets %s but the rule matches %s; give it a key",
					ErrInvalidRule, spec.Op, h.Kind, rule.kind)
			}
			if h.Scope == action.ScopeProject && spec.Key == "" && !defaultsToModFile(spec.Op) {
				return fmt.Errorf("%w: %s needs a key naming the project file", ErrInvalidRule, spec.Op)
			}
		}
	}
	return nil
}

func defaultsToModFile(op action.Op) bool {
	switch op {
	case action.OpModuleGoVersion, action.OpModuleToolchain, action.OpModuleDropReplace, action.OpModuleDropRequire:
		return true
	}
	return false
}

// token builds the token for one match of rule at ref in file.
func (m *Matcher) token(rule *Rule, file string, ref types.NodeRef) (*Token, error) {
	reg := m.registry()
	tok := &Token{Node: ref, File: file, RuleName: rule.Name, Actions: &action.Set{}}

	for _, spec := range rule.Actions {
		h, _ := reg.Lookup(spec.Op)
		if h.Scope == action.ScopeProject {
			a, err := m.build(rule, spec, ModFileKey, ref.Span)
			if err != nil {
				return nil, err
			}
			tok.ProjectLevelActions = append(tok.ProjectLevelActions, a)
			continue
		}
		key := ref.Key
		if h.Scope == action.ScopeFile {
			key = file
		}
		a, err := m.build(rule, spec, key, ref.Span)
		if err != nil {
			return nil, err
		}
		tok.Actions.Add(a)
	}

	for _, list := range []struct {
		specs []ActionSpec
		dst   *[]action.Action
	}{
		{rule.ProjectTypeActions, &tok.ProjectTypeActions},
		{rule.ProjectActions, &tok.ProjectLevelActions},
		{rule.ProjectFileActions, &tok.ProjectFileActions},
	} {
		for _, spec := range list.specs {
			a, err := m.build(rule, spec, ModFileKey, types.Span{})
			if err != nil {
				return nil, err
			}
			*list.dst = append(*list.dst, a)
		}
	}

	for _, p := range rule.Packages {
		tok.Packages = append(tok.Packages, types.NewPackageAction(p.Name, p.Version))
	}
	return tok, nil
}

// build instantiates one action, defaulting its key.
func (m *Matcher) build(rule *Rule, spec ActionSpec, defaultKey string, span types.Span) (action.Action, error) {
	key := spec.Key
	if key == "" {
		key = defaultKey
	}
	a, err := m.registry().New(rule.Name, spec.Op, key, spec.Value)
	if err != nil {
		return action.Action{}, err
	}
	if spec.Description != "" {
		a.Description = spec.Description
	} else if rule.Description != "" {
		a.Description = rule.Description
	}
	if spec.Key == "" {
		a = a.Retarget(span)
	}
	return a, nil
}
