// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package rules loads declarative rewrite rules, matches them against the
// node references of a project, and emits one token per match site.
package rules

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// Sentinel errors.
var (
	// ErrInvalidRule is returned for a rule that cannot be decoded into a
	// usable predicate.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrBundleUnavailable is returned when a rule bundle could not be
	// fetched within the retry budget.
	ErrBundleUnavailable = errors.New("rule bundle unavailable")

	// ErrBundleTooLarge is returned when a bundle exceeds the size limit.
	// Retrying does not help.
	ErrBundleTooLarge = errors.New("rule bundle too large")
)

// Predicate selects the nodes a rule fires on. Exactly one primary field
// is set; Args narrows an invocation match by argument count. Patterns
// containing glob metacharacters are matched with path.Match.
type Predicate struct {
	Import     string `yaml:"import,omitempty"`
	Module     string `yaml:"module,omitempty"`
	Type       string `yaml:"type,omitempty"`
	Embeds     string `yaml:"embeds,omitempty"`
	Interface  string `yaml:"interface,omitempty"`
	Method     string `yaml:"method,omitempty"`
	Invocation string `yaml:"invocation,omitempty"`
	Args       *int   `yaml:"args,omitempty"`
	Member     string `yaml:"member,omitempty"`
	Element    string `yaml:"element,omitempty"`
	Object     string `yaml:"object,omitempty"`
	Identifier string `yaml:"identifier,omitempty"`
	Attribute  string `yaml:"attribute,omitempty"`
	Package    string `yaml:"package,omitempty"`
	Expression string `yaml:"expression,omitempty"`
}

// primary returns the node kind and pattern of the predicate's primary
// field. A module predicate reports ok with CompilationUnit and the
// module flag set.
func (p Predicate) primary() (kind types.NodeKind, pattern string, module bool, err error) {
	candidates := []struct {
		kind    types.NodeKind
		pattern string
	}{
		{types.Import, p.Import},
		{types.ClassDecl, p.Type},
		{types.ClassDecl, p.Embeds},
		{types.InterfaceDecl, p.Interface},
		{types.MethodDecl, p.Method},
		{types.Invocation, p.Invocation},
		{types.MemberAccess, p.Member},
		{types.ElementAccess, p.Element},
		{types.ObjectCreation, p.Object},
		{types.Identifier, p.Identifier},
		{types.Attribute, p.Attribute},
		{types.Namespace, p.Package},
		{types.Expression, p.Expression},
	}
	set := 0
	for _, c := range candidates {
		if c.pattern != "" {
			kind, pattern = c.kind, c.pattern
			set++
		}
	}
	if p.Module != "" {
		kind, pattern, module = types.CompilationUnit, p.Module, true
		set++
	}
	switch {
	case set == 0:
		return 0, "", false, fmt.Errorf("%w: no match predicate", ErrInvalidRule)
	case set > 1:
		return 0, "", false, fmt.Errorf("%w: more than one match predicate", ErrInvalidRule)
	case p.Args != nil && p.Invocation == "":
		return 0, "", false, fmt.Errorf("%w: args only narrows an invocation", ErrInvalidRule)
	}
	return kind, pattern, module, nil
}

// ActionSpec is an action as written in a bundle. An empty key defaults
// to the matched node's key, or to the file for compilation-unit ops.
type ActionSpec struct {
	Op          action.Op `yaml:"op"`
	Key         string    `yaml:"key,omitempty"`
	Value       string    `yaml:"value,omitempty"`
	Description string    `yaml:"description,omitempty"`
}

// PackageSpec is a module requirement a rule asks for.
type PackageSpec struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// Rule is one declarative rewrite rule.
type Rule struct {
	Name         string              `yaml:"name"`
	Description  string              `yaml:"description,omitempty"`
	Dialect      types.Dialect       `yaml:"dialect,omitempty"`       // Empty applies to every dialect
	MinGo        string              `yaml:"min_go,omitempty"`        // Lowest target Go version the rewrite is valid for
	BeforeGo     string              `yaml:"before_go,omitempty"`     // Only sources older than this need the rewrite
	Requires     []string            `yaml:"requires,omitempty"`      // Module paths the project must reference
	ProjectTypes []types.ProjectType `yaml:"project_types,omitempty"` // Empty applies to every type
	Match        Predicate           `yaml:"match"`
	Actions      []ActionSpec        `yaml:"actions,omitempty"`
	Packages     []PackageSpec       `yaml:"packages,omitempty"`

	// Project-scope actions, keyed by project file.
	ProjectTypeActions []ActionSpec `yaml:"project_type_actions,omitempty"` // Required by the project type itself
	ProjectActions     []ActionSpec `yaml:"project_actions,omitempty"`      // go.mod and toolchain changes
	ProjectFileActions []ActionSpec `yaml:"project_file_actions,omitempty"` // Text edits to non-Go project files

	kind    types.NodeKind
	pattern string
	module  bool
}

// compile checks the rule's shape and caches its primary predicate.
func (r *Rule) compile() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule without a name", ErrInvalidRule)
	}
	kind, pattern, module, err := r.Match.primary()
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	if module && len(r.Actions) > 0 {
		return fmt.Errorf("rule %q: %w: module rules carry no node actions", r.Name, ErrInvalidRule)
	}
	for _, v := range []string{r.MinGo, r.BeforeGo} {
		if v != "" && !types.ValidGo(v) {
			return fmt.Errorf("rule %q: %w: bad go version %q", r.Name, ErrInvalidRule, v)
		}
	}
	r.kind, r.pattern, r.module = kind, pattern, module
	return nil
}

// Kind returns the node kind the rule matches.
func (r *Rule) Kind() types.NodeKind { return r.kind }

// matchKey reports whether key satisfies the rule's pattern.
func (r *Rule) matchKey(key string) bool {
	return matchPattern(r.pattern, key)
}

func matchPattern(pattern, key string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == key
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}

func hasGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// Selected reports whether the rule applies to a project described by q.
func (r *Rule) Selected(q Query) bool {
	if r.Dialect != "" && q.Dialect != "" && r.Dialect != q.Dialect {
		return false
	}
	if len(r.ProjectTypes) > 0 && q.ProjectType != types.ProjectTypeUnknown &&
		!slices.Contains(r.ProjectTypes, q.ProjectType) {
		return false
	}
	if r.MinGo != "" && len(q.TargetVersions) > 0 &&
		!slices.ContainsFunc(q.TargetVersions, func(v string) bool { return goCompare(v, r.MinGo) >= 0 }) {
		return false
	}
	if r.BeforeGo != "" && len(q.SourceVersions) > 0 &&
		!slices.ContainsFunc(q.SourceVersions, func(v string) bool { return goCompare(v, r.BeforeGo) < 0 }) {
		return false
	}
	if len(r.Requires) > 0 && !slices.ContainsFunc(r.Requires, func(m string) bool {
		return slices.ContainsFunc(q.References, func(ref string) bool { return matchPattern(m, ref) })
	}) {
		return false
	}
	return true
}

func goCompare(a, b string) int {
	return types.CompareGo(a, b)
}

// Query describes the project rules are loaded for.
type Query struct {
	TargetVersions []string
	SourceVersions []string
	References     []string // Module paths required in go.mod or imported
	Dialect        types.Dialect
	ProjectType    types.ProjectType
}

// RuleSet holds rules split by dialect. Rules with no dialect appear in
// every collection.
type RuleSet struct {
	Version string
	Go      []Rule
	Gopath  []Rule
}

// For returns the rules of one dialect.
func (rs *RuleSet) For(d types.Dialect) []Rule {
	if rs == nil {
		return nil
	}
	if d == types.DialectGopath {
		return rs.Gopath
	}
	return rs.Go
}

// Len returns the number of distinct rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	seen := make(map[string]bool)
	for _, r := range rs.Go {
		seen[r.Name] = true
	}
	for _, r := range rs.Gopath {
		seen[r.Name] = true
	}
	return len(seen)
}

// Filter returns the rules of the query's dialect selected by it.
func (rs *RuleSet) Filter(q Query) []Rule {
	var out []Rule
	for _, r := range rs.For(q.Dialect) {
		if r.Selected(q) {
			out = append(out, r)
		}
	}
	return out
}

// Bundle is the on-disk form of a rule collection.
type Bundle struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Decode parses a YAML bundle. Rules that fail to compile are returned as
// a joined error alongside the rules that did; a malformed document fails
// outright.
func Decode(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: decoding bundle: %v", ErrInvalidRule, err)
	}
	var errs []error
	rules := b.Rules[:0]
	for _, r := range b.Rules {
		if err := r.compile(); err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	b.Rules = rules
	return &b, errors.Join(errs...)
}

// Merge folds bundles into a rule set. A later rule with the same name
// replaces an earlier one.
func Merge(bundles ...*Bundle) *RuleSet {
	rs := &RuleSet{}
	index := make(map[string]int)
	var all []Rule
	for _, b := range bundles {
		if b == nil {
			continue
		}
		if b.Version != "" {
			rs.Version = b.Version
		}
		for _, r := range b.Rules {
			if i, ok := index[r.Name]; ok {
				all[i] = r
				continue
			}
			index[r.Name] = len(all)
			all = append(all, r)
		}
	}
	for _, r := range all {
		if r.Dialect == "" || r.Dialect == types.DialectGo {
			rs.Go = append(rs.Go, r)
		}
		if r.Dialect == "" || r.Dialect == types.DialectGopath {
			rs.Gopath = append(rs.Gopath, r)
		}
	}
	return rs
}
