// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package replacer applies a file's action list to a freshly parsed tree
// in one post-order pass and records what ran in the execution ledger.
package replacer

import (
	"context"
	"errors"
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/ast"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// MaxIterations bounds the node visits and work-list rounds of one file.
const MaxIterations = 1 << 20

// ErrIterationLimit is returned when a file exceeds the iteration bound.
var ErrIterationLimit = errors.New("iteration limit exceeded")

var tracer = otel.Tracer("github.com/petar-djukic/go-porter/internal/replacer")

// File is one unit of work.
type File struct {
	Path    string // Slash-separated path relative to the project root
	PkgPath string // Import path of the file's package
	Source  []byte
	Actions []action.Action
}

// FileResult is the outcome of applying one file's actions.
type FileResult struct {
	Path       string
	Content    []byte // Source unchanged unless Changed
	Changed    bool
	Executions []*action.Execution
	Err        error
}

// Replacer is the tree applier.
type Replacer struct {
	Registry      *action.Registry // Defaults to action.Default
	Logger        *slog.Logger
	MaxIterations int // Defaults to MaxIterations
	Workers       int // ApplyAll concurrency (default 4)
}

func (r *Replacer) registry() *action.Registry {
	if r.Registry == nil {
		return action.Default
	}
	return r.Registry
}

func (r *Replacer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Replacer) limit() int {
	if r.MaxIterations > 0 {
		return r.MaxIterations
	}
	return MaxIterations
}

// pending is one action of the file with its handler and ledger entry.
type pending struct {
	act     action.Action
	handler action.Handler
	exec    *action.Execution
	hit     bool // Target resolved at least once
}

// ApplyFile rewrites one file. A file with no actions, or none that
// applied, is returned byte-identical. Only a handler missing from the
// registry or a failure to parse, bound or serialize the file is an error.
func (r *Replacer) ApplyFile(ctx context.Context, f File) (*FileResult, error) {
	res := &FileResult{Path: f.Path, Content: f.Source}
	if len(f.Actions) == 0 {
		return res, nil
	}

	_, span := tracer.Start(ctx, "replacer.ApplyFile")
	defer span.End()
	span.SetAttributes(attribute.String("file", f.Path), attribute.Int("actions", len(f.Actions)))

	out, err := r.applyFile(f, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	return out, nil
}

func (r *Replacer) applyFile(f File, res *FileResult) (*FileResult, error) {
	logger := r.logger().With("file", f.Path)

	// Step 1: bind every action to its handler.
	var nodeActs, fileActs []*pending
	byKind := make(map[types.NodeKind][]*pending)
	for _, a := range f.Actions {
		h, err := r.registry().MustLookup(a)
		if err == nil && h.Scope == action.ScopeProject {
			err = fmt.Errorf("%w: project op %s in a file action list", action.ErrNoHandler, a.Op)
		}
		if err != nil {
			return res, err
		}
		p := &pending{act: a, handler: h, exec: action.NewExecution(a, f.Path)}
		res.Executions = append(res.Executions, p.exec)
		if h.Scope == action.ScopeFile {
			fileActs = append(fileActs, p)
			continue
		}
		nodeActs = append(nodeActs, p)
		byKind[a.Kind] = append(byKind[a.Kind], p)
	}

	// Step 2: parse a fresh tree from the current bytes.
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, f.Path, f.Source, parser.ParseComments)
	if err != nil {
		return res, fmt.Errorf("parsing %s: %w", f.Path, err)
	}
	actx := action.NewContext(fset, file, f.PkgPath, f.Path)

	// Step 3: post-order traversal, innermost nodes first.
	visits, limit := 0, r.limit()
	var walkErr error
	ast.Walk(file, func(c *astutil.Cursor, site ast.Site) bool {
		if visits++; visits > limit {
			walkErr = fmt.Errorf("%w: %s after %d nodes", ErrIterationLimit, f.Path, limit)
			return false
		}
		n := c.Node()
		if n == nil {
			return true
		}
		targeted := r.targets(actx, n, site, byKind)
		if len(targeted) == 0 {
			return true
		}
		actx.Cursor, actx.Site = c, site
		r.applyAt(actx, c, n, targeted, logger)
		return true
	})
	if walkErr != nil {
		return res, walkErr
	}
	ast.SyncImports(file)

	// Step 4: compilation-unit actions at the root, then import upkeep.
	actx.Cursor, actx.Site = nil, ast.Site{}
	for _, p := range fileActs {
		p.hit = true
		r.run(actx, p, file, logger)
	}
	if err := r.settleImports(actx, limit); err != nil {
		return res, err
	}

	// Step 5: actions whose target never resolved.
	applied := 0
	for _, p := range append(nodeActs, fileActs...) {
		if !p.hit {
			p.exec.InvalidExecutions++
			logger.Info("action target not found", "rule", p.act.RuleName, "action", p.act.Op, "key", p.act.Key)
		}
		applied += p.exec.TimesRun
	}
	if applied == 0 {
		return res, nil
	}

	// Step 6: serialize once.
	data, err := ast.FormatFile(fset, file)
	if err != nil {
		return res, fmt.Errorf("formatting %s: %w", f.Path, err)
	}
	res.Content = data
	res.Changed = string(data) != string(f.Source)
	return res, nil
}

// targets returns the node actions whose key n carries, in list order.
func (r *Replacer) targets(actx *action.Context, n goast.Node, site ast.Site, byKind map[types.NodeKind][]*pending) []*pending {
	var out []*pending
	for _, kind := range ast.Kinds(n, site) {
		for _, p := range byKind[kind] {
			if actx.Resolver.HasKey(kind, n, site, p.act.Key) {
				out = append(out, p)
			}
		}
	}
	return out
}

// applyAt runs the targeted actions against the node at c, each seeing
// the node as left by the one before.
func (r *Replacer) applyAt(actx *action.Context, c *astutil.Cursor, n goast.Node, targeted []*pending, logger *slog.Logger) {
	cur := n
	for _, p := range targeted {
		p.hit = true
		if cur == nil {
			p.exec.InvalidExecutions++
			logger.Info("stale match: node removed", "rule", p.act.RuleName, "action", p.act.Op, "key", p.act.Key)
			continue
		}
		next, ok := r.run(actx, p, cur, logger)
		if !ok {
			continue
		}
		if err := substitute(c, cur, next); err != nil {
			p.exec.TimesRun--
			p.exec.InvalidExecutions++
			logger.Warn("cannot substitute node", "rule", p.act.RuleName, "action", p.act.Op, "error", err)
			continue
		}
		cur = next
	}
}

// run validates and applies one action to n.
func (r *Replacer) run(actx *action.Context, p *pending, n goast.Node, logger *slog.Logger) (goast.Node, bool) {
	if !p.handler.Valid(actx, p.act, n) {
		p.exec.InvalidExecutions++
		logger.Info("stale match", "rule", p.act.RuleName, "action", p.act.Op, "key", p.act.Key)
		return nil, false
	}
	next, err := p.handler.Apply(actx, p.act, n)
	if err != nil {
		p.exec.InvalidExecutions++
		logger.Warn("action failed", "rule", p.act.RuleName, "action", p.act.Op, "key", p.act.Key, "error", err)
		return nil, false
	}
	p.exec.TimesRun++
	return next, true
}

// substitute puts next in place of cur at the cursor. A nil next deletes
// the node; a struct tag is deleted by clearing the field's Tag.
func substitute(c *astutil.Cursor, cur, next goast.Node) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("replacing %T with %T: %v", cur, next, rec)
		}
	}()
	switch {
	case next == cur:
		return nil
	case next != nil:
		c.Replace(next)
		return nil
	case c.Index() >= 0:
		c.Delete()
		return nil
	}
	if field, ok := c.Parent().(*goast.Field); ok && c.Name() == "Tag" {
		field.Tag = nil
		return nil
	}
	return fmt.Errorf("%T cannot be deleted from %T", cur, c.Parent())
}

// settleImports adds the imports rewritten code needs and drops the ones
// it no longer uses. Duplicate specs go one at a time, re-scanning the
// import list after each removal.
func (r *Replacer) settleImports(actx *action.Context, limit int) error {
	for _, path := range actx.Required() {
		if !ast.HasImport(actx.File, path) {
			ast.AddImport(actx.Fset, actx.File, path)
		}
	}
	for _, path := range actx.Released() {
		for rounds := 0; ast.HasImport(actx.File, path) && !ast.UsesImport(actx.File, path); rounds++ {
			if rounds >= limit {
				return fmt.Errorf("%w: removing import %s", ErrIterationLimit, path)
			}
			if !ast.RemoveOneImport(actx.Fset, actx.File, path) {
				break
			}
		}
	}
	return nil
}
