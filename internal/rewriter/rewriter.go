// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package rewriter drives the migration of one project: load the rules
// that apply to it, match them against every file, aggregate the
// matches, apply them, and report what ran.
package rewriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/ast"
	"github.com/petar-djukic/go-porter/internal/detect"
	"github.com/petar-djukic/go-porter/internal/editor"
	"github.com/petar-djukic/go-porter/internal/plan"
	"github.com/petar-djukic/go-porter/internal/project"
	"github.com/petar-djukic/go-porter/internal/replacer"
	"github.com/petar-djukic/go-porter/internal/rules"
	"github.com/petar-djukic/go-porter/internal/telemetry"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// ErrExcluded tags project types migration is not implemented for. Run
// never returns it; excluded projects come back with Excluded set.
var ErrExcluded = errors.New("project type excluded from migration")

var tracer = telemetry.Tracer("github.com/petar-djukic/go-porter/internal/rewriter")

// ProjectResult is everything one migration pass did to a project.
type ProjectResult struct {
	RunID             string                `json:"run_id"`
	ProjectPath       string                `json:"project_path"`
	ProjectType       types.ProjectType     `json:"project_type"`
	Dialect           types.Dialect         `json:"dialect"`
	TargetVersions    []string              `json:"target_versions,omitempty"`
	SourceVersions    []string              `json:"source_versions,omitempty"`
	Packages          []types.PackageAction `json:"packages,omitempty"`
	ProjectActions    []action.Action       `json:"project_actions,omitempty"`
	Actions           *plan.ProjectActions  `json:"actions,omitempty"`
	Executed          action.Ledger         `json:"executed,omitempty"`
	MissingReferences []string              `json:"missing_references,omitempty"`
	ModifiedFiles     []string              `json:"modified_files,omitempty"`
	Outputs           map[string][]byte     `json:"-"`
	Warnings          []string              `json:"warnings,omitempty"`
	Errors            []string              `json:"errors,omitempty"`
	Excluded          bool                  `json:"excluded,omitempty"`
}

// Rewriter migrates one project.
type Rewriter interface {
	// Initialize computes the project's actions without rewriting anything.
	Initialize(ctx context.Context) (*ProjectResult, error)
	// Run applies the computed actions, initializing first if needed.
	Run(ctx context.Context) (*ProjectResult, error)
	// RunWith applies the file actions of pa only. Packages, project-level
	// actions and references are not replayed.
	RunWith(ctx context.Context, pa *plan.ProjectActions) (*ProjectResult, error)
}

// Options are the per-project migration settings.
type Options struct {
	TargetVersions []string              // Go versions the project is migrated to
	SourceVersions []string              // Defaults to the go directive
	Upgrades       []types.PackageAction // Package upgrades declared in configuration
	References     []string              // Local module directories to reference
	FeaturePorting bool                  // Rewrite service bootstrap files
	DryRun         bool                  // Compute outputs without writing them
	Workers        int                   // File workers per project
	Only           []string              // Restrict scanning to these relative paths
}

// Deps are the collaborators a rewriter is built from.
type Deps struct {
	Loader   rules.Loader     // Defaults to the built-in bundle
	Registry *action.Registry // Defaults to action.Default
	Editor   types.Applier    // Defaults to editor.Editor
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// base is the default orchestrator every variant builds on.
type base struct {
	det    detect.Detection
	opts   Options
	deps   Deps
	logger *slog.Logger

	result *ProjectResult
	scan   *ast.ScanResult
	module *project.Module
	ready  bool

	// post runs after the generic phase, before outputs are written.
	post func(ctx context.Context, res *ProjectResult) error
}

func newBase(det detect.Detection, opts Options, deps Deps) *base {
	if deps.Loader == nil {
		deps.Loader = &rules.BundleLoader{Logger: deps.Logger}
	}
	if deps.Registry == nil {
		deps.Registry = action.Default
	}
	if deps.Editor == nil {
		deps.Editor = &editor.Editor{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &base{
		det:    det,
		opts:   opts,
		deps:   deps,
		logger: logger.With("project", det.Dir),
	}
}

// ensureResult starts a fresh result the first time it is needed.
func (b *base) ensureResult() *ProjectResult {
	if b.result != nil {
		return b.result
	}
	sources := b.opts.SourceVersions
	if len(sources) == 0 && b.det.GoVersion != "" {
		sources = []string{b.det.GoVersion}
	}
	b.result = &ProjectResult{
		RunID:          uuid.NewString(),
		ProjectPath:    b.det.Dir,
		ProjectType:    b.det.ProjectType,
		Dialect:        b.det.Dialect,
		TargetVersions: slices.Clone(b.opts.TargetVersions),
		SourceVersions: sources,
		Actions:        plan.Empty(),
		Executed:       make(action.Ledger),
		Outputs:        make(map[string][]byte),
	}
	return b.result
}

func (b *base) warn(msg string, args ...any) {
	text := fmt.Sprintf(msg, args...)
	b.logger.Warn(text)
	b.result.Warnings = append(b.result.Warnings, text)
}

// Initialize loads rules, matches them and aggregates the matches.
// Failures while loading or matching leave an empty plan and a warning.
func (b *base) Initialize(ctx context.Context) (*ProjectResult, error) {
	ctx, span := tracer.Start(ctx, "rewriter.Initialize")
	defer span.End()
	span.SetAttributes(attribute.String("project", b.det.Dir), attribute.String("type", string(b.det.ProjectType)))

	res := b.ensureResult()

	// Step 1: parse every Go file.
	scan, err := ast.ScanDir(b.det.Dir, ast.ScanOptions{Only: b.opts.Only})
	if err != nil {
		return res, fmt.Errorf("scanning %s: %w", b.det.Dir, err)
	}
	b.scan = scan
	for _, se := range scan.Errors {
		b.warn("%v", se)
	}

	// Step 2: the go.mod, for module-mode projects.
	if b.det.Dialect == types.DialectGo {
		mod, err := project.Load(b.det.Dir)
		if err != nil {
			b.warn("%v", err)
		}
		b.module = mod
	}

	// Step 3: rules, matches and the plan.
	pa, err := plan.Safe(b.logger, b.det.Dir, func() (*plan.ProjectActions, error) {
		return b.plan(ctx)
	})
	if err != nil {
		b.warn("no actions computed: %v", err)
	}
	res.Actions = pa
	res.Packages = slices.Clone(pa.Packages)
	res.ProjectActions = slices.Clone(pa.ProjectLevel)
	res.Warnings = append(res.Warnings, pa.Warnings...)
	b.ready = true

	span.SetAttributes(attribute.Int("files", len(pa.Files)), attribute.Int("actions", pa.Len()))
	b.logger.Info("project initialized", "files", len(pa.Files), "actions", pa.Len(),
		"project_actions", len(pa.ProjectLevel), "packages", len(pa.Packages))
	return res, nil
}

func (b *base) plan(ctx context.Context) (*plan.ProjectActions, error) {
	res := b.result
	q := rules.Query{
		TargetVersions: res.TargetVersions,
		SourceVersions: res.SourceVersions,
		References:     b.references(),
		Dialect:        b.det.Dialect,
		ProjectType:    b.det.ProjectType,
	}
	rs, err := b.deps.Loader.Load(ctx, q)
	if rs == nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	if err != nil {
		b.warn("some rules unavailable: %v", err)
	}

	table := ast.BuildTable(b.scan, b.pkgPath)
	m := &rules.Matcher{Registry: b.deps.Registry, Logger: b.logger, Modules: b.det.Requires}
	tokens := m.MatchProject(table, rs.For(b.det.Dialect))

	refs := make([]plan.Reference, 0, len(b.opts.References))
	for _, dir := range b.opts.References {
		abs, err := filepath.Abs(dir)
		if err != nil {
			b.warn("reference %s: %v", dir, err)
			continue
		}
		refs = append(refs, plan.Reference{Path: abs})
	}
	return plan.Build(tokens, plan.Config{
		ProjectFile: filepath.Join(b.det.Dir, project.ModFileName),
		Upgrades:    b.opts.Upgrades,
		References:  refs,
	}), nil
}

// references are the identifiers rules can require: go.mod requirements
// and every imported path.
func (b *base) references() []string {
	refs := slices.Clone(b.det.Requires)
	for _, imp := range b.det.Imports {
		if !slices.Contains(refs, imp) {
			refs = append(refs, imp)
		}
	}
	return refs
}

// pkgPath derives the import path of a file's package.
func (b *base) pkgPath(rel string) string {
	root := b.det.ModulePath
	if b.module != nil {
		root = b.module.Path()
	}
	if root == "" {
		root = ast.GopathImportPath(b.det.Dir)
	}
	return ast.PackagePath(root, rel)
}

// Run applies every computed action.
func (b *base) Run(ctx context.Context) (*ProjectResult, error) {
	if !b.ready {
		if _, err := b.Initialize(ctx); err != nil {
			return b.ensureResult(), err
		}
	}
	return b.apply(ctx, b.result.Actions, true)
}

// RunWith applies the file actions of pa against the files' current
// content on disk.
func (b *base) RunWith(ctx context.Context, pa *plan.ProjectActions) (*ProjectResult, error) {
	b.ensureResult()
	if pa == nil {
		pa = plan.Empty()
	}
	return b.apply(ctx, pa.Subset(pa.FilePaths()...), false)
}

func (b *base) apply(ctx context.Context, pa *plan.ProjectActions, full bool) (*ProjectResult, error) {
	ctx, span := tracer.Start(ctx, "rewriter.Run")
	defer span.End()
	span.SetAttributes(attribute.String("project", b.det.Dir), attribute.Bool("full", full))
	start := time.Now()

	res := b.result
	res.Executed = make(action.Ledger)
	res.Outputs = make(map[string][]byte)
	res.ModifiedFiles = nil
	res.Errors = nil

	// Step 1: file actions through the tree applier.
	files := make([]replacer.File, 0, len(pa.Files))
	for _, rel := range pa.FilePaths() {
		src, err := b.source(rel, full)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		files = append(files, replacer.File{Path: rel, PkgPath: b.pkgPath(rel), Source: src, Actions: pa.Files[rel]})
	}
	rp := &replacer.Replacer{Registry: b.deps.Registry, Logger: b.logger, Workers: b.opts.Workers}
	results, err := rp.ApplyAll(ctx, files)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.deps.Metrics.RecordProject(telemetry.OutcomeFailed, time.Since(start))
		return res, err
	}
	res.Executed.Merge(replacer.Ledger(results))
	for _, fr := range results {
		if fr.Err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", fr.Path, fr.Err))
			continue
		}
		if fr.Changed {
			res.Outputs[fr.Path] = fr.Content
		}
	}

	// Step 2: packages, project-level actions and references.
	if full {
		ap := &project.Applier{Root: b.det.Dir, Module: b.module, Editor: b.deps.Editor, Logger: b.logger}
		out := ap.Apply(pa)
		res.Executed.Merge(out.Ledger)
		res.Packages = out.Packages
		res.MissingReferences = out.Missing
		res.Warnings = append(res.Warnings, out.Warnings...)
		for rel, data := range out.Outputs {
			res.Outputs[rel] = data
		}
	}

	// Step 3: variant post-processing.
	if full && b.post != nil {
		if err := b.post(ctx, res); err != nil {
			b.warn("post-processing: %v", err)
		}
	}

	// Step 4: write.
	b.write(res)

	b.deps.Metrics.RecordLedger(res.Executed)
	outcome := telemetry.OutcomeUnchanged
	switch {
	case len(res.Errors) > 0 && len(res.ModifiedFiles) == 0:
		outcome = telemetry.OutcomeFailed
	case len(res.ModifiedFiles) > 0:
		outcome = telemetry.OutcomeMigrated
	}
	b.deps.Metrics.RecordProject(outcome, time.Since(start))

	run, invalid := res.Executed.Totals()
	span.SetAttributes(attribute.Int("times_run", run), attribute.Int("invalid", invalid))
	b.logger.Info("project rewritten", "run_id", res.RunID, "modified", len(res.ModifiedFiles),
		"times_run", run, "invalid", invalid, "dry_run", b.opts.DryRun)
	return res, nil
}

// source returns the bytes a file is rewritten from: the scanned copy on
// a full pass, the file on disk for an incremental one.
func (b *base) source(rel string, full bool) ([]byte, error) {
	if full && b.scan != nil {
		if src, ok := b.scan.Sources[rel]; ok {
			return src, nil
		}
	}
	return os.ReadFile(filepath.Join(b.det.Dir, filepath.FromSlash(rel)))
}

// write persists Outputs unless this is a dry run. ModifiedFiles lists
// what was written, or what would have been.
func (b *base) write(res *ProjectResult) {
	paths := make([]string, 0, len(res.Outputs))
	for rel := range res.Outputs {
		paths = append(paths, rel)
	}
	slices.Sort(paths)
	for _, rel := range paths {
		if !b.opts.DryRun {
			if err := ast.WriteFile(filepath.Join(b.det.Dir, filepath.FromSlash(rel)), res.Outputs[rel]); err != nil {
				b.logger.Error("writing output", "file", rel, "error", err)
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rel, err))
				continue
			}
		}
		res.ModifiedFiles = append(res.ModifiedFiles, rel)
	}
}
