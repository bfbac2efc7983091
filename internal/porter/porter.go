// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package porter wires detection, rewriting, reporting, verification and
// git into the migration lifecycle the CLI and the public API drive.
package porter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/petar-djukic/go-porter/internal/detect"
	gitpkg "github.com/petar-djukic/go-porter/internal/git"
	"github.com/petar-djukic/go-porter/internal/report"
	"github.com/petar-djukic/go-porter/internal/rewriter"
	"github.com/petar-djukic/go-porter/internal/rules"
	"github.com/petar-djukic/go-porter/internal/telemetry"
	"github.com/petar-djukic/go-porter/internal/verify"
	"github.com/petar-djukic/go-porter/internal/watch"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// Settings are the run-wide migration settings.
type Settings struct {
	TargetVersions []string
	SourceVersions []string
	Upgrades       []types.PackageAction
	References     []string
	FeaturePorting bool
	DryRun         bool
	FileWorkers    int // Per project
	Projects       int // Projects migrated concurrently
	DiffContext    int // Lines of diff context in dry runs

	Git         bool // Commit migrated files
	DirtyCommit bool // Commit pre-existing changes first instead of refusing

	Verify  bool   // Build and vet after migrating
	TestCmd string // Run after a successful vet
}

// Deps are the collaborators a Runner is built from.
type Deps struct {
	Loader    rules.Loader // Defaults to the built-in bundle
	Detector  *detect.Detector
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
	VerifyRun verify.Runner // Defaults to os/exec
}

// ProjectReport is the outcome of one project.
type ProjectReport struct {
	Result       *rewriter.ProjectResult
	Diff         []byte         // Unified diff, dry runs only
	Commit       string         // Commit hash, when git is enabled and files changed
	Verification *verify.Result // Nil unless verification ran
}

// Runner drives migrations.
type Runner struct {
	settings Settings
	deps     Deps
	logger   *slog.Logger
}

// NewRunner creates a Runner. The detector, and with it the service
// config cache, is shared by every project the runner touches.
func NewRunner(s Settings, deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Detector == nil {
		deps.Detector = &detect.Detector{Configs: detect.NewConfigCache(nil), Logger: logger}
	}
	return &Runner{settings: s, deps: deps, logger: logger}
}

func (r *Runner) options(only []string) rewriter.Options {
	return rewriter.Options{
		TargetVersions: r.settings.TargetVersions,
		SourceVersions: r.settings.SourceVersions,
		Upgrades:       r.settings.Upgrades,
		References:     r.settings.References,
		FeaturePorting: r.settings.FeaturePorting,
		DryRun:         r.settings.DryRun,
		Workers:        r.settings.FileWorkers,
		Only:           only,
	}
}

func (r *Runner) rewriterDeps() rewriter.Deps {
	return rewriter.Deps{Loader: r.deps.Loader, Metrics: r.deps.Metrics, Logger: r.logger}
}

func (r *Runner) open(ctx context.Context, dir string, only []string) (rewriter.Rewriter, error) {
	return rewriter.Open(ctx, dir, r.deps.Detector, r.options(only), r.rewriterDeps())
}

// Analyze computes a project's actions without applying them.
func (r *Runner) Analyze(ctx context.Context, dir string) (*rewriter.ProjectResult, error) {
	rw, err := r.open(ctx, dir, nil)
	if err != nil {
		return nil, err
	}
	return rw.Initialize(ctx)
}

// Run migrates every directory. One project's failure is recorded in its
// report; only a model inconsistency aborts the run.
func (r *Runner) Run(ctx context.Context, dirs []string) ([]*ProjectReport, error) {
	batch := &rewriter.Batch{
		Workers: r.settings.Projects,
		Metrics: r.deps.Metrics,
		Logger:  r.logger,
		Open: func(ctx context.Context, dir string) (rewriter.Rewriter, error) {
			return r.prepare(ctx, dir)
		},
	}
	results, err := batch.Run(ctx, dirs)

	out := make([]*ProjectReport, 0, len(dirs))
	for i, res := range results {
		if res == nil {
			continue
		}
		rep := &ProjectReport{Result: res}
		r.finish(ctx, dirs[i], rep)
		out = append(out, rep)
	}
	return out, err
}

// prepare runs the pre-migration git step and opens the rewriter.
func (r *Runner) prepare(ctx context.Context, dir string) (rewriter.Rewriter, error) {
	if r.settings.Git && !r.settings.DryRun {
		repo, err := gitpkg.Open(gitpkg.Config{WorkDir: dir, AutoCommit: true, DirtyCommit: r.settings.DirtyCommit})
		switch {
		case errors.Is(err, gitpkg.ErrNoGit):
			r.logger.Warn("git disabled for project", "project", dir, "error", err)
		case err != nil:
			return nil, err
		default:
			if err := repo.HandleDirty(); err != nil {
				return nil, fmt.Errorf("handling dirty files: %w", err)
			}
		}
	}
	return r.open(ctx, dir, nil)
}

// finish renders, verifies and commits one migrated project.
func (r *Runner) finish(ctx context.Context, dir string, rep *ProjectReport) {
	res := rep.Result
	if res.Excluded || len(res.ModifiedFiles) == 0 {
		return
	}
	logger := r.logger.With("project", dir)

	// Step 1: diff, for dry runs.
	if r.settings.DryRun {
		patch, err := report.Diff(dir, res.Outputs, r.diffContext())
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rendering diff: %v", err))
		}
		rep.Diff = patch
		return
	}

	// Step 2: verification.
	if r.settings.Verify {
		vr := verify.Verify(ctx, verify.Config{
			Dir:      dir,
			Migrated: res.ModifiedFiles,
			TestCmd:  r.settings.TestCmd,
			Run:      r.deps.VerifyRun,
		})
		rep.Verification = vr
		if !vr.Success() {
			logger.Warn("verification failed", "diagnostics", len(vr.Diagnostics), "in_migrated", len(vr.Migrated()))
			res.Warnings = append(res.Warnings, "verification failed")
		}
	}

	// Step 3: commit.
	if r.settings.Git {
		hash, err := commit(dir, res, r.settings.DirtyCommit)
		switch {
		case errors.Is(err, gitpkg.ErrNoGit):
		case err != nil:
			logger.Error("commit failed", "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("commit: %v", err))
		case hash != "":
			rep.Commit = hash
			logger.Info("migration committed", "commit", hash)
		}
	}
}

func (r *Runner) diffContext() int {
	if r.settings.DiffContext <= 0 {
		return report.DefaultContext
	}
	return r.settings.DiffContext
}

func commit(dir string, res *rewriter.ProjectResult, dirtyCommit bool) (string, error) {
	repo, err := gitpkg.Open(gitpkg.Config{WorkDir: dir, AutoCommit: true, DirtyCommit: dirtyCommit})
	if err != nil {
		return "", err
	}
	return repo.Commit(Migration(res))
}

// Migration summarises a result for its commit message.
func Migration(res *rewriter.ProjectResult) gitpkg.Migration {
	rulesRun := make(map[string]int)
	for _, execs := range res.Executed {
		for _, e := range execs {
			if e.TimesRun > 0 && e.Action.RuleName != "" {
				rulesRun[e.Action.RuleName] += e.TimesRun
			}
		}
	}
	return gitpkg.Migration{
		RunID:          res.RunID,
		Project:        filepath.Base(res.ProjectPath),
		TargetVersions: res.TargetVersions,
		Rules:          rulesRun,
		Files:          res.ModifiedFiles,
	}
}

// Watch migrates dir once, then incrementally on every change until ctx
// is done. onResult receives each result.
func (r *Runner) Watch(ctx context.Context, dir string, onResult func(*rewriter.ProjectResult)) error {
	open := func(ctx context.Context, only []string) (rewriter.Rewriter, error) {
		return r.open(ctx, dir, only)
	}
	rw, err := open(ctx, nil)
	if err != nil {
		return err
	}
	res, err := rw.Run(ctx)
	if err != nil {
		return err
	}
	if onResult != nil {
		onResult(res)
	}

	w := watch.New(watch.Config{Dir: dir, Logger: r.logger})
	return w.Run(ctx, watch.Incremental(open, onResult))
}

// Undo reverts the last migration commit of the repository holding dir
// and returns its run id.
func Undo(dir string) (string, error) {
	repo, err := gitpkg.Open(gitpkg.Config{WorkDir: dir})
	if err != nil {
		return "", err
	}
	return repo.Undo()
}
