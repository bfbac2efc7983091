// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package porter

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	internalporter "github.com/petar-djukic/go-porter/internal/porter"
	"github.com/petar-djukic/go-porter/internal/report"
	"github.com/petar-djukic/go-porter/internal/rewriter"
	"github.com/petar-djukic/go-porter/internal/rules"
	"github.com/petar-djukic/go-porter/internal/telemetry"
	"github.com/petar-djukic/go-porter/internal/verify"
	"github.com/petar-djukic/go-porter/pkg/types"
)

const (
	defaultProjects = 2
	defaultAttempts = 3
)

// New validates the config, sets up rule sources and returns a Porter.
// Projects are not touched until Analyze, Run or Watch.
func New(ctx context.Context, cfg Config) (Porter, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	applyDefaults(&cfg)

	upgrades, err := parseUpgrades(cfg.Upgrades)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	loader, cache, err := newLoader(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulesSetup, err)
	}

	var metrics *telemetry.Metrics
	if cfg.Registry != nil {
		metrics = telemetry.NewMetrics(cfg.Registry)
	}

	runner := internalporter.NewRunner(internalporter.Settings{
		TargetVersions: cfg.TargetVersions,
		SourceVersions: cfg.SourceVersions,
		Upgrades:       upgrades,
		References:     cfg.References,
		FeaturePorting: cfg.FeaturePorting,
		DryRun:         cfg.DryRun,
		FileWorkers:    cfg.Workers,
		Projects:       cfg.Projects,
		DiffContext:    cfg.DiffContext,
		Git:            !cfg.NoGit,
		DirtyCommit:    cfg.DirtyCommit,
		Verify:         cfg.Verify,
		TestCmd:        cfg.TestCmd,
	}, internalporter.Deps{
		Loader:  loader,
		Metrics: metrics,
		Logger:  cfg.Logger,
	})
	return &porterAdapter{runner: runner, cache: cache}, nil
}

// newLoader builds the bundle loader: built-in rules plus the configured
// sources, fetched with retries through the bundle cache.
func newLoader(ctx context.Context, cfg Config) (rules.Loader, *rules.Cache, error) {
	loader := &rules.BundleLoader{NoBuiltin: cfg.NoBuiltinRules, Logger: cfg.Logger}
	if len(cfg.RuleSources) == 0 {
		return loader, nil, nil
	}

	var s3f rules.Fetcher
	for _, src := range cfg.RuleSources {
		if strings.HasPrefix(src, "s3://") {
			f, err := rules.NewS3Fetcher(ctx, rules.S3Config{Region: cfg.AWSRegion, Profile: cfg.AWSProfile})
			if err != nil {
				return nil, nil, err
			}
			s3f = f
			break
		}
	}

	cache, err := rules.OpenCache(rules.CacheConfig{
		Path:     cfg.CacheDir,
		InMemory: cfg.CacheDir == "",
		TTL:      cfg.CacheTTL,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	loader.Sources = cfg.RuleSources
	loader.Fetcher = &rules.CachingFetcher{
		Cache:  cache,
		Next:   &rules.RetryFetcher{Next: rules.NewSchemeFetcher(s3f), Attempts: cfg.FetchAttempts, Logger: cfg.Logger},
		Logger: cfg.Logger,
	}
	return loader, cache, nil
}

// porterAdapter adapts internal/porter.Runner to the public Porter interface.
type porterAdapter struct {
	runner *internalporter.Runner
	cache  *rules.Cache
}

func (a *porterAdapter) Analyze(ctx context.Context, dir string) (*Result, error) {
	res, err := a.runner.Analyze(ctx, dir)
	if res == nil {
		return &Result{Project: dir}, err
	}
	return project(&internalporter.ProjectReport{Result: res}), err
}

func (a *porterAdapter) Run(ctx context.Context, dirs ...string) ([]*Result, error) {
	reports, err := a.runner.Run(ctx, dirs)
	out := make([]*Result, 0, len(reports))
	for _, rep := range reports {
		out = append(out, project(rep))
	}
	return out, err
}

func (a *porterAdapter) Watch(ctx context.Context, dir string, onResult func(*Result)) error {
	return a.runner.Watch(ctx, dir, func(res *rewriter.ProjectResult) {
		if onResult != nil {
			onResult(project(&internalporter.ProjectReport{Result: res}))
		}
	})
}

func (a *porterAdapter) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// project converts an internal report to the public Result.
func project(rep *internalporter.ProjectReport) *Result {
	res := rep.Result
	out := &Result{
		RunID:             res.RunID,
		Project:           res.ProjectPath,
		ProjectType:       string(res.ProjectType),
		Dialect:           string(res.Dialect),
		Excluded:          res.Excluded,
		ModifiedFiles:     res.ModifiedFiles,
		MissingReferences: res.MissingReferences,
		Warnings:          res.Warnings,
		Errors:            res.Errors,
		Diff:              string(rep.Diff),
		Commit:            rep.Commit,
	}
	for _, p := range res.Packages {
		out.Packages = append(out.Packages, p.String())
	}
	for _, a := range res.ProjectActions {
		out.ProjectActions = append(out.ProjectActions, a.String())
	}
	if res.Actions != nil {
		out.PlannedActions = res.Actions.Len()
		out.Plan = make(map[string][]string, len(res.Actions.Files))
		for file, actions := range res.Actions.Files {
			for _, a := range actions {
				out.Plan[file] = append(out.Plan[file], a.String())
			}
		}
	}
	ledger := report.NewLedger(res)
	out.Applied, out.Invalid = ledger.TimesRun, ledger.Invalid
	for _, e := range ledger.Entries {
		out.Executions = append(out.Executions, Execution(e))
	}
	if vr := rep.Verification; vr != nil {
		out.Verified = vr.Success()
		if !vr.Success() {
			out.VerifyReport = verify.Format(vr, verify.FormatConfig{Dir: res.ProjectPath})
		}
	}
	return out
}

func undo(dir string) (string, error) {
	return internalporter.Undo(dir)
}

// validateConfig checks that required fields are present and well formed.
func validateConfig(cfg Config) error {
	if len(cfg.TargetVersions) == 0 {
		return fmt.Errorf("TargetVersions is required")
	}
	for _, v := range cfg.TargetVersions {
		if !types.ValidGo(v) {
			return fmt.Errorf("target version %q is not a Go version", v)
		}
	}
	for _, v := range cfg.SourceVersions {
		if !types.ValidGo(v) {
			return fmt.Errorf("source version %q is not a Go version", v)
		}
	}
	if cfg.NoBuiltinRules && len(cfg.RuleSources) == 0 {
		return fmt.Errorf("NoBuiltinRules requires at least one rule source")
	}
	if cfg.Workers < 0 || cfg.Projects < 0 {
		return fmt.Errorf("worker counts must not be negative")
	}
	return nil
}

// applyDefaults fills in zero-value fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Projects == 0 {
		cfg.Projects = defaultProjects
	}
	if cfg.FetchAttempts == 0 {
		cfg.FetchAttempts = defaultAttempts
	}
}

// parseUpgrades reads path@version pairs.
func parseUpgrades(specs []string) ([]types.PackageAction, error) {
	out := make([]types.PackageAction, 0, len(specs))
	for _, s := range specs {
		name, version, _ := strings.Cut(strings.TrimSpace(s), "@")
		if name == "" {
			return nil, fmt.Errorf("upgrade %q names no module", s)
		}
		out = append(out, types.NewPackageAction(name, version))
	}
	return out, nil
}
