// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package porter is the public API of go-porter, a rule-driven migration
// engine that rewrites Go projects for newer Go releases and libraries.
package porter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// Error types for the Porter API.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrRulesSetup    = errors.New("rule sources could not be set up")
)

// Config configures a Porter.
type Config struct {
	TargetVersions []string // Go versions to migrate to (required)
	SourceVersions []string // Defaults to each project's go directive
	Upgrades       []string // Module upgrades as path@version
	References     []string // Local module directories to reference

	RuleSources    []string      // Extra rule bundles: paths, http(s):// or s3:// URLs
	NoBuiltinRules bool          // Use only RuleSources
	CacheDir       string        // Badger directory for fetched bundles (empty = memory only)
	CacheTTL       time.Duration // Fetched bundle lifetime (default 24h)
	FetchAttempts  int           // Attempts per bundle source (default 3)
	AWSRegion      string        // For s3:// sources
	AWSProfile     string        // For s3:// sources

	FeaturePorting bool // Rewrite service bootstrap files
	DryRun         bool // Report diffs, write nothing
	Workers        int  // File workers per project (default NumCPU)
	Projects       int  // Projects migrated concurrently (default 2)
	DiffContext    int  // Diff context lines (default 3)

	NoGit       bool // Disable commits
	DirtyCommit bool // Commit pre-existing changes first instead of refusing

	Verify  bool   // go build and go vet after migrating
	TestCmd string // Run after a successful vet

	Registry prometheus.Registerer // Metrics registry (nil = no metrics)
	Logger   *slog.Logger
}

// Result is the public projection of one project's migration.
type Result struct {
	RunID             string
	Project           string
	ProjectType       string
	Dialect           string
	Excluded          bool
	ModifiedFiles     []string
	Packages          []string // path@version
	ProjectActions    []string
	PlannedActions    int                 // File actions computed
	Plan              map[string][]string // File actions by file
	Applied           int                 // Successful applications
	Invalid           int                 // Stale or unresolved applications
	MissingReferences []string
	Warnings          []string
	Errors            []string
	Diff              string // Dry runs only
	Commit            string // When git is enabled and files changed
	Verified          bool   // Verification ran and passed
	VerifyReport      string // Verification ran and failed
	Executions        []Execution
}

// Execution is one ledger entry: how one action fared against one file.
type Execution struct {
	File     string         `json:"file"`
	Rule     string         `json:"rule,omitempty"`
	Op       string         `json:"op"`
	Kind     types.NodeKind `json:"kind"`
	Key      string         `json:"key"`
	Value    string         `json:"value,omitempty"`
	TimesRun int            `json:"times_run"`
	Invalid  int            `json:"invalid_executions"`
}

// Success reports whether the project migrated without errors.
func (r *Result) Success() bool {
	return len(r.Errors) == 0 && r.VerifyReport == ""
}

// Porter migrates Go projects.
type Porter interface {
	// Analyze computes the actions for a project without applying them.
	Analyze(ctx context.Context, dir string) (*Result, error)
	// Run migrates each project directory.
	Run(ctx context.Context, dirs ...string) ([]*Result, error)
	// Watch migrates dir, then re-migrates changed files until ctx ends.
	Watch(ctx context.Context, dir string, onResult func(*Result)) error
	// Close releases the bundle cache.
	Close() error
}

// Undo reverts the last migration commit in the repository holding dir
// and returns the run id it undid.
func Undo(dir string) (string, error) {
	return undo(dir)
}
