// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package plan folds the rule tokens of one project into the actions the
// appliers consume: package requirements, project-level actions, local
// module references and per-file action lists.
package plan

import (
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/rules"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// Reference is a local module the project depends on through a replace
// directive.
type Reference struct {
	Module   string `json:"module,omitempty"` // Module path, when known
	Path     string `json:"path"`             // Absolute directory
	Relative string `json:"relative"`         // Path relative to the project file, or Path if none exists
}

// ProjectActions is everything one pass decided to do to a project.
type ProjectActions struct {
	Packages     []types.PackageAction      `json:"packages,omitempty"`
	ProjectLevel []action.Action            `json:"project_level,omitempty"`
	References   []Reference                `json:"references,omitempty"`
	Files        map[string][]action.Action `json:"files,omitempty"`
	Warnings     []string                   `json:"warnings,omitempty"`
}

// Empty returns a ProjectActions with no actions.
func Empty() *ProjectActions {
	return &ProjectActions{Files: make(map[string][]action.Action)}
}

// FilePaths returns the files with actions, sorted.
func (pa *ProjectActions) FilePaths() []string {
	return slices.Sorted(maps.Keys(pa.Files))
}

// Len returns the number of file-level actions.
func (pa *ProjectActions) Len() int {
	n := 0
	for _, actions := range pa.Files {
		n += len(actions)
	}
	return n
}

// Subset returns the actions of the named files only. Packages,
// project-level actions and references are left out so an incremental
// pass never replays them.
func (pa *ProjectActions) Subset(files ...string) *ProjectActions {
	out := Empty()
	for _, f := range files {
		if actions, ok := pa.Files[f]; ok {
			out.Files[f] = slices.Clone(actions)
		}
	}
	return out
}

// Config carries what the aggregator needs besides the tokens.
type Config struct {
	ProjectFile string                // Absolute path of go.mod (or a file in the project root)
	Upgrades    []types.PackageAction // Package upgrades declared in configuration
	References  []Reference           // Local modules; Relative is filled in by Build
}

// Build aggregates tokens into one ProjectActions.
func Build(tokens rules.TokenSet, cfg Config) *ProjectActions {
	pa := Empty()

	// Rule-derived packages first, then configured upgrades. Entries with
	// the same name and a different version are both kept.
	for _, tok := range tokens {
		for _, p := range tok.Packages {
			pa.addPackage(p)
		}
	}
	for _, p := range cfg.Upgrades {
		pa.addPackage(p)
	}

	project := &action.Set{}
	files := make(map[string]*action.Set)
	var order []string
	for _, tok := range tokens {
		project.AddAll(tok.ProjectTypeActions...)
		project.AddAll(tok.ProjectLevelActions...)
		project.AddAll(tok.ProjectFileActions...)

		if tok.File == "" || tok.Actions.Len() == 0 {
			continue
		}
		set, ok := files[tok.File]
		if !ok {
			set = &action.Set{}
			files[tok.File] = set
			order = append(order, tok.File)
		}
		set.Merge(tok.Actions)
	}
	pa.ProjectLevel = project.Items()
	for _, f := range order {
		pa.Files[f] = files[f].Items()
	}

	for _, ref := range cfg.References {
		rel, ok := RelativePath(cfg.ProjectFile, ref.Path)
		if !ok {
			pa.Warnings = append(pa.Warnings,
				fmt.Sprintf("reference %s shares no directory with %s; using the absolute path", ref.Path, cfg.ProjectFile))
		}
		ref.Relative = rel
		pa.References = append(pa.References, ref)
	}
	return pa
}

func (pa *ProjectActions) addPackage(p types.PackageAction) {
	if p.Version == "" {
		p.Version = types.AnyVersion
	}
	if slices.ContainsFunc(pa.Packages, p.Equal) {
		return
	}
	pa.Packages = append(pa.Packages, p)
}

// Safe runs build and turns an error or a panic into an empty
// ProjectActions. The failure is logged against project and returned.
func Safe(logger *slog.Logger, project string, build func() (*ProjectActions, error)) (pa *ProjectActions, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("building project actions: panic: %v", r)
			logger.Error("project actions failed", "project", project, "error", err, "stack", string(debug.Stack()))
			pa = Empty()
		}
	}()

	pa, err = build()
	if err != nil {
		logger.Error("project actions failed", "project", project, "error", err)
		return Empty(), err
	}
	if pa == nil {
		pa = Empty()
	}
	return pa, nil
}
