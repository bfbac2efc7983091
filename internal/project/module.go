// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package project applies the project-scope half of a migration: module
// requirements, go.mod directives, local module references, and text
// edits to non-Go project files.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// ModFileName is the project file of a module-mode project.
const ModFileName = "go.mod"

// ErrNoModFile is returned for a directory without a go.mod.
var ErrNoModFile = errors.New("no go.mod")

// Module is a parsed go.mod.
type Module struct {
	Dir  string
	File *modfile.File
}

// Load parses dir/go.mod.
func Load(dir string) (*Module, error) {
	path := filepath.Join(dir, ModFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrNoModFile, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(dir, data)
}

// Parse parses go.mod content belonging to dir.
func Parse(dir string, data []byte) (*Module, error) {
	f, err := modfile.Parse(filepath.Join(dir, ModFileName), data, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing go.mod: %w", err)
	}
	return &Module{Dir: dir, File: f}, nil
}

// Path returns the module path.
func (m *Module) Path() string {
	if m.File.Module == nil {
		return ""
	}
	return m.File.Module.Mod.Path
}

// GoVersion returns the go directive, or "" if there is none.
func (m *Module) GoVersion() string {
	if m.File.Go == nil {
		return ""
	}
	return m.File.Go.Version
}

// Requires returns the required module paths in file order.
func (m *Module) Requires() []string {
	out := make([]string, 0, len(m.File.Require))
	for _, r := range m.File.Require {
		out = append(out, r.Mod.Path)
	}
	return out
}

// Version returns the required version of path.
func (m *Module) Version(path string) (string, bool) {
	for _, r := range m.File.Require {
		if r.Mod.Path == path {
			return r.Mod.Version, true
		}
	}
	return "", false
}

// Replaces returns the local directories the module is redirected to,
// keyed by module path.
func (m *Module) Replaces() map[string]string {
	out := make(map[string]string)
	for _, r := range m.File.Replace {
		if r.New.Version == "" {
			out[r.Old.Path] = r.New.Path
		}
	}
	return out
}

// Format renders the module after cleaning up dropped lines.
func (m *Module) Format() ([]byte, error) {
	m.File.Cleanup()
	data, err := m.File.Format()
	if err != nil {
		return nil, fmt.Errorf("formatting go.mod: %w", err)
	}
	return data, nil
}

// ResolvePackages folds entries sharing a name into one, keeping the
// most specific version: a pinned version beats AnyVersion, and the
// highest semver wins among pinned ones. First-seen order is kept.
func ResolvePackages(pkgs []types.PackageAction) []types.PackageAction {
	var out []types.PackageAction
	for _, p := range pkgs {
		i := slices.IndexFunc(out, func(q types.PackageAction) bool { return q.Name == p.Name })
		if i < 0 {
			out = append(out, p)
			continue
		}
		if moreSpecific(p.Version, out[i].Version) {
			out[i].Version = p.Version
		}
	}
	return out
}

func moreSpecific(v, than string) bool {
	switch {
	case v == types.AnyVersion || v == "":
		return false
	case than == types.AnyVersion || than == "":
		return true
	}
	return semver.Compare(v, than) > 0
}
