// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package project

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/plan"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// Outcome is what applying the project-scope actions produced.
type Outcome struct {
	Packages []types.PackageAction // Resolved requirements, OriginalVersion filled in
	Ledger   action.Ledger         // Keyed by project file
	Outputs  map[string][]byte     // Slash-separated path relative to Root -> new content
	Missing  []string              // References that could not be resolved
	Warnings []string
}

func (o *Outcome) warn(logger *slog.Logger, msg string, args ...any) {
	text := fmt.Sprintf(msg, args...)
	logger.Warn(text)
	o.Warnings = append(o.Warnings, text)
}

// Applier applies package, project-level and reference actions. Module
// is nil for GOPATH projects, which have no go.mod to edit.
type Applier struct {
	Root   string
	Module *Module
	Editor types.Applier
	Logger *slog.Logger
}

// Apply applies every project-scope part of pa. Nothing is written;
// changed files are returned in Outputs.
func (a *Applier) Apply(pa *plan.ProjectActions) *Outcome {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("project", a.Root)
	out := &Outcome{Ledger: make(action.Ledger), Outputs: make(map[string][]byte)}

	modChanged := a.applyPackages(pa.Packages, out, logger)
	for _, act := range pa.ProjectLevel {
		exec := action.NewExecution(act, act.Key)
		changed, err := a.applyOne(act, out)
		switch {
		case err != nil:
			exec.InvalidExecutions++
			out.warn(logger, "%s: %s on %s: %v", act.RuleName, act.Op, act.Key, err)
		case !changed:
			exec.InvalidExecutions++
			logger.Info("project action already satisfied", "rule", act.RuleName, "action", act.Op, "file", act.Key)
		default:
			exec.TimesRun++
			if act.Key == ModFileName {
				modChanged = true
			}
		}
		out.Ledger.Record(exec)
	}
	if a.applyReferences(pa.References, out, logger) {
		modChanged = true
	}

	if modChanged && a.Module != nil {
		data, err := a.Module.Format()
		if err != nil {
			out.warn(logger, "%v", err)
		} else {
			out.Outputs[ModFileName] = data
		}
	}
	return out
}

func (a *Applier) applyPackages(pkgs []types.PackageAction, out *Outcome, logger *slog.Logger) bool {
	changed := false
	for _, p := range ResolvePackages(pkgs) {
		if a.Module == nil {
			out.warn(logger, "package %s needs a go.mod; the project has none", p)
			out.Packages = append(out.Packages, p)
			continue
		}
		old, present := a.Module.Version(p.Name)
		p.OriginalVersion = old
		out.Packages = append(out.Packages, p)

		switch {
		case p.Version == types.AnyVersion:
			if !present {
				out.warn(logger, "package %s has no pinned version; run go get %s", p.Name, p.Name)
			}
		case !semver.IsValid(p.Version):
			out.warn(logger, "package %s: invalid version %q", p.Name, p.Version)
		case present && semver.Compare(p.Version, old) <= 0:
			// Never downgrade.
		default:
			if err := a.Module.File.AddRequire(p.Name, p.Version); err != nil {
				out.warn(logger, "requiring %s: %v", p, err)
				continue
			}
			changed = true
		}
	}
	return changed
}

// applyOne applies one project-level action and reports whether it
// changed anything.
func (a *Applier) applyOne(act action.Action, out *Outcome) (bool, error) {
	switch act.Op {
	case action.OpModuleGoVersion, action.OpModuleToolchain, action.OpModuleDropReplace, action.OpModuleDropRequire:
		if a.Module == nil {
			return false, ErrNoModFile
		}
		return a.applyModule(act)
	case action.OpFileReplaceText:
		old, repl, ok := SplitReplacement(act.Value)
		if !ok {
			return false, fmt.Errorf("value must be \"old => new\"")
		}
		return a.edit(act.Key, types.Edit{OldContent: old, NewContent: repl}, out)
	case action.OpProjectCreateFile:
		return a.edit(act.Key, types.Edit{NewContent: act.Value, IsCreate: true}, out)
	}
	return false, fmt.Errorf("%w: %s is not a project op", action.ErrNoHandler, act.Op)
}

func (a *Applier) applyModule(act action.Action) (bool, error) {
	f := a.Module.File
	switch act.Op {
	case action.OpModuleGoVersion:
		if !types.ValidGo(act.Value) {
			return false, fmt.Errorf("invalid go version %q", act.Value)
		}
		if cur := a.Module.GoVersion(); cur != "" && types.CompareGo(act.Value, cur) <= 0 {
			return false, nil
		}
		return true, f.AddGoStmt(strings.TrimPrefix(act.Value, "go"))
	case action.OpModuleToolchain:
		name := act.Value
		if !strings.HasPrefix(name, "go") {
			name = "go" + name
		}
		if f.Toolchain != nil && f.Toolchain.Name == name {
			return false, nil
		}
		return true, f.AddToolchainStmt(name)
	case action.OpModuleDropReplace:
		dropped := false
		for _, r := range f.Replace {
			if r.Old.Path == act.Value {
				if err := f.DropReplace(r.Old.Path, r.Old.Version); err != nil {
					return false, err
				}
				dropped = true
			}
		}
		return dropped, nil
	case action.OpModuleDropRequire:
		if _, ok := a.Module.Version(act.Value); !ok {
			return false, nil
		}
		return true, f.DropRequire(act.Value)
	}
	return false, nil
}

// edit runs a text edit against the current content of rel, which is the
// pending output if an earlier action already changed it.
func (a *Applier) edit(rel string, e types.Edit, out *Outcome) (bool, error) {
	if a.Editor == nil {
		return false, errors.New("no text editor configured")
	}
	content, ok := out.Outputs[rel]
	if !ok {
		data, err := os.ReadFile(filepath.Join(a.Root, filepath.FromSlash(rel)))
		switch {
		case err == nil:
			content = data
		case errors.Is(err, fs.ErrNotExist) && e.IsCreate:
			content = nil
		default:
			return false, err
		}
	}
	if e.IsCreate && content != nil {
		return false, nil
	}
	if !e.IsCreate && e.OldContent != "" && !strings.Contains(string(content), e.OldContent) &&
		strings.Contains(string(content), e.NewContent) {
		return false, nil
	}
	e.FilePath = rel
	res, err := a.Editor.ApplyContent(content, e)
	if err != nil {
		return false, err
	}
	out.Outputs[rel] = res.Content
	return true, nil
}

func (a *Applier) applyReferences(refs []plan.Reference, out *Outcome, logger *slog.Logger) bool {
	changed := false
	for _, ref := range refs {
		if ref.Module == "" {
			m, err := Load(ref.Path)
			if err != nil {
				out.Missing = append(out.Missing, ref.Path)
				out.warn(logger, "reference %s: %v", ref.Path, err)
				continue
			}
			ref.Module = m.Path()
		}
		if a.Module == nil {
			out.warn(logger, "reference %s needs a go.mod; the project has none", ref.Module)
			continue
		}
		local := localPath(ref.Relative)
		if a.Module.Replaces()[ref.Module] == local {
			continue
		}
		if err := a.Module.File.AddReplace(ref.Module, "", local, ""); err != nil {
			out.warn(logger, "replacing %s: %v", ref.Module, err)
			continue
		}
		changed = true
	}
	return changed
}

// localPath makes a relative directory recognisable to go.mod as a
// filesystem path.
func localPath(rel string) string {
	switch {
	case rel == ".", rel == "..", filepath.IsAbs(rel),
		strings.HasPrefix(rel, "./"), strings.HasPrefix(rel, "../"):
		return rel
	}
	return "./" + rel
}

// SplitReplacement splits a file.replace-text value into the text to find
// and its replacement. Multi-line values put "=>" on a line of its own.
func SplitReplacement(value string) (old, repl string, ok bool) {
	if old, repl, ok = strings.Cut(value, "\n=>\n"); ok {
		return old, repl, old != ""
	}
	old, repl, ok = strings.Cut(value, " => ")
	return old, repl, ok && old != ""
}
