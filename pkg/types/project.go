// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ProjectType is the feature-detection classification of a project. The
// rewriter only uses it to pick an orchestration variant.
type ProjectType string

const (
	ProjectTypeUnknown ProjectType = ""

	// Module-mode projects.
	ProjectTypeLibrary          ProjectType = "Library"
	ProjectTypeCommand          ProjectType = "Command"
	ProjectTypeWebAPI           ProjectType = "WebAPI"
	ProjectTypeWebUI            ProjectType = "WebUI"
	ProjectTypeMVC              ProjectType = "MVC"
	ProjectTypeRPCService       ProjectType = "RPCService"       // Listener wired in code
	ProjectTypeRPCServiceConfig ProjectType = "RPCServiceConfig" // Bindings read from service.yaml

	// Legacy GOPATH-layout projects (no go.mod).
	ProjectTypeGopathLibrary ProjectType = "GopathLibrary"
	ProjectTypeGopathWebUI   ProjectType = "GopathWebUI"
	ProjectTypeGopathMVC     ProjectType = "GopathMVC"
)

var projectTypes = []ProjectType{
	ProjectTypeLibrary, ProjectTypeCommand, ProjectTypeWebAPI, ProjectTypeWebUI,
	ProjectTypeMVC, ProjectTypeRPCService, ProjectTypeRPCServiceConfig,
	ProjectTypeGopathLibrary, ProjectTypeGopathWebUI, ProjectTypeGopathMVC,
}

// ParseProjectType maps a name (case-insensitive) to a ProjectType.
func ParseProjectType(s string) (ProjectType, error) {
	if s == "" {
		return ProjectTypeUnknown, nil
	}
	for _, pt := range projectTypes {
		if strings.EqualFold(string(pt), s) {
			return pt, nil
		}
	}
	return ProjectTypeUnknown, fmt.Errorf("unknown project type %q", s)
}

// Dialect returns the source dialect the project type belongs to.
func (p ProjectType) Dialect() Dialect {
	switch p {
	case ProjectTypeGopathLibrary, ProjectTypeGopathWebUI, ProjectTypeGopathMVC:
		return DialectGopath
	default:
		return DialectGo
	}
}

// Dialect selects which rule collection of a rule set applies.
type Dialect string

const (
	DialectGo     Dialect = "go"     // Module mode
	DialectGopath Dialect = "gopath" // Legacy GOPATH layout
)

// AnyVersion is the wildcard version of a package action that names no version.
const AnyVersion = "*"

// PackageAction is a module requirement to add or upgrade in go.mod.
type PackageAction struct {
	Name            string `json:"name" yaml:"name"`                                             // Module path
	OriginalVersion string `json:"original_version,omitempty" yaml:"original_version,omitempty"` // Version found in go.mod, if any
	Version         string `json:"version" yaml:"version"`                                       // Version to require
}

// NewPackageAction returns a package action, defaulting the version to AnyVersion.
func NewPackageAction(name, version string) PackageAction {
	if version == "" {
		version = AnyVersion
	}
	return PackageAction{Name: name, Version: version}
}

// Equal compares by name and version only.
func (p PackageAction) Equal(other PackageAction) bool {
	return p.Name == other.Name && p.Version == other.Version
}

func (p PackageAction) String() string {
	return p.Name + "@" + p.Version
}

// CompareGo compares two Go versions ("1.21", "go1.21.3") the way
// semver.Compare does. Invalid versions sort before valid ones.
func CompareGo(a, b string) int {
	return semver.Compare(goSemver(a), goSemver(b))
}

// ValidGo reports whether v is a Go version CompareGo understands.
func ValidGo(v string) bool {
	return semver.IsValid(goSemver(v))
}

func goSemver(v string) string {
	return "v" + strings.TrimPrefix(strings.TrimSpace(v), "go")
}
