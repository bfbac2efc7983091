// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"path"
	"path/filepath"
	"strings"
)

// PackagePath returns the import path of the package holding relFile, a
// slash-separated path relative to the module root.
func PackagePath(modulePath, relFile string) string {
	dir := path.Dir(relFile)
	if dir == "." {
		return modulePath
	}
	if modulePath == "" {
		return dir
	}
	return modulePath + "/" + dir
}

// GopathImportPath derives the import path of a directory laid out under
// a GOPATH src tree (…/src/github.com/org/repo → github.com/org/repo).
// Directories outside any src tree use their base name.
func GopathImportPath(absDir string) string {
	slash := filepath.ToSlash(absDir)
	if i := strings.LastIndex(slash, "/src/"); i >= 0 {
		return slash[i+len("/src/"):]
	}
	return path.Base(slash)
}
