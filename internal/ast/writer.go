// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
)

const (
	defaultFileMode = os.FileMode(0o644)
	defaultDirMode  = os.FileMode(0o755)
)

// FormatFile prints a syntax tree in gofmt style.
func FormatFile(fset *token.FileSet, file *ast.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("formatting %s: %w", fset.Position(file.Package).Filename, err)
	}
	return buf.Bytes(), nil
}

// WriteFile replaces path with data through a sibling temp file and a
// rename, so readers see either the old or the new content. An existing
// file keeps its mode; a new one gets 0644 and missing parents are made.
func WriteFile(path string, data []byte) (err error) {
	mode := defaultFileMode
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.porter")
	if err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
