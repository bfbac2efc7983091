// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package verify checks that a migrated project still builds: it runs go
// build, go vet and optionally a test command, and attributes the
// diagnostics to the files the migration touched.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	defaultCmdTimeout  = 2 * time.Minute
	defaultTestTimeout = 5 * time.Minute
)

// Runner executes a command in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) (string, error)

// Diagnostic is one compiler or vet message.
type Diagnostic struct {
	File     string // As printed by the tool, usually relative to the project
	Line     int    // 1-based
	Column   int    // 1-based, 0 when not printed
	Message  string
	Migrated bool // File was written by the migration
}

func (d Diagnostic) String() string {
	if d.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
}

// Result is the outcome of one verification.
type Result struct {
	BuildOK     bool
	VetOK       bool // False when the build failed and vet was skipped
	TestOK      bool // True when no test command is configured
	Diagnostics []Diagnostic
	BuildOut    string
	VetOut      string
	TestOut     string
}

// Success reports whether every step passed.
func (r *Result) Success() bool {
	return r.BuildOK && r.VetOK && r.TestOK
}

// Migrated returns the diagnostics that point into migrated files.
func (r *Result) Migrated() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Migrated {
			out = append(out, d)
		}
	}
	return out
}

// Config configures a verification.
type Config struct {
	Dir         string        // Module root
	Migrated    []string      // Project-relative paths written by the migration
	SkipVet     bool          // Only build
	TestCmd     string        // Test command, empty to skip
	CmdTimeout  time.Duration // Build and vet timeout (default 2m)
	TestTimeout time.Duration // Test timeout (default 5m)
	Run         Runner        // Defaults to os/exec
}

// Verify runs go build ./..., then go vet ./... and the test command when
// the previous step passed.
func Verify(ctx context.Context, cfg Config) *Result {
	run := cfg.Run
	if run == nil {
		run = execRunner
	}
	cmdTimeout := cfg.CmdTimeout
	if cmdTimeout == 0 {
		cmdTimeout = defaultCmdTimeout
	}
	testTimeout := cfg.TestTimeout
	if testTimeout == 0 {
		testTimeout = defaultTestTimeout
	}
	migrated := make(map[string]bool, len(cfg.Migrated))
	for _, f := range cfg.Migrated {
		migrated[path.Clean(filepath.ToSlash(f))] = true
	}
	res := &Result{TestOK: true}

	// Step 1: build.
	out, err := timed(ctx, cmdTimeout, run, cfg.Dir, "go", "build", "./...")
	res.BuildOut = out
	res.BuildOK = err == nil
	if !res.BuildOK {
		res.Diagnostics = parseDiagnostics(out, migrated)
		res.TestOK = cfg.TestCmd == ""
		return res
	}

	// Step 2: vet.
	res.VetOK = true
	if !cfg.SkipVet {
		out, err = timed(ctx, cmdTimeout, run, cfg.Dir, "go", "vet", "./...")
		res.VetOut = out
		res.VetOK = err == nil
		if !res.VetOK {
			res.Diagnostics = append(res.Diagnostics, parseDiagnostics(out, migrated)...)
		}
	}

	// Step 3: tests.
	parts := strings.Fields(cfg.TestCmd)
	if len(parts) == 0 {
		return res
	}
	if !res.VetOK {
		res.TestOK = false
		return res
	}
	out, err = timed(ctx, testTimeout, run, cfg.Dir, parts[0], parts[1:]...)
	res.TestOut = out
	res.TestOK = err == nil
	return res
}

func timed(ctx context.Context, timeout time.Duration, run Runner, dir, name string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := cmdCtx.Err(); err != nil {
		return "", err
	}
	return run(cmdCtx, dir, name, args...)
}

func execRunner(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}

// diagnosticRegex matches "file.go:10:5: message" and "file.go:10: message".
var diagnosticRegex = regexp.MustCompile(`^(.+?\.go):(\d+)(?::(\d+))?: (.+)$`)

func parseDiagnostics(output string, migrated map[string]bool) []Diagnostic {
	var out []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := diagnosticRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[2])
		col := 0
		if m[3] != "" {
			col, _ = strconv.Atoi(m[3])
		}
		d := Diagnostic{File: m[1], Line: lineNum, Column: col, Message: m[4]}
		d.Migrated = migrated[path.Clean(filepath.ToSlash(d.File))]
		out = append(out, d)
	}
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		return strings.Compare(a.File, b.File)
	})
	return out
}
