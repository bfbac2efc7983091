// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package action

import "slices"

// Execution records how one action fared against one file.
type Execution struct {
	Action            Action `json:"action"`
	FilePath          string `json:"file"`
	TimesRun          int    `json:"times_run"`
	InvalidExecutions int    `json:"invalid_executions"`
}

// NewExecution starts a fresh ledger entry for a on file.
func NewExecution(a Action, file string) *Execution {
	return &Execution{Action: a.Clone(), FilePath: file}
}

// Ledger maps a file path to the executions recorded for it.
type Ledger map[string][]*Execution

// Record appends executions under their file paths.
func (l Ledger) Record(execs ...*Execution) {
	for _, e := range execs {
		l[e.FilePath] = append(l[e.FilePath], e)
	}
}

// Merge appends every execution of other.
func (l Ledger) Merge(other Ledger) {
	for _, execs := range other {
		l.Record(execs...)
	}
}

// Files returns the recorded file paths in lexical order.
func (l Ledger) Files() []string {
	files := make([]string, 0, len(l))
	for f := range l {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// Totals sums successful and stale applications across all files.
func (l Ledger) Totals() (run, invalid int) {
	for _, execs := range l {
		for _, e := range execs {
			run += e.TimesRun
			invalid += e.InvalidExecutions
		}
	}
	return run, invalid
}
