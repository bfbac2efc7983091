// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/petar-djukic/go-porter/internal/rewriter"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// Entry is one ledger line: how one action fared against one file.
type Entry struct {
	File     string         `json:"file"`
	Rule     string         `json:"rule,omitempty"`
	Op       string         `json:"op"`
	Kind     types.NodeKind `json:"kind"`
	Key      string         `json:"key"`
	Value    string         `json:"value,omitempty"`
	TimesRun int            `json:"times_run"`
	Invalid  int            `json:"invalid_executions"`
}

// Ledger is the audit export of one project run.
type Ledger struct {
	RunID             string                `json:"run_id"`
	Project           string                `json:"project"`
	ProjectType       types.ProjectType     `json:"project_type"`
	Dialect           types.Dialect         `json:"dialect"`
	Excluded          bool                  `json:"excluded,omitempty"`
	Packages          []types.PackageAction `json:"packages,omitempty"`
	MissingReferences []string              `json:"missing_references,omitempty"`
	ModifiedFiles     []string              `json:"modified_files,omitempty"`
	Entries           []Entry               `json:"entries"`
	TimesRun          int                   `json:"times_run"`
	Invalid           int                   `json:"invalid_executions"`
	Warnings          []string              `json:"warnings,omitempty"`
	Errors            []string              `json:"errors,omitempty"`
}

// NewLedger flattens a result's executions, files in lexical order.
func NewLedger(res *rewriter.ProjectResult) Ledger {
	l := Ledger{
		RunID:             res.RunID,
		Project:           res.ProjectPath,
		ProjectType:       res.ProjectType,
		Dialect:           res.Dialect,
		Excluded:          res.Excluded,
		Packages:          res.Packages,
		MissingReferences: res.MissingReferences,
		ModifiedFiles:     res.ModifiedFiles,
		Entries:           []Entry{},
		Warnings:          res.Warnings,
		Errors:            res.Errors,
	}
	for _, file := range res.Executed.Files() {
		for _, e := range res.Executed[file] {
			l.Entries = append(l.Entries, Entry{
				File:     e.FilePath,
				Rule:     e.Action.RuleName,
				Op:       string(e.Action.Op),
				Kind:     e.Action.Kind,
				Key:      e.Action.Key,
				Value:    e.Action.Value,
				TimesRun: e.TimesRun,
				Invalid:  e.InvalidExecutions,
			})
		}
	}
	l.TimesRun, l.Invalid = res.Executed.Totals()
	return l
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
