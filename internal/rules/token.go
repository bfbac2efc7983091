// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rules

import (
	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// Token is the result of one rule matching one node.
type Token struct {
	Node                types.NodeRef
	File                string // Slash-separated path relative to the project root
	RuleName            string
	Actions             *action.Set
	ProjectTypeActions  []action.Action
	ProjectLevelActions []action.Action
	ProjectFileActions  []action.Action
	Packages            []types.PackageAction
}

// TokenSet is every token of one matching pass, in match order.
type TokenSet []*Token

// Files returns the distinct files tokens were produced for, in first
// seen order.
func (ts TokenSet) Files() []string {
	seen := make(map[string]bool)
	var files []string
	for _, t := range ts {
		if t.File == "" || seen[t.File] {
			continue
		}
		seen[t.File] = true
		files = append(files, t.File)
	}
	return files
}

// Rules returns the distinct rule names that produced tokens.
func (ts TokenSet) Rules() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range ts {
		if !seen[t.RuleName] {
			seen[t.RuleName] = true
			names = append(names, t.RuleName)
		}
	}
	return names
}
