// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package watch

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/petar-djukic/go-porter/internal/rewriter"
)

// OpenFunc builds a rewriter for the project. A non-empty only restricts
// scanning and matching to those files.
type OpenFunc func(ctx context.Context, only []string) (rewriter.Rewriter, error)

// Incremental returns a Handler that migrates only the changed Go files.
// A change to go.mod or the service config re-runs the whole project,
// since it can change which rules apply everywhere. report, when set,
// receives every result.
func Incremental(open OpenFunc, report func(*rewriter.ProjectResult)) Handler {
	return func(ctx context.Context, changed []string) ([]string, error) {
		res, err := migrate(ctx, open, changed)
		if res != nil && report != nil {
			report(res)
		}
		if err != nil {
			return nil, err
		}
		return res.ModifiedFiles, nil
	}
}

func migrate(ctx context.Context, open OpenFunc, changed []string) (*rewriter.ProjectResult, error) {
	if needsFullRun(changed) {
		rw, err := open(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("opening project: %w", err)
		}
		return rw.Run(ctx)
	}

	rw, err := open(ctx, changed)
	if err != nil {
		return nil, fmt.Errorf("opening project: %w", err)
	}
	res, err := rw.Initialize(ctx)
	if err != nil {
		return res, err
	}
	return rw.RunWith(ctx, res.Actions)
}

func needsFullRun(changed []string) bool {
	for _, rel := range changed {
		if !strings.HasSuffix(path.Base(rel), ".go") {
			return true
		}
	}
	return false
}
