// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package replacer

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/petar-djukic/go-porter/internal/action"
)

const defaultWorkers = 4

// ApplyAll applies every file on a bounded pool. Per-file failures are
// kept in FileResult.Err; only a missing handler aborts the batch.
// Results are in input order.
func (r *Replacer) ApplyAll(ctx context.Context, files []File) ([]*FileResult, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	results := make([]*FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &FileResult{Path: f.Path, Content: f.Source, Err: err}
				return nil
			}
			res, err := r.ApplyFile(gctx, f)
			if errors.Is(err, action.ErrNoHandler) {
				return err
			}
			if err != nil {
				r.logger().Error("file not rewritten", "file", f.Path, "error", err)
				res.Err = err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Ledger collects the executions of results into a ledger.
func Ledger(results []*FileResult) action.Ledger {
	l := make(action.Ledger)
	for _, res := range results {
		if res != nil {
			l.Record(res.Executions...)
		}
	}
	return l
}
