// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rewriter

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/telemetry"
)

// OpenFunc builds the rewriter of one project directory.
type OpenFunc func(ctx context.Context, dir string) (Rewriter, error)

// Batch migrates several projects on a bounded pool.
type Batch struct {
	Open    OpenFunc
	Workers int // Defaults to 2
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Run migrates every directory. A project that fails is reported in its
// own result and does not stop the others; only a missing handler, a
// model inconsistency, aborts the batch. Results are in input order.
func (b *Batch) Run(ctx context.Context, dirs []string) ([]*ProjectResult, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := b.Workers
	if workers <= 0 {
		workers = 2
	}
	results := make([]*ProjectResult, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, dir := range dirs {
		g.Go(func() error {
			res, err := b.runOne(gctx, dir)
			if errors.Is(err, action.ErrNoHandler) {
				return err
			}
			if err != nil {
				logger.Error("project failed", "project", dir, "error", err)
				if res == nil {
					res = &ProjectResult{ProjectPath: dir}
				}
				res.Errors = append(res.Errors, err.Error())
				b.Metrics.RecordProject(telemetry.OutcomeFailed, 0)
			}
			results[i] = res
			return nil
		})
	}
	return results, g.Wait()
}

func (b *Batch) runOne(ctx context.Context, dir string) (*ProjectResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rw, err := b.Open(ctx, dir)
	if err != nil {
		return nil, err
	}
	return rw.Run(ctx)
}
