// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rewriter

import (
	"context"
	"fmt"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/detect"
	"github.com/petar-djukic/go-porter/internal/plan"
	"github.com/petar-djukic/go-porter/internal/telemetry"
	"github.com/petar-djukic/go-porter/pkg/types"
)

type factory func(b *base) Rewriter

// variants maps project types to the orchestrator that handles them.
// Types not listed use the default one.
var variants = map[types.ProjectType]factory{
	types.ProjectTypeRPCService:       newRPCService,
	types.ProjectTypeRPCServiceConfig: newRPCService,
	types.ProjectTypeGopathLibrary:    newGopath,
	types.ProjectTypeGopathWebUI:      newGopath,
	types.ProjectTypeGopathMVC:        newGopath,
}

// New returns the rewriter for a detected project.
func New(det detect.Detection, opts Options, deps Deps) Rewriter {
	b := newBase(det, opts, deps)
	if f, ok := variants[det.ProjectType]; ok {
		return f(b)
	}
	return b
}

// Open detects the project in dir and returns its rewriter.
func Open(ctx context.Context, dir string, detector *detect.Detector, opts Options, deps Deps) (Rewriter, error) {
	if detector == nil {
		detector = &detect.Detector{Logger: deps.Logger}
	}
	det, err := detector.Detect(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("detecting %s: %w", dir, err)
	}
	return New(det, opts, deps), nil
}

// excludedTypes are the GOPATH project types with no rewrite support.
// Their runs return the unmodified result; see ErrExcluded.
var excludedTypes = map[types.ProjectType]bool{
	types.ProjectTypeGopathWebUI: true,
	types.ProjectTypeGopathMVC:   true,
}

// Excluded reports whether migration of t is not supported.
func Excluded(t types.ProjectType) bool {
	return excludedTypes[t]
}

// gopath handles legacy GOPATH projects.
type gopath struct {
	*base
}

func newGopath(b *base) Rewriter {
	return &gopath{base: b}
}

func (g *gopath) Run(ctx context.Context) (*ProjectResult, error) {
	if Excluded(g.det.ProjectType) {
		return g.excluded(), nil
	}
	return g.base.Run(ctx)
}

func (g *gopath) RunWith(ctx context.Context, pa *plan.ProjectActions) (*ProjectResult, error) {
	if Excluded(g.det.ProjectType) {
		return g.excluded(), nil
	}
	return g.base.RunWith(ctx, pa)
}

// excluded returns the result untouched: no ledger, no outputs.
func (g *gopath) excluded() *ProjectResult {
	res := g.ensureResult()
	res.Excluded = true
	res.Executed = make(action.Ledger)
	res.Outputs = make(map[string][]byte)
	res.ModifiedFiles = nil
	g.logger.Info("project excluded", "type", g.det.ProjectType, "reason", ErrExcluded)
	g.deps.Metrics.RecordProject(telemetry.OutcomeExcluded, 0)
	return res
}

// rpcService rewrites the bootstrap files of RPC services after the
// generic phase.
type rpcService struct {
	*base
}

func newRPCService(b *base) Rewriter {
	r := &rpcService{base: b}
	b.post = r.bootstrap
	return r
}

func (r *rpcService) bootstrap(ctx context.Context, res *ProjectResult) error {
	if !r.opts.FeaturePorting {
		r.logger.Info("bootstrap rewrite skipped", "reason", "feature porting disabled")
		return nil
	}
	return rewriteBootstrap(ctx, r.base, res)
}
