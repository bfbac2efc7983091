// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// Loader returns the rules that apply to a project.
type Loader interface {
	Load(ctx context.Context, q Query) (*RuleSet, error)
}

// BundleLoader merges the built-in bundle with bundles fetched from
// Sources, in order. A source that cannot be fetched or decoded is
// reported in the returned error; the rule set built from the rest is
// still returned.
type BundleLoader struct {
	Sources   []string
	Fetcher   Fetcher // Required when Sources is non-empty
	NoBuiltin bool
	Logger    *slog.Logger
}

// Load fetches, decodes and merges every bundle, then keeps the rules q
// selects.
func (l *BundleLoader) Load(ctx context.Context, q Query) (*RuleSet, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bundles []*Bundle
	var errs []error
	if !l.NoBuiltin {
		b, err := Builtin()
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	for _, src := range l.Sources {
		if l.Fetcher == nil {
			errs = append(errs, fmt.Errorf("%w: %s: no fetcher configured", ErrBundleUnavailable, src))
			continue
		}
		data, err := l.Fetcher.Fetch(ctx, src)
		if err != nil {
			logger.Warn("rule bundle unavailable", "source", src, "error", err)
			errs = append(errs, err)
			continue
		}
		b, err := Decode(data)
		if b == nil {
			errs = append(errs, fmt.Errorf("%s: %w", src, err))
			continue
		}
		if err != nil {
			logger.Warn("skipping invalid rules", "source", src, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src, err))
		}
		bundles = append(bundles, b)
	}

	return Select(Merge(bundles...), q), errors.Join(errs...)
}

// Select returns a rule set holding only the rules q selects, evaluated
// per dialect collection.
func Select(rs *RuleSet, q Query) *RuleSet {
	out := &RuleSet{Version: rs.Version}
	goQ, gopathQ := q, q
	goQ.Dialect, gopathQ.Dialect = types.DialectGo, types.DialectGopath
	out.Go = rs.Filter(goQ)
	out.Gopath = rs.Filter(gopathQ)
	return out
}

// StaticLoader serves a fixed rule set.
type StaticLoader struct {
	Rules *RuleSet
}

// Load returns the fixed rules q selects.
func (l StaticLoader) Load(_ context.Context, q Query) (*RuleSet, error) {
	if l.Rules == nil {
		return &RuleSet{}, nil
	}
	return Select(l.Rules, q), nil
}
