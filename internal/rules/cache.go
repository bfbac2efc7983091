// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheTTL  = 24 * time.Hour
	defaultFrontSize = 64
	bundleKeyPrefix  = "bundle/"
)

// CacheConfig configures the bundle cache.
type CacheConfig struct {
	Path      string        // Badger directory; required unless InMemory
	InMemory  bool          // Keep the store in memory only
	TTL       time.Duration // Entry lifetime in both tiers (default 24h)
	FrontSize int           // In-memory front cache entries (default 64)
	Logger    *slog.Logger  // Nil silences badger
}

// Cache keeps fetched bundles in badger with an entry TTL, fronted by an
// expiring in-memory LRU.
type Cache struct {
	db    *badger.DB
	front *expirable.LRU[string, []byte]
	ttl   time.Duration
}

// badgerLogger routes badger's logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenCache opens (or creates) the bundle cache.
func OpenCache(cfg CacheConfig) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cache path is required unless in memory")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	size := cfg.FrontSize
	if size <= 0 {
		size = defaultFrontSize
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening bundle cache: %w", err)
	}
	return &Cache{
		db:    db,
		front: expirable.NewLRU[string, []byte](size, nil, ttl),
		ttl:   ttl,
	}, nil
}

// Get returns the cached bundle for source. A miss is (nil, false, nil).
func (c *Cache) Get(source string) ([]byte, bool, error) {
	if data, ok := c.front.Get(source); ok {
		return data, true, nil
	}
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(bundleKeyPrefix + source))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached bundle %s: %w", source, err)
	}
	c.front.Add(source, data)
	return data, true, nil
}

// Put stores data for source in both tiers.
func (c *Cache) Put(source string, data []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(bundleKeyPrefix+source), data).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("caching bundle %s: %w", source, err)
	}
	c.front.Add(source, data)
	return nil
}

// Invalidate drops source from both tiers.
func (c *Cache) Invalidate(source string) error {
	c.front.Remove(source)
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(bundleKeyPrefix + source))
	})
	if err != nil {
		return fmt.Errorf("invalidating bundle %s: %w", source, err)
	}
	return nil
}

// Close releases the store.
func (c *Cache) Close() error {
	c.front.Purge()
	return c.db.Close()
}

// CachingFetcher serves bundles from a cache, falling through to Next on
// a miss and storing what it fetched.
type CachingFetcher struct {
	Cache  *Cache
	Next   Fetcher
	Logger *slog.Logger
}

// Fetch returns the cached bundle or fetches and caches it.
func (f *CachingFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if data, ok, err := f.Cache.Get(source); err != nil {
		logger.Warn("bundle cache read failed", "source", source, "error", err)
	} else if ok {
		return data, nil
	}
	data, err := f.Next.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := f.Cache.Put(source, data); err != nil {
		logger.Warn("bundle cache write failed", "source", source, "error", err)
	}
	return data, nil
}
