// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	defaultTimeout   = 30 * time.Second
	maxBundleSize    = 8 << 20
)

// Fetcher retrieves the raw bytes of a rule bundle.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, source string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// FileFetcher reads bundles from the local filesystem. Sources are plain
// paths or file:// URLs.
type FileFetcher struct{}

// Fetch reads the bundle at source.
func (FileFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	path := strings.TrimPrefix(source, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle %s: %w", path, err)
	}
	defer f.Close()
	return readBundle(f, path)
}

// readBundle reads r whole, failing with ErrBundleTooLarge instead of
// returning a cut-off bundle.
func readBundle(r io.Reader, source string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBundleSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	if len(data) > maxBundleSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBundleTooLarge, source, maxBundleSize)
	}
	return data, nil
}

// HTTPFetcher downloads bundles over HTTP(S).
type HTTPFetcher struct {
	Client *http.Client // Defaults to a client with a 30s timeout
}

// Fetch GETs source and returns the body. Non-2xx statuses are errors.
func (f HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", source, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: %s", source, resp.Status)
	}
	return readBundle(resp.Body, source)
}

// S3API abstracts the S3 GetObject call for testing.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 fetcher.
type S3Config struct {
	Region  string // AWS region (optional, uses the default chain if empty)
	Profile string // AWS credential profile (optional)
}

// S3Fetcher reads bundles from s3://bucket/key sources.
type S3Fetcher struct {
	api S3API
}

// NewS3Fetcher builds an S3 fetcher from the standard AWS credential chain.
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Fetcher{api: s3.NewFromConfig(awsCfg)}, nil
}

// NewS3FetcherWithAPI returns a fetcher over a pre-configured client.
func NewS3FetcherWithAPI(api S3API) *S3Fetcher {
	return &S3Fetcher{api: api}
}

// Fetch downloads the object named by source.
func (f *S3Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return nil, fmt.Errorf("bad s3 source %q", source)
	}
	out, err := f.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source, err)
	}
	defer out.Body.Close()
	return readBundle(out.Body, source)
}

// SchemeFetcher dispatches on the source's URL scheme. Sources without a
// scheme go to File.
type SchemeFetcher struct {
	File Fetcher
	HTTP Fetcher
	S3   Fetcher // Nil disables s3:// sources
}

// NewSchemeFetcher returns a dispatcher with file and HTTP fetchers and
// the given S3 fetcher, which may be nil.
func NewSchemeFetcher(s3f Fetcher) *SchemeFetcher {
	return &SchemeFetcher{File: FileFetcher{}, HTTP: HTTPFetcher{}, S3: s3f}
}

// Fetch routes source to the fetcher for its scheme.
func (f *SchemeFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	scheme, _, found := strings.Cut(source, "://")
	if !found {
		scheme = "file"
	}
	var next Fetcher
	switch scheme {
	case "file":
		next = f.File
	case "http", "https":
		next = f.HTTP
	case "s3":
		next = f.S3
	}
	if next == nil {
		return nil, fmt.Errorf("no fetcher for %q", source)
	}
	return next.Fetch(ctx, source)
}

// RetryFetcher retries a fetcher with exponential backoff. Exhausting the
// attempts fails with ErrBundleUnavailable wrapping the last error.
type RetryFetcher struct {
	Next      Fetcher
	Attempts  int           // Total attempts (default 3)
	BaseDelay time.Duration // Delay before the second attempt; doubles each time (default 500ms)
	Logger    *slog.Logger
}

// Fetch tries Next until it succeeds, the attempts run out, or ctx ends.
func (f *RetryFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	base := f.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	tried := 0
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := base * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %v", ErrBundleUnavailable, source, ctx.Err())
			}
		}
		tried++
		data, err := f.Next.Fetch(ctx, source)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if errors.Is(err, ErrBundleTooLarge) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		logger.Debug("bundle fetch failed", "source", source, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrBundleUnavailable, source, tried, lastErr)
}
