// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-porter/internal/report"
	"github.com/petar-djukic/go-porter/internal/telemetry"
	"github.com/petar-djukic/go-porter/pkg/porter"
)

// porterConfig builds the library config from flags, environment and the
// config file.
func porterConfig() porter.Config {
	cfg := porter.Config{
		TargetVersions: viper.GetStringSlice("target"),
		SourceVersions: viper.GetStringSlice("source"),
		Upgrades:       viper.GetStringSlice("upgrade"),
		References:     viper.GetStringSlice("reference"),
		RuleSources:    viper.GetStringSlice("rules"),
		NoBuiltinRules: viper.GetBool("no-builtin-rules"),
		CacheDir:       viper.GetString("cache-dir"),
		CacheTTL:       viper.GetDuration("cache-ttl"),
		FetchAttempts:  viper.GetInt("fetch-attempts"),
		AWSRegion:      viper.GetString("aws-region"),
		AWSProfile:     viper.GetString("aws-profile"),
		FeaturePorting: viper.GetBool("feature-porting"),
		DryRun:         viper.GetBool("dry-run"),
		Workers:        viper.GetInt("workers"),
		Projects:       viper.GetInt("projects"),
		DiffContext:    viper.GetInt("diff-context"),
		NoGit:          viper.GetBool("no-git"),
		DirtyCommit:    viper.GetBool("dirty-commit"),
		Verify:         viper.GetBool("verify"),
		TestCmd:        viper.GetString("test-cmd"),
		Logger:         slog.Default(),
	}
	if viper.GetString("metrics-addr") != "" {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	return cfg
}

// serveMetrics exposes the default registry until ctx is done.
func serveMetrics(ctx context.Context) {
	addr := viper.GetString("metrics-addr")
	if addr == "" {
		return
	}
	srv := &http.Server{Addr: addr, Handler: telemetry.Handler()}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
}

func dirsOf(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

// newRunCmd creates the "run" command.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [dir...]",
		Short: "Migrate one or more projects",
		Long:  "Run detects each project, applies the matching rules and writes the rewritten files, then optionally verifies and commits them.",
		RunE:  runPorter,
	}
	cmd.Flags().Bool("dry-run", false, "Print a unified diff instead of writing")
	cmd.Flags().Int("diff-context", report.DefaultContext, "Lines of context in dry-run diffs")
	cmd.Flags().Bool("no-git", false, "Do not commit the migrated files")
	cmd.Flags().Bool("dirty-commit", false, "Commit uncommitted changes before migrating instead of refusing")
	cmd.Flags().Bool("verify", false, "Run go build and go vet after migrating")
	cmd.Flags().String("test-cmd", "", "Test command run after a successful vet (e.g. 'go test ./...')")
	cmd.Flags().String("output", "text", "Output format: text or json")
	return cmd
}

// runPorter migrates the projects named on the command line.
func runPorter(cmd *cobra.Command, args []string) error {
	viper.BindPFlags(cmd.Flags())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	serveMetrics(ctx)

	p, err := porter.New(ctx, porterConfig())
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer p.Close()

	results, err := p.Run(ctx, dirsOf(args)...)
	if perr := printResults(cmd.OutOrStdout(), viper.GetString("output"), results); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success() {
			return fmt.Errorf("%s: migration finished with errors", r.Project)
		}
	}
	return nil
}

// newAnalyzeCmd creates the "analyze" command.
func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Print the actions a run would apply",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			p, err := porter.New(ctx, porterConfig())
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer p.Close()

			res, err := p.Analyze(ctx, dirsOf(args)[0])
			if err != nil {
				return err
			}
			return report.WriteJSON(cmd.OutOrStdout(), res)
		},
	}
	return cmd
}

// printResults writes results as JSON or as a short text summary with
// dry-run diffs.
func printResults(w io.Writer, format string, results []*porter.Result) error {
	if format == "json" {
		return report.WriteJSON(w, results)
	}
	for _, r := range results {
		printSummary(w, r)
		if r.Diff != "" {
			fmt.Fprintln(w)
			fmt.Fprint(w, r.Diff)
		}
		if r.VerifyReport != "" {
			fmt.Fprintln(w)
			fmt.Fprint(w, r.VerifyReport)
		}
	}
	return nil
}

func printSummary(w io.Writer, r *porter.Result) {
	switch {
	case r.Excluded:
		fmt.Fprintf(w, "%s: %s projects are not migrated\n", r.Project, r.ProjectType)
	case len(r.ModifiedFiles) == 0:
		fmt.Fprintf(w, "%s: nothing to migrate (%s)\n", r.Project, r.ProjectType)
	default:
		fmt.Fprintf(w, "%s: %d files, %d applied, %d stale (%s)\n",
			r.Project, len(r.ModifiedFiles), r.Applied, r.Invalid, r.ProjectType)
	}
	if r.Commit != "" {
		fmt.Fprintf(w, "  committed %s\n", r.Commit)
	}
	for _, m := range r.MissingReferences {
		fmt.Fprintf(w, "  missing reference: %s\n", m)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}

// newWatchCmd creates the "watch" command.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Migrate a project, then re-migrate files as they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			serveMetrics(ctx)

			p, err := porter.New(ctx, porterConfig())
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			return p.Watch(ctx, dirsOf(args)[0], func(r *porter.Result) {
				printSummary(out, r)
			})
		},
	}
}

// newUndoCmd creates the "undo" command.
func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo [dir]",
		Short: "Revert the last go-porter commit",
		Long:  "Undo restores the files the last migration commit changed and moves HEAD back to its parent.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := porter.Undo(dirsOf(args)[0])
			if err != nil {
				return fmt.Errorf("undo failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted migration %s.\n", id)
			return nil
		},
	}
}
