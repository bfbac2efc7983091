// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command go-porter migrates Go projects to newer Go releases and
// libraries by applying rewrite rules to their syntax trees.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "go-porter",
		Short: "Rule-driven Go migration engine",
		Long: "go-porter detects what kind of Go project it is looking at, matches rewrite rules " +
			"against its syntax trees, and rewrites sources, go.mod and service bootstrap files " +
			"for the target Go release.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(viper.GetString("log-level"))
		},
	}

	// Global flags.
	flags := rootCmd.PersistentFlags()
	flags.StringSlice("target", []string{"1.22"}, "Go versions to migrate to")
	flags.StringSlice("source", nil, "Go versions migrated from (default: the go directive)")
	flags.StringSlice("upgrade", nil, "Module upgrades as path@version")
	flags.StringSlice("reference", nil, "Local module directories to reference")
	flags.StringSlice("rules", nil, "Extra rule bundles: paths, http(s):// or s3:// URLs")
	flags.Bool("no-builtin-rules", false, "Use only the --rules bundles")
	flags.String("cache-dir", "", "Directory for the fetched bundle cache (default: in memory)")
	flags.Duration("cache-ttl", 0, "Lifetime of cached bundles (default 24h)")
	flags.Int("fetch-attempts", 3, "Attempts per rule bundle source")
	flags.String("aws-region", "", "AWS region for s3:// bundles")
	flags.String("aws-profile", "", "AWS profile for s3:// bundles")
	flags.Bool("feature-porting", false, "Rewrite service bootstrap files")
	flags.Int("workers", 0, "File workers per project (default: NumCPU)")
	flags.Int("projects", 2, "Projects migrated concurrently")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	for _, name := range []string{
		"target", "source", "upgrade", "reference", "rules", "no-builtin-rules",
		"cache-dir", "cache-ttl", "fetch-attempts", "aws-region", "aws-profile",
		"feature-porting", "workers", "projects", "log-level", "metrics-addr",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	// .env first, so its values reach viper as GO_PORTER_* variables.
	godotenv.Load() // Ignore error; .env is optional.

	// Env vars: GO_PORTER_TARGET, GO_PORTER_DRY_RUN, etc.
	viper.SetEnvPrefix("GO_PORTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Config file.
	viper.SetConfigName(".go-porter")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore error; config file is optional.

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// setupLogging installs a text handler on stderr as the default logger.
func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print go-porter version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "go-porter %s\n", version)
		},
	}
}
