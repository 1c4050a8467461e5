// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the findit CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/findit/internal/config"
	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/internal/secrets"
	"github.com/pdiddy/findit/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// v holds flags, FINDIT_* variables and findit.yaml.
var v = config.New()

// cfg and logger are populated before any subcommand runs.
var (
	cfg    types.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the findit CLI.
var rootCmd = &cobra.Command{
	Use:   "findit",
	Short: "Resolve publication identifiers to verified PDF URLs",
	Long: `findit looks up a PMID, DOI or PMC id, picks the publisher strategy
for its journal, builds the candidate PDF URL and confirms it with a single
bounded request. Results, including failures, are cached per identifier.

Use "findit resolve" to resolve identifiers and "findit cache" to inspect
or clear cached results.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		boot := observability.NewLogger(types.LoggingConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		}, os.Stderr)

		s, err := secrets.Load(secrets.DefaultDir, boot)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			boot.Debug().Strs("keys", keys).Msg("loaded secrets")
		}

		cfg, err = config.Load(v, s)
		if err != nil {
			return err
		}
		logger = observability.NewLogger(cfg.Log, os.Stderr)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./findit.yaml or ~/.config/findit/findit.yaml)")
	pf.String("cache-dir", "", "directory holding results.db and upstream.db")
	pf.String("log-level", "", "log level: debug, info, warn, error, disabled")
	pf.String("log-format", "", "log format: console or json")

	v.BindPFlag("cache_dir", pf.Lookup("cache-dir"))
	v.BindPFlag("log.level", pf.Lookup("log-level"))
	v.BindPFlag("log.format", pf.Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("findit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "findit"))
		}
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	case !errors.As(err, &notFound):
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
