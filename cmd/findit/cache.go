// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/findit/internal/config"
	"github.com/pdiddy/findit/internal/kvstore"
	"github.com/pdiddy/findit/internal/resolver"
	"github.com/pdiddy/findit/internal/resultcache"
	"github.com/pdiddy/findit/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached results",
	Long: `Cache manages the result cache (results.db) and the upstream metadata
cache (upstream.db). Entries never expire; delete them to force a fresh
resolution.`,
}

// --- show subcommand ---

var cacheShowCmd = &cobra.Command{
	Use:   "show [identifiers...]",
	Short: "Show cached results (all when no identifier is given)",
	RunE:  runCacheShow,
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	c, err := resultcache.Open(config.ResultsDB(cfg), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	var results []types.ResolutionResult
	if len(args) == 0 {
		if results, err = c.List(cmd.Context()); err != nil {
			return err
		}
	}
	for _, raw := range args {
		id, err := resolver.Classify(raw)
		if err != nil {
			return err
		}
		r, err := c.Get(cmd.Context(), id.Key())
		if errors.Is(err, resultcache.ErrNotFound) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not cached\n", id)
			continue
		}
		if err != nil {
			return err
		}
		results = append(results, r)
	}

	format, _ := cmd.Flags().GetString("format")
	return formatResults(cmd.OutOrStdout(), results, format)
}

func formatResults(w io.Writer, results []types.ResolutionResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	case "", "table":
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No cached results.")
		return nil
	}
	fmt.Fprintf(w, "%-30s  %-8s  %-18s  %-20s  %s\n", "Identifier", "Kind", "Strategy", "Updated", "URL / Reason")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range results {
		detail := r.URL
		if r.Failed() {
			detail = r.Reason
		}
		kind := string(r.Kind)
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(w, "%-30s  %-8s  %-18s  %-20s  %s\n",
			r.Identifier, kind, r.StrategyID, r.UpdatedAt.Format("2006-01-02 15:04:05"), detail)
	}
	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

// --- delete subcommand ---

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete identifiers...",
	Short: "Delete cached results so the next resolve starts fresh",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheDelete,
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	c, err := resultcache.Open(config.ResultsDB(cfg), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, raw := range args {
		id, err := resolver.Classify(raw)
		if err != nil {
			return err
		}
		if err := c.Delete(cmd.Context(), id.Key()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	}
	return nil
}

// --- clear subcommand ---

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Long: `Clear empties the result cache. With --upstream the metadata payload
cache is emptied as well.`,
	RunE: runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := resultcache.Open(config.ResultsDB(cfg), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Clear(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached result(s)\n", n)

	if upstream, _ := cmd.Flags().GetBool("upstream"); upstream {
		store, err := kvstore.Open(config.UpstreamDB(cfg))
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d upstream payload(s)\n", n)
	}
	return nil
}

func init() {
	cacheShowCmd.Flags().String("format", "table", "output format: table, json or yaml")
	cacheClearCmd.Flags().Bool("upstream", false, "also clear the upstream metadata cache")

	cacheCmd.AddCommand(cacheShowCmd, cacheDeleteCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
