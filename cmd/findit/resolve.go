// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/findit/internal/resolver"
	"github.com/pdiddy/findit/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [identifiers...]",
	Short: "Resolve PMIDs, DOIs or PMC ids to verified PDF URLs",
	Long: `Resolve looks up each identifier, builds the candidate PDF URL with the
publisher's strategy and verifies it with one bounded request. Cached
results are returned without network access; use --retry-errors to
re-run cached failures.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.Bool("no-verify", false, "return the constructed URL without probing it (not cached)")
	f.Bool("retry-errors", false, "re-resolve identifiers whose cached result is a failure")
	f.Duration("timeout", 0, "probe timeout (default from config, 10s)")
	f.Int("max-redirects", -1, "redirect hops allowed during the probe (default from config, 3)")
	f.Bool("json", false, "print results as JSON lines")
	f.String("metrics-file", "", "write Prometheus counters to this file on exit")

	v.BindPFlag("metrics_file", f.Lookup("metrics-file"))

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	opts := resolveOptions(cmd)
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	unresolved := 0
	for _, id := range args {
		res, err := a.resolver.ResolveDocument(cmd.Context(), id, opts)
		if errors.Is(err, resolver.ErrUnrecognized) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
			unresolved++
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving %s: %w", id, err)
		}
		if res.Failed() {
			unresolved++
		}
		if err := printResult(out, res, jsonOutput); err != nil {
			return err
		}
	}

	if err := a.writeMetrics(); err != nil {
		return err
	}
	if unresolved > 0 {
		return fmt.Errorf("%d of %d identifier(s) unresolved", unresolved, len(args))
	}
	return nil
}

func resolveOptions(cmd *cobra.Command) types.Options {
	opts := types.DefaultOptions()
	opts.Timeout = cfg.HTTP.Timeout
	opts.MaxRedirects = cfg.HTTP.MaxRedirects

	noVerify, _ := cmd.Flags().GetBool("no-verify")
	opts.Verify = !noVerify
	opts.RetryErrors, _ = cmd.Flags().GetBool("retry-errors")
	if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
		opts.Timeout = d
	}
	if n, _ := cmd.Flags().GetInt("max-redirects"); n >= 0 {
		opts.MaxRedirects = n
	}
	return opts
}

func printResult(w io.Writer, res types.ResolutionResult, jsonOutput bool) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(res)
	}
	switch {
	case res.Failed():
		fmt.Fprintf(w, "%s\t%s\n", res.Identifier, res.Reason)
	case !res.Verified:
		fmt.Fprintf(w, "%s\t%s\t(unverified)\n", res.Identifier, res.URL)
	default:
		fmt.Fprintf(w, "%s\t%s\n", res.Identifier, res.URL)
	}
	return nil
}
