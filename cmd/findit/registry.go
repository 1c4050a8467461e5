// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/pdiddy/findit/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry [name]",
	Short: "List registry keys, or show the strategy for one publisher or journal",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegistry,
}

func init() {
	rootCmd.AddCommand(registryCmd)
}

func runRegistry(cmd *cobra.Command, args []string) error {
	table, err := registry.Default()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		desc, err := table.Lookup(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "strategy:  %s\n", desc.StrategyID)
		fmt.Fprintf(out, "requires:  %s\n", desc.RequiredFields)
		if desc.HasFallback() {
			fmt.Fprintf(out, "fallback:  %s\n", desc.FallbackStrategyID)
		}
		for _, k := range slices.Sorted(maps.Keys(desc.Config)) {
			fmt.Fprintf(out, "%s: %s\n", k, desc.Config[k])
		}
		return nil
	}

	for _, k := range table.Keys() {
		desc, _ := table.Lookup(k)
		fmt.Fprintf(out, "%-45s  %s\n", k, desc.StrategyID)
	}
	fmt.Fprintf(out, "\n%d keys\n", table.Len())
	return nil
}
