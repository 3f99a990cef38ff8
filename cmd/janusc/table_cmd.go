package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
	"github.com/janus-lang/dispatch/pkg/incremental"
)

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Dispatch table generation and inspection",
	}
	cmd.AddCommand(newTableBuildCmd())
	cmd.AddCommand(newTableDumpCmd())
	return cmd
}

func newTableBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Materialize dispatch tables for every qualifying function name (§4.5)",
		RunE:  runTableBuild,
	}
	cmd.Flags().Bool("store", false, "persist each materialized table to the incremental disk cache")
	return cmd
}

func runTableBuild(cmd *cobra.Command, args []string) error {
	p, cfg, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())
	store, _ := cmd.Flags().GetBool("store")

	tables := p.BuildTables(cmd.Context())
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var cache *incremental.DiskCache
	if store {
		cache, err = incremental.NewDiskCache(cfg.Incremental.CacheDir)
		if err != nil {
			return err
		}
	}

	for _, name := range names {
		t := tables[name]
		printInfo(fmt.Sprintf("%-20s exact=%-4d tree_depth=%-3d memory=%dB cache_efficiency=%.2f",
			name, len(t.ExactMatches), t.Metadata.TreeDepth, t.Metadata.MemoryBytes, t.Metadata.CacheEfficiencyEstimate))
		if cache != nil {
			hash, err := cache.Store(t)
			if err != nil {
				return fmt.Errorf("table build: storing %q: %w", name, err)
			}
			printSuccess(fmt.Sprintf("%s cached as %s", name, hash))
		}
	}
	if len(names) == 0 {
		printWarning("no function name met the table-generation thresholds")
	}
	return nil
}

func newTableDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <function>",
		Short: "Build one function's table and print its binary layout as hex (§6 Core -> Codegen interface)",
		Args:  cobra.ExactArgs(1),
		RunE:  runTableDump,
	}
	cmd.Flags().String("out", "", "write the encoded table bytes to this file instead of stdout hex")
	return cmd
}

func runTableDump(cmd *cobra.Command, args []string) error {
	p, _, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())
	p.BuildTables(cmd.Context())

	functionName := args[0]
	table, ok := p.Table(functionName)
	if !ok {
		return fmt.Errorf("table dump: %q did not meet the table-generation thresholds, or has no implementations", functionName)
	}

	encoded := dispatchtable.Encode(table)
	outPath, _ := cmd.Flags().GetString("out")
	if outPath != "" {
		if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("wrote %d bytes to %s", len(encoded), outPath))
		return nil
	}

	fmt.Println(hex.EncodeToString(encoded))
	return nil
}
