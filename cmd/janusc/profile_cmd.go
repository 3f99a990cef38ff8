package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Dispatch-family profiling and optimization recommendations (§2, §4.8)",
	}
	cmd.AddCommand(newProfileReportCmd())
	return cmd
}

func newProfileReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Resolve every call site, then print hot paths and optimizer recommendations",
		RunE:  runProfileReport,
	}
	cmd.Flags().Int("top", 10, "number of hot paths to print, 0 for all")
	return cmd
}

func runProfileReport(cmd *cobra.Command, args []string) error {
	p, _, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())
	top, _ := cmd.Flags().GetInt("top")

	for _, cs := range p.Compilation.CallSites {
		p.Resolve(cmd.Context(), cs)
	}

	hot := p.Profiler.HotPaths(top)
	if len(hot) == 0 {
		printWarning("no call sites were resolved; nothing to profile")
	}
	for _, fp := range hot {
		printInfo(fmt.Sprintf("%-20s calls=%-6d cache_hit_ratio=%.2f mean_latency=%s misses=%d",
			fp.Function, fp.Calls, fp.CacheHitRatio, fp.MeanLatency, fp.Misses))
	}

	recs := p.Profiler.Recommendations()
	if len(recs) == 0 {
		printSuccess("no optimization recommendations")
		return nil
	}
	for _, r := range recs {
		printWarning(fmt.Sprintf("[priority %d] %s: %s", r.Priority, r.Function, r.Reason))
	}
	return nil
}
