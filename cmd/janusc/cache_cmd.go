package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janus-lang/dispatch/pkg/incremental"
	"github.com/janus-lang/dispatch/pkg/pipeline"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Incremental on-disk table cache maintenance (§4.10)",
	}
	cmd.AddCommand(newCacheGCCmd())
	return cmd
}

func newCacheGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Rebuild every table and evict on-disk cache entries no live signature references anymore",
		RunE:  runCacheGC,
	}
	cmd.Flags().Bool("dry-run", false, "report what would be evicted without deleting anything")
	return cmd
}

func runCacheGC(cmd *cobra.Command, args []string) error {
	p, cfg, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cache, err := incremental.NewDiskCache(cfg.Incremental.CacheDir)
	if err != nil {
		return err
	}

	tracker := incremental.NewDependencyTracker()
	tables := p.BuildTables(cmd.Context())
	for name, t := range tables {
		hash, err := cache.Store(t)
		if err != nil {
			return fmt.Errorf("cache gc: storing %q: %w", name, err)
		}
		tracker.SetCachedHash(pipeline.SignatureHash(name), hash)
	}

	onDisk, err := cache.ListHashes()
	if err != nil {
		return err
	}
	live := tracker.LiveHashes()

	evicted := 0
	for _, hash := range onDisk {
		if _, ok := live[hash]; ok {
			continue
		}
		if dryRun {
			printWarning(fmt.Sprintf("would evict %s", hash))
			continue
		}
		if err := cache.Evict(hash); err != nil {
			return fmt.Errorf("cache gc: evicting %s: %w", hash, err)
		}
		printInfo(fmt.Sprintf("evicted %s", hash))
		evicted++
	}

	printSuccess(fmt.Sprintf("%d live, %d on disk, %d evicted", len(live), len(onDisk), evicted))
	return nil
}
