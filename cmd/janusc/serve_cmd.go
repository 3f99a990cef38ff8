package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/janus-lang/dispatch/pkg/diagstream"
	"github.com/janus-lang/dispatch/pkg/incremental"
	"github.com/janus-lang/dispatch/pkg/resolve"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a Prometheus metrics endpoint and a live diagnostic stream, optionally re-resolving when the compilation unit changes (--watch)",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 7117, "HTTP port for /metrics and /diagnostics/stream")
	cmd.Flags().Bool("watch", false, "re-run resolution and republish diagnostics whenever --unit changes on disk (the unit loaded at startup is re-resolved; the file is not re-read)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	p, _, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	serveCtx := cmd.Context()
	port, _ := cmd.Flags().GetInt("port")
	watch, _ := cmd.Flags().GetBool("watch")
	unitPath, _ := cmd.Flags().GetString("unit")

	hub := diagstream.NewHub()
	go hub.Run()
	defer hub.Close()

	publishDiagnostics := func() {
		visibleNames := visibleFunctionNames(p)
		count := 0
		for _, cs := range p.Compilation.CallSites {
			res := p.Resolve(serveCtx, cs)
			if res.Outcome == resolve.Success {
				continue
			}
			d := p.Diagnose(serveCtx, res, visibleNames)
			if err := hub.Publish(d); err != nil {
				printError(err)
				continue
			}
			count++
		}
		printInfo(fmt.Sprintf("published %d diagnostic(s), %d client(s) connected", count, hub.ClientCount()))
	}
	publishDiagnostics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Profiler.Handler())
	mux.Handle("/diagnostics/stream", hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	var watcher *incremental.Watcher
	if watch {
		watcher, err = incremental.NewWatcher([]string{unitPath}, 200*time.Millisecond, func(files []string) {
			printInfo(fmt.Sprintf("%s changed, re-resolving", unitPath))
			publishDiagnostics()
		}, p.Log)
		if err != nil {
			return err
		}
		go watcher.Run()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			printError(err)
		}
	}()
	printSuccess(fmt.Sprintf("serving on :%d (/metrics, /diagnostics/stream)", port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	printWarning("shutting down")
	if watcher != nil {
		watcher.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(ctx)
	if err := p.Close(ctx); err != nil {
		printError(err)
	}
	return shutdownErr
}
