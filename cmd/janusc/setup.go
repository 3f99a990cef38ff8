package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/janus-lang/dispatch/pkg/batch"
	"github.com/janus-lang/dispatch/pkg/config"
	"github.com/janus-lang/dispatch/pkg/fixstore"
	"github.com/janus-lang/dispatch/pkg/logging"
	"github.com/janus-lang/dispatch/pkg/pipeline"
	"github.com/janus-lang/dispatch/pkg/tracing"
)

// loadConfig reads --config if given, else returns the spec's literal
// defaults (§A.3).
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildPipeline loads --unit and wires a pipeline.Pipeline, applying the
// effective config's thresholds.
func buildPipeline(cmd *cobra.Command) (*pipeline.Pipeline, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}

	unitPath, _ := cmd.Flags().GetString("unit")
	doc, err := batch.Load(unitPath)
	if err != nil {
		return nil, cfg, err
	}

	log := logging.New(logging.Config{MinLevel: logging.WARN})

	tp, err := tracing.Init(tracingConfig(cfg.Tracing))
	if err != nil {
		return nil, cfg, err
	}

	ctx := cmd.Context()
	var comp *batch.Compilation
	err = tracing.WithSpan(ctx, "dispatch.registry_build", func(spanCtx context.Context) error {
		trace.SpanFromContext(spanCtx).SetAttributes(tracing.RegistryBuildAttributes(len(doc.Types))...)
		comp, err = batch.Build(doc, log)
		return err
	})
	if err != nil {
		tp.Shutdown(ctx)
		return nil, cfg, err
	}

	p := pipeline.New(comp, log)
	p.MinCallSites = cfg.TableGen.MinCallSites
	p.MinImplementations = cfg.TableGen.MinImplementations
	p.MaxInlineCache = cfg.InlineCache.MaxSize
	p.Tracer = tp

	store, err := fixstore.Open(ctx, fixstore.Config{DriverURL: cfg.FixStore.DriverURL})
	if err == nil {
		p.WithHistory(store)
	}

	return p, cfg, nil
}

// tracingConfig translates the YAML-loaded tracing thresholds into the
// tracer's own Config shape.
func tracingConfig(tc config.TracingConfig) *tracing.Config {
	exporter := "otlp"
	if tc.UseStdout {
		exporter = "stdout"
	}
	return &tracing.Config{
		ServiceName:  tc.ServiceName,
		ExporterType: exporter,
		OTLPEndpoint: tc.OTLPEndpoint,
		SamplingRate: tc.SampleRatio,
		Enabled:      tc.Enabled,
	}
}
