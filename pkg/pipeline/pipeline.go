// Package pipeline wires every core component into the single object
// cmd/janusc drives: registry + dispatcher from pkg/batch, a table
// generator keyed by function name, the runtime dispatch engine, the
// table optimizer, the diagnostic engine, and the profiler. It plays
// the role the teacher's pkg/compiler/compiler.go plays for cmd/glyph:
// one façade a CLI command can call into without hand-assembling every
// package's constructor itself.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/janus-lang/dispatch/pkg/batch"
	"github.com/janus-lang/dispatch/pkg/diagnostic"
	"github.com/janus-lang/dispatch/pkg/dispatchengine"
	"github.com/janus-lang/dispatch/pkg/dispatchtable"
	"github.com/janus-lang/dispatch/pkg/logging"
	"github.com/janus-lang/dispatch/pkg/optimize"
	"github.com/janus-lang/dispatch/pkg/profiler"
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
	"github.com/janus-lang/dispatch/pkg/tracing"
	"github.com/janus-lang/dispatch/pkg/types"
	"github.com/janus-lang/dispatch/pkg/wyhash"
)

// signatureHashSeed is an arbitrary fixed seed so signature hashes are
// stable across processes (needed for the incremental on-disk cache's
// content-addressed filenames, §6).
const signatureHashSeed = 0x9e3779b97f4a7c15

// SignatureHash derives the stable per-function-name hash the runtime
// engine and table generator key their maps by.
func SignatureHash(functionName string) uint64 {
	return wyhash.Sum64(signatureHashSeed, []byte(functionName))
}

// Pipeline bundles one compilation's worth of wired components.
type Pipeline struct {
	Compilation *batch.Compilation
	Diagnostics *diagnostic.Engine
	Profiler    *profiler.Profiler
	Optimizer   *optimize.Optimizer
	Log         *logging.Logger

	// Tracer is the OpenTelemetry provider spans are recorded against; a
	// nil Tracer (the default) means WithSpan calls use the otel no-op
	// tracer, so instrumentation costs nothing when tracing is disabled.
	Tracer *tracing.TracerProvider

	tableGen *dispatchtable.Generator
	tables   map[uint64]*dispatchtable.Table
	engine   *dispatchengine.Engine

	// MinCallSites / MinImplementations gate which function names get a
	// materialized table, mirroring §4.5's threshold.
	MinCallSites       int
	MinImplementations int
	MaxInlineCache     int
}

// New builds a Pipeline over an already-wired batch.Compilation.
func New(comp *batch.Compilation, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.NoOp()
	}
	return &Pipeline{
		Compilation:        comp,
		Diagnostics:        diagnostic.NewEngine(comp.Registry, nil),
		Profiler:           profiler.New(profiler.DefaultConfig()),
		Optimizer:          optimize.New(optimize.DefaultConfig()),
		Log:                log,
		tableGen:           dispatchtable.NewGenerator(comp.Resolver),
		tables:             make(map[uint64]*dispatchtable.Table),
		MinCallSites:       1,
		MinImplementations: 2,
		MaxInlineCache:     8,
	}
}

// WithHistory attaches a fix-acceptance history lookup to the
// diagnostic engine (see pkg/fixstore).
func (p *Pipeline) WithHistory(h diagnostic.HistoryLookup) *Pipeline {
	p.Diagnostics = diagnostic.NewEngine(p.Compilation.Registry, h)
	return p
}

// Resolve runs the specificity analyzer for one call site against the
// candidate set visible from its scope module (§4.3 via §4.4).
func (p *Pipeline) Resolve(ctx context.Context, cs resolve.CallSite) resolve.Result {
	start := time.Now()
	candidates := p.Compilation.CandidatesFor(cs)

	var res resolve.Result
	_ = tracing.WithSpan(ctx, "dispatch.resolve", func(spanCtx context.Context) error {
		trace.SpanFromContext(spanCtx).SetAttributes(
			tracing.ResolutionAttributes(cs.FunctionName, len(cs.ArgumentTypes), len(candidates))...,
		)
		res = p.Compilation.Resolver.FindMostSpecific(candidates, cs.ArgumentTypes, cs)
		if res.Outcome == resolve.InternalError {
			return fmt.Errorf("pipeline: internal error resolving %q: %s", cs.FunctionName, res.Message)
		}
		return nil
	})

	var src profiler.Source
	switch res.Outcome {
	case resolve.Success:
		src = profiler.SourceExactTable
	default:
		src = profiler.SourceMiss
	}
	p.Profiler.RecordDispatch(cs.FunctionName, src, time.Since(start))

	p.Log.Debug("call site resolved", map[string]interface{}{
		"function": cs.FunctionName,
		"outcome":  res.Outcome.String(),
		"file":     cs.SourceSpan.File,
		"line":     cs.SourceSpan.StartLine,
		"trace_id": tracing.TraceID(ctx),
	})
	return res
}

// ResolveAll resolves every call site recorded in the compilation unit,
// in declaration order.
func (p *Pipeline) ResolveAll(ctx context.Context) []resolve.Result {
	results := make([]resolve.Result, 0, len(p.Compilation.CallSites))
	for _, cs := range p.Compilation.CallSites {
		results = append(results, p.Resolve(ctx, cs))
	}
	return results
}

// groupByFunction partitions every known implementation by simple
// function name, across modules — a dispatch family (glossary).
func (p *Pipeline) groupByFunction() map[string][]signature.Implementation {
	groups := make(map[string][]signature.Implementation)
	for _, impl := range p.Compilation.Implementations {
		groups[impl.FunctionId.SimpleName] = append(groups[impl.FunctionId.SimpleName], impl)
	}
	return groups
}

// BuildTables materializes a DispatchTable (§4.5) for every dispatch
// family meeting the configured thresholds, from both implementations'
// own parameter tuples and observed call-site argument tuples.
func (p *Pipeline) BuildTables(ctx context.Context) map[string]*dispatchtable.Table {
	groups := p.groupByFunction()

	observedPatterns := make(map[string][]dispatchtable.Pattern)
	for _, cs := range p.Compilation.CallSites {
		observedPatterns[cs.FunctionName] = append(observedPatterns[cs.FunctionName],
			dispatchtable.Pattern{ArgTypes: cs.ArgumentTypes})
	}

	out := make(map[string]*dispatchtable.Table)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		impls := groups[name]
		callSiteCount := len(observedPatterns[name])
		if len(impls) < p.MinImplementations && callSiteCount < p.MinCallSites {
			continue
		}

		patterns := make([]dispatchtable.Pattern, 0, len(impls)+callSiteCount)
		for _, impl := range impls {
			patterns = append(patterns, dispatchtable.Pattern{ArgTypes: impl.ParamTypes})
		}
		patterns = append(patterns, observedPatterns[name]...)

		hash := SignatureHash(name)
		var table *dispatchtable.Table
		_ = tracing.WithSpan(ctx, "dispatch.tablegen", func(spanCtx context.Context) error {
			trace.SpanFromContext(spanCtx).SetAttributes(
				tracing.TableGenAttributes(name, len(patterns))...,
			)
			table = p.tableGen.Generate(name, hash, impls, patterns)
			return nil
		})
		out[name] = table
		p.tables[hash] = table

		p.Log.Info("dispatch table generated", map[string]interface{}{
			"function":      name,
			"exact_entries": len(table.ExactMatches),
			"tree_depth":    table.Metadata.TreeDepth,
			"trace_id":      tracing.TraceID(ctx),
		})
	}

	return out
}

// Engine lazily builds the runtime dispatch engine once, over the
// pipeline's table map. The engine shares that map, so tables built
// later are visible to it, but the engine and its inline caches are not
// rebuilt.
func (p *Pipeline) Engine() *dispatchengine.Engine {
	if p.engine == nil {
		p.engine = dispatchengine.New(p.tables, p.MaxInlineCache, p.Compilation.Registry)
	}
	return p.engine
}

// Dispatch serves one runtime lookup through the inline cache / exact
// table / decision tree layers (§4.6), recording the observed latency
// and source with the profiler.
func (p *Pipeline) Dispatch(functionName string, argTypes []types.TypeId) (dispatchtable.ImplRef, dispatchengine.Source) {
	hash := SignatureHash(functionName)

	start := time.Now()
	ref, src := p.Engine().Dispatch(hash, argTypes)
	p.Profiler.RecordDispatch(functionName, profilerSource(src), time.Since(start))
	return ref, src
}

// Table returns the materialized table for a function name, if built.
func (p *Pipeline) Table(functionName string) (*dispatchtable.Table, bool) {
	t, ok := p.tables[SignatureHash(functionName)]
	return t, ok
}

// Optimize runs the optimizer pipeline (§4.8) over one function's table
// given observed per-entry call frequencies.
func (p *Pipeline) Optimize(ctx context.Context, functionName string, freq optimize.Frequencies) (optimize.Result, error) {
	t, ok := p.Table(functionName)
	if !ok {
		err := fmt.Errorf("pipeline: no table materialized for %q", functionName)
		tracing.SetError(ctx, err)
		return optimize.Result{}, err
	}
	return p.Optimizer.Run(t, freq), nil
}

// Diagnose builds a Diagnostic for a non-success resolution outcome.
func (p *Pipeline) Diagnose(ctx context.Context, res resolve.Result, visibleNames []string) diagnostic.Diagnostic {
	var d diagnostic.Diagnostic
	_ = tracing.WithSpan(ctx, "dispatch.diagnose", func(spanCtx context.Context) error {
		d = p.Diagnostics.Build(res, visibleNames)
		trace.SpanFromContext(spanCtx).SetAttributes(
			tracing.DiagnosticAttributes(d.Code, len(d.Hypotheses))...,
		)
		return nil
	})
	return d
}

// Close shuts down the pipeline's tracer provider and flushes its
// logger, releasing both of their background goroutines. Safe to call
// with a nil Tracer.
func (p *Pipeline) Close(ctx context.Context) error {
	var err error
	if p.Tracer != nil {
		err = p.Tracer.Shutdown(ctx)
	}
	if logErr := p.Log.Close(); err == nil {
		err = logErr
	}
	return err
}

func profilerSource(s dispatchengine.Source) profiler.Source {
	switch s {
	case dispatchengine.SourceCache:
		return profiler.SourceCache
	case dispatchengine.SourceExactTable:
		return profiler.SourceExactTable
	case dispatchengine.SourceDecisionTree:
		return profiler.SourceDecisionTree
	default:
		return profiler.SourceMiss
	}
}
