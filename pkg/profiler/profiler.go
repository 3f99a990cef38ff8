// Package profiler implements the profiler component of §2: call-site
// frequency counters, dispatch-time histograms, and hot-path
// identification feeding the table optimizer and the incremental
// builder. It is adapted from the teacher's pkg/metrics/metrics.go
// (Prometheus CounterVec/HistogramVec/GaugeVec wiring, promhttp
// handler) generalized from HTTP request metrics to dispatch-family
// call-site metrics.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Config configures the namespace/subsystem used for the exported
// Prometheus metrics, matching the teacher's metrics.Config shape.
type Config struct {
	Namespace string
	Subsystem string
	// DurationBuckets are the histogram buckets for dispatch latency, in
	// seconds. Dispatch is expected to be sub-microsecond on the cache/
	// exact-table path, so the defaults skew far smaller than the
	// teacher's HTTP-latency buckets.
	DurationBuckets []float64
}

// DefaultConfig returns the profiler defaults.
func DefaultConfig() Config {
	return Config{
		Namespace: "janus",
		Subsystem: "dispatch",
		DurationBuckets: []float64{
			0.0000001, 0.0000005, 0.000001, 0.000005, 0.00001,
			0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01,
		},
	}
}

// siteStats is the in-process accumulator backing hot-path analysis;
// Prometheus holds the exported counters, this struct holds the raw
// samples needed to rank and recommend.
type siteStats struct {
	calls      uint64
	cacheHits  uint64
	exactHits  uint64
	treeHits   uint64
	misses     uint64
	totalNanos uint64
}

// Profiler records per-dispatch-family frequency and latency, exposes
// them as Prometheus metrics, and derives hot-path / optimization
// recommendations for the table optimizer (§4.8) and incremental
// builder (§4.10).
type Profiler struct {
	mu    sync.Mutex
	sites map[string]*siteStats

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchSource   *prometheus.CounterVec
	cacheHitRatio    *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates a Profiler and registers its collectors on a fresh
// Prometheus registry.
func New(cfg Config) *Profiler {
	if cfg.Namespace == "" {
		cfg = DefaultConfig()
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultConfig().DurationBuckets
	}

	reg := prometheus.NewRegistry()
	p := &Profiler{
		sites:    make(map[string]*siteStats),
		registry: reg,
	}

	p.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "calls_total",
			Help:      "Total number of dispatch lookups by function name.",
		},
		[]string{"function"},
	)

	p.dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "duration_seconds",
			Help:      "Dispatch lookup latency in seconds, by resolution source.",
			Buckets:   cfg.DurationBuckets,
		},
		[]string{"function", "source"},
	)

	p.dispatchSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "source_total",
			Help:      "Dispatch lookups served per source layer (inline_cache, exact_table, decision_tree, miss).",
		},
		[]string{"function", "source"},
	)

	p.cacheHitRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_hit_ratio",
			Help:      "Most recently observed inline-cache hit ratio per dispatch family.",
		},
		[]string{"function"},
	)

	reg.MustRegister(p.dispatchTotal, p.dispatchDuration, p.dispatchSource, p.cacheHitRatio)
	return p
}

// Source mirrors dispatchengine.Source as a plain string so this
// package does not need to import the runtime engine; callers pass
// Source().String().
type Source string

const (
	SourceCache        Source = "inline_cache"
	SourceExactTable   Source = "exact_table"
	SourceDecisionTree Source = "decision_tree"
	SourceMiss         Source = "miss"
)

// RecordDispatch records one dispatch lookup for function, observed via
// src, taking d wall-clock time.
func (p *Profiler) RecordDispatch(function string, src Source, d time.Duration) {
	p.dispatchTotal.WithLabelValues(function).Inc()
	p.dispatchDuration.WithLabelValues(function, string(src)).Observe(d.Seconds())
	p.dispatchSource.WithLabelValues(function, string(src)).Inc()

	p.mu.Lock()
	s, ok := p.sites[function]
	if !ok {
		s = &siteStats{}
		p.sites[function] = s
	}
	s.calls++
	s.totalNanos += uint64(d.Nanoseconds())
	switch src {
	case SourceCache:
		s.cacheHits++
	case SourceExactTable:
		s.exactHits++
	case SourceDecisionTree:
		s.treeHits++
	default:
		s.misses++
	}
	ratio := 0.0
	if s.calls > 0 {
		ratio = float64(s.cacheHits) / float64(s.calls)
	}
	p.mu.Unlock()

	p.cacheHitRatio.WithLabelValues(function).Set(ratio)
}

// FunctionProfile is a point-in-time summary of one dispatch family's
// call-site frequency and latency, for hot-path reporting.
type FunctionProfile struct {
	Function      string
	Calls         uint64
	CacheHits     uint64
	ExactHits     uint64
	TreeHits      uint64
	Misses        uint64
	MeanLatency   time.Duration
	CacheHitRatio float64
}

// HotPaths returns the top n dispatch families by call volume,
// descending, for driving optimizer priority (§4.8) and table-
// generation thresholds (§4.5).
func (p *Profiler) HotPaths(n int) []FunctionProfile {
	p.mu.Lock()
	defer p.mu.Unlock()

	profiles := make([]FunctionProfile, 0, len(p.sites))
	for name, s := range p.sites {
		fp := FunctionProfile{
			Function:  name,
			Calls:     s.calls,
			CacheHits: s.cacheHits,
			ExactHits: s.exactHits,
			TreeHits:  s.treeHits,
			Misses:    s.misses,
		}
		if s.calls > 0 {
			fp.MeanLatency = time.Duration(s.totalNanos / s.calls)
			fp.CacheHitRatio = float64(s.cacheHits) / float64(s.calls)
		}
		profiles = append(profiles, fp)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Calls != profiles[j].Calls {
			return profiles[i].Calls > profiles[j].Calls
		}
		return profiles[i].Function < profiles[j].Function
	})

	if n > 0 && n < len(profiles) {
		profiles = profiles[:n]
	}
	return profiles
}

// Recommendation is a textual, ranked optimization suggestion derived
// from observed profiles; the table optimizer (§4.8) and incremental
// builder (§4.10) consult these to decide where to spend compression
// and regeneration effort.
type Recommendation struct {
	Function string
	Reason   string
	Priority int
}

// Recommendations inspects every profiled dispatch family and proposes
// optimization actions: low cache hit ratio under heavy call volume
// suggests growing the inline cache or reordering the hot prefix (§4.7,
// §4.8); a high decision-tree hit share with low exact-table share
// suggests the table generator should widen its exact-match coverage.
func (p *Profiler) Recommendations() []Recommendation {
	var recs []Recommendation
	for _, fp := range p.HotPaths(0) {
		switch {
		case fp.Calls >= 100 && fp.CacheHitRatio < 0.5:
			recs = append(recs, Recommendation{
				Function: fp.Function,
				Reason:   "low inline-cache hit ratio under sustained call volume; consider growing cache size or reordering the hot prefix",
				Priority: 90,
			})
		case fp.Calls >= 50 && fp.TreeHits > fp.ExactHits:
			recs = append(recs, Recommendation{
				Function: fp.Function,
				Reason:   "majority of calls fall through to the decision tree; widen exact-match table coverage for observed argument tuples",
				Priority: 70,
			})
		case fp.Misses > 0:
			recs = append(recs, Recommendation{
				Function: fp.Function,
				Reason:   "dispatch misses observed; verify call-site argument types against registered implementations",
				Priority: 50,
			})
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Priority > recs[j].Priority })
	return recs
}

// Handler exposes the profiler's Prometheus registry over HTTP.
func (p *Profiler) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying Prometheus registry, for embedding
// into a larger process-wide registry.
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}
