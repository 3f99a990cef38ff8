// Package dispatchengine implements the runtime dispatch engine (§4.6):
// inline cache -> exact table -> decision tree, recording performance
// counters for the profiler along the way.
package dispatchengine

import (
	"github.com/janus-lang/dispatch/pkg/dispatchtable"
	"github.com/janus-lang/dispatch/pkg/inlinecache"
	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/types"
	"github.com/janus-lang/dispatch/pkg/wyhash"
)

// Source determines which lookup layer ultimately served a dispatch, for
// profiling and testing.
type Source int

const (
	SourceCache Source = iota
	SourceExactTable
	SourceDecisionTree
	SourceMiss
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "inline_cache"
	case SourceExactTable:
		return "exact_table"
	case SourceDecisionTree:
		return "decision_tree"
	default:
		return "miss"
	}
}

// Counters accumulates per-family performance counters.
type Counters struct {
	CacheHits        uint64
	ExactTableHits   uint64
	DecisionTreeHits uint64
	Misses           uint64
}

// Engine serves dispatch lookups for one compilation's tables, layered
// over a family of inline caches.
type Engine struct {
	tables   map[uint64]*dispatchtable.Table
	caches   *inlinecache.Family
	counters map[uint64]*Counters
	reg      *registry.Registry
}

// New creates a runtime dispatch engine over the given tables, keyed by
// signature hash, with its own inline-cache family. reg is consulted for
// subtype-aware decision-tree branch selection (§4.6 step 3); it may be
// nil, in which case the tree walk only matches branches keyed by the
// argument's exact TypeId.
func New(tables map[uint64]*dispatchtable.Table, maxCacheSize int, reg *registry.Registry) *Engine {
	return &Engine{
		tables:   tables,
		caches:   inlinecache.NewFamily(maxCacheSize),
		counters: make(map[uint64]*Counters),
		reg:      reg,
	}
}

// Dispatch looks up an implementation for (signatureHash, argTypes),
// trying the inline cache, then the exact-match table, then the
// decision tree, in that order (§4.6).
func (e *Engine) Dispatch(signatureHash uint64, argTypes []types.TypeId) (dispatchtable.ImplRef, Source) {
	counters := e.countersFor(signatureHash)
	cache := e.caches.For(signatureHash)

	ids := make([]uint32, len(argTypes))
	for i, t := range argTypes {
		ids[i] = uint32(t)
	}
	hash := wyhash.SumTuple(ids)

	if impl, ok := cache.Get(hash); ok {
		counters.CacheHits++
		return impl, SourceCache
	}

	table, ok := e.tables[signatureHash]
	if !ok {
		counters.Misses++
		return dispatchtable.NoImpl, SourceMiss
	}

	if impl, ok := table.Lookup(hash); ok {
		counters.ExactTableHits++
		cache.Put(hash, impl)
		return impl, SourceExactTable
	}

	if impl, ok := e.walkTree(table.DecisionTree, argTypes, 0); ok {
		counters.DecisionTreeHits++
		cache.Put(hash, impl)
		return impl, SourceDecisionTree
	}

	counters.Misses++
	return dispatchtable.NoImpl, SourceMiss
}

// walkTree traverses the decision tree: at each node, it prefers an
// exact TypeId match, then the deepest (most specific) supertype branch
// that still matches argTypes[paramIndex], falling back to the node's
// FallbackImpl when nothing matches (§4.6 step 3).
func (e *Engine) walkTree(node *dispatchtable.DecisionNode, argTypes []types.TypeId, paramIndex int) (dispatchtable.ImplRef, bool) {
	if node == nil {
		return dispatchtable.NoImpl, false
	}
	if paramIndex >= len(argTypes) {
		if node.ExactImpl != dispatchtable.NoImpl {
			return node.ExactImpl, true
		}
		return dispatchtable.NoImpl, false
	}

	argType := argTypes[paramIndex]

	branchType, ok := e.bestBranch(node, argType)
	if ok {
		child := node.Branches[branchType]
		if child != nil && len(child.Branches) > 0 {
			if impl, ok := e.walkTree(child, argTypes, paramIndex+1); ok {
				return impl, true
			}
		}
		if child != nil && child.ExactImpl != dispatchtable.NoImpl {
			return child.ExactImpl, true
		}
	}

	if node.FallbackImpl != dispatchtable.NoImpl {
		return node.FallbackImpl, true
	}

	return dispatchtable.NoImpl, false
}

// bestBranch finds the child key matching argType at this node: an exact
// TypeId match if present, else — when a registry is available — the
// deepest (most specific, i.e. smallest specificity distance) branch
// whose TypeId is a proper supertype of argType (§4.6 step 3).
func (e *Engine) bestBranch(node *dispatchtable.DecisionNode, argType types.TypeId) (types.TypeId, bool) {
	if _, ok := node.Branches[argType]; ok {
		return argType, true
	}
	if e.reg == nil {
		return types.InvalidTypeId, false
	}

	best := types.InvalidTypeId
	bestDist := ^uint32(0)
	found := false
	for candidate := range node.Branches {
		d, ok := e.reg.SpecificityDistance(argType, candidate)
		if !ok {
			continue
		}
		if !found || d < bestDist {
			best, bestDist, found = candidate, d, true
		}
	}
	return best, found
}

func (e *Engine) countersFor(signatureHash uint64) *Counters {
	c, ok := e.counters[signatureHash]
	if !ok {
		c = &Counters{}
		e.counters[signatureHash] = c
	}
	return c
}

// CountersFor returns a snapshot of the performance counters for one
// dispatch family.
func (e *Engine) CountersFor(signatureHash uint64) Counters {
	return *e.countersFor(signatureHash)
}

// CacheStats returns the inline cache statistics for one dispatch
// family.
func (e *Engine) CacheStats(signatureHash uint64) inlinecache.Stats {
	return e.caches.For(signatureHash).Stats()
}
