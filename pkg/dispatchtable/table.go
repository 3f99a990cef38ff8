// Package dispatchtable materializes, per function name, a sorted
// exact-match table keyed by argument-tuple hash plus a decision tree
// over parameter positions for subtype dispatch (§4.5).
package dispatchtable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
	"github.com/janus-lang/dispatch/pkg/types"
	"github.com/janus-lang/dispatch/pkg/wyhash"
)

// ImplRef is a position-independent reference into a per-compilation
// implementation pool (§9 "Dynamic dispatch over polymorphic tables"):
// tables store indices, not pointers, so they are trivially persistable.
type ImplRef int32

// NoImpl is the sentinel ImplRef meaning "no implementation".
const NoImpl ImplRef = -1

// ExactEntry is one row of the exact-match table.
type ExactEntry struct {
	ArgTupleHash uint64
	Impl         ImplRef
}

// DecisionNode is one node of the decision tree: a branch on a single
// parameter position, keyed by the TypeId that appears in some surviving
// pattern at this depth.
type DecisionNode struct {
	ParamIndex  uint32
	Branches    map[types.TypeId]*DecisionNode
	ExactImpl   ImplRef
	FallbackImpl ImplRef
}

func newDecisionNode(paramIndex uint32) *DecisionNode {
	return &DecisionNode{
		ParamIndex:   paramIndex,
		Branches:     make(map[types.TypeId]*DecisionNode),
		ExactImpl:    NoImpl,
		FallbackImpl: NoImpl,
	}
}

// Metadata carries summary statistics about a generated table.
type Metadata struct {
	MemoryBytes            int64
	TreeDepth              int
	CacheEfficiencyEstimate float64
}

// Table is the materialized DispatchTable for one function name / arity
// family (identified externally by a signature hash).
type Table struct {
	FunctionName string
	SignatureHash uint64

	// Pool is the per-compilation implementation pool this table's
	// ImplRef indices index into.
	Pool []signature.Implementation

	ExactMatches []ExactEntry
	DecisionTree *DecisionNode
	Metadata     Metadata
}

// Lookup performs a binary search over ExactMatches for hash. The runtime
// engine calls it for its exact-table layer, and the package tests use
// it to check invariant I-8.4 (§8: "binary search ... returns the same
// implementation as the specificity analyzer invoked directly");
// Generate itself does not re-check that invariant.
func (t *Table) Lookup(hash uint64) (ImplRef, bool) {
	i := sort.Search(len(t.ExactMatches), func(i int) bool {
		return t.ExactMatches[i].ArgTupleHash >= hash
	})
	if i < len(t.ExactMatches) && t.ExactMatches[i].ArgTupleHash == hash {
		return t.ExactMatches[i].Impl, true
	}
	return NoImpl, false
}

// Generator builds Tables from candidate implementations and observed
// call-site patterns, via the specificity analyzer (§4.5 step 1).
type Generator struct {
	analyzer *resolve.Analyzer
}

// NewGenerator creates a table generator bound to a specificity analyzer.
func NewGenerator(analyzer *resolve.Analyzer) *Generator {
	return &Generator{analyzer: analyzer}
}

// Pattern is one candidate argument-type tuple to materialize a decision
// for: either an implementation's own parameter tuple or an observed
// call site's argument types.
type Pattern struct {
	ArgTypes []types.TypeId
}

// Generate builds the exact-match table and decision tree for one
// function name, given its visible implementations and the union of
// patterns to precompute (implementations' own tuples plus observed
// call-site tuples, per §4.5 step 1).
func (g *Generator) Generate(functionName string, signatureHash uint64, impls []signature.Implementation, patterns []Pattern) *Table {
	pool := make([]signature.Implementation, len(impls))
	copy(pool, impls)

	implIndex := make(map[string]ImplRef, len(pool))
	for i, impl := range pool {
		implIndex[implKey(impl)] = ImplRef(i)
	}

	// Dedup patterns by their type-tuple signature; duplicates are
	// impossible in the exact-match table by construction.
	seen := make(map[uint64]bool)
	var resolved []struct {
		pattern Pattern
		hash    uint64
		impl    ImplRef
	}

	for _, p := range patterns {
		hash := hashPattern(p.ArgTypes)
		if seen[hash] {
			continue
		}
		seen[hash] = true

		result := g.analyzer.FindMostSpecific(pool, p.ArgTypes, resolve.CallSite{FunctionName: functionName})
		if result.Outcome != resolve.Success {
			// Ambiguous / no-match patterns are omitted from the exact
			// table; the runtime falls through to reporting NoMatch /
			// Ambiguous itself when it can't find an entry.
			continue
		}
		resolved = append(resolved, struct {
			pattern Pattern
			hash    uint64
			impl    ImplRef
		}{p, hash, implIndex[implKey(result.Implementation)]})
	}

	exact := make([]ExactEntry, 0, len(resolved))
	for _, r := range resolved {
		exact = append(exact, ExactEntry{ArgTupleHash: r.hash, Impl: r.impl})
	}
	sort.Slice(exact, func(i, j int) bool { return exact[i].ArgTupleHash < exact[j].ArgTupleHash })

	arity := 0
	for _, impl := range pool {
		if impl.Arity() > arity {
			arity = impl.Arity()
		}
	}

	var patternArgs [][]types.TypeId
	for _, r := range resolved {
		patternArgs = append(patternArgs, r.pattern.ArgTypes)
	}

	tree, depth := g.buildTree(pool, patternArgs, 0, arity, implIndex)

	table := &Table{
		FunctionName:  functionName,
		SignatureHash: signatureHash,
		Pool:          pool,
		ExactMatches:  exact,
		DecisionTree:  tree,
		Metadata: Metadata{
			MemoryBytes:             estimateMemory(len(exact), depth),
			TreeDepth:               depth,
			CacheEfficiencyEstimate: estimateCacheEfficiency(len(exact)),
		},
	}
	return table
}

// buildTree recursively partitions patterns by the TypeId occurring at
// paramIndex, building one DecisionNode per distinct type observed at
// that position. No wildcard branch is built: branches are keyed by the
// exact TypeId in each pattern, a pattern carrying types.InvalidTypeId
// never resolves successfully and so never reaches the tree, and the
// runtime matches a branch only by equality or supertype distance.
func (g *Generator) buildTree(pool []signature.Implementation, patternArgs [][]types.TypeId, paramIndex, arity int, implIndex map[string]ImplRef) (*DecisionNode, int) {
	if paramIndex >= arity || len(patternArgs) == 0 {
		return nil, 0
	}

	node := newDecisionNode(uint32(paramIndex))
	byType := make(map[types.TypeId][][]types.TypeId)
	var order []types.TypeId
	for _, args := range patternArgs {
		if paramIndex >= len(args) {
			continue
		}
		t := args[paramIndex]
		if _, ok := byType[t]; !ok {
			order = append(order, t)
		}
		byType[t] = append(byType[t], args)
	}

	maxChildDepth := 0
	for _, t := range order {
		group := byType[t]

		// Resolve the most specific implementation matching this exact
		// group's common prefix, to populate ExactImpl at this depth.
		if paramIndex == arity-1 {
			result := g.analyzer.FindMostSpecific(pool, group[0], resolve.CallSite{})
			if result.Outcome == resolve.Success {
				node.Branches[t] = &DecisionNode{
					ParamIndex:   uint32(paramIndex),
					Branches:     map[types.TypeId]*DecisionNode{},
					ExactImpl:    implIndex[implKey(result.Implementation)],
					FallbackImpl: NoImpl,
				}
			}
			continue
		}

		child, childDepth := g.buildTree(pool, group, paramIndex+1, arity, implIndex)
		if child == nil {
			child = newDecisionNode(uint32(paramIndex + 1))
		}

		// The fallback is the most general implementation still
		// reachable given the prefix fixed so far: resolve using just
		// this parameter's type repeated as a stand-in prefix match.
		result := g.analyzer.FindMostSpecific(pool, group[0], resolve.CallSite{})
		if result.Outcome == resolve.Success {
			child.FallbackImpl = implIndex[implKey(result.Implementation)]
		}

		node.Branches[t] = child
		if childDepth+1 > maxChildDepth {
			maxChildDepth = childDepth + 1
		}
	}

	return node, maxChildDepth + 1
}

func implKey(impl signature.Implementation) string {
	var b strings.Builder
	b.WriteString(impl.FunctionId.String())
	for _, p := range impl.ParamTypes {
		b.WriteByte('/')
		fmt.Fprintf(&b, "%d", p)
	}
	return b.String()
}

func hashPattern(argTypes []types.TypeId) uint64 {
	ids := make([]uint32, len(argTypes))
	for i, t := range argTypes {
		ids[i] = uint32(t)
	}
	return wyhash.SumTuple(ids)
}

func estimateMemory(exactCount, treeDepth int) int64 {
	const exactEntryBytes = 12 // u64 hash + u32 index
	const treeNodeBytes = 24
	return int64(exactCount*exactEntryBytes + treeDepth*treeNodeBytes)
}

func estimateCacheEfficiency(exactCount int) float64 {
	if exactCount == 0 {
		return 1.0
	}
	// A larger exact table means more binary-search steps before a cold
	// lookup settles into the inline cache; this is a coarse estimate
	// used only for reporting, not correctness.
	steps := 1.0
	n := exactCount
	for n > 1 {
		n /= 2
		steps++
	}
	return 1.0 / steps
}
