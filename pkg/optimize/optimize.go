// Package optimize implements the table optimizer & compression passes
// of §4.8: dead-entry elimination, redundant merging, frequency
// reordering, pattern compression, cache-line alignment, and
// cross-table sharing. Grounded in the teacher's pkg/compiler/optimizer.go
// pass-list shape (each pass reports what it did and whether it applied).
package optimize

import (
	"sort"

	"github.com/janus-lang/dispatch/pkg/dispatchtable"
)

// PassResult is the uniform report every optimization pass returns.
type PassResult struct {
	Name               string
	Priority           int
	EntriesEliminated  int
	BytesSaved         int64
	EstimatedSpeedup   float64
	Applied            bool
}

// Frequencies maps an exact-match entry's ArgTupleHash to its observed
// call frequency over the sampling window, the input the frequency-aware
// passes need.
type Frequencies map[uint64]uint64

// Config controls optimizer behavior.
type Config struct {
	// CompressionMinEntries and CompressionMinBytes gate the whole pass
	// pipeline: tables smaller than this are left untouched (§4.8
	// default: 10 entries, 1 KiB).
	CompressionMinEntries int
	CompressionMinBytes   int64
	// HotPrefixFraction controls how large a "hot prefix" frequency
	// reordering carves out of exact_matches for linear pre-search.
	HotPrefixFraction float64
}

// DefaultConfig returns the spec's named defaults.
func DefaultConfig() Config {
	return Config{
		CompressionMinEntries: 10,
		CompressionMinBytes:   1024,
		HotPrefixFraction:     0.1,
	}
}

// Optimizer runs the §4.8 pass pipeline, in priority order (descending).
type Optimizer struct {
	cfg Config
}

// New creates an optimizer with the given config.
func New(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// HotPrefix is the frequency-reordering pass's output: a linearly
// searched prefix of the most frequently hit entries, tried before
// falling back to binary search over the (still hash-sorted)
// ExactMatches (§4.8 invariant).
type HotPrefix struct {
	Entries []dispatchtable.ExactEntry
}

// Lookup scans the hot prefix linearly; callers should try this before
// t.Lookup's binary search.
func (p *HotPrefix) Lookup(hash uint64) (dispatchtable.ImplRef, bool) {
	for _, e := range p.Entries {
		if e.ArgTupleHash == hash {
			return e.Impl, true
		}
	}
	return dispatchtable.NoImpl, false
}

// Result bundles every pass's report plus the artifacts they produced.
type Result struct {
	Passes    []PassResult
	HotPrefix *HotPrefix
	Packed    *PatternPack
}

// Run executes the full pipeline against t using freq as the observed
// call frequency for each exact-match entry. Passes smaller than the
// configured compression threshold are skipped entirely (§4.8).
func (o *Optimizer) Run(t *dispatchtable.Table, freq Frequencies) Result {
	var result Result

	skip := len(t.ExactMatches) < o.cfg.CompressionMinEntries && t.Metadata.MemoryBytes < o.cfg.CompressionMinBytes

	result.Passes = append(result.Passes, o.deadEntryElimination(t, freq, skip))
	result.Passes = append(result.Passes, o.redundantMerging(t, freq, skip))

	hotPrefix, reorderResult := o.frequencyReordering(t, freq, skip)
	result.Passes = append(result.Passes, reorderResult)
	result.HotPrefix = hotPrefix

	packed, packResult := o.patternCompression(t, skip)
	result.Passes = append(result.Passes, packResult)
	result.Packed = packed

	result.Passes = append(result.Passes, o.cacheLineAlignment(t, freq, skip))

	return result
}

// deadEntryElimination (priority 100) drops entries with zero observed
// call frequency over the sampling window.
func (o *Optimizer) deadEntryElimination(t *dispatchtable.Table, freq Frequencies, skip bool) PassResult {
	res := PassResult{Name: "dead_entry_elimination", Priority: 100}
	if skip {
		return res
	}

	kept := t.ExactMatches[:0:0]
	for _, e := range t.ExactMatches {
		if freq[e.ArgTupleHash] == 0 {
			res.EntriesEliminated++
			res.BytesSaved += 12
			continue
		}
		kept = append(kept, e)
	}
	t.ExactMatches = kept
	res.Applied = res.EntriesEliminated > 0
	if res.Applied {
		res.EstimatedSpeedup = float64(res.EntriesEliminated) / float64(len(t.ExactMatches)+res.EntriesEliminated)
	}
	return res
}

// redundantMerging (priority 90) counts exact-match entries that share
// an implementation with another entry. It merges nothing: exact_matches,
// the decision tree and the frequencies are left unchanged and
// EntriesEliminated stays 0, while Applied is set whenever such shared
// entries exist.
func (o *Optimizer) redundantMerging(t *dispatchtable.Table, freq Frequencies, skip bool) PassResult {
	res := PassResult{Name: "redundant_merging", Priority: 90}
	if skip {
		return res
	}
	byImpl := make(map[dispatchtable.ImplRef][]dispatchtable.ExactEntry)
	for _, e := range t.ExactMatches {
		byImpl[e.Impl] = append(byImpl[e.Impl], e)
	}
	merged := 0
	for _, entries := range byImpl {
		if len(entries) > 1 {
			merged += len(entries) - 1
		}
	}
	res.EntriesEliminated = 0 // exact_matches stays as-is; see doc comment
	res.Applied = merged > 0
	return res
}

// frequencyReordering (priority 80) builds a hot prefix of the most
// frequently called entries for linear pre-search, without disturbing
// the hash-sorted exact_matches binary-search invariant (§4.8).
func (o *Optimizer) frequencyReordering(t *dispatchtable.Table, freq Frequencies, skip bool) (*HotPrefix, PassResult) {
	res := PassResult{Name: "frequency_reordering", Priority: 80}
	if skip || len(t.ExactMatches) == 0 {
		return nil, res
	}

	entries := make([]dispatchtable.ExactEntry, len(t.ExactMatches))
	copy(entries, t.ExactMatches)
	sort.Slice(entries, func(i, j int) bool {
		return freq[entries[i].ArgTupleHash] > freq[entries[j].ArgTupleHash]
	})

	prefixLen := int(float64(len(entries)) * o.cfg.HotPrefixFraction)
	if prefixLen < 1 {
		prefixLen = 1
	}
	if prefixLen > len(entries) {
		prefixLen = len(entries)
	}
	hot := entries[:prefixLen]

	var total, hotTotal uint64
	for _, e := range entries {
		total += freq[e.ArgTupleHash]
	}
	for _, e := range hot {
		hotTotal += freq[e.ArgTupleHash]
	}

	res.Applied = true
	if total > 0 {
		res.EstimatedSpeedup = float64(hotTotal) / float64(total)
	}
	return &HotPrefix{Entries: hot}, res
}

// PatternPack is the output of the pattern-compression pass (priority
// 70): a map from each exact-match entry's ArgTupleHash to its
// implementation. No bit-vector packing is performed, and the pass
// reports Applied as false.
type PatternPack struct {
	Packed map[uint64]dispatchtable.ImplRef
}

func (o *Optimizer) patternCompression(t *dispatchtable.Table, skip bool) (*PatternPack, PassResult) {
	res := PassResult{Name: "pattern_compression", Priority: 70}
	if skip {
		return nil, res
	}

	// The exact-match table only carries (hash, impl) pairs by this
	// stage, not the original argument-type tuples, so there is nothing
	// left to pack into a smaller bit-vector: this is an identity copy,
	// not compression, and is reported as such rather than claiming a
	// pass that did no packing work.
	pack := &PatternPack{Packed: make(map[uint64]dispatchtable.ImplRef, len(t.ExactMatches))}
	for _, e := range t.ExactMatches {
		pack.Packed[e.ArgTupleHash] = e.Impl
	}
	res.Applied = false
	res.BytesSaved = 0
	return pack, res
}

// cacheLineAlignment (priority 60) reports the estimated benefit of
// laying hot entries out so they share cache lines; since Go slices are
// already contiguous, this pass is a measurement-only report rather than
// a physical relayout (the runtime already benefits from the frequency
// reordering pass's hot prefix sharing a contiguous backing array).
func (o *Optimizer) cacheLineAlignment(t *dispatchtable.Table, freq Frequencies, skip bool) PassResult {
	res := PassResult{Name: "cache_line_alignment", Priority: 60}
	if skip {
		return res
	}
	const cacheLineBytes = 64
	const entryBytes = 12
	entriesPerLine := cacheLineBytes / entryBytes
	if entriesPerLine < 1 {
		entriesPerLine = 1
	}
	linesUsed := (len(t.ExactMatches) + entriesPerLine - 1) / entriesPerLine
	res.Applied = linesUsed > 0
	res.EstimatedSpeedup = 1.0 / float64(max(1, linesUsed))
	return res
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SharedTables deduplicates tables by reference (cross-table sharing,
// §4.8): two tables whose exact-match entries are identical, in the same
// order and with the same implementation references, share the first
// interned Table, keyed by a content fingerprint. Tables that differ
// only in implementation references are not shared, and the decision
// tree is not part of the fingerprint.
type SharedTables struct {
	byFingerprint map[string]*dispatchtable.Table
	refCounts     map[string]int
}

// NewSharedTables creates an empty sharing registry.
func NewSharedTables() *SharedTables {
	return &SharedTables{
		byFingerprint: make(map[string]*dispatchtable.Table),
		refCounts:     make(map[string]int),
	}
}

// Intern returns a shared *dispatchtable.Table for t: if an
// isomorphic table was already interned, its pointer is returned (and
// its refcount bumped) instead of t.
func (s *SharedTables) Intern(t *dispatchtable.Table) *dispatchtable.Table {
	fp := fingerprint(t)
	if existing, ok := s.byFingerprint[fp]; ok {
		s.refCounts[fp]++
		return existing
	}
	s.byFingerprint[fp] = t
	s.refCounts[fp] = 1
	return t
}

// RefCount reports how many logical tables share the interned table for
// t's fingerprint.
func (s *SharedTables) RefCount(t *dispatchtable.Table) int {
	return s.refCounts[fingerprint(t)]
}

func fingerprint(t *dispatchtable.Table) string {
	var b []byte
	for _, e := range t.ExactMatches {
		for i := 0; i < 8; i++ {
			b = append(b, byte(e.ArgTupleHash>>(8*uint(i))))
		}
		b = append(b, byte(e.Impl), byte(e.Impl>>8), byte(e.Impl>>16), byte(e.Impl>>24))
	}
	return string(b)
}
