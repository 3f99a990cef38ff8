// Package registry implements the type registry: identity minting, the
// subtype relation, and specificity distance over the supertype DAG.
//
// The registry is populated once per compilation in a dedicated build
// phase (see §5 of the spec) and is treated as an immutable snapshot by
// every reader once that phase ends; all query methods are safe for
// concurrent use, matching that contract.
package registry

import (
	"fmt"
	"sync"

	"github.com/janus-lang/dispatch/pkg/logging"
	"github.com/janus-lang/dispatch/pkg/types"
)

// CyclicSupertypesError reports that attaching a set of supertype edges
// would create a cycle in the supertype DAG.
type CyclicSupertypesError struct {
	TypeId     types.TypeId
	Supertype  types.TypeId
	TypeName   string
	SuperName  string
}

func (e *CyclicSupertypesError) Error() string {
	return fmt.Sprintf("cyclic_supertypes: %s (id=%d) cannot have supertype %s (id=%d): would create a cycle",
		e.TypeName, e.TypeId, e.SuperName, e.Supertype)
}

// UnknownTypeError reports a reference to a TypeId the registry never
// minted.
type UnknownTypeError struct {
	Id types.TypeId
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type id %d", e.Id)
}

type distKey struct {
	s, t types.TypeId
}

// infinite is the memoization sentinel for "no subtype path exists".
const infinite = ^uint32(0)

// Registry is the append-only type registry for one compilation.
type Registry struct {
	mu     sync.RWMutex
	infos  map[types.TypeId]*types.Info
	byName map[string]types.TypeId
	nextID types.TypeId

	// distanceMemo amortizes repeated BFS queries to O(1) on cache hit, per
	// §4.1 ("a per-registry memoization table so repeated queries are
	// amortized O(1)").
	distanceMemo map[distKey]uint32

	log *logging.Logger
}

// New creates an empty registry.
func New(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NoOp()
	}
	return &Registry{
		infos:        make(map[types.TypeId]*types.Info),
		byName:       make(map[string]types.TypeId),
		nextID:       1, // 0 is InvalidTypeId
		distanceMemo: make(map[distKey]uint32),
		log:          log,
	}
}

// DeclareType mints a TypeId for a forward-declared type with no
// supertypes yet attached. Useful for mutually-referential shape fields;
// call AddSupertypes afterward to attach the supertype edges.
func (r *Registry) DeclareType(name string, kind types.Kind) types.TypeId {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.infos[id] = &types.Info{Id: id, Name: name, Kind: kind}
	r.byName[name] = id
	r.log.Debug("type declared", map[string]interface{}{"id": id, "name": name, "kind": kind.String()})
	return id
}

// RegisterType mints a TypeId and attaches its direct supertype edges in
// one step. All supertypes must already be registered. Returns a
// *CyclicSupertypesError if attaching them would create a cycle (defense
// in depth: since supertypes must pre-exist, a cycle can only arise if a
// caller reuses an id across declarations).
func (r *Registry) RegisterType(name string, kind types.Kind, directSupertypes ...types.TypeId) (types.TypeId, error) {
	id := r.DeclareType(name, kind)
	if err := r.AddSupertypes(id, directSupertypes...); err != nil {
		return types.InvalidTypeId, err
	}
	return id, nil
}

// AddSupertypes attaches additional direct supertype edges to an
// already-declared type, refusing any edge that would create a cycle.
func (r *Registry) AddSupertypes(id types.TypeId, supertypes ...types.TypeId) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.infos[id]
	if !ok {
		return &UnknownTypeError{Id: id}
	}

	for _, st := range supertypes {
		stInfo, ok := r.infos[st]
		if !ok {
			return &UnknownTypeError{Id: st}
		}
		if r.canReachLocked(st, id) {
			return &CyclicSupertypesError{
				TypeId: id, Supertype: st,
				TypeName: info.Name, SuperName: stInfo.Name,
			}
		}
	}

	info.DirectSupertypes = append(info.DirectSupertypes, supertypes...)
	// The supertype graph changed; the memo table is keyed by (s,t) pairs
	// so stale entries touching this node would only ever under-report
	// reachability that has just become true. Clear conservatively.
	r.distanceMemo = make(map[distKey]uint32)
	return nil
}

// SetFields attaches structural field information to a shape type.
func (r *Registry) SetFields(id types.TypeId, fields []types.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.infos[id]
	if !ok {
		return &UnknownTypeError{Id: id}
	}
	if !info.Kind.IsShape() {
		return fmt.Errorf("type %s (id=%d) is kind %s, not a shape type", info.Name, id, info.Kind)
	}
	info.Fields = fields
	return nil
}

// SetVariants attaches member types to a sum type.
func (r *Registry) SetVariants(id types.TypeId, variants []types.TypeId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.infos[id]
	if !ok {
		return &UnknownTypeError{Id: id}
	}
	if !info.Kind.IsSum() {
		return fmt.Errorf("type %s (id=%d) is kind %s, not a sum type", info.Name, id, info.Kind)
	}
	info.Variants = variants
	return nil
}

// TypeInfo returns the registered info for id, or nil if unknown.
func (r *Registry) TypeInfo(id types.TypeId) *types.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.infos[id]
	if !ok {
		return nil
	}
	cp := *info
	return &cp
}

// Lookup resolves a type by name.
func (r *Registry) Lookup(name string) (types.TypeId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// canReachLocked reports whether t is reachable from s by following
// direct-supertype edges (i.e. s ≤ t along the nominal chain). Caller
// must hold r.mu.
func (r *Registry) canReachLocked(s, t types.TypeId) bool {
	if s == t {
		return true
	}
	visited := map[types.TypeId]bool{s: true}
	queue := []types.TypeId{s}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		info, ok := r.infos[cur]
		if !ok {
			continue
		}
		for _, sup := range info.DirectSupertypes {
			if sup == t {
				return true
			}
			if !visited[sup] {
				visited[sup] = true
				queue = append(queue, sup)
			}
		}
	}
	return false
}

// IsSubtype reports whether s ≤ t: reflexive, transitive over the
// supertype DAG, and structural for shape types (§3).
func (r *Registry) IsSubtype(s, t types.TypeId) bool {
	d, ok := r.SpecificityDistance(s, t)
	_ = d
	return ok
}

// SpecificityDistance returns d(s,t): the number of edges on the shortest
// supertype chain from s to t, or (0, false) if s is not a subtype of t.
// d(s,s) = 0 always. Results are memoized per registry instance.
func (r *Registry) SpecificityDistance(s, t types.TypeId) (uint32, bool) {
	if s == t {
		return 0, true
	}

	key := distKey{s, t}
	r.mu.RLock()
	if d, ok := r.distanceMemo[key]; ok {
		r.mu.RUnlock()
		if d == infinite {
			return 0, false
		}
		return d, true
	}
	r.mu.RUnlock()

	d, ok := r.computeDistance(s, t)

	r.mu.Lock()
	if ok {
		r.distanceMemo[key] = d
	} else {
		r.distanceMemo[key] = infinite
	}
	r.mu.Unlock()

	return d, ok
}

// computeDistance runs BFS over the nominal supertype graph; if no
// nominal path exists and both types are shapes, falls back to a
// structural check (distance 1, a single non-nominal "structural" step,
// per the registry's structural subtyping rule in §3).
func (r *Registry) computeDistance(s, t types.TypeId) (uint32, bool) {
	r.mu.RLock()
	sInfo, sOk := r.infos[s]
	tInfo, tOk := r.infos[t]
	r.mu.RUnlock()
	if !sOk || !tOk {
		return 0, false
	}

	if d, ok := r.bfsDistance(s, t); ok {
		return d, true
	}

	if sInfo.Kind.IsShape() && tInfo.Kind.IsShape() {
		if r.structuralSubtype(sInfo, tInfo) {
			return 1, true
		}
	}

	if sInfo.Kind.IsSum() {
		// A sum type is a subtype of t if every variant is.
		allMatch := len(sInfo.Variants) > 0
		var maxDist uint32
		for _, v := range sInfo.Variants {
			d, ok := r.SpecificityDistance(v, t)
			if !ok {
				allMatch = false
				break
			}
			if d > maxDist {
				maxDist = d
			}
		}
		if allMatch {
			return maxDist + 1, true
		}
	}

	return 0, false
}

func (r *Registry) bfsDistance(s, t types.TypeId) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type item struct {
		id   types.TypeId
		dist uint32
	}
	visited := map[types.TypeId]bool{s: true}
	queue := []item{{s, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.id == t {
			return cur.dist, true
		}
		info, ok := r.infos[cur.id]
		if !ok {
			continue
		}
		for _, sup := range info.DirectSupertypes {
			if !visited[sup] {
				visited[sup] = true
				queue = append(queue, item{sup, cur.dist + 1})
			}
		}
	}
	return 0, false
}

// structuralSubtype checks field-wise structural compatibility: every
// required field of t must exist in s with a subtype-compatible type.
// Closed supertypes additionally forbid s from carrying fields t does not
// declare; open supertypes permit them.
func (r *Registry) structuralSubtype(s, t *types.Info) bool {
	sFields := make(map[string]types.Field, len(s.Fields))
	for _, f := range s.Fields {
		sFields[f.Name] = f
	}

	for _, tf := range t.Fields {
		if !tf.Required {
			continue
		}
		sf, ok := sFields[tf.Name]
		if !ok {
			return false
		}
		if !r.IsSubtype(sf.Type, tf.Type) {
			return false
		}
	}

	if t.Kind == types.KindShapeClosed {
		tFieldNames := make(map[string]bool, len(t.Fields))
		for _, f := range t.Fields {
			tFieldNames[f.Name] = true
		}
		for _, f := range s.Fields {
			if !tFieldNames[f.Name] {
				return false
			}
		}
	}

	return true
}

// Len returns the number of registered types, mostly for diagnostics and
// tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}
