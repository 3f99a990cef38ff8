// Package moduledispatch tracks modules, their exports and imports, and
// aggregates the candidate implementation set visible to a call site
// (§4.4). It is grounded in the teacher's scoped SymbolTable
// (pkg/compiler/symbols.go): a chain of lookup scopes, generalized here
// from lexical block scope to module import/export scope.
package moduledispatch

import (
	"fmt"
	"sort"

	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
)

// ModuleId identifies a registered module.
type ModuleId uint32

// Visibility controls whether an export is visible outside its declaring
// module.
type Visibility int

const (
	Public Visibility = iota
	ModuleInternal
)

// ImportMode controls how an imported name is bound into scope.
type ImportMode int

const (
	Unqualified ImportMode = iota
	Qualified
	Aliased
)

// ConflictPolicy controls how the importing module handles a name that
// is already bound.
type ConflictPolicy int

const (
	FailOnConflict ConflictPolicy = iota
	Shadow
	Merge
)

// Module is one compilation unit.
type Module struct {
	Id           ModuleId
	Name         string
	Path         string
	Version      string
	Dependencies []string
}

// export is one published (module, simple_name) -> implementations
// binding.
type export struct {
	module       ModuleId
	name         string
	impls        []signature.Implementation
	visibility   Visibility
	sinceVersion string
}

// importBinding is one (from, to, name) binding recorded in an importing
// module's scope.
type importBinding struct {
	from           ModuleId
	name           string
	alias          string
	mode           ImportMode
	conflictPolicy ConflictPolicy
}

// ErrModuleNotFound is returned when a module id/path is referenced but
// never registered.
var ErrModuleNotFound = fmt.Errorf("module not found")

// ErrDuplicateExport is returned when the same (module, name) is
// exported twice.
var ErrDuplicateExport = fmt.Errorf("duplicate export")

// ErrSignatureNotExported is returned when an import references a name
// the source module never exported.
var ErrSignatureNotExported = fmt.Errorf("signature not exported")

// ErrVisibilityViolation is returned when an import attempts to bind a
// module_internal export across module boundaries.
var ErrVisibilityViolation = fmt.Errorf("visibility violation")

// ConflictError reports an unqualified imported name that resolves to
// more than one source module, as recorded by DetectConflicts.
type ConflictError struct {
	Module ModuleId
	Name   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cross_module_conflict: %s already bound in module %d", e.Name, e.Module)
}

// Dispatcher tracks all modules, exports, and imports for one
// compilation.
type Dispatcher struct {
	modules   map[ModuleId]*Module
	byPath    map[string]ModuleId
	nextID    ModuleId
	exports   map[ModuleId]map[string][]*export // module -> simple_name -> exports (usually one, but conflicting re-exports are tracked)
	imports   map[ModuleId][]importBinding
	conflicts []*ConflictError
}

// New creates an empty module dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		modules: make(map[ModuleId]*Module),
		byPath:  make(map[string]ModuleId),
		nextID:  1,
		exports: make(map[ModuleId]map[string][]*export),
		imports: make(map[ModuleId][]importBinding),
	}
}

// RegisterModule registers a new module and returns its id.
func (d *Dispatcher) RegisterModule(name, path, version string, deps []string) ModuleId {
	id := d.nextID
	d.nextID++
	d.modules[id] = &Module{Id: id, Name: name, Path: path, Version: version, Dependencies: deps}
	d.byPath[path] = id
	d.exports[id] = make(map[string][]*export)
	return id
}

// ExportSignature publishes impls under (module, name) with the given
// visibility.
func (d *Dispatcher) ExportSignature(module ModuleId, name string, impls []signature.Implementation, visibility Visibility, sinceVersion string) error {
	if _, ok := d.modules[module]; !ok {
		return fmt.Errorf("%w: module id %d", ErrModuleNotFound, module)
	}
	if existing, ok := d.exports[module][name]; ok && len(existing) > 0 {
		return fmt.Errorf("%w: %s already exported from module %d", ErrDuplicateExport, name, module)
	}
	d.exports[module][name] = []*export{{
		module: module, name: name, impls: impls,
		visibility: visibility, sinceVersion: sinceVersion,
	}}
	return nil
}

// ImportSignature binds (from, name) into the importing module's scope.
func (d *Dispatcher) ImportSignature(from, to ModuleId, name, alias string, mode ImportMode, policy ConflictPolicy) error {
	if _, ok := d.modules[from]; !ok {
		return fmt.Errorf("%w: module id %d", ErrModuleNotFound, from)
	}
	if _, ok := d.modules[to]; !ok {
		return fmt.Errorf("%w: module id %d", ErrModuleNotFound, to)
	}

	exp, ok := d.exports[from][name]
	if !ok || len(exp) == 0 {
		return fmt.Errorf("%w: %s not exported from module %d", ErrSignatureNotExported, name, from)
	}
	if exp[0].visibility != Public {
		return fmt.Errorf("%w: %s in module %d is module_internal", ErrVisibilityViolation, name, from)
	}

	bound := name
	if mode == Aliased && alias != "" {
		bound = alias
	}

	if policy == FailOnConflict {
		for _, existing := range d.imports[to] {
			existingName := existing.name
			if existing.mode == Aliased && existing.alias != "" {
				existingName = existing.alias
			}
			if existingName == bound && existing.from != from {
				return fmt.Errorf("%w: %s", errConflictUnderPolicy, bound)
			}
		}
	}

	d.imports[to] = append(d.imports[to], importBinding{
		from: from, name: name, alias: alias, mode: mode, conflictPolicy: policy,
	})
	return nil
}

var errConflictUnderPolicy = fmt.Errorf("conflict_under_policy")

// DetectConflicts runs after all modules are loaded: for every module,
// every unqualified-imported name that resolves to more than one source
// module under a non-failing policy is recorded as a conflict. Conflicts
// are reported but never halt the build; resolution at the call site
// sees all conflicting implementations and usually reports Ambiguous
// (§4.4).
func (d *Dispatcher) DetectConflicts() []*ConflictError {
	d.conflicts = nil
	for moduleID, bindings := range d.imports {
		bySimpleName := make(map[string][]importBinding)
		for _, b := range bindings {
			if b.mode != Unqualified {
				continue
			}
			bySimpleName[b.name] = append(bySimpleName[b.name], b)
		}
		for name, bs := range bySimpleName {
			sources := map[ModuleId]bool{}
			for _, b := range bs {
				sources[b.from] = true
			}
			if len(sources) > 1 {
				d.conflicts = append(d.conflicts, &ConflictError{Module: moduleID, Name: name})
			}
		}
	}
	sort.Slice(d.conflicts, func(i, j int) bool {
		if d.conflicts[i].Module != d.conflicts[j].Module {
			return d.conflicts[i].Module < d.conflicts[j].Module
		}
		return d.conflicts[i].Name < d.conflicts[j].Name
	})
	return d.conflicts
}

// CandidatesFor returns the union of locally declared and in-scope
// imported implementations visible to a call site's scope module, for
// the call site's function name.
func (d *Dispatcher) CandidatesFor(scopeModule ModuleId, cs resolve.CallSite) []signature.Implementation {
	var out []signature.Implementation

	// Locally declared (exported-from-self is always visible to self).
	if exp, ok := d.exports[scopeModule][cs.FunctionName]; ok {
		for _, e := range exp {
			out = append(out, e.impls...)
		}
	}

	// Imported.
	for _, b := range d.imports[scopeModule] {
		visibleName := b.name
		if b.mode == Aliased && b.alias != "" {
			visibleName = b.alias
		}
		if visibleName != cs.FunctionName && b.name != cs.FunctionName {
			continue
		}
		if exp, ok := d.exports[b.from][b.name]; ok {
			for _, e := range exp {
				out = append(out, e.impls...)
			}
		}
	}

	return out
}

// Module returns the registered module, if any.
func (d *Dispatcher) Module(id ModuleId) (*Module, bool) {
	m, ok := d.modules[id]
	return m, ok
}

// ModuleByPath resolves a module id by its path.
func (d *Dispatcher) ModuleByPath(path string) (ModuleId, bool) {
	id, ok := d.byPath[path]
	return id, ok
}
