// Package batch loads a declarative YAML compilation unit — the shape a
// parser (out of scope per §1) would otherwise produce incrementally —
// and wires it through the type registry, signature analyzer, and
// module dispatcher in the ordering §6 requires (types, then modules,
// then exports, then imports). It exists so cmd/janusc can exercise the
// whole pipeline from a single file instead of hand-driving each
// package's API, the same role the teacher's pkg/parser plays for
// cmd/glyph's `run`/`compile` subcommands.
package batch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/janus-lang/dispatch/pkg/logging"
	"github.com/janus-lang/dispatch/pkg/moduledispatch"
	"github.com/janus-lang/dispatch/pkg/registry"
	"github.com/janus-lang/dispatch/pkg/resolve"
	"github.com/janus-lang/dispatch/pkg/signature"
	"github.com/janus-lang/dispatch/pkg/types"
)

// TypeDecl is one registry.RegisterType call's worth of YAML input.
type TypeDecl struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Supertypes  []string `yaml:"supertypes,omitempty"`
	Variants    []string `yaml:"variants,omitempty"`
}

// ModuleDecl registers one module.
type ModuleDecl struct {
	Name         string   `yaml:"name"`
	Path         string   `yaml:"path"`
	Version      string   `yaml:"version"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// ImplDecl is one function declaration, pre-type-checked by the (out of
// scope) upstream compiler stages.
type ImplDecl struct {
	Module   string   `yaml:"module"`
	Function string   `yaml:"function"`
	Params   []string `yaml:"params"`
	Return   string   `yaml:"return"`
	File     string   `yaml:"file,omitempty"`
	Line     int      `yaml:"line,omitempty"`
	Col      int      `yaml:"col,omitempty"`
}

// ExportDecl publishes a function name from a module.
type ExportDecl struct {
	Module     string `yaml:"module"`
	Name       string `yaml:"name"`
	Visibility string `yaml:"visibility"` // "public" | "module_internal"
}

// ImportDecl binds an exported name into an importing module's scope.
type ImportDecl struct {
	From           string `yaml:"from"`
	To             string `yaml:"to"`
	Name           string `yaml:"name"`
	Alias          string `yaml:"alias,omitempty"`
	Mode           string `yaml:"mode"`            // "unqualified" | "qualified" | "aliased"
	ConflictPolicy string `yaml:"conflict_policy"` // "fail_on_conflict" | "shadow" | "merge"
}

// CallSiteDecl is one call site to resolve.
type CallSiteDecl struct {
	Function string   `yaml:"function"`
	Args     []string `yaml:"args"`
	Module   string   `yaml:"module"`
	File     string   `yaml:"file,omitempty"`
	Line     int      `yaml:"line,omitempty"`
	Col      int      `yaml:"col,omitempty"`
}

// Document is the top-level shape of a compilation-unit YAML file.
type Document struct {
	Types           []TypeDecl     `yaml:"types"`
	Modules         []ModuleDecl   `yaml:"modules"`
	Implementations []ImplDecl     `yaml:"implementations"`
	Exports         []ExportDecl   `yaml:"exports"`
	Imports         []ImportDecl   `yaml:"imports"`
	CallSites       []CallSiteDecl `yaml:"call_sites"`
}

// Compilation is the fully wired result of loading a Document: a
// registry, a signature analyzer, a module dispatcher, and the
// normalized implementation set, ready for resolution and table
// generation.
type Compilation struct {
	Registry     *registry.Registry
	Signatures   *signature.Analyzer
	Modules      *moduledispatch.Dispatcher
	Resolver     *resolve.Analyzer
	Implementations []signature.Implementation
	CallSites    []resolve.CallSite

	moduleIds map[string]moduledispatch.ModuleId
	typeIds   map[string]types.TypeId
}

var kindByName = map[string]types.Kind{
	"primitive":    types.KindPrimitive,
	"shape_closed": types.KindShapeClosed,
	"shape_open":   types.KindShapeOpen,
	"sum_closed":   types.KindSumClosed,
	"sum_open":     types.KindSumOpen,
	"generic":      types.KindGeneric,
	"any":          types.KindAny,
}

var visibilityByName = map[string]moduledispatch.Visibility{
	"public":          moduledispatch.Public,
	"module_internal": moduledispatch.ModuleInternal,
}

var importModeByName = map[string]moduledispatch.ImportMode{
	"unqualified": moduledispatch.Unqualified,
	"qualified":   moduledispatch.Qualified,
	"aliased":     moduledispatch.Aliased,
}

var conflictPolicyByName = map[string]moduledispatch.ConflictPolicy{
	"fail_on_conflict": moduledispatch.FailOnConflict,
	"shadow":           moduledispatch.Shadow,
	"merge":            moduledispatch.Merge,
}

// Load reads and parses path as a Document.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("batch: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("batch: parse %s: %w", path, err)
	}
	return doc, nil
}

// Build wires a Document through the registration ordering §6 mandates:
// types first, then modules, then exports, then imports.
func Build(doc Document, log *logging.Logger) (*Compilation, error) {
	reg := registry.New(log)
	typeIds := make(map[string]types.TypeId, len(doc.Types))

	// Pass 1: declare every type so forward-referenced supertypes resolve.
	for _, td := range doc.Types {
		kind, ok := kindByName[td.Kind]
		if !ok {
			return nil, fmt.Errorf("batch: type %q: unknown kind %q", td.Name, td.Kind)
		}
		typeIds[td.Name] = reg.DeclareType(td.Name, kind)
	}

	// Pass 2: attach supertype edges now that every name resolves.
	for _, td := range doc.Types {
		id := typeIds[td.Name]
		supers := make([]types.TypeId, 0, len(td.Supertypes))
		for _, sname := range td.Supertypes {
			sid, ok := typeIds[sname]
			if !ok {
				return nil, fmt.Errorf("batch: type %q references unknown supertype %q", td.Name, sname)
			}
			supers = append(supers, sid)
		}
		if len(supers) > 0 {
			if err := reg.AddSupertypes(id, supers...); err != nil {
				return nil, err
			}
		}
		if len(td.Variants) > 0 {
			variants := make([]types.TypeId, 0, len(td.Variants))
			for _, vname := range td.Variants {
				vid, ok := typeIds[vname]
				if !ok {
					return nil, fmt.Errorf("batch: type %q references unknown variant %q", td.Name, vname)
				}
				variants = append(variants, vid)
			}
			if err := reg.SetVariants(id, variants); err != nil {
				return nil, err
			}
		}
	}

	sigAnalyzer := signature.NewAnalyzer(reg)
	dispatcher := moduledispatch.New()
	moduleIds := make(map[string]moduledispatch.ModuleId, len(doc.Modules))
	for _, md := range doc.Modules {
		moduleIds[md.Path] = dispatcher.RegisterModule(md.Name, md.Path, md.Version, md.Dependencies)
	}

	resolveType := func(name string) (types.TypeId, error) {
		id, ok := typeIds[name]
		if !ok {
			return types.InvalidTypeId, fmt.Errorf("batch: unknown type %q", name)
		}
		return id, nil
	}

	implsByModule := make(map[string][]signature.Implementation)
	var allImpls []signature.Implementation
	for _, id := range doc.Implementations {
		params := make([]types.TypeId, 0, len(id.Params))
		for _, pname := range id.Params {
			pid, err := resolveType(pname)
			if err != nil {
				return nil, err
			}
			params = append(params, pid)
		}
		retType, err := resolveType(id.Return)
		if err != nil {
			return nil, err
		}
		decl := signature.Declaration{
			FunctionId: signature.FunctionId{SimpleName: id.Function, ModulePath: id.Module},
			ParamTypes: params,
			ReturnType: retType,
			SourceSpan: signature.Span{File: id.File, StartLine: id.Line, StartCol: id.Col},
			Module:     id.Module,
		}
		impl, err := sigAnalyzer.Normalize(decl)
		if err != nil {
			return nil, err
		}
		implsByModule[id.Module] = append(implsByModule[id.Module], impl)
		allImpls = append(allImpls, impl)
	}

	for _, ed := range doc.Exports {
		modId, ok := moduleIds[ed.Module]
		if !ok {
			return nil, fmt.Errorf("batch: export from unknown module %q", ed.Module)
		}
		vis, ok := visibilityByName[ed.Visibility]
		if !ok {
			return nil, fmt.Errorf("batch: export %q: unknown visibility %q", ed.Name, ed.Visibility)
		}
		var matching []signature.Implementation
		for _, impl := range implsByModule[ed.Module] {
			if impl.FunctionId.SimpleName == ed.Name {
				matching = append(matching, impl)
			}
		}
		if err := dispatcher.ExportSignature(modId, ed.Name, matching, vis, ""); err != nil {
			return nil, fmt.Errorf("batch: export %q from %q: %w", ed.Name, ed.Module, err)
		}
	}

	for _, imp := range doc.Imports {
		fromId, ok := moduleIds[imp.From]
		if !ok {
			return nil, fmt.Errorf("batch: import from unknown module %q", imp.From)
		}
		toId, ok := moduleIds[imp.To]
		if !ok {
			return nil, fmt.Errorf("batch: import into unknown module %q", imp.To)
		}
		mode, ok := importModeByName[imp.Mode]
		if !ok {
			return nil, fmt.Errorf("batch: import %q: unknown mode %q", imp.Name, imp.Mode)
		}
		policy, ok := conflictPolicyByName[imp.ConflictPolicy]
		if !ok {
			return nil, fmt.Errorf("batch: import %q: unknown conflict policy %q", imp.Name, imp.ConflictPolicy)
		}
		if err := dispatcher.ImportSignature(fromId, toId, imp.Name, imp.Alias, mode, policy); err != nil {
			return nil, fmt.Errorf("batch: import %q from %q into %q: %w", imp.Name, imp.From, imp.To, err)
		}
	}

	resolver := resolve.NewAnalyzer(reg)

	callSites := make([]resolve.CallSite, 0, len(doc.CallSites))
	for _, cs := range doc.CallSites {
		args := make([]types.TypeId, 0, len(cs.Args))
		for _, aname := range cs.Args {
			aid, err := resolveType(aname)
			if err != nil {
				return nil, err
			}
			args = append(args, aid)
		}
		callSites = append(callSites, resolve.CallSite{
			FunctionName:  cs.Function,
			ArgumentTypes: args,
			SourceSpan:    signature.Span{File: cs.File, StartLine: cs.Line, StartCol: cs.Col},
			ScopeModule:   cs.Module,
		})
	}

	return &Compilation{
		Registry:        reg,
		Signatures:      sigAnalyzer,
		Modules:         dispatcher,
		Resolver:        resolver,
		Implementations: allImpls,
		CallSites:       callSites,
		moduleIds:       moduleIds,
		typeIds:         typeIds,
	}, nil
}

// ModuleId looks up the ModuleId a module path was registered under.
func (c *Compilation) ModuleId(path string) (moduledispatch.ModuleId, bool) {
	id, ok := c.moduleIds[path]
	return id, ok
}

// TypeId looks up the TypeId a type name was registered under.
func (c *Compilation) TypeId(name string) (types.TypeId, bool) {
	id, ok := c.typeIds[name]
	return id, ok
}

// CandidatesFor returns the candidate implementation set visible to a
// call site, by scope module, mirroring moduledispatch.CandidatesFor.
func (c *Compilation) CandidatesFor(cs resolve.CallSite) []signature.Implementation {
	modId, ok := c.moduleIds[cs.ScopeModule]
	if !ok {
		return nil
	}
	return c.Modules.CandidatesFor(modId, cs)
}
