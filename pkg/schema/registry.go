// Package schema holds loaded namespaces and resolves type definitions into
// flattened effective schemas.
//
// A Registry is the single source of truth for type identity during a
// run. It is populated once through Load or LoadAll and is read-only for
// every other caller; tests build their own Registry to stay independent.
package schema

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// Registry maps namespaces to their type definitions and caches the
// effective schema of every loaded type.
type Registry struct {
	mu sync.RWMutex

	// namespaces maps a namespace name to its loaded definition.
	namespaces map[string]*loadedNamespace

	// types maps qualified type names ("core:Device") to their spec.
	types map[string]*types.TypeSpec

	// effective caches resolved schemas keyed by qualified type name.
	effective map[string]*EffectiveSchema

	log zerolog.Logger
}

type loadedNamespace struct {
	ns          types.Namespace
	fingerprint uint64
	byName      map[string]*types.TypeSpec
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for load events.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		namespaces: make(map[string]*loadedNamespace),
		types:      make(map[string]*types.TypeSpec),
		effective:  make(map[string]*EffectiveSchema),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load registers a namespace. Every import must already be loaded
// (ErrUnresolvedImport otherwise). Every type in the namespace is resolved
// eagerly; if any resolution fails nothing is registered. Loading an
// identical namespace again is a no-op, while a different definition
// under the same name fails with ErrNamespaceConflict.
func (r *Registry) Load(ns types.Namespace) error {
	ns = cloneNamespace(ns)
	if err := ns.Validate(); err != nil {
		return err
	}
	fp, err := fingerprint(ns)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.namespaces[ns.Name]; ok {
		if prev.fingerprint == fp {
			r.log.Debug().Str("namespace", ns.Name).Msg("namespace already loaded")
			return nil
		}
		return fmt.Errorf("%w: %s is already loaded with a different definition", types.ErrNamespaceConflict, ns.Name)
	}
	for _, imp := range ns.Imports {
		if _, ok := r.namespaces[imp]; !ok {
			return fmt.Errorf("%w: %s imports %s", types.ErrUnresolvedImport, ns.Name, imp)
		}
	}

	loaded := &loadedNamespace{
		ns:          ns,
		fingerprint: fp,
		byName:      make(map[string]*types.TypeSpec, len(ns.Types)),
	}
	for i := range loaded.ns.Types {
		t := &loaded.ns.Types[i]
		loaded.byName[t.Name] = t
	}

	// Resolve against a staged view so a failure leaves the registry as it was.
	staged := &resolver{
		reg:     r,
		pending: loaded,
		out:     make(map[string]*EffectiveSchema, len(ns.Types)),
	}
	for i := range loaded.ns.Types {
		if _, err := staged.resolve(&loaded.ns.Types[i]); err != nil {
			return err
		}
	}

	r.namespaces[ns.Name] = loaded
	for _, t := range loaded.byName {
		r.types[t.Ident()] = t
	}
	for ident, eff := range staged.out {
		r.effective[ident] = eff
	}

	r.log.Debug().
		Str("namespace", ns.Name).
		Str("version", ns.Version).
		Int("types", len(ns.Types)).
		Msg("namespace loaded")
	return nil
}

// Resolve returns the TypeSpec called typeName as seen from namespace:
// the namespace's own types first, then its imports depth-first.
func (r *Registry) Resolve(typeName, namespace string) (*types.TypeSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.namespaces[namespace]; !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNamespaceNotFound, namespace)
	}
	t, ok := r.lookupLocked(typeName, namespace, nil)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", types.ErrTypeNotFound, typeName, namespace)
	}
	return t, nil
}

// Lookup returns the type with the given qualified name.
func (r *Registry) Lookup(ident string) (*types.TypeSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[ident]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTypeNotFound, ident)
	}
	return t, nil
}

// Effective returns the cached effective schema of a loaded type.
func (r *Registry) Effective(t *types.TypeSpec) (*EffectiveSchema, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", types.ErrTypeNotFound)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	eff, ok := r.effective[t.Ident()]
	if !ok || eff.Type != r.types[t.Ident()] {
		return nil, fmt.Errorf("%w: %s is not loaded in this registry", types.ErrTypeNotFound, t.Ident())
	}
	return eff, nil
}

// IsA reports whether the type named ident is base or one of its
// descendants.
func (r *Registry) IsA(ident, base string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eff, ok := r.effective[ident]
	return ok && eff.IsA(base)
}

// Namespace returns a copy of a loaded namespace definition.
func (r *Registry) Namespace(name string) (types.Namespace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loaded, ok := r.namespaces[name]
	if !ok {
		return types.Namespace{}, fmt.Errorf("%w: %s", types.ErrNamespaceNotFound, name)
	}
	return cloneNamespace(loaded.ns), nil
}

// HasNamespace reports whether the namespace is loaded.
func (r *Registry) HasNamespace(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.namespaces[name]
	return ok
}

// lookupLocked searches namespace and then its imports. The caller must
// hold r.mu.
func (r *Registry) lookupLocked(typeName, namespace string, visited map[string]bool) (*types.TypeSpec, bool) {
	loaded, ok := r.namespaces[namespace]
	if !ok {
		return nil, false
	}
	if t, ok := loaded.byName[typeName]; ok {
		return t, true
	}
	if visited == nil {
		visited = make(map[string]bool)
	}
	visited[namespace] = true
	for _, imp := range loaded.ns.Imports {
		if visited[imp] {
			continue
		}
		if t, ok := r.lookupLocked(typeName, imp, visited); ok {
			return t, true
		}
	}
	return nil, false
}

// cloneNamespace deep-copies the slices of a namespace so callers cannot
// mutate loaded specs.
func cloneNamespace(ns types.Namespace) types.Namespace {
	out := ns
	out.Imports = append([]string(nil), ns.Imports...)
	out.Types = make([]types.TypeSpec, len(ns.Types))
	for i, t := range ns.Types {
		c := t
		c.Attributes = cloneFields(t.Attributes)
		c.Datasets = cloneFields(t.Datasets)
		c.Columns = cloneFields(t.Columns)
		c.Groups = append([]types.GroupSpec(nil), t.Groups...)
		out.Types[i] = c
	}
	return out
}

func cloneFields(fields []types.FieldSpec) []types.FieldSpec {
	if fields == nil {
		return nil
	}
	out := make([]types.FieldSpec, len(fields))
	for i, f := range fields {
		f.Shape = append(types.Shape(nil), f.Shape...)
		out[i] = f
	}
	return out
}
