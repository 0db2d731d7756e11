package schema

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// Source supplies namespace definitions by name. How the definitions are
// encoded is up to the implementation.
type Source interface {
	Namespace(name string) (types.Namespace, error)
}

// SourceFunc adapts a plain loader function to Source.
type SourceFunc func(name string) (types.Namespace, error)

// Namespace calls f.
func (f SourceFunc) Namespace(name string) (types.Namespace, error) {
	return f(name)
}

// MapSource serves namespaces from memory.
type MapSource map[string]types.Namespace

// Namespace returns the named entry or ErrNamespaceNotFound.
func (m MapSource) Namespace(name string) (types.Namespace, error) {
	ns, ok := m[name]
	if !ok {
		return types.Namespace{}, fmt.Errorf("%w: %s", types.ErrNamespaceNotFound, name)
	}
	return ns, nil
}

// LoadAll loads the named namespace from src, loading its imports first,
// depth-first. Namespaces already in the registry are not fetched again.
// An import cycle or an import src cannot supply fails with
// ErrUnresolvedImport.
func (r *Registry) LoadAll(src Source, name string) error {
	return r.loadAll(src, name, make(map[string]bool))
}

func (r *Registry) loadAll(src Source, name string, inProgress map[string]bool) error {
	if r.HasNamespace(name) {
		return nil
	}
	if inProgress[name] {
		return fmt.Errorf("%w: import cycle through %s", types.ErrUnresolvedImport, name)
	}
	inProgress[name] = true
	defer delete(inProgress, name)

	ns, err := src.Namespace(name)
	if err != nil {
		return fmt.Errorf("%w: fetching %s: %w", types.ErrUnresolvedImport, name, err)
	}
	for _, imp := range ns.Imports {
		if err := r.loadAll(src, imp, inProgress); err != nil {
			return err
		}
	}
	return r.Load(ns)
}

// fingerprint hashes the canonical JSON form of a validated namespace.
// Two loads with equal fingerprints define the same types.
func fingerprint(ns types.Namespace) (uint64, error) {
	data, err := json.Marshal(ns)
	if err != nil {
		return 0, fmt.Errorf("encoding namespace %s: %w", ns.Name, err)
	}
	return xxhash.Sum64(data), nil
}
