// Package model is the in-memory object graph of typed containers.
//
// A Collection is the root arena: it owns every Container created in it,
// keyed by a stable ID. Containers own their children; references and
// regions never own anything and are resolved by ID lookup, so a removed
// target shows up as ErrDanglingReference rather than a stale pointer.
//
// Mutations (Instantiate, SetAttribute, AttachChild, Link, AddColumn,
// AddRow, Remove) take the collection's write lock and either apply fully
// or leave the graph unchanged. Reads take the read lock and may run
// concurrently with each other.
package model

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// ID identifies a collection or a container. IDs are UUID v7 strings and
// survive a store round trip.
type ID string

// newID generates a UUID v7 identity.
func newID() ID {
	return ID(uuid.Must(uuid.NewV7()).String())
}

// Collection is the root of one object graph.
type Collection struct {
	mu sync.RWMutex

	id            ID
	name          string
	registry      *schema.Registry
	allowExternal bool

	containers map[ID]*Container
	order      []ID // creation order
	roots      []ID

	// external holds other collections that references may point into.
	external map[ID]*Collection
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithName names the collection.
func WithName(name string) CollectionOption {
	return func(c *Collection) {
		c.name = name
	}
}

// WithExternalReferences allows or forbids references into other
// collections. Forbidden by default.
func WithExternalReferences(allow bool) CollectionOption {
	return func(c *Collection) {
		c.allowExternal = allow
	}
}

// withID fixes the collection identity, used when restoring.
func withID(id ID) CollectionOption {
	return func(c *Collection) {
		c.id = id
	}
}

// NewCollection creates an empty collection whose containers are typed by
// reg.
func NewCollection(reg *schema.Registry, opts ...CollectionOption) *Collection {
	c := &Collection{
		id:         newID(),
		registry:   reg,
		containers: make(map[ID]*Container),
		external:   make(map[ID]*Collection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the collection identity.
func (c *Collection) ID() ID { return c.id }

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Registry returns the registry the collection types its containers with.
func (c *Collection) Registry() *schema.Registry { return c.registry }

// AllowsExternalReferences reports the collection's reference policy.
func (c *Collection) AllowsExternalReferences() bool { return c.allowExternal }

// Get returns the live container with the given ID.
func (c *Collection) Get(id ID) (*Container, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getLocked(id)
}

func (c *Collection) getLocked(id ID) (*Container, error) {
	ct, ok := c.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: container %s", types.ErrDanglingReference, id)
	}
	return ct, nil
}

// Len returns the number of live containers.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.containers)
}

// Containers returns every live container in creation order.
func (c *Collection) Containers() []*Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Container, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.containers[id])
	}
	return out
}

// Roots returns the containers owned directly by the collection.
func (c *Collection) Roots() []*Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Container, 0, len(c.roots))
	for _, id := range c.roots {
		out = append(out, c.containers[id])
	}
	return out
}

// Root returns the root container with the given name.
func (c *Collection) Root(name string) (*Container, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.roots {
		if ct := c.containers[id]; ct.name == name {
			return ct, true
		}
	}
	return nil, false
}

// AddRoot hands ownership of ct to the collection. Root names are unique.
func (c *Collection) AddRoot(ct *Container) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMemberLocked(ct); err != nil {
		return err
	}
	if ct.owned {
		return fmt.Errorf("%w: %s already has an owner", types.ErrOwnershipConflict, ct.describe())
	}
	for _, id := range c.roots {
		if c.containers[id].name == ct.name {
			return fmt.Errorf("%w: root %q", types.ErrDuplicateName, ct.name)
		}
	}
	ct.owned = true
	c.roots = append(c.roots, ct.id)
	return nil
}

// BindExternal makes other resolvable from references held by c. Reading
// a collection back from a store drops these bindings; callers re-bind
// the collections they read together.
func (c *Collection) BindExternal(other *Collection) error {
	if other == nil || other == c {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.allowExternal {
		return fmt.Errorf("%w: collection %s", types.ErrExternalReferenceUnsupported, c.id)
	}
	c.external[other.id] = other
	return nil
}

// Remove destroys ct and its whole subtree. References to any destroyed
// container become dangling.
func (c *Collection) Remove(ct *Container) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMemberLocked(ct); err != nil {
		return err
	}

	if ct.parent != "" {
		if p, ok := c.containers[ct.parent]; ok {
			p.children = removeID(p.children, ct.id)
		}
	} else if ct.owned {
		c.roots = removeID(c.roots, ct.id)
	}

	doomed := make(map[ID]bool)
	var walk func(x *Container)
	walk = func(x *Container) {
		doomed[x.id] = true
		for _, child := range x.children {
			walk(c.containers[child])
		}
	}
	walk(ct)

	for id := range doomed {
		x := c.containers[id]
		x.removed = true
		delete(c.containers, id)
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if !doomed[id] {
			kept = append(kept, id)
		}
	}
	c.order = kept
	return nil
}

// checkMemberLocked verifies ct is a live container of c.
func (c *Collection) checkMemberLocked(ct *Container) error {
	if ct == nil {
		return fmt.Errorf("%w: nil container", types.ErrDanglingReference)
	}
	if ct.coll != c {
		return fmt.Errorf("%w: %s belongs to collection %s", types.ErrOwnershipConflict, ct.describe(), ct.coll.id)
	}
	if ct.removed {
		return fmt.Errorf("%w: %s", types.ErrContainerRemoved, ct.describe())
	}
	return nil
}

func removeID(ids []ID, id ID) []ID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
