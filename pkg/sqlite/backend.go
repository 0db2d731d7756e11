// Package sqlite provides the public API for the SQLite collection store.
// It exposes the factory while keeping the implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/neurodata/internal/sqlite"
	"github.com/mesh-intelligence/neurodata/pkg/schema"
)

// Store is the SQLite-backed collection store.
type Store = sqlite.Backend

// Option configures a Store.
type Option = sqlite.Option

// WithLogger sets the store's logger.
var WithLogger = sqlite.WithLogger

// NewStore creates a store that types collections with reg. The store is
// not attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewStore(reg)
//	err := store.Attach(ctx, types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "session-data",
//	})
//	defer store.Detach()
//	h, err := store.Write(ctx, coll)
func NewStore(reg *schema.Registry, opts ...Option) *Store {
	return sqlite.NewBackend(reg, opts...)
}
