package model

import "context"

// Handle names a collection held by a Store. It is the collection's ID.
type Handle string

// Store persists collections. Writing a collection under a handle that
// already exists replaces it. Reading returns a new, independent
// collection equal to the one written.
type Store interface {
	Write(ctx context.Context, c *Collection) (Handle, error)
	Read(ctx context.Context, h Handle) (*Collection, error)
}
