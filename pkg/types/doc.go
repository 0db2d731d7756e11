// Package types holds the plain data of the neurodata module: namespace
// and type declarations, field shapes and value types, store
// configuration, and the sentinel errors every package returns.
//
// Nothing here touches a collection; the schema and model packages build
// on these types.
package types
