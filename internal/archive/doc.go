// Package archive provides the durable local store for solved simulations.
//
// All saved results live in a single JSON document on disk:
//
//   - [Record]: one solved trajectory plus its describing metadata
//   - [Store]: the in-memory collection and the file that backs it
//   - [Summary]: the projection returned by [Store.List] and [Store.Search]
//
// # Durability
//
// Every mutation rewrites the whole collection through a temporary file that
// is fsynced and then renamed over the backing file. A mutation whose write
// fails is rolled back in memory before the error is returned, so a caller
// never observes an id that is not on disk.
//
// # Thread Safety
//
// A single mutex serializes every operation, reads included. Exactly one
// Store may own a backing file; there is no cross-process locking.
package archive
