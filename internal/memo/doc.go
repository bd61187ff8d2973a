// Package memo provides the per-operation read cache for block types, groups
// and field layouts.
//
// A Cache is populated lazily from a Loader and never expires. It is not safe
// for concurrent use and must not outlive the request or command that created
// it: rows may change between operations. Carry one in a context with
// NewContext and fetch it with FromContext.
//
// Loading a block type by id or handle loads every block type of its field,
// so the id, handle and field indices stay consistent and later lookups for
// the same field never reach the Loader. Misses are remembered too.
package memo
