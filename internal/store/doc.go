// Package store provides SQLite-backed storage for block type configuration.
//
// Tables:
//   - fields, sites, assets: external collaborators, modelled only as far as
//     the engine references them
//   - field_layouts: opaque layout sub-records owned by block types
//   - block_types, block_type_groups: the reconciled configuration rows
//   - blocks: element instances, used by deletion and tree resolution
//
// # Invariants
//
// Uniqueness:
//   - UNIQUE(uid) on every configuration table, so writes upsert by uid
//   - UNIQUE(field_id, handle) on block_types
//
// Cascades:
//   - deleting a field removes its block types, groups and blocks
//   - deleting a group clears group_id on its block types
//   - deleting a block removes its descendants
//
// Listings are ordered by sort_order then id so results are stable.
//
// # Transactions
//
// Read and write methods live on Queries, which wraps either the database or
// a transaction. Store.InTx hands fn a transaction-bound Queries. The pool
// holds a single connection, so code running inside InTx must use the
// Queries it was given; touching the Store directly would block.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
