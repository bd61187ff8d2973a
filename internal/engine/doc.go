// Package engine applies declarative block type configuration to storage.
//
// The engine reacts to three kinds of config change, each keyed by uid:
//
//   - <ns>.blockTypes.<uid>: upsert or delete a block type and its layout
//   - <ns>.blockTypeGroups.<uid>: upsert or delete a group
//   - <ns>.orders.<fieldUid>: rewrite sort orders from the token list
//
// TRANSACTIONS:
//
// Every apply is one transaction. A failure at any step rolls back every
// write of that apply and is returned as an *Error with code
// TRANSACTION_FAILED, or with its own code for referential integrity and
// validation failures. Nothing is retried.
//
// Reads that must see the transaction's writes use the transaction's
// Queries. The request cache (package memo) is only touched after commit.
//
// SORT ORDER:
//
// The field's order list is authoritative: the token at index i gives sort
// order i+1. Configs written before order lists existed carry a sortOrder
// value, used only when the token is absent.
//
// IDEMPOTENCE:
//
// Rows are upserted by uid, so applying the same change twice leaves the
// same row, id and layout behind.
package engine
