// Package harness runs YAML scenarios against a fresh block type store.
//
// A scenario applies config snapshots and drives the block type service
// (saves, deletions, block creation, queries) through the real engine. Every
// step is recorded as an invocation and a completion in a trace. The trace
// and the final state of the store form the snapshot compared against golden
// files:
//
//	go test ./internal/harness -update
//
// Scenario format:
//
//	name: snapshot_reorder
//	description: External order lists rewrite sort orders
//	setup:
//	  - action: config.apply
//	    args: {fields: {...}, sites: [en], neo: {...}}
//	flow:
//	  - invoke: blockTypes.save
//	    args: {field: content, handle: callout, name: Callout}
//	    expect:
//	      case: ok
//	      result: {sortOrder: 1}
//	assertions:
//	  - type: final_state
//	    table: block_types
//	    where: {handle: callout}
//	    expect: {sort_order: 1}
//
// Completion cases are "ok", "vetoed", "not_found", "validation",
// "referential_integrity", "transaction_failed", "rejected" (a block
// placement rule) and "error".
package harness
