// Package projectconfig is the declarative configuration store block types
// are defined in.
//
// The config is a tree of maps addressed by dotted paths such as
// "neo.blockTypes.<uid>". Components register handlers for path patterns
// whose "{name}" segments capture one key each. Local writes (Set, Remove)
// fire the handler for the written path immediately. External snapshots
// (ApplyExternal) are diffed against the current tree and every changed
// path fires once; handlers may pull a dependency forward with
// ProcessPending.
//
// Snapshots are read from YAML or JSON files by Load, which validates them
// against an embedded CUE schema, and can be followed with Watch.
package projectconfig
