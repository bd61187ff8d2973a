// Package ir holds the typed representation of block type configuration.
//
// It contains the domain entities (fields, block types, block type groups,
// blocks, field layouts), the typed config payloads that the declarative
// config store delivers, order token parsing and canonical JSON. All other
// internal packages import ir; ir imports nothing internal.
//
// Loosely typed config values (a childBlocks setting that may arrive as a
// string, an encoded list or a list; an icon that may be an asset uid or a
// folder reference) are normalized here, once, before any other package
// sees them.
package ir
