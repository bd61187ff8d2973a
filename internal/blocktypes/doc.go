// Package blocktypes is the block type service: cached reads, local saves
// and deletions, icon lookups and block creation rules.
//
// Local mutations never write rows directly. Save and Delete publish the
// same config change an external config apply would, and the engine's
// handlers registered on the config store perform the write. This keeps a
// single code path for every row change.
package blocktypes
