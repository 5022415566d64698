// Package payload owns every bit-level encoding used by the entity tables.
//
// # Pointer entries
//
// A pointer-table entry is one 64-bit word:
//
//	 63                            16 15                 1   0
//	┌────────────────────────────────┬────────────────────┬───┐
//	│ value (48 bits)                │ tag (15 bits)      │ M │
//	└────────────────────────────────┴────────────────────┴───┘
//
// The three highest tag values are reserved. FreeTag words carry the index of
// the next free entry in the value field, EvacuationTag words carry the key
// under which the table recorded the handle slot to patch after a move, and
// ZappedTag words are never produced by a live table. Readers supply a TagRange and receive 0 whenever
// the stored tag lies outside it, so reserved words can never be mistaken for
// pointers.
//
// # Dispatch entries
//
// A dispatch-table entry is two words. The encoded word packs
//
//	(code << 16) | (parameterCount << 1) | M
//
// and the second word holds the entrypoint. A code field of zero denotes a
// special entry (null, free or evacuation); the low 16 bits then identify the
// kind and the entrypoint word carries the next free index or the handle
// slot key.
//
// Nothing outside this package shifts or masks entry words.
package payload
