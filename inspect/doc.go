// Package inspect captures, verifies and serializes the state of exttable
// tables for offline diagnosis.
//
// A dump is a single framed block:
//
//	┌────────┬─────────┬─────────────┬──────────┬────────────────────────┐
//	│ magic  │ version │ compression │ reserved │ crc32c(body)           │
//	│ 4 B    │ 1 B     │ 1 B         │ 2 B      │ 4 B                    │
//	├────────┴─────────┴─────────────┴──────────┴────────────────────────┤
//	│ [uncompressed u32][stored u32][data...]   stored == 0: raw body    │
//	└────────────────────────────────────────────────────────────────────┘
//
// The body is the JSON encoding of a Snapshot. Pointer values and code
// addresses are never written; a dump records handles, tags, mark bits and
// the segment layout of every space.
package inspect
