// Package hash provides the checksum used by exttable's on-disk formats.
//
// # CRC32-Castagnoli (CRC32C)
//
// Dumps written by the inspect package carry a CRC32C of their decoded
// body. The polynomial (0x1EDC6F41) detects all single-bit, double-bit and
// odd-bit errors plus burst errors up to 32 bits, and Go's crc32 package
// uses SSE4.2 or the ARM CRC extension when available.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	crc := hash.UpdateCRC32C(0, chunk1)
//	crc = hash.UpdateCRC32C(crc, chunk2)
package hash
