package inspect

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec of a dump body.
type Compression uint8

const (
	// CompressionNone stores the body as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Format: [uncompressed u32][stored u32][data...]. stored == 0 means the
// data is the raw body.
const blockHeaderSize = 8

const (
	// MaxBodySize bounds the uncompressed body of a dump.
	MaxBodySize = 1 << 30
	// maxExpansion bounds uncompressed/stored for a compressed block. LZ4
	// cannot exceed 255; snapshot JSON stays far below this under zstd.
	maxExpansion = 1024
)

// compressBlock frames data, falling back to raw storage when compression
// saves less than 10%.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	if len(data) > MaxBodySize {
		return nil, fmt.Errorf("inspect: body of %d bytes exceeds %d", len(data), MaxBodySize)
	}

	var compressed []byte

	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("inspect: lz4: %w", err)
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("inspect: zstd: %w", err)
		}
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("inspect: unknown compression %d", uint8(c))
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

func decompressBlock(block []byte, c Compression) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block too small for header", ErrCorrupt)
	}

	size := binary.LittleEndian.Uint32(block[0:])
	stored := binary.LittleEndian.Uint32(block[4:])
	data := block[blockHeaderSize:]

	if stored == 0 {
		if uint64(len(data)) != uint64(size) {
			return nil, fmt.Errorf("%w: raw block of %d bytes, header says %d", ErrCorrupt, len(data), size)
		}
		return data, nil
	}
	if uint64(len(data)) != uint64(stored) {
		return nil, fmt.Errorf("%w: compressed block of %d bytes, header says %d", ErrCorrupt, len(data), stored)
	}
	if size > MaxBodySize || uint64(size) > uint64(stored)*maxExpansion {
		return nil, fmt.Errorf("%w: %d bytes stored cannot expand to %d", ErrCorrupt, stored, size)
	}

	out := make([]byte, size)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil

	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("inspect: zstd: %w", err)
		}
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(data, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: compressed block with compression %s", ErrCorrupt, c)
	}
}
