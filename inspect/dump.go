package inspect

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/exttable"
	"github.com/hupe1980/exttable/internal/hash"
)

var (
	// ErrCorrupt is returned for dumps that fail framing or checksum checks
	// and by Verify for inconsistent tables.
	ErrCorrupt = exttable.ErrCorrupt
	// ErrUnsupportedVersion is returned for dumps from a newer format.
	ErrUnsupportedVersion = errors.New("inspect: unsupported dump version")
)

var magic = [4]byte{'X', 'T', 'B', 'D'}

const (
	formatVersion = 1
	headerSize    = 12
)

// Write encodes snap as one framed dump.
func Write(w io.Writer, snap *Snapshot, c Compression) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("inspect: encode snapshot: %w", err)
	}

	block, err := compressBlock(body, c)
	if err != nil {
		return err
	}

	var header [headerSize]byte
	copy(header[0:4], magic[:])
	header[4] = formatVersion
	header[5] = byte(c)
	binary.LittleEndian.PutUint32(header[8:], hash.CRC32C(body))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("inspect: write header: %w", err)
	}
	if _, err := w.Write(block); err != nil {
		return fmt.Errorf("inspect: write body: %w", err)
	}
	return nil
}

// Read decodes a dump produced by Write. r is read to EOF.
func Read(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(io.LimitReader(r, headerSize+blockHeaderSize+MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("inspect: read dump: %w", err)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: dump of %d bytes", ErrCorrupt, len(data))
	}
	if [4]byte(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:4])
	}
	if v := data[4]; v != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	c := Compression(data[5])
	want := binary.LittleEndian.Uint32(data[8:])

	body, err := decompressBlock(data[headerSize:], c)
	if err != nil {
		return nil, err
	}
	if !hash.VerifyCRC32C(body, want) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %w", ErrCorrupt, err)
	}
	return &snap, nil
}
