// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest over stored payload bytes.
type Hash [32]byte

// HashBytes computes the BLAKE3 digest of data.
func HashBytes(data []byte) Hash {
	return blake3.Sum256(data)
}

// String returns the hex encoding of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex digest.
func ParseHash(hexString string) (Hash, error) {
	var h Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return h, fmt.Errorf("blob: parsing digest: %w", err)
	}
	if len(decoded) != len(h) {
		return h, fmt.Errorf("blob: digest is %d bytes, want %d", len(decoded), len(h))
	}
	copy(h[:], decoded)
	return h, nil
}

// Manifest describes a chunked payload: total stored size, chunk
// count, content type, the compression applied to the stored bytes,
// the original (uncompressed) size, and the BLAKE3 digest of the
// stored bytes. The manifest header (everything but Chunks) is
// persisted on the record row as CBOR; the chunk bodies live in their
// own table.
type Manifest struct {
	TotalSize    int64          `cbor:"total_size"`
	ChunkCount   int            `cbor:"chunk_count"`
	MimeType     string         `cbor:"mime_type"`
	Compression  CompressionTag `cbor:"compression"`
	OriginalSize int64          `cbor:"original_size"`
	Digest       Hash           `cbor:"digest"`

	// Chunks holds the segment bodies in order. Excluded from the
	// persisted header; repopulated from chunk rows before
	// Reassemble.
	Chunks [][]byte `cbor:"-"`
}

// Chunk splits processed payload bytes into fixed-size segments and
// returns the manifest describing them. chunkSize <= 0 takes
// DefaultChunkSize. The final chunk may be shorter; every other chunk
// is exactly chunkSize bytes.
func Chunk(processed Processed, chunkSize int) Manifest {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	data := processed.Data
	count := (len(data) + chunkSize - 1) / chunkSize
	chunks := make([][]byte, 0, count)
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[offset:end])
	}

	return Manifest{
		TotalSize:    int64(len(data)),
		ChunkCount:   count,
		MimeType:     processed.MimeType,
		Compression:  processed.Compression,
		OriginalSize: processed.OriginalSize,
		Digest:       HashBytes(data),
		Chunks:       chunks,
	}
}

// Reassemble concatenates the manifest's chunks and verifies both the
// total size and the digest before returning the stored bytes. Any
// mismatch is an ErrReassembly — corrupted data is never returned,
// partially or otherwise. The result is still compressed if the
// manifest says so; follow with Decompress to recover the original
// payload.
func Reassemble(m Manifest) ([]byte, error) {
	if len(m.Chunks) != m.ChunkCount {
		return nil, fmt.Errorf("%w: have %d chunks, manifest says %d",
			ErrReassembly, len(m.Chunks), m.ChunkCount)
	}

	data := make([]byte, 0, m.TotalSize)
	for _, chunk := range m.Chunks {
		data = append(data, chunk...)
	}

	if int64(len(data)) != m.TotalSize {
		return nil, fmt.Errorf("%w: reassembled %d bytes, manifest says %d",
			ErrReassembly, len(data), m.TotalSize)
	}
	if HashBytes(data) != m.Digest {
		return nil, fmt.Errorf("%w: digest mismatch", ErrReassembly)
	}

	return data, nil
}

// Restore reassembles and decompresses a manifest's chunks, returning
// the original payload bytes.
func Restore(m Manifest) ([]byte, error) {
	stored, err := Reassemble(m)
	if err != nil {
		return nil, err
	}
	original, err := Decompress(stored, m.Compression, int(m.OriginalSize))
	if err != nil {
		return nil, fmt.Errorf("blob: restoring payload: %w", err)
	}
	return original, nil
}
