// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func processedOf(data []byte) Processed {
	return Processed{
		Data:         data,
		MimeType:     "image/gif",
		Compression:  CompressionNone,
		OriginalSize: int64(len(data)),
	}
}

func TestChunkSizes(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		wantCount int
	}{
		{"single partial chunk", 1000, 4096, 1},
		{"exact multiple", 8192, 4096, 2},
		{"one byte over", 8193, 4096, 3},
		{"default chunk size", DefaultChunkSize + 1, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := incompressibleBytes(tt.size)
			manifest := Chunk(processedOf(data), tt.chunkSize)

			if manifest.ChunkCount != tt.wantCount {
				t.Errorf("ChunkCount = %d, want %d", manifest.ChunkCount, tt.wantCount)
			}
			if manifest.TotalSize != int64(tt.size) {
				t.Errorf("TotalSize = %d, want %d", manifest.TotalSize, tt.size)
			}
			if len(manifest.Chunks) != tt.wantCount {
				t.Errorf("len(Chunks) = %d, want %d", len(manifest.Chunks), tt.wantCount)
			}
		})
	}
}

func TestReassembleRoundTrip(t *testing.T) {
	data := incompressibleBytes(3*DefaultChunkSize + 777)
	manifest := Chunk(processedOf(data), 0)

	restored, err := Reassemble(manifest)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if !bytes.Equal(restored, data) {
		t.Error("reassembled bytes differ from original")
	}
}

func TestReassembleDetectsCorruptChunk(t *testing.T) {
	data := incompressibleBytes(4 * 4096)
	manifest := Chunk(processedOf(data), 4096)

	// Flip one byte in the second chunk. Chunks alias the original
	// buffer, so corrupt a copy.
	corrupted := make([]byte, 4096)
	copy(corrupted, manifest.Chunks[1])
	corrupted[17] ^= 0xff
	manifest.Chunks[1] = corrupted

	_, err := Reassemble(manifest)
	if !errors.Is(err, ErrReassembly) {
		t.Errorf("error = %v, want ErrReassembly", err)
	}
}

func TestReassembleDetectsMissingChunk(t *testing.T) {
	data := incompressibleBytes(3 * 4096)
	manifest := Chunk(processedOf(data), 4096)
	manifest.Chunks = manifest.Chunks[:2]

	_, err := Reassemble(manifest)
	if !errors.Is(err, ErrReassembly) {
		t.Errorf("error = %v, want ErrReassembly", err)
	}
}

func TestReassembleDetectsSizeMismatch(t *testing.T) {
	data := incompressibleBytes(2 * 4096)
	manifest := Chunk(processedOf(data), 4096)
	manifest.Chunks[1] = manifest.Chunks[1][:100]

	_, err := Reassemble(manifest)
	if !errors.Is(err, ErrReassembly) {
		t.Errorf("error = %v, want ErrReassembly", err)
	}
	// A corrupted manifest must fail, never return differently-sized
	// data.
}

func TestRestoreCompressedPayload(t *testing.T) {
	p := NewProcessor(Limits{}, nil, nil)
	original := compressibleBytes(2 << 20)

	processed, err := p.Process(context.Background(), original, "text/plain")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	manifest := Chunk(processed, 0)

	restored, err := Restore(manifest)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Error("restored payload differs from original")
	}
}

func TestHashHexRoundTrip(t *testing.T) {
	h := HashBytes([]byte("gifstash"))
	parsed, err := ParseHash(h.String())
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if parsed != h {
		t.Error("hex round trip mismatch")
	}

	if _, err := ParseHash("zz"); err == nil {
		t.Error("ParseHash accepted invalid hex")
	}
	if _, err := ParseHash("abcd"); err == nil {
		t.Error("ParseHash accepted short digest")
	}
}
