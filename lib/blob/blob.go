// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package blob validates, compresses, chunks, and reassembles the
// binary payloads attached to media records. It is the leaf of the
// storage stack: the object store feeds payloads through a Processor
// before writing, and reassembles chunk rows through a Manifest on
// read.
//
// Payload bytes are digest-verified end to end: a Manifest carries a
// BLAKE3 digest of the stored bytes, and Reassemble refuses to return
// data whose size or digest disagrees with the manifest. Compression
// is best-effort — an incompressible or failing payload is stored
// uncompressed, never rejected.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Hard limits and defaults for payload processing.
const (
	// MaxBlobSize is the hard ceiling on a single payload. Anything
	// larger is rejected before touching quota or storage.
	MaxBlobSize = 50 << 20 // 50 MiB

	// CompressionThreshold is the size above which compression is
	// attempted for content that is not already compressed.
	CompressionThreshold = 1 << 20 // 1 MiB

	// DefaultChunkSize is the fixed chunk segment size.
	DefaultChunkSize = 256 << 10 // 256 KiB

	// minCompressionGain is the fraction of the original size that
	// compression must save for the compressed form to be kept.
	minCompressionGain = 0.10
)

// Sentinel errors. Callers distinguish rejection reasons with
// errors.Is.
var (
	// ErrValidation marks payloads rejected before any processing:
	// empty input or input above MaxBlobSize.
	ErrValidation = errors.New("blob validation failed")

	// ErrQuotaExceeded marks payloads rejected because the capacity
	// checker reported insufficient available bytes.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrReassembly marks a size or digest mismatch during chunk
	// reassembly. Reassembly never returns partial data.
	ErrReassembly = errors.New("chunk reassembly failed")
)

// CapacityChecker reports how many bytes of storage are currently
// available. Implemented by quota.Monitor; admission is checked once
// per Process call, before any compression work.
type CapacityChecker interface {
	Available(ctx context.Context) (int64, error)
}

// Limits configures a Processor. Zero fields take the package
// defaults.
type Limits struct {
	MaxBlobSize          int64
	CompressionThreshold int64
	ChunkSize            int
}

func (l Limits) withDefaults() Limits {
	if l.MaxBlobSize <= 0 {
		l.MaxBlobSize = MaxBlobSize
	}
	if l.CompressionThreshold <= 0 {
		l.CompressionThreshold = CompressionThreshold
	}
	if l.ChunkSize <= 0 {
		l.ChunkSize = DefaultChunkSize
	}
	return l
}

// Processor validates and compresses payloads under a capacity
// budget. Safe for concurrent use.
type Processor struct {
	limits   Limits
	capacity CapacityChecker
	logger   *slog.Logger
}

// NewProcessor creates a Processor. capacity may be nil, in which
// case admission is not checked (used by recovery, which re-inserts
// data that already fit once).
func NewProcessor(limits Limits, capacity CapacityChecker, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{limits: limits.withDefaults(), capacity: capacity, logger: logger}
}

// Processed is the result of Process: the bytes to store, the
// compression applied to them, and the original uncompressed size.
type Processed struct {
	Data         []byte
	MimeType     string
	Compression  CompressionTag
	OriginalSize int64
}

// Process validates data against the size limits, checks quota
// admission, and compresses when worthwhile. Compression is kept only
// when it saves at least 10% of the original size; compression
// failures degrade to the original bytes.
func (p *Processor) Process(ctx context.Context, data []byte, mimeType string) (Processed, error) {
	size := int64(len(data))
	if size == 0 {
		return Processed{}, fmt.Errorf("%w: empty payload", ErrValidation)
	}
	if size > p.limits.MaxBlobSize {
		return Processed{}, fmt.Errorf("%w: payload is %d bytes, limit is %d",
			ErrValidation, size, p.limits.MaxBlobSize)
	}

	if p.capacity != nil {
		available, err := p.capacity.Available(ctx)
		if err != nil {
			return Processed{}, fmt.Errorf("blob: checking capacity: %w", err)
		}
		if available < size {
			return Processed{}, fmt.Errorf("%w: need %d bytes, %d available",
				ErrQuotaExceeded, size, available)
		}
	}

	result := Processed{
		Data:         data,
		MimeType:     mimeType,
		Compression:  CompressionNone,
		OriginalSize: size,
	}

	if size <= p.limits.CompressionThreshold || isCompressedMedia(mimeType) {
		return result, nil
	}

	compressed, err := Compress(data, CompressionZstd)
	if err != nil {
		// Incompressible or failing payloads are stored as-is.
		p.logger.Debug("compression skipped",
			"mime_type", mimeType,
			"size", size,
			"reason", err,
		)
		return result, nil
	}

	saved := float64(size-int64(len(compressed))) / float64(size)
	if saved < minCompressionGain {
		return result, nil
	}

	result.Data = compressed
	result.Compression = CompressionZstd
	return result, nil
}

// ChunkSize returns the configured chunk segment size.
func (p *Processor) ChunkSize() int {
	return p.limits.ChunkSize
}

// isCompressedMedia reports whether a MIME type denotes content that
// is already entropy-coded, where recompression wastes CPU for no
// size reduction. GIF, the dominant payload type here, is LZW-coded.
func isCompressedMedia(mimeType string) bool {
	switch mimeType {
	case "image/gif", "image/png", "image/jpeg", "image/webp", "image/avif",
		"application/zip", "application/gzip", "application/zstd":
		return true
	}
	return strings.HasPrefix(mimeType, "video/")
}
