// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package media defines the record types shared by the object store,
// the quota monitor, and the search engine: the full MediaRecord with
// its payload, and the blob-free MetadataProjection used for listing
// and search.
package media

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Metadata describes the source video segment a record was captured
// from. All fields are immutable after capture.
type Metadata struct {
	Width         int       `cbor:"width" json:"width"`
	Height        int       `cbor:"height" json:"height"`
	Duration      float64   `cbor:"duration" json:"duration"` // seconds
	FrameRate     float64   `cbor:"frame_rate" json:"frameRate"`
	FileSizeBytes int64     `cbor:"file_size_bytes" json:"fileSizeBytes"`
	CreatedAt     time.Time `cbor:"created_at" json:"createdAt"`
	SourceURL     string    `cbor:"source_url" json:"sourceUrl"`
	StartTime     float64   `cbor:"start_time" json:"startTime"` // seconds into source
	EndTime       float64   `cbor:"end_time" json:"endTime"`
}

// MediaRecord is a stored capture: the payload blob, an optional
// thumbnail, and the descriptive fields users edit. ID is globally
// unique within a store. The payload is immutable; only Title,
// Description, and Tags can change after creation.
type MediaRecord struct {
	ID          string   `cbor:"id" json:"id"`
	Title       string   `cbor:"title" json:"title"`
	Description string   `cbor:"description,omitempty" json:"description,omitempty"`
	Payload     []byte   `cbor:"payload" json:"-"`
	MimeType    string   `cbor:"mime_type" json:"mimeType"`
	Thumbnail   []byte   `cbor:"thumbnail,omitempty" json:"-"`
	Metadata    Metadata `cbor:"metadata" json:"metadata"`
	Tags        []string `cbor:"tags,omitempty" json:"tags,omitempty"`

	// IntegrityDigest is the checksum over id+title+size+metadata,
	// computed on write and re-verified on read. See Checksum.
	IntegrityDigest string `cbor:"integrity_digest,omitempty" json:"integrityDigest,omitempty"`
}

// MetadataProjection is the blob-free read model of a record. The
// store refreshes it on every write and delete; listing and search
// operate only on projections.
type MetadataProjection struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Duration      float64   `json:"duration"`
	FrameRate     float64   `json:"frameRate"`
	FileSizeBytes int64     `json:"fileSizeBytes"`
	CreatedAt     time.Time `json:"createdAt"`
	SourceURL     string    `json:"sourceUrl,omitempty"`
	HasThumbnail  bool      `json:"hasThumbnail"`
}

// Projection derives the read model from a full record.
func (r *MediaRecord) Projection() MetadataProjection {
	return MetadataProjection{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Tags:          append([]string(nil), r.Tags...),
		Width:         r.Metadata.Width,
		Height:        r.Metadata.Height,
		Duration:      r.Metadata.Duration,
		FrameRate:     r.Metadata.FrameRate,
		FileSizeBytes: r.Metadata.FileSizeBytes,
		CreatedAt:     r.Metadata.CreatedAt,
		SourceURL:     r.Metadata.SourceURL,
		HasThumbnail:  len(r.Thumbnail) > 0,
	}
}

// ErrInvalidRecord marks records rejected by Validate. Malformed
// input is reported, never panicked on — legacy and imported data
// goes through the same path.
var ErrInvalidRecord = errors.New("invalid media record")

// Validate checks the structural invariants of a record: non-empty
// id and title, a non-empty payload, and non-negative dimensions.
// Tags are deduplicated in place as a side effect so that the stored
// tag set is always unique.
func (r *MediaRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidRecord)
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidRecord)
	}
	if r.Metadata.Width < 0 || r.Metadata.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d",
			ErrInvalidRecord, r.Metadata.Width, r.Metadata.Height)
	}
	if r.Metadata.Duration < 0 {
		return fmt.Errorf("%w: negative duration %f", ErrInvalidRecord, r.Metadata.Duration)
	}
	r.Tags = NormalizeTags(r.Tags)
	return nil
}

// NormalizeTags lowercases, trims, deduplicates, and sorts a tag set.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}
	sort.Strings(normalized)
	return normalized
}

// Checksum computes the record integrity digest: a 32-bit bit-shift
// accumulation over the canonical string of id, title, payload size,
// and capture metadata, rendered in base 36.
//
// This is deliberately NOT a cryptographic digest. It detects
// accidental corruption of the descriptive fields cheaply; payload
// bytes are separately protected by the BLAKE3 digest in the chunk
// manifest. The two mechanisms have intentionally different strength
// and must not be unified without revisiting both write paths.
func Checksum(r *MediaRecord) string {
	parts := []string{
		r.ID,
		r.Title,
		strconv.FormatInt(r.Metadata.FileSizeBytes, 10),
		strconv.Itoa(r.Metadata.Width),
		strconv.Itoa(r.Metadata.Height),
		strconv.FormatFloat(r.Metadata.Duration, 'g', -1, 64),
		strconv.FormatFloat(r.Metadata.FrameRate, 'g', -1, 64),
		strconv.FormatInt(r.Metadata.CreatedAt.UnixMilli(), 10),
		r.Metadata.SourceURL,
	}
	canonical := strings.Join(parts, "\x1f")

	var hash int32
	for _, ch := range canonical {
		hash = (hash << 5) - hash + ch
	}
	return strconv.FormatUint(uint64(uint32(hash)), 36)
}

// VerifyChecksum recomputes the digest and compares it to the stored
// one. A record without a stored digest (legacy rows before the
// backfill migration) verifies trivially.
func VerifyChecksum(r *MediaRecord) bool {
	if r.IntegrityDigest == "" {
		return true
	}
	return Checksum(r) == r.IntegrityDigest
}
