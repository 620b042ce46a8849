// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gifstash/gifstash/lib/blob"
	"github.com/gifstash/gifstash/lib/codec"
	"github.com/gifstash/gifstash/lib/media"
)

// SaveGif validates the record, runs its payload through the blob
// subsystem (which enforces size limits and quota admission),
// computes the integrity digest, and commits the record row, its
// payload chunks, the thumbnail, and the refreshed projection in one
// atomic transaction. A duplicate id is a validation error; no
// partial write survives any failure.
func (s *Store) SaveGif(ctx context.Context, record *media.MediaRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	record.Metadata.FileSizeBytes = int64(len(record.Payload))
	if record.Metadata.CreatedAt.IsZero() {
		record.Metadata.CreatedAt = s.clock.Now().UTC()
	}

	processor, refresh := s.currentProcessor()
	processed, err := processor.Process(ctx, record.Payload, record.MimeType)
	if err != nil {
		if errors.Is(err, blob.ErrValidation) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return fmt.Errorf("store: save %s: %w", record.ID, err)
	}
	manifest := blob.Chunk(processed, processor.ChunkSize())
	record.IntegrityDigest = media.Checksum(record)

	err = s.withRetry(ctx, "save "+record.ID, func() error {
		conn, err := s.pool.Take(ctx)
		if err != nil {
			return err
		}
		defer s.pool.Put(conn)
		return insertRecord(conn, record, manifest)
	})
	if err != nil {
		return err
	}

	s.logger.Info("record saved",
		"record_id", record.ID,
		"payload_bytes", record.Metadata.FileSizeBytes,
		"stored_bytes", manifest.TotalSize,
		"compression", manifest.Compression.String(),
		"chunks", manifest.ChunkCount,
	)
	s.events.Emit(Event{Kind: EventRecordAdded, RecordID: record.ID})
	if refresh != nil {
		refresh()
	}
	return nil
}

// GetGif returns the full record with its payload reassembled and its
// thumbnail re-attached, or (nil, nil) if the id is absent. The
// payload's chunk digest is verified during reassembly (hard
// failure); the record-level integrity digest is recomputed and a
// mismatch is logged but non-fatal — the record is still returned, a
// deliberate soft-fail so a checksum false positive cannot lose data.
func (s *Store) GetGif(ctx context.Context, id string) (*media.MediaRecord, error) {
	var record *media.MediaRecord
	var manifest blob.Manifest

	err := s.withRetry(ctx, "get "+id, func() error {
		conn, err := s.pool.Take(ctx)
		if err != nil {
			return err
		}
		defer s.pool.Put(conn)

		record, manifest, err = loadRecord(conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	payload, err := blob.Restore(manifest)
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	record.Payload = payload

	if !media.VerifyChecksum(record) {
		s.logger.Warn("integrity digest mismatch",
			"record_id", id,
			"stored_digest", record.IntegrityDigest,
			"computed_digest", media.Checksum(record),
		)
	}
	return record, nil
}

// DeleteGif removes the record, its chunks, and its projection in one
// atomic transaction. Deleting an absent id is a no-op and emits no
// event.
func (s *Store) DeleteGif(ctx context.Context, id string) error {
	var deleted bool
	err := s.withRetry(ctx, "delete "+id, func() (err error) {
		conn, err := s.pool.Take(ctx)
		if err != nil {
			return err
		}
		defer s.pool.Put(conn)

		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer endTransaction(&err)

		// Chunk rows cascade from the record row.
		err = sqlitex.Execute(conn, "DELETE FROM records WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{id}})
		if err != nil {
			return err
		}
		deleted = conn.Changes() > 0

		return sqlitex.Execute(conn, "DELETE FROM projections WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{id}})
	})
	if err != nil {
		return err
	}

	if deleted {
		s.logger.Info("record deleted", "record_id", id)
		s.events.Emit(Event{Kind: EventRecordDeleted, RecordID: id})
		if _, refresh := s.currentProcessor(); refresh != nil {
			refresh()
		}
	}
	return nil
}

// UpdateOptions selects the editable fields of a record. Nil fields
// are left unchanged. The payload is never editable.
type UpdateOptions struct {
	Title       *string
	Description *string
	Tags        []string
}

// UpdateGif edits a record's descriptive fields, recomputes the
// integrity digest, and refreshes the projection — all in one
// transaction. Returns a validation error if the id is absent.
func (s *Store) UpdateGif(ctx context.Context, id string, opts UpdateOptions) error {
	return s.withRetry(ctx, "update "+id, func() (err error) {
		conn, err := s.pool.Take(ctx)
		if err != nil {
			return err
		}
		defer s.pool.Put(conn)

		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer endTransaction(&err)

		record, _, err := loadRecordHeader(conn, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: record %s does not exist", ErrValidation, id)
		}

		if opts.Title != nil {
			if *opts.Title == "" {
				return fmt.Errorf("%w: title cannot be empty", ErrValidation)
			}
			record.Title = *opts.Title
		}
		if opts.Description != nil {
			record.Description = *opts.Description
		}
		if opts.Tags != nil {
			record.Tags = media.NormalizeTags(opts.Tags)
		}
		record.IntegrityDigest = media.Checksum(record)

		tagsJSON, err := marshalTags(record.Tags)
		if err != nil {
			return err
		}

		err = sqlitex.Execute(conn, `
			UPDATE records SET title = ?, description = ?, tags = ?, integrity_digest = ?
			WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{
				record.Title, record.Description, tagsJSON, record.IntegrityDigest, id,
			}})
		if err != nil {
			return err
		}

		return upsertProjection(conn, record)
	})
}

// GetAllMetadata returns every projection, newest first.
func (s *Store) GetAllMetadata(ctx context.Context) ([]media.MetadataProjection, error) {
	var projections []media.MetadataProjection

	err := s.withRetry(ctx, "list metadata", func() error {
		conn, err := s.pool.Take(ctx)
		if err != nil {
			return err
		}
		defer s.pool.Put(conn)

		projections = projections[:0]
		return sqlitex.Execute(conn, `
			SELECT id, title, description, tags, width, height, duration,
			       frame_rate, file_size_bytes, created_at, source_url, has_thumbnail
			FROM projections
			ORDER BY created_at DESC, id`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					projection, err := scanProjection(stmt)
					if err != nil {
						return err
					}
					projections = append(projections, projection)
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return projections, nil
}

// insertRecord writes a record row, its chunk rows, and its
// projection in one IMMEDIATE transaction. Shared by SaveGif and the
// recovery pipeline.
func insertRecord(conn *sqlite.Conn, record *media.MediaRecord, manifest blob.Manifest) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endTransaction(&err)

	header, err := codec.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	tagsJSON, err := marshalTags(record.Tags)
	if err != nil {
		return err
	}

	var thumbnail any
	if len(record.Thumbnail) > 0 {
		thumbnail = record.Thumbnail
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO records
			(id, title, description, mime_type, tags, width, height,
			 duration, frame_rate, file_size_bytes, created_at, source_url,
			 start_time, end_time, integrity_digest, manifest, thumbnail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			record.ID, record.Title, record.Description, record.MimeType, tagsJSON,
			record.Metadata.Width, record.Metadata.Height,
			record.Metadata.Duration, record.Metadata.FrameRate,
			record.Metadata.FileSizeBytes, record.Metadata.CreatedAt.UnixMilli(),
			record.Metadata.SourceURL,
			record.Metadata.StartTime, record.Metadata.EndTime,
			record.IntegrityDigest, header, thumbnail,
		}})
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: record %s already exists", ErrValidation, record.ID)
		}
		return err
	}

	for seq, chunk := range manifest.Chunks {
		err = sqlitex.Execute(conn,
			"INSERT INTO chunks (record_id, seq, data) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{record.ID, seq, chunk}})
		if err != nil {
			return fmt.Errorf("writing chunk %d: %w", seq, err)
		}
	}

	return upsertProjection(conn, record)
}

// upsertProjection refreshes the record's read model.
func upsertProjection(conn *sqlite.Conn, record *media.MediaRecord) error {
	projection := record.Projection()
	tagsJSON, err := marshalTags(projection.Tags)
	if err != nil {
		return err
	}
	hasThumbnail := 0
	if len(record.Thumbnail) > 0 {
		hasThumbnail = 1
	}

	return sqlitex.Execute(conn, `
		INSERT OR REPLACE INTO projections
			(id, title, description, tags, width, height, duration,
			 frame_rate, file_size_bytes, created_at, source_url, has_thumbnail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			projection.ID, projection.Title, projection.Description, tagsJSON,
			projection.Width, projection.Height, projection.Duration,
			projection.FrameRate, projection.FileSizeBytes,
			projection.CreatedAt.UnixMilli(), projection.SourceURL, hasThumbnail,
		}})
}

// loadRecordHeader reads a record row without its chunks. Returns
// (nil, zero manifest, nil) when the id is absent.
func loadRecordHeader(conn *sqlite.Conn, id string) (*media.MediaRecord, blob.Manifest, error) {
	var record *media.MediaRecord
	var manifest blob.Manifest

	err := sqlitex.Execute(conn, `
		SELECT id, title, description, mime_type, tags, width, height,
		       duration, frame_rate, file_size_bytes, created_at, source_url,
		       start_time, end_time, integrity_digest, manifest, thumbnail
		FROM records WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				loaded, loadedManifest, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				record = loaded
				manifest = loadedManifest
				return nil
			},
		})
	if err != nil {
		return nil, blob.Manifest{}, fmt.Errorf("loading record %s: %w", id, err)
	}
	return record, manifest, nil
}

// loadRecord reads a record row and repopulates its manifest's chunk
// bodies from the chunks table.
func loadRecord(conn *sqlite.Conn, id string) (*media.MediaRecord, blob.Manifest, error) {
	record, manifest, err := loadRecordHeader(conn, id)
	if err != nil || record == nil {
		return record, manifest, err
	}

	manifest.Chunks = make([][]byte, 0, manifest.ChunkCount)
	err = sqlitex.Execute(conn,
		"SELECT data FROM chunks WHERE record_id = ? ORDER BY seq",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				chunk := make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, chunk)
				manifest.Chunks = append(manifest.Chunks, chunk)
				return nil
			},
		})
	if err != nil {
		return nil, blob.Manifest{}, fmt.Errorf("loading chunks for %s: %w", id, err)
	}
	return record, manifest, nil
}

// scanRecord decodes one records row. Columns follow the SELECT order
// in loadRecordHeader.
func scanRecord(stmt *sqlite.Stmt) (*media.MediaRecord, blob.Manifest, error) {
	record := &media.MediaRecord{
		ID:          stmt.ColumnText(0),
		Title:       stmt.ColumnText(1),
		Description: stmt.ColumnText(2),
		MimeType:    stmt.ColumnText(3),
		Metadata: media.Metadata{
			Width:         stmt.ColumnInt(5),
			Height:        stmt.ColumnInt(6),
			Duration:      stmt.ColumnFloat(7),
			FrameRate:     stmt.ColumnFloat(8),
			FileSizeBytes: stmt.ColumnInt64(9),
			CreatedAt:     time.UnixMilli(stmt.ColumnInt64(10)).UTC(),
			SourceURL:     stmt.ColumnText(11),
			StartTime:     stmt.ColumnFloat(12),
			EndTime:       stmt.ColumnFloat(13),
		},
		IntegrityDigest: stmt.ColumnText(14),
	}

	tags, err := unmarshalTags(stmt.ColumnText(4))
	if err != nil {
		return nil, blob.Manifest{}, err
	}
	record.Tags = tags

	header := make([]byte, stmt.ColumnLen(15))
	stmt.ColumnBytes(15, header)
	var manifest blob.Manifest
	if err := codec.Unmarshal(header, &manifest); err != nil {
		return nil, blob.Manifest{}, fmt.Errorf("decoding manifest for %s: %w", record.ID, err)
	}

	if !stmt.ColumnIsNull(16) {
		thumbnail := make([]byte, stmt.ColumnLen(16))
		stmt.ColumnBytes(16, thumbnail)
		record.Thumbnail = thumbnail
	}

	return record, manifest, nil
}

func scanProjection(stmt *sqlite.Stmt) (media.MetadataProjection, error) {
	projection := media.MetadataProjection{
		ID:            stmt.ColumnText(0),
		Title:         stmt.ColumnText(1),
		Description:   stmt.ColumnText(2),
		Width:         stmt.ColumnInt(4),
		Height:        stmt.ColumnInt(5),
		Duration:      stmt.ColumnFloat(6),
		FrameRate:     stmt.ColumnFloat(7),
		FileSizeBytes: stmt.ColumnInt64(8),
		CreatedAt:     time.UnixMilli(stmt.ColumnInt64(9)).UTC(),
		SourceURL:     stmt.ColumnText(10),
		HasThumbnail:  stmt.ColumnInt(11) != 0,
	}
	tags, err := unmarshalTags(stmt.ColumnText(3))
	if err != nil {
		return media.MetadataProjection{}, err
	}
	projection.Tags = tags
	return projection, nil
}

func marshalTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(data), nil
}

func unmarshalTags(text string) ([]string, error) {
	if text == "" || text == "[]" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(text), &tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return tags, nil
}

// isConstraint reports whether an error is a primary-key or
// uniqueness violation.
func isConstraint(err error) bool {
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintPrimaryKey, sqlite.ResultConstraintUnique:
		return true
	}
	return sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint
}
