// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gifstash/gifstash/lib/blob"
	"github.com/gifstash/gifstash/lib/codec"
	"github.com/gifstash/gifstash/lib/media"
)

// backupEntry is one record captured from a corrupt database before
// it is destroyed. Chunks stay in stored (possibly compressed) form;
// recovery never decompresses payloads it is only moving.
type backupEntry struct {
	Record   *media.MediaRecord
	Manifest blob.Manifest
}

// QuarantineEntry describes a record that failed re-validation during
// recovery. The payload, when present, is the CBOR-encoded backup of
// the record and its manifest, kept so the data can be inspected or
// salvaged by hand.
type QuarantineEntry struct {
	ID            string
	Reason        string
	Payload       []byte
	QuarantinedAt time.Time
}

// recoverFromCorruption rebuilds the database after a failed
// integrity probe: back up every readable record, destroy the corrupt
// file, recreate the schema, and re-insert each record that still
// validates. Records that fail validation or reassembly are written
// to the quarantine table instead of being silently dropped. On
// success s.pool points at the recreated database.
func (s *Store) recoverFromCorruption(ctx context.Context, poolSize int) error {
	entries, readFailures := s.backupReadableRecords(ctx)
	s.logger.Info("recovery backup complete",
		"readable_records", len(entries),
		"unreadable_records", len(readFailures),
	)

	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("closing corrupt pool: %w", err)
	}
	if err := destroyDatabase(s.path); err != nil {
		return err
	}

	pool, err := s.openAndMigrate(poolSize)
	if err != nil {
		return fmt.Errorf("recreating database: %w", err)
	}
	s.pool = pool

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	recovered := 0
	quarantined := 0
	for _, entry := range entries {
		if reason := revalidate(entry); reason != "" {
			if err := s.quarantine(conn, entry, reason); err != nil {
				return err
			}
			quarantined++
			continue
		}
		if err := insertRecord(conn, entry.Record, entry.Manifest); err != nil {
			if qErr := s.quarantine(conn, entry, err.Error()); qErr != nil {
				return qErr
			}
			quarantined++
			continue
		}
		recovered++
	}
	for id, reason := range readFailures {
		err := s.quarantine(conn, backupEntry{Record: &media.MediaRecord{ID: id}}, reason)
		if err != nil {
			return err
		}
		quarantined++
	}

	s.logger.Info("recovery complete",
		"recovered", recovered,
		"quarantined", quarantined,
	)
	return nil
}

// backupReadableRecords pulls every record it can out of the corrupt
// database. Row-level failures are collected, not fatal: a partially
// readable database still yields a partial backup.
func (s *Store) backupReadableRecords(ctx context.Context) ([]backupEntry, map[string]string) {
	failures := make(map[string]string)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		s.logger.Error("recovery backup could not get a connection", "error", err)
		return nil, failures
	}
	defer s.pool.Put(conn)

	var ids []string
	err = sqlitex.Execute(conn, "SELECT id FROM records", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		s.logger.Error("recovery backup could not list records", "error", err)
		return nil, failures
	}

	var entries []backupEntry
	for _, id := range ids {
		record, manifest, err := loadRecord(conn, id)
		if err != nil {
			failures[id] = err.Error()
			continue
		}
		if record == nil {
			continue
		}
		entries = append(entries, backupEntry{Record: record, Manifest: manifest})
	}
	return entries, failures
}

// revalidate checks a backed-up record before re-insertion. Returns
// an empty string when the record is sound, otherwise the quarantine
// reason.
func revalidate(entry backupEntry) string {
	if err := entry.Record.Validate(); err != nil {
		return err.Error()
	}
	if _, err := blob.Reassemble(entry.Manifest); err != nil {
		return err.Error()
	}
	return ""
}

func (s *Store) quarantine(conn *sqlite.Conn, entry backupEntry, reason string) error {
	var payload []byte
	if entry.Record != nil && len(entry.Manifest.Chunks) > 0 {
		encoded, err := codec.Marshal(struct {
			Record   *media.MediaRecord `cbor:"record"`
			Manifest blob.Manifest      `cbor:"manifest"`
			Chunks   [][]byte           `cbor:"chunks"`
		}{entry.Record, entry.Manifest, entry.Manifest.Chunks})
		if err == nil {
			payload = encoded
		}
	}

	s.logger.Warn("record quarantined",
		"record_id", entry.Record.ID,
		"reason", reason,
	)
	return sqlitex.Execute(conn, `
		INSERT OR REPLACE INTO quarantine (id, reason, payload, quarantined_at)
		VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			entry.Record.ID, reason, payload, s.clock.Now().UnixMilli(),
		}})
}

// QuarantinedRecords lists the records set aside by recovery, newest
// first.
func (s *Store) QuarantinedRecords(ctx context.Context) ([]QuarantineEntry, error) {
	var entries []QuarantineEntry
	err := s.withRetry(ctx, "list quarantine", func() error {
		conn, err := s.pool.Take(ctx)
		if err != nil {
			return err
		}
		defer s.pool.Put(conn)

		entries = entries[:0]
		return sqlitex.Execute(conn, `
			SELECT id, reason, payload, quarantined_at
			FROM quarantine ORDER BY quarantined_at DESC, id`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					entry := QuarantineEntry{
						ID:            stmt.ColumnText(0),
						Reason:        stmt.ColumnText(1),
						QuarantinedAt: time.UnixMilli(stmt.ColumnInt64(3)).UTC(),
					}
					if !stmt.ColumnIsNull(2) {
						entry.Payload = make([]byte, stmt.ColumnLen(2))
						stmt.ColumnBytes(2, entry.Payload)
					}
					entries = append(entries, entry)
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// destroyDatabase removes the database file and its WAL sidecars.
func destroyDatabase(path string) error {
	for _, file := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", file, err)
		}
	}
	return nil
}
