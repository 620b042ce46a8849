// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gifstash/gifstash/lib/media"
)

// migration is one step of the versioned schema pipeline. Versions
// are ordered and monotonically increasing; each Apply must be
// idempotent because a crash mid-upgrade replays every step above the
// recorded version.
type migration struct {
	Version     int
	Description string
	Apply       func(conn *sqlite.Conn) error
}

// migrations is the full ordered pipeline. The store's recorded
// schema version (PRAGMA user_version) advances to the last entry's
// Version after a successful open.
var migrations = []migration{
	{
		Version:     1,
		Description: "base tables: records, chunks, projections, quarantine",
		Apply: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schemaV1, nil)
		},
	},
	{
		Version:     2,
		Description: "listing and cleanup indexes",
		Apply: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schemaV2, nil)
		},
	},
	{
		Version:     3,
		Description: "backfill integrity digests on legacy rows",
		Apply:       backfillIntegrityDigests,
	},
}

const schemaV1 = `
	CREATE TABLE IF NOT EXISTS records (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		description      TEXT,
		mime_type        TEXT NOT NULL,
		tags             TEXT,
		width            INTEGER NOT NULL,
		height           INTEGER NOT NULL,
		duration         REAL NOT NULL,
		frame_rate       REAL NOT NULL,
		file_size_bytes  INTEGER NOT NULL,
		created_at       INTEGER NOT NULL,
		source_url       TEXT,
		start_time       REAL NOT NULL DEFAULT 0,
		end_time         REAL NOT NULL DEFAULT 0,
		integrity_digest TEXT,
		manifest         BLOB NOT NULL,
		thumbnail        BLOB
	);

	CREATE TABLE IF NOT EXISTS chunks (
		record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		seq       INTEGER NOT NULL,
		data      BLOB NOT NULL,
		PRIMARY KEY (record_id, seq)
	);

	CREATE TABLE IF NOT EXISTS projections (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		description     TEXT,
		tags            TEXT,
		width           INTEGER NOT NULL,
		height          INTEGER NOT NULL,
		duration        REAL NOT NULL,
		frame_rate      REAL NOT NULL,
		file_size_bytes INTEGER NOT NULL,
		created_at      INTEGER NOT NULL,
		source_url      TEXT,
		has_thumbnail   INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS quarantine (
		id             TEXT PRIMARY KEY,
		reason         TEXT NOT NULL,
		payload        BLOB,
		quarantined_at INTEGER NOT NULL
	);
`

const schemaV2 = `
	CREATE INDEX IF NOT EXISTS idx_projections_created ON projections(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_projections_size ON projections(file_size_bytes);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
`

// backfillIntegrityDigests computes digests for records written
// before the digest column was populated. Re-running it is a no-op:
// it only touches rows with a NULL or empty digest.
func backfillIntegrityDigests(conn *sqlite.Conn) error {
	type legacyRow struct {
		id     string
		digest string
	}
	var pending []legacyRow

	err := sqlitex.Execute(conn, `
		SELECT id, title, width, height, duration, frame_rate,
		       file_size_bytes, created_at, source_url
		FROM records
		WHERE integrity_digest IS NULL OR integrity_digest = ''`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record := media.MediaRecord{
					ID:    stmt.ColumnText(0),
					Title: stmt.ColumnText(1),
					Metadata: media.Metadata{
						Width:         stmt.ColumnInt(2),
						Height:        stmt.ColumnInt(3),
						Duration:      stmt.ColumnFloat(4),
						FrameRate:     stmt.ColumnFloat(5),
						FileSizeBytes: stmt.ColumnInt64(6),
						CreatedAt:     time.UnixMilli(stmt.ColumnInt64(7)).UTC(),
						SourceURL:     stmt.ColumnText(8),
					},
				}
				pending = append(pending, legacyRow{
					id:     record.ID,
					digest: media.Checksum(&record),
				})
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("scanning legacy rows: %w", err)
	}

	for _, row := range pending {
		err := sqlitex.Execute(conn,
			"UPDATE records SET integrity_digest = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{row.digest, row.id}})
		if err != nil {
			return fmt.Errorf("backfilling digest for %s: %w", row.id, err)
		}
	}
	return nil
}

// schemaVersion reads the store's recorded version.
func schemaVersion(conn *sqlite.Conn) (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// applyMigrations runs every migration above the recorded version, in
// ascending order, inside a single upgrade transaction, then advances
// the recorded version. Reopening a store already at the latest
// version is a no-op; the version never decreases.
func applyMigrations(conn *sqlite.Conn) (err error) {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	latest := migrations[len(migrations)-1].Version
	if current >= latest {
		return nil
	}

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("beginning upgrade transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, step := range migrations {
		if step.Version <= current {
			continue
		}
		if err = step.Apply(conn); err != nil {
			return fmt.Errorf("migration v%d (%s): %w", step.Version, step.Description, err)
		}
	}

	// PRAGMA does not accept bound parameters; the version is a
	// compile-time constant from the migrations table.
	err = sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version = %d", latest), nil)
	if err != nil {
		return fmt.Errorf("recording schema version %d: %w", latest, err)
	}
	return nil
}
