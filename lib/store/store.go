// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the versioned, transactional persistence layer for
// media records. One SQLite database holds four tables: full records,
// their payload chunks, the blob-free projections used for listing
// and search, and a quarantine for records that fail validation
// during corruption recovery.
//
// A Store is an explicit handle: construct it once with Open and pass
// it by reference. There is no package-level singleton, so tests can
// run any number of independent stores side by side.
//
// Opening walks a small state machine:
//
//	Closed → Opening → Verifying → Healthy
//	                             ↘ Recovering → Healthy (or fatal)
//
// Opening applies the migration pipeline; Verifying runs a cheap
// count probe over every table; a probe failure triggers recovery,
// which backs up every readable record, destroys and recreates the
// database, and re-inserts the backup — quarantining records that no
// longer validate instead of silently dropping them. If recreation
// itself fails, Open returns ErrInitialization and the store is
// unusable.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gifstash/gifstash/lib/blob"
	"github.com/gifstash/gifstash/lib/clock"
	"github.com/gifstash/gifstash/lib/sqlitepool"
)

// State is the store lifecycle phase, exposed for logging and tests.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateVerifying
	StateRecovering
	StateHealthy
)

// String returns the phase name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateVerifying:
		return "verifying"
	case StateRecovering:
		return "recovering"
	case StateHealthy:
		return "healthy"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. Required; the parent
	// directory must exist.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger

	// Clock drives retry backoff. Defaults to the real clock.
	Clock clock.Clock

	// Retry bounds the per-operation retry loop.
	Retry RetryPolicy

	// Limits configures payload validation and chunking.
	Limits blob.Limits
}

// Store is the persistence handle. Safe for concurrent use: the
// SQLite substrate serializes conflicting writes, and each operation
// is independently atomic. There is no cross-call transaction — two
// overlapping saves commit independently.
type Store struct {
	pool   *sqlitepool.Pool
	path   string
	logger *slog.Logger
	clock  clock.Clock
	retry  RetryPolicy
	limits blob.Limits
	events *Events
	state  atomic.Int32

	// processorMu guards processor and refreshQuota, which are
	// replaced by SetCapacity after the quota monitor is wired in.
	processorMu  sync.Mutex
	processor    *blob.Processor
	refreshQuota func()
}

// Open opens (creating if absent) a versioned store at cfg.Path,
// applies pending migrations, and verifies table integrity. On a
// failed probe it runs the recovery pipeline; if recovery fails the
// returned error wraps ErrInitialization.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: Path is required", ErrInitialization)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeSource := cfg.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	s := &Store{
		path:   cfg.Path,
		logger: logger,
		clock:  timeSource,
		retry:  cfg.Retry.withDefaults(),
		limits: cfg.Limits,
		events: NewEvents(logger),
	}
	s.processor = blob.NewProcessor(cfg.Limits, nil, logger)
	s.setState(StateOpening)

	pool, err := s.openAndMigrate(poolSize)
	if err != nil {
		s.setState(StateClosed)
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	s.pool = pool

	s.setState(StateVerifying)
	if probeErr := s.verify(context.Background()); probeErr != nil {
		s.logger.Error("integrity probe failed, entering recovery",
			"path", s.path,
			"error", probeErr,
		)
		s.setState(StateRecovering)
		if err := s.recoverFromCorruption(context.Background(), poolSize); err != nil {
			s.pool.Close()
			s.setState(StateClosed)
			return nil, fmt.Errorf("%w: recovery failed: %v", ErrInitialization, err)
		}
	}

	s.setState(StateHealthy)
	s.logger.Info("store opened", "path", s.path)
	return s, nil
}

// openAndMigrate opens the pool and runs the migration pipeline on a
// single connection.
func (s *Store) openAndMigrate(poolSize int) (*sqlitepool.Pool, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     s.path,
		PoolSize: poolSize,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, err
	}
	err = applyMigrations(conn)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return pool, nil
}

// Close closes the underlying pool. The store is unusable afterwards.
func (s *Store) Close() error {
	s.setState(StateClosed)
	return s.pool.Close()
}

// State returns the current lifecycle phase.
func (s *Store) State() State {
	return State(s.state.Load())
}

func (s *Store) setState(state State) {
	s.state.Store(int32(state))
}

// Events returns the store's subscription registry. The quota
// monitor emits quota-changed events through the same registry, so UI
// consumers subscribe once.
func (s *Store) Events() *Events {
	return s.events
}

// SetCapacity wires in the quota monitor after construction: capacity
// gates payload admission, and refresh (optional) is invoked after
// every committed write or delete so the monitor drops its cached
// snapshot. Two-phase wiring is needed because the monitor probes
// usage through the store it guards.
func (s *Store) SetCapacity(capacity blob.CapacityChecker, refresh func()) {
	s.processorMu.Lock()
	defer s.processorMu.Unlock()
	s.processor = blob.NewProcessor(s.limits, capacity, s.logger)
	s.refreshQuota = refresh
}

func (s *Store) currentProcessor() (*blob.Processor, func()) {
	s.processorMu.Lock()
	defer s.processorMu.Unlock()
	return s.processor, s.refreshQuota
}

// Usage reports the database size in bytes (page_count × page_size).
// The quota monitor polls this through its snapshot cache.
func (s *Store) Usage(ctx context.Context) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: usage: %w", err)
	}
	defer s.pool.Put(conn)

	var used int64
	err = sqlitex.ExecuteTransient(conn,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				used = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: usage: %w", err)
	}
	return used, nil
}

// SchemaVersion reports the recorded schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: schema version: %w", err)
	}
	defer s.pool.Put(conn)
	return schemaVersion(conn)
}

// verify runs the cheap integrity probe: a COUNT(*) on every table.
// Any failure indicates structural corruption.
func (s *Store) verify(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	for _, table := range []string{"records", "chunks", "projections", "quarantine"} {
		var count int64
		err := sqlitex.ExecuteTransient(conn, "SELECT COUNT(*) FROM "+table,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count = stmt.ColumnInt64(0)
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("%w: probing %s: %v", ErrCorruption, table, err)
		}
		s.logger.Debug("integrity probe", "table", table, "rows", count)
	}
	return nil
}
