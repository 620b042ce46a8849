// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package quota watches storage consumption, classifies its health,
// and proposes or executes cleanup. The Monitor probes usage through
// the store, caches the result under a TTL, and serves as the
// capacity checker gating payload admission in the blob processor.
//
// The monitor never blocks saves itself: admission is a point-in-time
// check against the cached snapshot, and the background cleanup loop
// races in-flight saves by design. Two overlapping operations are
// independently atomic, not jointly ordered.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gifstash/gifstash/lib/clock"
	"github.com/gifstash/gifstash/lib/media"
)

// Defaults for monitor configuration. Zero Config fields take these.
const (
	// DefaultCacheTTL bounds repeated capacity probes. The value is
	// inherited policy, not derived; it is configurable rather than
	// hard-coded for exactly that reason.
	DefaultCacheTTL = 60 * time.Second

	// DefaultWarningThreshold and DefaultCriticalThreshold classify
	// usage into healthy (<80%), warning (80-90%), critical (>=90%).
	DefaultWarningThreshold  = 0.80
	DefaultCriticalThreshold = 0.90

	// DefaultCleanupTarget is the usage fraction auto-cleanup drives
	// toward before stopping.
	DefaultCleanupTarget = 0.70

	// LargeRecordCutoff is the fixed size above which a record is
	// proposed for "large" cleanup. Large cleanup is manual only.
	LargeRecordCutoff = 10 << 20 // 10 MiB

	// DefaultCleanupAge is the age beyond which a record is "old" when
	// no settings service overrides it.
	DefaultCleanupAge = 30 * 24 * time.Hour

	// DefaultPollInterval is the background monitor cadence.
	DefaultPollInterval = 5 * time.Minute
)

// Status classifies storage health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Snapshot is a point-in-time view of storage consumption.
type Snapshot struct {
	Used       int64
	Total      int64
	Available  int64
	Percentage float64
	Status     Status
}

// Store is the slice of the object store the monitor needs: a usage
// probe for snapshots, projections for cleanup scanning, and deletion
// for executing suggestions.
type Store interface {
	Usage(ctx context.Context) (int64, error)
	GetAllMetadata(ctx context.Context) ([]media.MetadataProjection, error)
	DeleteGif(ctx context.Context, id string) error
}

// Settings is the preference pass-through: the two policy knobs the
// monitor reads from the host's settings service. Implementations
// must be safe for concurrent use.
type Settings interface {
	CleanupAgeThreshold() time.Duration
	AutoCleanupEnabled() bool
}

// staticSettings is the default when no settings service is wired.
type staticSettings struct{}

func (staticSettings) CleanupAgeThreshold() time.Duration { return DefaultCleanupAge }
func (staticSettings) AutoCleanupEnabled() bool           { return false }

// Notification kinds.
const (
	// NotificationQuotaChanged reports a status transition observed
	// by the background monitor.
	NotificationQuotaChanged = "quota-changed"

	// NotificationCleanupConsent asks the host to approve a cleanup
	// pass; nothing was deleted.
	NotificationCleanupConsent = "cleanup-consent"

	// NotificationCleanupDone reports a completed auto-cleanup pass.
	NotificationCleanupDone = "cleanup-done"
)

// Notification is an advisory emitted by the monitor: quota status
// transitions, cleanup-consent requests, and completed auto-cleanups.
type Notification struct {
	Kind     string
	Message  string
	Snapshot Snapshot
}

// Notifier receives monitor notifications. Handlers must not block;
// the background loop calls Notify synchronously.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}

// Config parameterizes a Monitor. Total is required; zero values
// elsewhere take the package defaults.
type Config struct {
	// Total is the storage budget in bytes.
	Total int64

	// CacheTTL bounds how long a usage snapshot is served from cache.
	CacheTTL time.Duration

	// WarningThreshold and CriticalThreshold are usage fractions.
	WarningThreshold  float64
	CriticalThreshold float64

	// CleanupTarget is the usage fraction auto-cleanup stops at.
	CleanupTarget float64

	// LargeCutoff is the byte size above which records are suggested
	// for manual cleanup.
	LargeCutoff int64

	// RequireConsent makes auto-cleanup ask instead of act: it emits a
	// cleanup-consent notification and deletes nothing.
	RequireConsent bool

	// PollInterval is the background monitor cadence.
	PollInterval time.Duration

	Settings Settings
	Notifier Notifier
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Monitor tracks quota state for one store. Safe for concurrent use.
type Monitor struct {
	store    Store
	total    int64
	ttl      time.Duration
	warning  float64
	critical float64
	target   float64
	large    int64
	consent  bool
	interval time.Duration
	settings Settings
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Monitor over the given store.
func New(store Store, cfg Config) (*Monitor, error) {
	if store == nil {
		return nil, fmt.Errorf("quota: store is required")
	}
	if cfg.Total <= 0 {
		return nil, fmt.Errorf("quota: Total must be positive, got %d", cfg.Total)
	}

	m := &Monitor{
		store:    store,
		total:    cfg.Total,
		ttl:      cfg.CacheTTL,
		warning:  cfg.WarningThreshold,
		critical: cfg.CriticalThreshold,
		target:   cfg.CleanupTarget,
		large:    cfg.LargeCutoff,
		consent:  cfg.RequireConsent,
		interval: cfg.PollInterval,
		settings: cfg.Settings,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if m.ttl <= 0 {
		m.ttl = DefaultCacheTTL
	}
	if m.warning <= 0 {
		m.warning = DefaultWarningThreshold
	}
	if m.critical <= 0 {
		m.critical = DefaultCriticalThreshold
	}
	if m.target <= 0 {
		m.target = DefaultCleanupTarget
	}
	if m.large <= 0 {
		m.large = LargeRecordCutoff
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	if m.settings == nil {
		m.settings = staticSettings{}
	}
	if m.notifier == nil {
		m.notifier = discardNotifier{}
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.warning >= m.critical {
		return nil, fmt.Errorf("quota: warning threshold %.2f must be below critical %.2f",
			m.warning, m.critical)
	}
	return m, nil
}

// Snapshot returns current usage, served from cache while the TTL
// holds. The first call and any call after Refresh probe the store.
func (m *Monitor) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.cached != nil && m.clock.Now().Sub(m.cachedAt) < m.ttl {
		snapshot := *m.cached
		m.mu.Unlock()
		return snapshot, nil
	}
	m.mu.Unlock()

	used, err := m.store.Usage(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("quota: probing usage: %w", err)
	}
	snapshot := m.classify(used)

	m.mu.Lock()
	m.cached = &snapshot
	m.cachedAt = m.clock.Now()
	m.mu.Unlock()
	return snapshot, nil
}

// Refresh invalidates the cached snapshot. The store calls this after
// writes and deletes that change usage materially.
func (m *Monitor) Refresh() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

// Available reports the bytes left under the budget. Implements the
// blob processor's capacity check.
func (m *Monitor) Available(ctx context.Context) (int64, error) {
	snapshot, err := m.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snapshot.Available, nil
}

// classify builds a Snapshot from a raw usage value.
func (m *Monitor) classify(used int64) Snapshot {
	available := m.total - used
	if available < 0 {
		available = 0
	}
	percentage := float64(used) / float64(m.total)

	status := StatusHealthy
	switch {
	case percentage >= m.critical:
		status = StatusCritical
	case percentage >= m.warning:
		status = StatusWarning
	}
	return Snapshot{
		Used:       used,
		Total:      m.total,
		Available:  available,
		Percentage: percentage,
		Status:     status,
	}
}
