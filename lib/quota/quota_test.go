// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gifstash/gifstash/lib/clock"
	"github.com/gifstash/gifstash/lib/media"
	"github.com/gifstash/gifstash/lib/testutil"
)

// fakeStore is an in-memory Store for monitor tests. Usage is the sum
// of record sizes; deletes are recorded.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]media.MetadataProjection
	probes  int
}

func newFakeStore(projections ...media.MetadataProjection) *fakeStore {
	s := &fakeStore{records: make(map[string]media.MetadataProjection)}
	for _, p := range projections {
		s.records[p.ID] = p
	}
	return s
}

func (s *fakeStore) Usage(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	var used int64
	for _, p := range s.records {
		used += p.FileSizeBytes
	}
	return used, nil
}

func (s *fakeStore) GetAllMetadata(context.Context) ([]media.MetadataProjection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	projections := make([]media.MetadataProjection, 0, len(s.records))
	for _, p := range s.records {
		projections = append(projections, p)
	}
	return projections, nil
}

func (s *fakeStore) DeleteGif(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeStore) probeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

func (s *fakeStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// fixedSettings is a Settings stub with explicit knob values.
type fixedSettings struct {
	age     time.Duration
	enabled bool
}

func (s fixedSettings) CleanupAgeThreshold() time.Duration { return s.age }
func (s fixedSettings) AutoCleanupEnabled() bool           { return s.enabled }

func projection(id string, size int64, createdAt time.Time, tags []string, description string) media.MetadataProjection {
	return media.MetadataProjection{
		ID:            id,
		Title:         "Record " + id,
		Description:   description,
		Tags:          tags,
		FileSizeBytes: size,
		CreatedAt:     createdAt,
	}
}

func TestSnapshotClassification(t *testing.T) {
	tests := []struct {
		name string
		used int64
		want Status
	}{
		{"empty", 0, StatusHealthy},
		{"below warning", 79, StatusHealthy},
		{"at warning", 80, StatusWarning},
		{"below critical", 89, StatusWarning},
		{"at critical", 90, StatusCritical},
		{"full", 100, StatusCritical},
		{"over budget", 120, StatusCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(projection("only", tt.used, time.Now(), nil, ""))
			m, err := New(store, Config{Total: 100})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			snapshot, err := m.Snapshot(context.Background())
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			if snapshot.Status != tt.want {
				t.Errorf("Status = %q, want %q (used %d/100)", snapshot.Status, tt.want, tt.used)
			}
			if snapshot.Used != tt.used {
				t.Errorf("Used = %d, want %d", snapshot.Used, tt.used)
			}
			wantAvailable := 100 - tt.used
			if wantAvailable < 0 {
				wantAvailable = 0
			}
			if snapshot.Available != wantAvailable {
				t.Errorf("Available = %d, want %d", snapshot.Available, wantAvailable)
			}
		})
	}
}

func TestSnapshotCaching(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	store := newFakeStore(projection("a", 10, fakeClock.Now(), nil, ""))
	m, err := New(store, Config{Total: 100, CacheTTL: time.Minute, Clock: fakeClock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for range 3 {
		if _, err := m.Snapshot(ctx); err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
	}
	if got := store.probeCount(); got != 1 {
		t.Errorf("probes within TTL = %d, want 1", got)
	}

	fakeClock.Advance(time.Minute)
	if _, err := m.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot after TTL: %v", err)
	}
	if got := store.probeCount(); got != 2 {
		t.Errorf("probes after TTL expiry = %d, want 2", got)
	}

	m.Refresh()
	if _, err := m.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot after Refresh: %v", err)
	}
	if got := store.probeCount(); got != 3 {
		t.Errorf("probes after Refresh = %d, want 3", got)
	}
}

func TestAvailableGatesSaves(t *testing.T) {
	// The 99MB/100MB scenario: a 2MB payload must not be admitted.
	store := newFakeStore(projection("bulk", 99<<20, time.Now(), nil, ""))
	m, err := New(store, Config{Total: 100 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	available, err := m.Available(context.Background())
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if available != 1<<20 {
		t.Errorf("Available = %d, want %d", available, 1<<20)
	}
	if payload := int64(2 << 20); available >= payload {
		t.Errorf("a %d-byte payload would be admitted with %d available", payload, available)
	}
}

func TestCleanupSuggestions(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fakeClock := clock.Fake(now)
	old := now.Add(-60 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	store := newFakeStore(
		projection("old-tagged", 100, old, []string{"keep"}, ""),
		projection("old-bare", 200, old, nil, ""),
		projection("big", 20<<20, recent, nil, "huge capture"),
		projection("fresh", 50, recent, nil, ""),
	)
	m, err := New(store, Config{
		Total:    100 << 20,
		Clock:    fakeClock,
		Settings: fixedSettings{age: 30 * 24 * time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	suggestions, err := m.CleanupSuggestions(context.Background())
	if err != nil {
		t.Fatalf("CleanupSuggestions: %v", err)
	}

	byKind := make(map[SuggestionKind]Suggestion)
	for _, s := range suggestions {
		byKind[s.Kind] = s
	}

	oldGroup, ok := byKind[SuggestionOld]
	if !ok {
		t.Fatal("no old suggestion")
	}
	slices.Sort(oldGroup.RecordIDs)
	if want := []string{"old-bare", "old-tagged"}; !slices.Equal(oldGroup.RecordIDs, want) {
		t.Errorf("old group = %v, want %v", oldGroup.RecordIDs, want)
	}
	if oldGroup.EstimatedBytesFreed != 300 {
		t.Errorf("old estimate = %d, want 300", oldGroup.EstimatedBytesFreed)
	}

	largeGroup, ok := byKind[SuggestionLarge]
	if !ok {
		t.Fatal("no large suggestion")
	}
	if want := []string{"big"}; !slices.Equal(largeGroup.RecordIDs, want) {
		t.Errorf("large group = %v, want %v", largeGroup.RecordIDs, want)
	}

	unusedGroup, ok := byKind[SuggestionUnused]
	if !ok {
		t.Fatal("no unused suggestion")
	}
	if want := []string{"old-bare"}; !slices.Equal(unusedGroup.RecordIDs, want) {
		t.Errorf("unused group = %v, want %v", unusedGroup.RecordIDs, want)
	}

	// Execute is idempotent: running it twice deletes once and does
	// not error on the second pass.
	ctx := context.Background()
	if err := unusedGroup.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := unusedGroup.Execute(ctx); err != nil {
		t.Fatalf("repeat Execute: %v", err)
	}
	if want := []string{"big", "fresh", "old-tagged"}; !slices.Equal(store.ids(), want) {
		t.Errorf("surviving ids = %v, want %v", store.ids(), want)
	}
}

func TestPerformAutoCleanupDisabled(t *testing.T) {
	store := newFakeStore(projection("a", 95, time.Now().Add(-90*24*time.Hour), nil, ""))
	m, err := New(store, Config{Total: 100, Settings: fixedSettings{age: time.Hour, enabled: false}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.PerformAutoCleanup(context.Background()); err != nil {
		t.Fatalf("PerformAutoCleanup: %v", err)
	}
	if len(store.ids()) != 1 {
		t.Error("disabled auto-cleanup deleted records")
	}
}

func TestPerformAutoCleanupBelowCritical(t *testing.T) {
	store := newFakeStore(projection("a", 50, time.Now().Add(-90*24*time.Hour), nil, ""))
	m, err := New(store, Config{Total: 100, Settings: fixedSettings{age: time.Hour, enabled: true}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.PerformAutoCleanup(context.Background()); err != nil {
		t.Fatalf("PerformAutoCleanup: %v", err)
	}
	if len(store.ids()) != 1 {
		t.Error("auto-cleanup ran below the critical threshold")
	}
}

func TestPerformAutoCleanupRequiresConsent(t *testing.T) {
	store := newFakeStore(projection("a", 95, time.Now().Add(-90*24*time.Hour), nil, ""))
	notifications := make(chan Notification, 1)
	m, err := New(store, Config{
		Total:          100,
		RequireConsent: true,
		Settings:       fixedSettings{age: time.Hour, enabled: true},
		Notifier:       NotifierFunc(func(n Notification) { notifications <- n }),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.PerformAutoCleanup(context.Background()); err != nil {
		t.Fatalf("PerformAutoCleanup: %v", err)
	}

	n := testutil.RequireReceive(t, notifications, time.Second, "consent notification")
	if n.Kind != NotificationCleanupConsent {
		t.Errorf("notification kind = %q, want cleanup-consent", n.Kind)
	}
	if len(store.ids()) != 1 {
		t.Error("consent-gated auto-cleanup deleted records")
	}
}

func TestPerformAutoCleanup(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fakeClock := clock.Fake(now)
	old := now.Add(-90 * 24 * time.Hour)

	// 95/100 used, critical. The large-but-recent record must survive
	// even though deleting it alone would clear the pressure.
	store := newFakeStore(
		projection("old-a", 40, old, []string{"trip"}, ""),
		projection("old-b", 30, old, nil, ""),
		projection("large-recent", 25, now.Add(-time.Hour), nil, ""),
	)
	m, err := New(store, Config{
		Total:         100,
		CleanupTarget: 0.50,
		LargeCutoff:   20,
		Clock:         fakeClock,
		Settings:      fixedSettings{age: 30 * 24 * time.Hour, enabled: true},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.PerformAutoCleanup(context.Background()); err != nil {
		t.Fatalf("PerformAutoCleanup: %v", err)
	}
	if want := []string{"large-recent"}; !slices.Equal(store.ids(), want) {
		t.Errorf("surviving ids = %v, want %v", store.ids(), want)
	}

	m.Refresh()
	snapshot, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Used != 25 {
		t.Errorf("Used after cleanup = %d, want 25", snapshot.Used)
	}
}

func TestPerformAutoCleanupOverlapCountedOnce(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fakeClock := clock.Fake(now)
	old := now.Add(-90 * 24 * time.Hour)

	// "forgotten" is both old and unused. The old pass deletes it, so
	// the unused pass frees nothing and its estimate must not count
	// toward the reported total.
	store := newFakeStore(
		projection("old-tagged", 20, old, []string{"trip"}, ""),
		projection("forgotten", 15, old, nil, ""),
		projection("recent", 60, now.Add(-time.Hour), nil, ""),
	)
	notifications := make(chan Notification, 2)
	m, err := New(store, Config{
		Total:         100,
		CleanupTarget: 0.50,
		Clock:         fakeClock,
		Settings:      fixedSettings{age: 30 * 24 * time.Hour, enabled: true},
		Notifier:      NotifierFunc(func(n Notification) { notifications <- n }),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.PerformAutoCleanup(context.Background()); err != nil {
		t.Fatalf("PerformAutoCleanup: %v", err)
	}
	if want := []string{"recent"}; !slices.Equal(store.ids(), want) {
		t.Errorf("surviving ids = %v, want %v", store.ids(), want)
	}

	n := testutil.RequireReceive(t, notifications, 5*time.Second, "cleanup completion")
	if n.Kind != NotificationCleanupDone {
		t.Fatalf("notification kind = %q, want cleanup-done", n.Kind)
	}
	if want := "auto-cleanup freed an estimated 35 bytes"; n.Message != want {
		t.Errorf("message = %q, want %q", n.Message, want)
	}
}

func TestBackgroundMonitorTriggersCleanup(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fakeClock := clock.Fake(now)
	store := newFakeStore(
		projection("stale", 95, now.Add(-90*24*time.Hour), nil, ""),
	)

	notifications := make(chan Notification, 4)
	m, err := New(store, Config{
		Total:        100,
		PollInterval: time.Minute,
		Clock:        fakeClock,
		Settings:     fixedSettings{age: 30 * 24 * time.Hour, enabled: true},
		Notifier:     NotifierFunc(func(n Notification) { notifications <- n }),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.Start(context.Background())
	defer m.Stop()

	// Wait for the monitor goroutine to register its ticker with the
	// fake clock before advancing, or the tick is lost.
	deadline := time.Now().Add(2 * time.Second)
	for fakeClock.PendingSleepers() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for monitor to register its ticker")
		}
		time.Sleep(time.Millisecond)
	}

	fakeClock.Advance(time.Minute)

	n := testutil.RequireReceive(t, notifications, 5*time.Second, "status transition")
	if n.Kind != NotificationQuotaChanged || n.Snapshot.Status != StatusCritical {
		t.Errorf("first notification = %+v, want critical quota-changed", n)
	}
	n = testutil.RequireReceive(t, notifications, 5*time.Second, "cleanup completion")
	if n.Kind != NotificationCleanupDone {
		t.Errorf("second notification kind = %q, want cleanup-done", n.Kind)
	}
	if len(store.ids()) != 0 {
		t.Errorf("stale record not cleaned up: %v", store.ids())
	}
}
