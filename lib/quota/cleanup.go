// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"fmt"
)

// SuggestionKind labels why a group of records was proposed for
// cleanup.
type SuggestionKind string

const (
	// SuggestionOld groups records older than the settings age
	// threshold.
	SuggestionOld SuggestionKind = "old"

	// SuggestionLarge groups records above the large-size cutoff.
	// Executed manually only; auto-cleanup never touches it.
	SuggestionLarge SuggestionKind = "large"

	// SuggestionUnused groups records that are old and carry no tags
	// and no description.
	SuggestionUnused SuggestionKind = "unused"
)

// Suggestion is a deferred cleanup proposal: the records it would
// delete, a pre-computed size estimate, and an idempotent Execute
// closure. The estimate is computed at scan time and never
// re-verified; re-running Execute after records are gone is a no-op.
type Suggestion struct {
	Kind                SuggestionKind
	RecordIDs           []string
	EstimatedBytesFreed int64

	// Execute deletes the affected records and invalidates the quota
	// cache.
	Execute func(ctx context.Context) error
}

// CleanupSuggestions scans all projections and proposes old, large,
// and unused cleanup groups independently. A record can appear in
// more than one group. Empty groups are omitted.
func (m *Monitor) CleanupSuggestions(ctx context.Context) ([]Suggestion, error) {
	projections, err := m.store.GetAllMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota: scanning projections: %w", err)
	}

	cutoff := m.clock.Now().Add(-m.settings.CleanupAgeThreshold())

	var old, large, unused []string
	var oldBytes, largeBytes, unusedBytes int64
	for _, p := range projections {
		isOld := p.CreatedAt.Before(cutoff)
		if isOld {
			old = append(old, p.ID)
			oldBytes += p.FileSizeBytes
		}
		if p.FileSizeBytes > m.large {
			large = append(large, p.ID)
			largeBytes += p.FileSizeBytes
		}
		if isOld && len(p.Tags) == 0 && p.Description == "" {
			unused = append(unused, p.ID)
			unusedBytes += p.FileSizeBytes
		}
	}

	var suggestions []Suggestion
	appendGroup := func(kind SuggestionKind, ids []string, estimate int64) {
		if len(ids) == 0 {
			return
		}
		suggestions = append(suggestions, Suggestion{
			Kind:                kind,
			RecordIDs:           ids,
			EstimatedBytesFreed: estimate,
			Execute:             m.deleteAll(kind, ids),
		})
	}
	appendGroup(SuggestionOld, old, oldBytes)
	appendGroup(SuggestionLarge, large, largeBytes)
	appendGroup(SuggestionUnused, unused, unusedBytes)
	return suggestions, nil
}

// deleteAll builds the Execute closure for one suggestion group.
func (m *Monitor) deleteAll(kind SuggestionKind, ids []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, id := range ids {
			if err := m.store.DeleteGif(ctx, id); err != nil {
				return fmt.Errorf("quota: %s cleanup of %s: %w", kind, id, err)
			}
		}
		m.Refresh()
		m.logger.Info("cleanup executed", "kind", string(kind), "records", len(ids))
		return nil
	}
}

// PerformAutoCleanup runs unattended cleanup when it is both enabled
// and needed. It is a no-op unless settings enable auto-cleanup and
// usage has reached the critical threshold. When consent is required
// it emits a cleanup-consent notification and deletes nothing.
//
// Suggestions run in fixed priority order, old then unused, never
// large, until the estimated usage drops to the cleanup target or
// suggestions run out. Progress is tracked against scan-time
// estimates; actual usage is re-probed only after the run.
func (m *Monitor) PerformAutoCleanup(ctx context.Context) error {
	if !m.settings.AutoCleanupEnabled() {
		m.logger.Debug("auto-cleanup disabled")
		return nil
	}

	snapshot, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snapshot.Percentage < m.critical {
		return nil
	}

	if m.consent {
		m.logger.Info("auto-cleanup needs consent", "percentage", snapshot.Percentage)
		m.notifier.Notify(Notification{
			Kind:     NotificationCleanupConsent,
			Message:  "storage is critical; approve cleanup to free space",
			Snapshot: snapshot,
		})
		return nil
	}

	suggestions, err := m.CleanupSuggestions(ctx)
	if err != nil {
		return err
	}

	estimatedUsed := snapshot.Used
	targetBytes := int64(m.target * float64(m.total))
	executed := 0
	deleted := make(map[string]bool)
	for _, kind := range []SuggestionKind{SuggestionOld, SuggestionUnused} {
		if estimatedUsed <= targetBytes {
			break
		}
		for _, suggestion := range suggestions {
			if suggestion.Kind != kind {
				continue
			}
			// Groups overlap (unused is a subset of old). A group
			// whose records an earlier pass already deleted frees
			// nothing; counting its estimate again would overstate
			// progress.
			remaining := 0
			for _, id := range suggestion.RecordIDs {
				if !deleted[id] {
					remaining++
				}
			}
			if remaining == 0 {
				continue
			}
			if err := suggestion.Execute(ctx); err != nil {
				return err
			}
			for _, id := range suggestion.RecordIDs {
				deleted[id] = true
			}
			estimatedUsed -= suggestion.EstimatedBytesFreed
			executed++
		}
	}

	if executed == 0 {
		m.logger.Warn("auto-cleanup found nothing to delete", "percentage", snapshot.Percentage)
		return nil
	}

	m.Refresh()
	after, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("auto-cleanup complete",
		"suggestions_executed", executed,
		"used_before", snapshot.Used,
		"used_after", after.Used,
	)
	m.notifier.Notify(Notification{
		Kind:     NotificationCleanupDone,
		Message:  fmt.Sprintf("auto-cleanup freed an estimated %d bytes", snapshot.Used-estimatedUsed),
		Snapshot: after,
	})
	return nil
}
