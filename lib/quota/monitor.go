// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package quota

import "context"

// Start launches the background monitor loop: poll status on the
// configured interval, trigger auto-cleanup when critical, and emit a
// warning notification when usage first crosses the warning band. A
// quota-changed notification fires on every status transition.
//
// Start may be called at most once. Stop terminates the loop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()
	go m.run(ctx)
}

// Stop terminates the background loop and waits for it to exit. Safe
// to call multiple times, and a no-op if Start never ran.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	lastStatus := StatusHealthy
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.Refresh()
		snapshot, err := m.Snapshot(ctx)
		if err != nil {
			m.logger.Error("quota poll failed", "error", err)
			continue
		}

		if snapshot.Status != lastStatus {
			m.logger.Info("quota status changed",
				"from", string(lastStatus),
				"to", string(snapshot.Status),
				"percentage", snapshot.Percentage,
			)
			m.notifier.Notify(Notification{
				Kind:     NotificationQuotaChanged,
				Message:  "storage status is now " + string(snapshot.Status),
				Snapshot: snapshot,
			})
			lastStatus = snapshot.Status
		}

		switch snapshot.Status {
		case StatusCritical:
			// Auto-cleanup re-reads the snapshot but never polls
			// recursively.
			if err := m.PerformAutoCleanup(ctx); err != nil {
				m.logger.Error("auto-cleanup failed", "error", err)
			}
		case StatusWarning:
			m.notifier.Notify(Notification{
				Kind:     NotificationQuotaChanged,
				Message:  "storage is above the warning threshold",
				Snapshot: snapshot,
			})
		}
	}
}
