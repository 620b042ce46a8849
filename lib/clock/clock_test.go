// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)

	if got := fake.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	fake.Advance(90 * time.Second)
	if got := fake.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v, want %v", got, start.Add(90*time.Second))
	}
}

func TestFakeSleepWakesOnAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	done := make(chan struct{})
	go func() {
		fake.Sleep(10 * time.Second)
		close(done)
	}()

	waitForSleepers(t, fake, 1)

	// Advancing short of the deadline must not wake the sleeper.
	fake.Advance(5 * time.Second)
	select {
	case <-done:
		t.Fatal("sleeper woke before its deadline")
	case <-time.After(20 * time.Millisecond):
	}

	fake.Advance(5 * time.Second)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sleeper did not wake after deadline passed")
	}
}

func TestFakeSleepZeroReturnsImmediately(t *testing.T) {
	fake := Fake(time.Now())
	fake.Sleep(0)
	fake.Sleep(-time.Second)
}

func TestFakeTicker(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not fire after one interval")
	}

	// Multiple intervals in one Advance deliver at most one pending
	// tick (capacity-1 channel).
	fake.Advance(5 * time.Minute)
	select {
	case <-ticker.C:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not fire after multi-interval advance")
	}
	select {
	case <-ticker.C:
		t.Fatal("ticker queued more than one pending tick")
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(10 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}

	if n := fake.PendingSleepers(); n != 0 {
		t.Errorf("PendingSleepers() = %d after Stop, want 0", n)
	}
}

func TestRealClockBasics(t *testing.T) {
	real := Real()
	before := time.Now()
	if real.Now().Before(before) {
		t.Error("Real().Now() went backwards")
	}
	ticker := real.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C:
	case <-time.After(2 * time.Second):
		t.Fatal("real ticker did not tick")
	}
}

// waitForSleepers polls until n goroutines are registered with the
// fake clock, failing the test after a generous real-time deadline.
func waitForSleepers(t *testing.T, fake *FakeClock, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for fake.PendingSleepers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d sleepers", n)
		}
		time.Sleep(time.Millisecond)
	}
}
