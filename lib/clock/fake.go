// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic Clock for tests. Time only moves when
// Advance is called. Sleeps block until the fake time passes their
// deadline; tickers fire once per elapsed interval.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

// fakeWaiter is a pending sleep or ticker registration.
type fakeWaiter struct {
	deadline time.Time
	interval time.Duration // zero for one-shot sleeps
	ch       chan time.Time
	stopped  bool
}

// Fake returns a FakeClock whose current time is initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep blocks until Advance moves the fake time past d from now.
// Sleep with d <= 0 returns immediately.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	waiter := &fakeWaiter{
		deadline: c.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()
	<-waiter.ch
}

// NewTicker returns a Ticker that fires each time Advance crosses a
// multiple of d. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	c.mu.Lock()
	waiter := &fakeWaiter{
		deadline: c.now.Add(d),
		interval: d,
		ch:       make(chan time.Time, 1),
	}
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()

	return &Ticker{
		C: waiter.ch,
		stopFunc: func() {
			c.mu.Lock()
			waiter.stopped = true
			c.mu.Unlock()
		},
	}
}

// Advance moves the fake time forward by d, waking expired sleepers
// and firing expired tickers. Ticker channels have capacity 1, so a
// ticker that expires multiple times during one Advance delivers at
// most one pending tick, matching time.Ticker's drop behavior.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now

	remaining := c.waiters[:0]
	for _, waiter := range c.waiters {
		if waiter.stopped {
			continue
		}
		if waiter.deadline.After(target) {
			remaining = append(remaining, waiter)
			continue
		}
		if waiter.interval == 0 {
			waiter.ch <- target
			continue
		}
		// Fire once and schedule the next tick strictly after the
		// current fake time.
		select {
		case waiter.ch <- waiter.deadline:
		default:
		}
		for !waiter.deadline.After(target) {
			waiter.deadline = waiter.deadline.Add(waiter.interval)
		}
		remaining = append(remaining, waiter)
	}
	c.waiters = remaining
	c.mu.Unlock()
}

// PendingSleepers returns the number of goroutines currently blocked
// in Sleep or waiting on an active ticker. Tests use this to
// synchronize before calling Advance.
func (c *FakeClock) PendingSleepers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped {
			count++
		}
	}
	return count
}
