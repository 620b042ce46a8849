// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
)

// RetryPolicy bounds the retry loop wrapped around every read and
// write operation.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	// Zero or negative defaults to 3.
	Attempts int

	// BaseDelay scales linearly with the attempt number: the wait
	// after attempt n is BaseDelay × n. Zero defaults to 100ms.
	BaseDelay time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	return p
}

// withRetry runs fn up to the policy's attempt count, sleeping
// BaseDelay × attempt between tries. Only transient storage errors
// are retried; validation, quota, and constraint failures surface
// immediately. After exhaustion the last error is returned — no
// partial or fallback writes are attempted.
func (s *Store) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("store: %s: %w", operation, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < s.retry.Attempts {
			delay := s.retry.BaseDelay * time.Duration(attempt)
			s.logger.Warn("transient storage error, retrying",
				"operation", operation,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			s.clock.Sleep(delay)
		}
	}
	return fmt.Errorf("store: %s: retries exhausted: %w", operation, lastErr)
}

// isTransient reports whether an error is worth retrying: lock
// contention and busy snapshots resolve on their own, everything else
// does not.
func isTransient(err error) bool {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrQuotaExceeded) {
		return false
	}
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked:
		return true
	}
	return false
}
