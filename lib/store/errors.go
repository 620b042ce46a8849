// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"

	"github.com/gifstash/gifstash/lib/blob"
)

// Error taxonomy. Validation and quota failures surface immediately
// and are never retried; transient storage errors are retried
// transparently and surface only after exhaustion; corruption is
// handled internally by the recovery pipeline and becomes
// ErrInitialization only when recovery itself fails.
var (
	// ErrInitialization means the store could not be opened and the
	// one destroy-and-recreate fallback also failed. The store is
	// unusable.
	ErrInitialization = errors.New("store initialization failed")

	// ErrValidation marks records rejected before any write: missing
	// fields, empty payload, duplicate id, or a payload the blob
	// subsystem refused.
	ErrValidation = errors.New("record validation failed")

	// ErrQuotaExceeded re-exports the blob subsystem's quota
	// sentinel: the payload did not fit in the available capacity.
	// No partial write is performed.
	ErrQuotaExceeded = blob.ErrQuotaExceeded

	// ErrCorruption is logged (never returned from reads) when the
	// integrity probe fails and recovery runs.
	ErrCorruption = errors.New("store corruption detected")
)
