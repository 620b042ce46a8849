// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for gifstash packages.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with a time.After fallback) so individual tests do not
// reach for time.After directly. It is the only place in the test
// suite where a real wall-clock timeout appears; everything else
// injects a fake clock.
package testutil
