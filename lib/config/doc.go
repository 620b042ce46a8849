// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for gifstash.
//
// Configuration is loaded from a single file specified by either the
// GIFSTASH_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// Byte sizes are written human-readably ("50MB", "1GiB") and parsed
// with go-humanize; durations use Go syntax ("60s", "24h").
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${GIFSTASH_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Store, Blob, Quota, Cleanup
//   - [Default] -- returns a Config with sensible defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// The Cleanup section satisfies the quota monitor's settings
// interface structurally; this package depends on no other gifstash
// packages.
package config
