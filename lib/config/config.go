// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the master configuration for gifstash.
type Config struct {
	// Store configures the object store.
	Store StoreConfig `yaml:"store"`

	// Blob configures payload processing limits.
	Blob BlobConfig `yaml:"blob"`

	// Quota configures the quota monitor.
	Quota QuotaConfig `yaml:"quota"`

	// Cleanup configures the cleanup policy knobs.
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// StoreConfig configures the object store.
type StoreConfig struct {
	// Path is the SQLite database file. The parent directory must
	// exist. Default: ${HOME}/.local/share/gifstash/gifstash.db
	Path string `yaml:"path"`

	// PoolSize is the number of database connections. Writes are
	// serialized regardless; extra connections only help reads.
	// Default: 4
	PoolSize int `yaml:"pool_size"`

	// RetryAttempts bounds retries of transient database errors.
	// Default: 3
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryBaseDelay scales linearly with the attempt number.
	// Default: 100ms
	RetryBaseDelay string `yaml:"retry_base_delay"`
}

// BlobConfig configures payload processing. Sizes are human-readable
// strings ("50MB", "256KiB").
type BlobConfig struct {
	// MaxBlobSize is the hard ceiling on a single payload.
	// Default: 50MB
	MaxBlobSize string `yaml:"max_blob_size"`

	// CompressionThreshold is the size above which compression is
	// attempted. Default: 1MB
	CompressionThreshold string `yaml:"compression_threshold"`

	// ChunkSize is the payload segment size. Default: 256KiB
	ChunkSize string `yaml:"chunk_size"`
}

// QuotaConfig configures the quota monitor.
type QuotaConfig struct {
	// Total is the storage budget. Default: 500MB
	Total string `yaml:"total"`

	// CacheTTL bounds repeated usage probes. Default: 60s
	CacheTTL string `yaml:"cache_ttl"`

	// WarningThreshold and CriticalThreshold are usage fractions.
	// Defaults: 0.80 and 0.90.
	WarningThreshold  float64 `yaml:"warning_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`

	// PollInterval is the background monitor cadence. Default: 5m
	PollInterval string `yaml:"poll_interval"`
}

// CleanupConfig configures cleanup policy. It doubles as the settings
// pass-through the quota monitor reads its two policy knobs from.
type CleanupConfig struct {
	// AgeThreshold is how old a record must be before it is proposed
	// for "old" cleanup. Default: 720h (30 days)
	AgeThreshold string `yaml:"age_threshold"`

	// AutoCleanup enables unattended cleanup when usage is critical.
	// Default: false
	AutoCleanup bool `yaml:"auto_cleanup"`

	// RequireConsent makes auto-cleanup notify instead of delete.
	// Default: true
	RequireConsent bool `yaml:"require_consent"`

	// LargeCutoff is the size above which records are suggested for
	// manual cleanup. Default: 10MB
	LargeCutoff string `yaml:"large_cutoff"`

	// Target is the usage fraction auto-cleanup drives toward.
	// Default: 0.70
	Target float64 `yaml:"target"`
}

// Default returns the default configuration. These defaults are a
// usable base; the config file overrides whatever it sets.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultPath := filepath.Join(homeDir, ".local", "share", "gifstash", "gifstash.db")

	return &Config{
		Store: StoreConfig{
			Path:           defaultPath,
			PoolSize:       4,
			RetryAttempts:  3,
			RetryBaseDelay: "100ms",
		},
		Blob: BlobConfig{
			MaxBlobSize:          "50MB",
			CompressionThreshold: "1MB",
			ChunkSize:            "256KiB",
		},
		Quota: QuotaConfig{
			Total:             "500MB",
			CacheTTL:          "60s",
			WarningThreshold:  0.80,
			CriticalThreshold: 0.90,
			PollInterval:      "5m",
		},
		Cleanup: CleanupConfig{
			AgeThreshold:   "720h",
			AutoCleanup:    false,
			RequireConsent: true,
			LargeCutoff:    "10MB",
			Target:         0.70,
		},
	}
}

// Load loads configuration from the GIFSTASH_CONFIG environment
// variable. If the variable is unset, the defaults are returned —
// unlike a service deployment, a personal media stash must work out
// of the box.
func Load() (*Config, error) {
	configPath := os.Getenv("GIFSTASH_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override its values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Store.Path = expandVars(c.Store.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors: parseable sizes and
// durations, sane thresholds, a non-empty store path.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if _, err := time.ParseDuration(c.Store.RetryBaseDelay); err != nil {
		errs = append(errs, fmt.Errorf("store.retry_base_delay: %w", err))
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"blob.max_blob_size", c.Blob.MaxBlobSize},
		{"blob.compression_threshold", c.Blob.CompressionThreshold},
		{"blob.chunk_size", c.Blob.ChunkSize},
		{"quota.total", c.Quota.Total},
		{"cleanup.large_cutoff", c.Cleanup.LargeCutoff},
	} {
		if _, err := humanize.ParseBytes(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
		}
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"quota.cache_ttl", c.Quota.CacheTTL},
		{"quota.poll_interval", c.Quota.PollInterval},
		{"cleanup.age_threshold", c.Cleanup.AgeThreshold},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
		}
	}

	if c.Quota.WarningThreshold <= 0 || c.Quota.WarningThreshold >= 1 {
		errs = append(errs, fmt.Errorf("quota.warning_threshold must be in (0,1), got %g",
			c.Quota.WarningThreshold))
	}
	if c.Quota.CriticalThreshold <= c.Quota.WarningThreshold || c.Quota.CriticalThreshold > 1 {
		errs = append(errs, fmt.Errorf("quota.critical_threshold must be in (warning,1], got %g",
			c.Quota.CriticalThreshold))
	}
	if c.Cleanup.Target <= 0 || c.Cleanup.Target >= c.Quota.CriticalThreshold {
		errs = append(errs, fmt.Errorf("cleanup.target must be in (0,critical), got %g",
			c.Cleanup.Target))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Bytes parses a human-readable size field that Validate has already
// checked. Panics on malformed input, which indicates a missing
// Validate call.
func Bytes(value string) int64 {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		panic(fmt.Sprintf("config: unvalidated size %q: %v", value, err))
	}
	return int64(n)
}

// Duration parses a duration field that Validate has already checked.
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("config: unvalidated duration %q: %v", value, err))
	}
	return d
}

// CleanupAgeThreshold implements the quota settings interface.
func (c *CleanupConfig) CleanupAgeThreshold() time.Duration {
	return Duration(c.AgeThreshold)
}

// AutoCleanupEnabled implements the quota settings interface.
func (c *CleanupConfig) AutoCleanupEnabled() bool {
	return c.AutoCleanup
}
