// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the gifstash command tree: thin glue from
// flags to the store, quota monitor, and search engine. No business
// logic lives here.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/gifstash/gifstash/lib/blob"
	"github.com/gifstash/gifstash/lib/config"
	"github.com/gifstash/gifstash/lib/quota"
	"github.com/gifstash/gifstash/lib/store"
)

// app bundles the wired components behind every subcommand.
type app struct {
	cfg     *config.Config
	store   *store.Store
	monitor *quota.Monitor
	logger  *slog.Logger
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	verbose    bool
}

func (f *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file (default: $GIFSTASH_CONFIG or built-in defaults)")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
}

// openApp loads config, opens the store, and wires the quota monitor
// into it. The caller must Close.
func (f *commonFlags) openApp() (*app, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s, err := store.Open(store.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger,
		Retry: store.RetryPolicy{
			Attempts:  cfg.Store.RetryAttempts,
			BaseDelay: config.Duration(cfg.Store.RetryBaseDelay),
		},
		Limits: blob.Limits{
			MaxBlobSize:          config.Bytes(cfg.Blob.MaxBlobSize),
			CompressionThreshold: config.Bytes(cfg.Blob.CompressionThreshold),
			ChunkSize:            int(config.Bytes(cfg.Blob.ChunkSize)),
		},
	})
	if err != nil {
		return nil, err
	}

	monitor, err := quota.New(s, quota.Config{
		Total:             config.Bytes(cfg.Quota.Total),
		CacheTTL:          config.Duration(cfg.Quota.CacheTTL),
		WarningThreshold:  cfg.Quota.WarningThreshold,
		CriticalThreshold: cfg.Quota.CriticalThreshold,
		CleanupTarget:     cfg.Cleanup.Target,
		LargeCutoff:       config.Bytes(cfg.Cleanup.LargeCutoff),
		RequireConsent:    cfg.Cleanup.RequireConsent,
		PollInterval:      config.Duration(cfg.Quota.PollInterval),
		Settings:          &cfg.Cleanup,
		Notifier:          quotaEvents(s.Events()),
		Logger:            logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.SetCapacity(monitor, monitor.Refresh)

	return &app{cfg: cfg, store: s, monitor: monitor, logger: logger}, nil
}

// quotaEvents bridges monitor notifications into the store's event
// registry, so subscribers see quota transitions and completed
// cleanup passes alongside record-added and record-deleted.
func quotaEvents(events *store.Events) quota.Notifier {
	return quota.NotifierFunc(func(n quota.Notification) {
		switch n.Kind {
		case quota.NotificationQuotaChanged, quota.NotificationCleanupDone:
			events.Emit(store.Event{
				Kind:   store.EventQuotaChanged,
				Detail: string(n.Snapshot.Status),
			})
		}
	})
}

func (a *app) Close() {
	a.monitor.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing store", "error", err)
	}
}
