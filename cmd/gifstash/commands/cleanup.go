// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/gifstash/gifstash/cmd/gifstash/cli"
	"github.com/gifstash/gifstash/lib/quota"
)

func cleanupCommand() *cli.Command {
	var common commonFlags
	var auto bool
	var execute string

	return &cli.Command{
		Name:    "cleanup",
		Summary: "suggest or execute storage cleanup",
		Description: "Without flags, cleanup lists suggestions grouped by kind (old,\n" +
			"large, unused) with the space each would free. --execute runs one\n" +
			"group; --auto runs the unattended policy (old then unused, never\n" +
			"large), honoring the configured consent and target settings.",
		Examples: []cli.Example{
			{Description: "list suggestions", Command: "gifstash cleanup"},
			{Description: "delete all large records", Command: "gifstash cleanup --execute large"},
			{Description: "run the automatic policy", Command: "gifstash cleanup --auto"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cleanup", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.BoolVar(&auto, "auto", false, "run the unattended cleanup policy")
			flagSet.StringVar(&execute, "execute", "", "execute one suggestion group: old, large, or unused")
			return flagSet
		},
		Run: func(args []string) error {
			if auto && execute != "" {
				return fmt.Errorf("cleanup: --auto and --execute are mutually exclusive")
			}

			app, err := common.openApp()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := context.Background()

			if auto {
				return app.monitor.PerformAutoCleanup(ctx)
			}

			suggestions, err := app.monitor.CleanupSuggestions(ctx)
			if err != nil {
				return err
			}

			if execute != "" {
				for _, suggestion := range suggestions {
					if suggestion.Kind != quota.SuggestionKind(execute) {
						continue
					}
					if err := suggestion.Execute(ctx); err != nil {
						return err
					}
					fmt.Printf("deleted %d records, freeing about %s\n",
						len(suggestion.RecordIDs),
						humanize.Bytes(uint64(suggestion.EstimatedBytesFreed)))
					return nil
				}
				return fmt.Errorf("cleanup: no %q suggestions", execute)
			}

			if len(suggestions) == 0 {
				fmt.Println("nothing to clean up")
				return nil
			}
			for _, suggestion := range suggestions {
				fmt.Printf("%-8s %4d records, about %s\n",
					suggestion.Kind,
					len(suggestion.RecordIDs),
					humanize.Bytes(uint64(suggestion.EstimatedBytesFreed)))
			}
			return nil
		},
	}
}
