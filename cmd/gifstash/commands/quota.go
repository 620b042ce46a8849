// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/gifstash/gifstash/cmd/gifstash/cli"
)

func quotaCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "quota",
		Summary: "show storage usage and health",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("quota", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := common.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			snapshot, err := app.monitor.Snapshot(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("used:      %s\n", humanize.Bytes(uint64(snapshot.Used)))
			fmt.Printf("total:     %s\n", humanize.Bytes(uint64(snapshot.Total)))
			fmt.Printf("available: %s\n", humanize.Bytes(uint64(snapshot.Available)))
			fmt.Printf("usage:     %.1f%%\n", snapshot.Percentage*100)
			fmt.Printf("status:    %s\n", snapshot.Status)
			return nil
		},
	}
}
