// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/gifstash/gifstash/cmd/gifstash/cli"
)

func removeCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "rm",
		Summary: "delete stored records",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rm", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("rm: at least one id argument required")
			}

			app, err := common.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			for _, id := range args {
				if err := app.store.DeleteGif(context.Background(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
