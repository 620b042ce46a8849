// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"mime"
	"os"

	"github.com/spf13/pflag"

	"github.com/gifstash/gifstash/cmd/gifstash/cli"
)

func getCommand() *cli.Command {
	var common commonFlags
	var out string

	return &cli.Command{
		Name:    "get",
		Summary: "write a stored payload to a file",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVarP(&out, "out", "o", "", "output path (default: <id> plus the MIME extension)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("get: exactly one id argument required")
			}
			id := args[0]

			app, err := common.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			record, err := app.store.GetGif(context.Background(), id)
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("no record with id %s", id)
			}

			if out == "" {
				out = id
				if extensions, _ := mime.ExtensionsByType(record.MimeType); len(extensions) > 0 {
					out += extensions[0]
				}
			}
			if err := os.WriteFile(out, record.Payload, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Println(out)
			return nil
		},
	}
}
