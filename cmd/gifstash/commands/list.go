// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/gifstash/gifstash/cmd/gifstash/cli"
	"github.com/gifstash/gifstash/lib/media"
)

func listCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "ls",
		Summary: "list stored records, newest first",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("ls: takes no arguments")
			}

			app, err := common.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			projections, err := app.store.GetAllMetadata(context.Background())
			if err != nil {
				return err
			}
			printProjections(projections)
			return nil
		},
	}
}

func printProjections(projections []media.MetadataProjection) {
	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSIZE\tCREATED\tTAGS")
	for _, p := range projections {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.Title,
			humanize.Bytes(uint64(p.FileSizeBytes)),
			humanize.Time(p.CreatedAt),
			strings.Join(p.Tags, ","),
		)
	}
	tw.Flush()
}
