// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "github.com/gifstash/gifstash/cmd/gifstash/cli"

// Root builds the gifstash command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "gifstash",
		Summary: "local media store for captured GIFs and clips",
		Description: "gifstash stores captured media in a local SQLite database with\n" +
			"compression, integrity checking, quota enforcement, and fuzzy search.",
		Subcommands: []*cli.Command{
			saveCommand(),
			getCommand(),
			removeCommand(),
			listCommand(),
			searchCommand(),
			quotaCommand(),
			cleanupCommand(),
		},
	}
}
