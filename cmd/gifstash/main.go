// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Command gifstash is the command-line front end for the local media
// store: save, fetch, list, search, and clean up captured media.
package main

import (
	"fmt"
	"os"

	"github.com/gifstash/gifstash/cmd/gifstash/commands"
)

func main() {
	if err := commands.Root().Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
