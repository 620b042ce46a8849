// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/gifstash/gifstash/cmd/gifstash/cli"
	"github.com/gifstash/gifstash/lib/search"
)

// filterFile is the JSONC shape of --filter-file. Comments and
// trailing commas are allowed; absent fields apply no predicate.
type filterFile struct {
	CreatedAfter     *time.Time `json:"createdAfter"`
	CreatedBefore    *time.Time `json:"createdBefore"`
	MinSize          *int64     `json:"minSize"`
	MaxSize          *int64     `json:"maxSize"`
	MinDuration      *float64   `json:"minDuration"`
	MaxDuration      *float64   `json:"maxDuration"`
	MinWidth         *int       `json:"minWidth"`
	MinHeight        *int       `json:"minHeight"`
	MaxWidth         *int       `json:"maxWidth"`
	MaxHeight        *int       `json:"maxHeight"`
	Tags             []string   `json:"tags"`
	RequireSourceURL bool       `json:"requireSourceUrl"`
}

func (f *filterFile) options() search.FilterOptions {
	return search.FilterOptions{
		CreatedAfter:     f.CreatedAfter,
		CreatedBefore:    f.CreatedBefore,
		MinSize:          f.MinSize,
		MaxSize:          f.MaxSize,
		MinDuration:      f.MinDuration,
		MaxDuration:      f.MaxDuration,
		MinWidth:         f.MinWidth,
		MinHeight:        f.MinHeight,
		MaxWidth:         f.MaxWidth,
		MaxHeight:        f.MaxHeight,
		Tags:             f.Tags,
		RequireSourceURL: f.RequireSourceURL,
	}
}

func searchCommand() *cli.Command {
	var common commonFlags
	var fuzzy bool
	var threshold float64
	var limit int
	var sortName, filterPath string
	var tags []string

	return &cli.Command{
		Name:    "search",
		Summary: "search stored records by title, description, tags, and source URL",
		Examples: []cli.Example{
			{Description: "fuzzy search sorted by relevance", Command: `gifstash search "cat jumpin"`},
			{Description: "filter by tags and sort by size", Command: `gifstash search --tags cats --sort size_desc`},
			{Description: "structured filter from a JSONC file", Command: `gifstash search funny --filter-file filters.jsonc`},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("search", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.BoolVar(&fuzzy, "fuzzy", true, "approximate matching via edit distance")
			flagSet.Float64Var(&threshold, "threshold", search.DefaultThreshold, "minimum per-field score")
			flagSet.IntVar(&limit, "limit", 0, "maximum results (0 = unlimited)")
			flagSet.StringVar(&sortName, "sort", string(search.SortRelevance), "result order")
			flagSet.StringSliceVar(&tags, "tags", nil, "only records carrying one of these tags")
			flagSet.StringVar(&filterPath, "filter-file", "", "JSONC file with structured filter predicates")
			return flagSet
		},
		Run: func(args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}

			sortOption, err := search.ParseSortOption(sortName)
			if err != nil {
				return err
			}

			filterOpts := search.FilterOptions{Tags: tags}
			if filterPath != "" {
				data, err := os.ReadFile(filterPath)
				if err != nil {
					return fmt.Errorf("reading filter file: %w", err)
				}
				var f filterFile
				if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
					return fmt.Errorf("parsing %s: %w", filterPath, err)
				}
				filterOpts = f.options()
				filterOpts.Tags = append(filterOpts.Tags, tags...)
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

			result := search.Pipeline(projections, query, search.Options{
				Fuzzy:     fuzzy,
				Threshold: threshold,
				Limit:     limit,
			}, filterOpts, sortOption)

			printProjections(result.Results)
			return nil
		},
	}
}
