// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package search

import "github.com/gifstash/gifstash/lib/media"

// PipelineResult is the combined output of Pipeline: the final
// ordered projections and, when a query was supplied, the per-record
// search scores backing a relevance sort.
type PipelineResult struct {
	Results       []media.MetadataProjection
	SearchResults []Result
}

// Pipeline applies filter → search → sort, in that fixed order.
// Filtering narrows the candidate set before fuzzy scoring runs, and
// relevance sorting is only meaningful once search has produced
// scores. With an empty query the search stage is skipped and a
// relevance sort falls back to input order over the filtered set.
func Pipeline(records []media.MetadataProjection, query string, searchOpts Options, filterOpts FilterOptions, sortOpt SortOption) PipelineResult {
	candidates := Filter(records, filterOpts)

	var searchResults []Result
	var scores map[string]float64

	if query != "" {
		searchResults = Search(candidates, query, searchOpts)
		candidates = make([]media.MetadataProjection, len(searchResults))
		scores = make(map[string]float64, len(searchResults))
		for i, result := range searchResults {
			candidates[i] = result.Record
			scores[result.Record.ID] = result.Score
		}
	}

	return PipelineResult{
		Results:       Sort(candidates, sortOpt, scores),
		SearchResults: searchResults,
	}
}
