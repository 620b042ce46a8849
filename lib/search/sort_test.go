// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"testing"
	"time"

	"github.com/gifstash/gifstash/lib/media"
)

func sortCorpus() []media.MetadataProjection {
	return []media.MetadataProjection{
		{ID: "b", Title: "banana", FileSizeBytes: 300, Duration: 3,
			CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "a", Title: "Apple", FileSizeBytes: 100, Duration: 9,
			CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "c", Title: "cherry", FileSizeBytes: 200, Duration: 1,
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestSortOrders(t *testing.T) {
	tests := []struct {
		option SortOption
		want   []string
	}{
		{SortDateAsc, []string{"c", "b", "a"}},
		{SortDateDesc, []string{"a", "b", "c"}},
		{SortTitleAsc, []string{"a", "b", "c"}}, // case-folded: Apple < banana < cherry
		{SortTitleDesc, []string{"c", "b", "a"}},
		{SortSizeAsc, []string{"a", "c", "b"}},
		{SortSizeDesc, []string{"b", "c", "a"}},
		{SortDurationAsc, []string{"c", "b", "a"}},
		{SortDurationDesc, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.option), func(t *testing.T) {
			got := filteredIDs(Sort(sortCorpus(), tt.option, nil))
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("order = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	corpus := sortCorpus()
	Sort(corpus, SortTitleAsc, nil)
	if corpus[0].ID != "b" {
		t.Error("Sort mutated its input slice")
	}
}

func TestSortRelevance(t *testing.T) {
	corpus := sortCorpus()
	scores := map[string]float64{"a": 0.2, "b": 0.9, "c": 0.5}

	got := filteredIDs(Sort(corpus, SortRelevance, scores))
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestParseSortOption(t *testing.T) {
	if _, err := ParseSortOption("date_desc"); err != nil {
		t.Errorf("ParseSortOption(date_desc): %v", err)
	}
	if _, err := ParseSortOption("by_vibes"); err == nil {
		t.Error("ParseSortOption accepted unknown option")
	}
}

func TestPipelineFixedOrder(t *testing.T) {
	corpus := []media.MetadataProjection{
		{ID: "1", Title: "funny cat", FileSizeBytes: 100,
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "2", Title: "funny dog", FileSizeBytes: 200,
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "3", Title: "serious news", FileSizeBytes: 300,
			CreatedAt: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
	}

	result := Pipeline(corpus, "funny", Options{Fuzzy: true}, FilterOptions{}, SortSizeDesc)

	if len(result.SearchResults) != 2 {
		t.Fatalf("search matched %d records, want 2", len(result.SearchResults))
	}
	got := filteredIDs(result.Results)
	if got[0] != "2" || got[1] != "1" {
		t.Errorf("final order = %v, want [2 1] (size desc over search hits)", got)
	}
}

func TestPipelineEmptyQuery(t *testing.T) {
	corpus := sortCorpus()
	result := Pipeline(corpus, "", Options{}, FilterOptions{}, SortDateAsc)

	if result.SearchResults != nil {
		t.Error("empty query produced search results")
	}
	if len(result.Results) != 3 {
		t.Errorf("got %d results, want all 3", len(result.Results))
	}
	if result.Results[0].ID != "c" {
		t.Errorf("first result = %s, want c (oldest)", result.Results[0].ID)
	}
}
