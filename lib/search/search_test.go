// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"math"
	"testing"
	"time"

	"github.com/gifstash/gifstash/lib/media"
)

func projection(id, title string, tags ...string) media.MetadataProjection {
	return media.MetadataProjection{
		ID:        id,
		Title:     title,
		Tags:      media.NormalizeTags(tags),
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"cat jumping", "cat jumping", 1.0},
		{"Cat Jumping", "cat jumping", 1.0}, // case-insensitive
		{"", "", 1.0},
		// Substring containment: 0.8 + 0.2 * shorter/longer.
		{"cat jumping", "cat", 0.8 + 0.2*3.0/11.0},
		{"cat", "cat jumping", 0.8 + 0.2*3.0/11.0},
		// Levenshtein fallback: 1 - distance/maxLen.
		{"funny", "funy", 1.0 - 1.0/5.0},
		{"kitten", "sitting", 1.0 - 3.0/7.0},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSearchExactTitleMatch(t *testing.T) {
	records := []media.MetadataProjection{projection("1", "Cat Jumping")}

	results := Search(records, "cat jumping", Options{Fuzzy: true})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("score = %f, want 1.0", results[0].Score)
	}
}

func TestSearchFuzzyDroppedCharacter(t *testing.T) {
	records := []media.MetadataProjection{projection("1", "Cat Jumping")}

	results := Search(records, "cat jumpin", Options{Fuzzy: true, Threshold: 0.3})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score <= 0.3 {
		t.Errorf("score = %f, want > 0.3", results[0].Score)
	}
}

func TestSearchTypoMatchesOnlyRelevantRecord(t *testing.T) {
	records := []media.MetadataProjection{
		projection("1", "Funny Cat", "funny"),
		projection("2", "Boring Dog"),
	}

	results := Search(records, "funy", Options{Fuzzy: true, Threshold: 0.3})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (only the funny cat)", len(results))
	}
	if results[0].Record.ID != "1" {
		t.Errorf("matched record %s, want 1", results[0].Record.ID)
	}
}

func TestSearchNonFuzzySubstring(t *testing.T) {
	records := []media.MetadataProjection{
		projection("1", "Cat Jumping"),
		projection("2", "Dog Sleeping"),
	}

	results := Search(records, "JUMP", Options{Fuzzy: false})
	if len(results) != 1 || results[0].Record.ID != "1" {
		t.Fatalf("results = %v, want only record 1", results)
	}

	// Non-fuzzy mode must not match approximate strings.
	if got := Search(records, "jumpxng", Options{Fuzzy: false}); len(got) != 0 {
		t.Errorf("non-fuzzy search matched %d records for a typo, want 0", len(got))
	}
}

func TestSearchExcludesZeroContributors(t *testing.T) {
	records := []media.MetadataProjection{projection("1", "Quarterly Report")}

	if got := Search(records, "cat", Options{Fuzzy: true, Threshold: 0.3}); len(got) != 0 {
		t.Errorf("got %d results for unrelated query, want 0", len(got))
	}
}

func TestSearchOrderAndLimit(t *testing.T) {
	records := []media.MetadataProjection{
		projection("1", "cat video"),
		projection("2", "cat"),
		projection("3", "a cat compilation of cats"),
	}

	results := Search(records, "cat", Options{Fuzzy: true})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score descending at %d", i)
		}
	}
	if results[0].Record.ID != "2" {
		t.Errorf("top result = %s, want the exact match (2)", results[0].Record.ID)
	}

	limited := Search(records, "cat", Options{Fuzzy: true, Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d results", len(limited))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	records := []media.MetadataProjection{projection("1", "Cat Jumping")}
	if got := Search(records, "   ", Options{Fuzzy: true}); got != nil {
		t.Errorf("empty query returned %v, want nil", got)
	}
}

func TestSearchScoreClamped(t *testing.T) {
	records := []media.MetadataProjection{projection("1", "funny cat", "funny", "cat")}

	results := Search(records, "funny cat", Options{Fuzzy: true})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score > 1.0 || results[0].Score < 0 {
		t.Errorf("score = %f, want within [0, 1]", results[0].Score)
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"funny", "funy", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
