// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

// Package search ranks, filters, and sorts metadata projections. It
// is pure and stateless: every function takes its full input and
// returns a fresh result, with no shared mutable state between
// invocations, so it is safe to run concurrently with storage
// operations.
package search

import (
	"sort"
	"strings"

	"github.com/gifstash/gifstash/lib/media"
)

// Field weights. A field's fuzzy score is multiplied by its weight
// before averaging; fields that score at or below the threshold do
// not contribute at all.
const (
	weightTitle       = 2.0
	weightDescription = 1.0
	weightTags        = 1.5 // best-matching tag only
	weightSourceURL   = 0.5
)

// DefaultThreshold is the minimum per-field score for the field to
// contribute to a record's overall relevance.
const DefaultThreshold = 0.3

// Options configures Search.
type Options struct {
	// Fuzzy enables approximate matching via normalized edit
	// distance. When false, a field matches only if it contains the
	// query as a case-insensitive substring.
	Fuzzy bool

	// Threshold is the minimum per-field score. Zero or negative
	// takes DefaultThreshold.
	Threshold float64

	// Limit truncates the result list. Zero or negative means
	// unlimited.
	Limit int
}

// Result is a single search hit with its relevance score in [0, 1].
type Result struct {
	Record media.MetadataProjection
	Score  float64
}

// Search scores every record against the query and returns hits
// sorted by score descending. Records where no field clears the
// threshold are excluded entirely.
func Search(records []media.MetadataProjection, query string, opts Options) []Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var results []Result
	for i := range records {
		score, ok := scoreRecord(&records[i], query, opts.Fuzzy, threshold)
		if !ok {
			continue
		}
		results = append(results, Result{Record: records[i], Score: score})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// scoreRecord computes the overall relevance of one record: the
// weighted sum of contributing field scores divided by the number of
// contributing fields, clamped to [0, 1]. Returns false when no field
// contributes.
func scoreRecord(record *media.MetadataProjection, query string, fuzzy bool, threshold float64) (float64, bool) {
	var sum float64
	var contributing int

	addField := func(text string, weight float64) {
		if text == "" {
			return
		}
		score := fieldScore(text, query, fuzzy)
		if score <= threshold {
			return
		}
		sum += score * weight
		contributing++
	}

	addField(record.Title, weightTitle)
	addField(record.Description, weightDescription)

	// Tags contribute once, through the best-matching tag.
	if len(record.Tags) > 0 {
		var best float64
		for _, tag := range record.Tags {
			if score := fieldScore(tag, query, fuzzy); score > best {
				best = score
			}
		}
		if best > threshold {
			sum += best * weightTags
			contributing++
		}
	}

	addField(record.SourceURL, weightSourceURL)

	if contributing == 0 {
		return 0, false
	}

	overall := sum / float64(contributing)
	if overall > 1 {
		overall = 1
	}
	if overall < 0 {
		overall = 0
	}
	return overall, true
}

// fieldScore scores one field against the query. In fuzzy mode this
// is Similarity; otherwise it is binary substring containment.
func fieldScore(text, query string, fuzzy bool) float64 {
	if fuzzy {
		return Similarity(text, query)
	}
	if strings.Contains(strings.ToLower(text), strings.ToLower(query)) {
		return 1.0
	}
	return 0
}

// Similarity scores two strings in [0, 1], case-insensitively.
// Exact match scores 1.0. Substring containment scores
// 0.8 + 0.2 × (shorter/longer), so near-complete containment
// approaches an exact match. Otherwise the score is
// 1 − editDistance/maxLen.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1.0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if shorter != "" && strings.Contains(longer, shorter) {
		return 0.8 + 0.2*float64(len(shorter))/float64(len(longer))
	}

	maxLen := len(longer)
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(editDistance(a, b))/float64(maxLen)
}

// editDistance is the Levenshtein distance between two strings,
// computed over the standard dynamic-programming table with two
// rolling rows.
func editDistance(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)

	previous := make([]int, len(runesB)+1)
	current := make([]int, len(runesB)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(runesA); i++ {
		current[0] = i
		for j := 1; j <= len(runesB); j++ {
			cost := 1
			if runesA[i-1] == runesB[j-1] {
				cost = 0
			}
			deletion := previous[j] + 1
			insertion := current[j-1] + 1
			substitution := previous[j-1] + cost

			minimum := deletion
			if insertion < minimum {
				minimum = insertion
			}
			if substitution < minimum {
				minimum = substitution
			}
			current[j] = minimum
		}
		previous, current = current, previous
	}

	return previous[len(runesB)]
}
