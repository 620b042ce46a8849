// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gifstash/gifstash/lib/media"
)

// SortOption selects a total ordering over projections.
type SortOption string

const (
	SortRelevance    SortOption = "relevance"
	SortDateDesc     SortOption = "date_desc"
	SortDateAsc      SortOption = "date_asc"
	SortTitleAsc     SortOption = "title_asc"
	SortTitleDesc    SortOption = "title_desc"
	SortSizeAsc      SortOption = "size_asc"
	SortSizeDesc     SortOption = "size_desc"
	SortDurationAsc  SortOption = "duration_asc"
	SortDurationDesc SortOption = "duration_desc"
)

// ParseSortOption validates a sort option name.
func ParseSortOption(name string) (SortOption, error) {
	switch option := SortOption(name); option {
	case SortRelevance, SortDateDesc, SortDateAsc, SortTitleAsc, SortTitleDesc,
		SortSizeAsc, SortSizeDesc, SortDurationAsc, SortDurationDesc:
		return option, nil
	default:
		return "", fmt.Errorf("search: unknown sort option %q", name)
	}
}

// Sort returns a sorted copy of records. SortRelevance requires the
// scores produced by a prior Search call, keyed by record ID; records
// without a score sort last. The sort is stable, so equal keys keep
// their input order.
func Sort(records []media.MetadataProjection, option SortOption, scores map[string]float64) []media.MetadataProjection {
	sorted := append([]media.MetadataProjection(nil), records...)

	var less func(a, b *media.MetadataProjection) bool
	switch option {
	case SortRelevance:
		less = func(a, b *media.MetadataProjection) bool {
			return scores[a.ID] > scores[b.ID]
		}
	case SortDateAsc:
		less = func(a, b *media.MetadataProjection) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case SortDateDesc:
		less = func(a, b *media.MetadataProjection) bool {
			return a.CreatedAt.After(b.CreatedAt)
		}
	case SortTitleAsc:
		less = func(a, b *media.MetadataProjection) bool {
			return compareTitles(a.Title, b.Title) < 0
		}
	case SortTitleDesc:
		less = func(a, b *media.MetadataProjection) bool {
			return compareTitles(a.Title, b.Title) > 0
		}
	case SortSizeAsc:
		less = func(a, b *media.MetadataProjection) bool {
			return a.FileSizeBytes < b.FileSizeBytes
		}
	case SortSizeDesc:
		less = func(a, b *media.MetadataProjection) bool {
			return a.FileSizeBytes > b.FileSizeBytes
		}
	case SortDurationAsc:
		less = func(a, b *media.MetadataProjection) bool {
			return a.Duration < b.Duration
		}
	case SortDurationDesc:
		less = func(a, b *media.MetadataProjection) bool {
			return a.Duration > b.Duration
		}
	default:
		// Unknown option: leave input order (callers validate via
		// ParseSortOption).
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return less(&sorted[i], &sorted[j])
	})
	return sorted
}

// compareTitles orders titles case-insensitively, falling back to a
// byte compare for deterministic ordering of case-only differences.
func compareTitles(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
