// Copyright 2026 The Gifstash Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"time"

	"github.com/gifstash/gifstash/lib/media"
)

// FilterOptions is a set of independently composable predicates. Nil
// pointer fields and empty slices are not applied; every supplied
// predicate must pass (logical AND).
type FilterOptions struct {
	// CreatedAfter/CreatedBefore bound the capture time (inclusive).
	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	// MinSize/MaxSize bound the payload size in bytes (inclusive).
	MinSize *int64
	MaxSize *int64

	// MinDuration/MaxDuration bound the clip length in seconds
	// (inclusive).
	MinDuration *float64
	MaxDuration *float64

	// MinWidth/MinHeight/MaxWidth/MaxHeight bound the resolution.
	MinWidth  *int
	MinHeight *int
	MaxWidth  *int
	MaxHeight *int

	// Tags passes records carrying at least one of the listed tags.
	Tags []string

	// RequireSourceURL passes only records with a non-empty source
	// URL.
	RequireSourceURL bool
}

// IsZero reports whether no predicate is supplied.
func (f FilterOptions) IsZero() bool {
	return f.CreatedAfter == nil && f.CreatedBefore == nil &&
		f.MinSize == nil && f.MaxSize == nil &&
		f.MinDuration == nil && f.MaxDuration == nil &&
		f.MinWidth == nil && f.MinHeight == nil &&
		f.MaxWidth == nil && f.MaxHeight == nil &&
		len(f.Tags) == 0 && !f.RequireSourceURL
}

// Filter returns the records passing every supplied predicate, in
// their original order.
func Filter(records []media.MetadataProjection, opts FilterOptions) []media.MetadataProjection {
	if opts.IsZero() {
		return records
	}

	var wanted map[string]struct{}
	if len(opts.Tags) > 0 {
		wanted = make(map[string]struct{}, len(opts.Tags))
		for _, tag := range media.NormalizeTags(opts.Tags) {
			wanted[tag] = struct{}{}
		}
	}

	matched := make([]media.MetadataProjection, 0, len(records))
	for _, record := range records {
		if passes(&record, opts, wanted) {
			matched = append(matched, record)
		}
	}
	return matched
}

func passes(record *media.MetadataProjection, opts FilterOptions, wantedTags map[string]struct{}) bool {
	if opts.CreatedAfter != nil && record.CreatedAt.Before(*opts.CreatedAfter) {
		return false
	}
	if opts.CreatedBefore != nil && record.CreatedAt.After(*opts.CreatedBefore) {
		return false
	}
	if opts.MinSize != nil && record.FileSizeBytes < *opts.MinSize {
		return false
	}
	if opts.MaxSize != nil && record.FileSizeBytes > *opts.MaxSize {
		return false
	}
	if opts.MinDuration != nil && record.Duration < *opts.MinDuration {
		return false
	}
	if opts.MaxDuration != nil && record.Duration > *opts.MaxDuration {
		return false
	}
	if opts.MinWidth != nil && record.Width < *opts.MinWidth {
		return false
	}
	if opts.MinHeight != nil && record.Height < *opts.MinHeight {
		return false
	}
	if opts.MaxWidth != nil && record.Width > *opts.MaxWidth {
		return false
	}
	if opts.MaxHeight != nil && record.Height > *opts.MaxHeight {
		return false
	}
	if opts.RequireSourceURL && record.SourceURL == "" {
		return false
	}
	if wantedTags != nil {
		found := false
		for _, tag := range record.Tags {
			if _, ok := wantedTags[tag]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
