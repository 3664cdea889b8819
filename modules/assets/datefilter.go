package assets

import (
	"strings"
	"time"
)

// dateFilter keeps assets whose UTC creation date lies in [start, end].
// Empty bounds are open.
type dateFilter struct {
	start string
	end   string
}

func newDateFilter(start, end string) (dateFilter, error) {
	f := dateFilter{start: strings.TrimSpace(start), end: strings.TrimSpace(end)}
	for _, d := range []string{f.start, f.end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return dateFilter{}, ErrInvalidDate
		}
	}
	return f, nil
}

func (f dateFilter) active() bool {
	return f.start != "" || f.end != ""
}

func (f dateFilter) apply(images []Asset) []Asset {
	if !f.active() {
		return images
	}
	kept := make([]Asset, 0, len(images))
	for _, img := range images {
		if img.CreatedAt.IsZero() {
			continue
		}
		// YYYY-MM-DD strings compare in date order.
		day := img.CreatedAt.UTC().Format(dateLayout)
		if f.start != "" && day < f.start {
			continue
		}
		if f.end != "" && day > f.end {
			continue
		}
		kept = append(kept, img)
	}
	return kept
}
