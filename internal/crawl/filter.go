package crawl

import (
	"sort"
	"time"

	"BriefScanner/internal/domain"
)

// Window selects items that are recent and, for ranked sources, popular enough.
type Window struct {
	Cutoff   time.Time
	MinScore int
}

// NewWindow builds a trailing window of the given hours ending at now.
func NewWindow(now time.Time, hours, minScore int) Window {
	return Window{Cutoff: now.Add(-time.Duration(hours) * time.Hour), MinScore: minScore}
}

// Keep reports whether item falls inside the window.
func (w Window) Keep(item domain.Item) bool {
	if item.PublishedAt.Before(w.Cutoff) {
		return false
	}
	return item.Score >= w.MinScore
}

// Filter returns the items inside the window, preserving order.
func (w Window) Filter(items []domain.Item) []domain.Item {
	kept := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if w.Keep(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

// DedupeAndSort keeps the last occurrence of each identifier, orders the
// unique set by recency (or score when ranked) descending with ties broken by
// identifier descending, and truncates to maxItems.
func DedupeAndSort(items []domain.Item, maxItems int, ranked bool) []domain.Item {
	byID := make(map[int64]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	unique := make([]domain.Item, 0, len(byID))
	for _, item := range byID {
		unique = append(unique, item)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if ranked && a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID > b.ID
	})

	if maxItems > 0 && len(unique) > maxItems {
		unique = unique[:maxItems]
	}
	return unique
}
