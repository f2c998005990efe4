package domain

import (
	"time"
	"unicode/utf8"
)

// MinBodyLength is the normalized body length (in characters) below which a page
// is treated as a stub.
const MinBodyLength = 50

// Item is a parsed content unit (article or story) produced by a source adapter.
type Item struct {
	ID            int64
	Source        string
	URL           string
	DiscussionURL string
	Title         string
	PublishedAt   time.Time
	Body          string
	Score         int
	Comments      int
	Author        string
	Category      string
}

// Valid reports whether the item carries enough content to be reported:
// a title or a sufficiently long body, and a resolved timestamp.
func (i Item) Valid() bool {
	if i.PublishedAt.IsZero() {
		return false
	}
	return i.Title != "" || utf8.RuneCountInString(i.Body) >= MinBodyLength
}

// SummarizedItem pairs an item with its one-sentence summary.
type SummarizedItem struct {
	Item    Item
	Summary string
}

// Report is the rendered digest handed to notification sinks.
type Report struct {
	Title     string
	DateLabel string
	Items     []SummarizedItem
	Content   string
}

// RunStatus enumerates how a pipeline run ended.
type RunStatus string

const (
	StatusDelivered RunStatus = "delivered"
	StatusEmpty     RunStatus = "empty"
	StatusDryRun    RunStatus = "dry_run"
)
