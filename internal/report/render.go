// Package report renders summarized items into a Markdown digest.
package report

import (
	"fmt"
	"strings"

	"BriefScanner/internal/domain"
)

// EmptyMessage replaces the item list when nothing qualified.
const EmptyMessage = "No qualifying items."

// Render builds the digest text. It never returns an empty document.
func Render(title, dateLabel string, items []domain.SummarizedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", title, dateLabel)
	if len(items) == 0 {
		b.WriteString(EmptyMessage)
		return b.String()
	}

	fmt.Fprintf(&b, "**%d items in this issue**\n\n---\n", len(items))
	for _, entry := range items {
		item := entry.Item
		fmt.Fprintf(&b, "\n## %s\n\n", entry.Summary)
		if meta := metaLine(item); meta != "" {
			b.WriteString(meta)
			b.WriteString("\n")
		}
		if item.URL != "" {
			fmt.Fprintf(&b, "Source: [%s](%s)\n", item.Title, item.URL)
		}
		if item.DiscussionURL != "" && item.DiscussionURL != item.URL {
			fmt.Fprintf(&b, "Discussion: %s\n", item.DiscussionURL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Build assembles a report value around the rendered text.
func Build(title, dateLabel string, items []domain.SummarizedItem) domain.Report {
	return domain.Report{
		Title:     title,
		DateLabel: dateLabel,
		Items:     items,
		Content:   Render(title, dateLabel, items),
	}
}

func metaLine(item domain.Item) string {
	if item.Score == 0 && item.Comments == 0 && item.Author == "" && item.Category == "" {
		return ""
	}
	parts := []string{fmt.Sprintf("▲ %d", item.Score), fmt.Sprintf("%d comments", item.Comments)}
	if item.Author != "" {
		parts = append(parts, "by "+item.Author)
	}
	if item.Category != "" {
		parts = append(parts, item.Category)
	}
	return strings.Join(parts, " · ")
}
