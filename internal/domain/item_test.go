package domain

import (
	"strings"
	"testing"
	"time"
)

func TestItemValid(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.August, 26, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"title and time", Item{Title: "A", PublishedAt: now}, true},
		{"long body without title", Item{Body: strings.Repeat("x", MinBodyLength), PublishedAt: now}, true},
		{"short body without title", Item{Body: "short", PublishedAt: now}, false},
		{"missing time", Item{Title: "A"}, false},
	}
	for _, tt := range tests {
		if got := tt.item.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
