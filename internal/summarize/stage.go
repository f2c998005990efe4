// Package summarize turns items into one-sentence summaries, through an AI
// completion endpoint when one is configured and a local derivation otherwise.
package summarize

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"BriefScanner/internal/domain"
	"BriefScanner/internal/pace"
	"BriefScanner/internal/ports"
)

const (
	systemPrompt = "You are a technology news summarizer. Summarize the article body, not its title. " +
		"Extract the core point, technical detail or event. Reply with exactly one complete sentence " +
		"of 15 to 50 words. Keep the original meaning and add no opinions. " +
		"Plain text only: no Markdown, no special symbols, no ellipsis."
	bodyPromptRunes = 1000
	temperature     = 0.1
	topP            = 0.7
)

// Options configures a Stage.
type Options struct {
	Model         string
	MaxConcurrent int
	Policy        Policy
	Jitter        pace.Range
	Sleep         pace.SleepFunc
}

// Stage summarizes items under its own concurrency ceiling. A nil client
// makes every summary local.
type Stage struct {
	client ports.Completer
	opts   Options
	logger *slog.Logger
}

// NewStage builds a summarization stage.
func NewStage(client ports.Completer, opts Options, logger *slog.Logger) *Stage {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = DefaultPolicy(opts.Policy.MaxAttempts)
	}
	if opts.Sleep == nil {
		opts.Sleep = pace.Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{client: client, opts: opts, logger: logger}
}

// SummarizeAll returns one summarized item per input, in input order.
// Failures never propagate: every item ends with a non-empty summary.
func (s *Stage) SummarizeAll(ctx context.Context, items []domain.Item) []domain.SummarizedItem {
	out := make([]domain.SummarizedItem, len(items))

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrent)
	for i, item := range items {
		g.Go(func() error {
			_ = s.opts.Sleep(ctx, s.opts.Jitter.Pick())
			s.logger.Debug("summarizing", "index", i+1, "total", len(items), "id", item.ID)
			out[i] = domain.SummarizedItem{Item: item, Summary: s.Summarize(ctx, item)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Summarize produces the summary of a single item.
func (s *Stage) Summarize(ctx context.Context, item domain.Item) string {
	if s.client == nil {
		return Local(item)
	}

	req := ports.CompletionRequest{
		Model:       s.opts.Model,
		System:      systemPrompt,
		User:        userPrompt(item),
		Temperature: temperature,
		TopP:        topP,
	}

	policy := s.opts.Policy
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		text, err := s.client.Complete(ctx, req)
		if err == nil {
			if summary := Clean(text); summary != "" {
				return summary
			}
			s.logger.Warn("empty completion, using local summary", "id", item.ID)
			return Local(item)
		}

		class := ports.ClassOf(err)
		delay, retry := policy.Delay(class, attempt)
		if !retry {
			s.logger.Warn("completion rejected, using local summary", "id", item.ID, "class", class)
			return Local(item)
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		s.logger.Warn("completion failed, retrying",
			"id", item.ID,
			"attempt", attempt+1,
			"max_attempts", policy.MaxAttempts,
			"class", class,
			"wait", delay,
			"error", truncate(err.Error(), 120))
		if err := s.opts.Sleep(ctx, delay); err != nil {
			break
		}
	}

	s.logger.Warn("completion attempts exhausted, using local summary", "id", item.ID)
	return Local(item)
}

func userPrompt(item domain.Item) string {
	if item.Body == "" {
		return fmt.Sprintf("Title: %s\nCategory: %s", item.Title, item.Category)
	}
	return "Article body: " + prefix(item.Body, bodyPromptRunes)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return prefix(s, n) + "..."
}
