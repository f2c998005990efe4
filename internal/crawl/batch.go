package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"BriefScanner/internal/cache"
	"BriefScanner/internal/domain"
	"BriefScanner/internal/pace"
	"BriefScanner/internal/ports"
	"BriefScanner/internal/scanner"
)

const maxErrDetail = 120

// BatchFetcher fans fetch+parse out over a batch of identifiers under a
// concurrency ceiling shared by every batch of the run.
type BatchFetcher struct {
	source  scanner.Source
	fetcher ports.Fetcher
	cache   *cache.ItemCache
	sem     *semaphore.Weighted
	timeout time.Duration
	jitter  pace.Range
	sleep   pace.SleepFunc
	logger  *slog.Logger
}

// BatchOptions configures a BatchFetcher.
type BatchOptions struct {
	MaxConcurrent int
	Timeout       time.Duration
	Jitter        pace.Range
	Sleep         pace.SleepFunc
}

// NewBatchFetcher wires the run's cache with a source and a fetcher.
func NewBatchFetcher(source scanner.Source, fetcher ports.Fetcher, c *cache.ItemCache, opts BatchOptions, logger *slog.Logger) *BatchFetcher {
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = pace.Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchFetcher{
		source:  source,
		fetcher: fetcher,
		cache:   c,
		sem:     semaphore.NewWeighted(int64(limit)),
		timeout: opts.Timeout,
		jitter:  opts.Jitter,
		sleep:   sleep,
		logger:  logger,
	}
}

// FetchBatch returns the items that fetched and parsed successfully, in the
// order of ids. Failed identifiers are dropped.
func (b *BatchFetcher) FetchBatch(ctx context.Context, ids []int64) []domain.Item {
	results := make([]domain.Item, len(ids))
	found := make([]bool, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			if err := b.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer b.sem.Release(1)

			if err := b.sleep(ctx, b.jitter.Pick()); err != nil {
				return
			}
			results[i], found[i] = b.cache.GetOrFetch(ctx, id, func(ctx context.Context) (domain.Item, error) {
				return b.load(ctx, id)
			})
		}(i, id)
	}
	wg.Wait()

	items := make([]domain.Item, 0, len(ids))
	for i := range ids {
		if found[i] {
			items = append(items, results[i])
		}
	}
	return items
}

func (b *BatchFetcher) load(ctx context.Context, id int64) (domain.Item, error) {
	url := b.source.ItemURL(id)
	raw, err := b.fetcher.Fetch(ctx, ports.FetchRequest{URL: url, Referer: b.source.Referer(), Timeout: b.timeout})
	if err != nil {
		b.logger.Debug("fetch failed", "id", id, "error", truncate(err.Error(), maxErrDetail))
		return domain.Item{}, fmt.Errorf("fetch %d: %w", id, err)
	}

	item, err := b.source.Parse(raw, id, url)
	if err != nil {
		b.logger.Debug("parse rejected", "id", id, "reason", err)
		return domain.Item{}, fmt.Errorf("parse %d: %w", id, err)
	}
	if !item.Valid() {
		return domain.Item{}, fmt.Errorf("parse %d: %w", id, scanner.ErrInvalid)
	}
	return item, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
