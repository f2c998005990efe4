package crawl

import (
	"context"
	"log/slog"

	"BriefScanner/internal/domain"
	"BriefScanner/internal/pace"
	"BriefScanner/internal/scanner"
)

// StopReason explains why a walk ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopEnough    StopReason = "enough"
	StopStalled   StopReason = "stalled"
	StopCancelled StopReason = "cancelled"
)

// WalkConfig bounds a walk.
type WalkConfig struct {
	BatchStep int
	MaxItems  int
	// StallThreshold is the number of consecutive batches without in-window
	// items that ends the walk. Zero disables the check.
	StallThreshold   int
	BatchPause       pace.Range
	FallbackLatestID int64
}

// WalkResult is the raw, possibly duplicated, in-window item set of a walk.
type WalkResult struct {
	Items        []domain.Item
	StartID      int64
	Batches      int
	Stop         StopReason
	UsedFallback bool
}

// Walker drives the batch fetcher backward through a source's ID space.
type Walker struct {
	source scanner.Source
	batch  *BatchFetcher
	cfg    WalkConfig
	sleep  pace.SleepFunc
	logger *slog.Logger
}

// NewWalker builds a walker. A nil sleep uses Sleep.
func NewWalker(source scanner.Source, batch *BatchFetcher, cfg WalkConfig, sleep pace.SleepFunc, logger *slog.Logger) *Walker {
	if cfg.BatchStep <= 0 {
		cfg.BatchStep = 10
	}
	if sleep == nil {
		sleep = pace.Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{source: source, batch: batch, cfg: cfg, sleep: sleep, logger: logger}
}

// Walk collects in-window items until enough are found, the ID space is
// exhausted, or the stall budget runs out.
func (w *Walker) Walk(ctx context.Context, window Window) (WalkResult, error) {
	var result WalkResult
	ids := w.plan(ctx, &result)

	stalled := 0
	for {
		if w.cfg.MaxItems > 0 && len(result.Items) >= w.cfg.MaxItems {
			result.Stop = StopEnough
			break
		}
		if w.cfg.StallThreshold > 0 && stalled >= w.cfg.StallThreshold {
			result.Stop = StopStalled
			break
		}
		batch := ids.next(w.cfg.BatchStep)
		if len(batch) == 0 {
			result.Stop = StopExhausted
			break
		}

		if result.Batches > 0 {
			if err := w.sleep(ctx, w.cfg.BatchPause.Pick()); err != nil {
				result.Stop = StopCancelled
				return result, err
			}
		}

		fresh := window.Filter(w.batch.FetchBatch(ctx, batch))
		result.Batches++
		if len(fresh) > 0 {
			result.Items = append(result.Items, fresh...)
			stalled = 0
		} else {
			stalled++
		}
		w.logger.Info("batch done",
			"batch", result.Batches,
			"from", batch[0],
			"to", batch[len(batch)-1],
			"in_window", len(fresh),
			"collected", len(result.Items),
			"stalled", stalled)

		if err := ctx.Err(); err != nil {
			result.Stop = StopCancelled
			return result, err
		}
	}

	w.logger.Info("walk finished", "reason", result.Stop, "batches", result.Batches, "collected", len(result.Items))
	return result, nil
}

func (w *Walker) plan(ctx context.Context, result *WalkResult) idPlan {
	seed, err := w.source.Discover(ctx)
	if err != nil {
		w.logger.Warn("discovery failed", "error", truncate(err.Error(), maxErrDetail))
	}
	if err == nil && len(seed.IDs) > 0 {
		result.StartID = seed.IDs[0]
		w.logger.Info("discovered id listing", "count", len(seed.IDs), "first", seed.IDs[0])
		return &listPlan{ids: seed.IDs}
	}

	latest := seed.Latest
	if err != nil || latest <= 0 {
		latest = w.cfg.FallbackLatestID
		result.UsedFallback = true
		if latest <= 0 {
			w.logger.Warn("discovery failed and no fallback latest id is configured, nothing to walk")
		} else {
			w.logger.Warn("using fallback latest id", "id", latest)
		}
	} else {
		w.logger.Info("discovered latest id", "id", latest)
	}
	result.StartID = latest
	return &countdown{current: latest}
}

type idPlan interface {
	next(step int) []int64
}

// countdown walks contiguous identifiers downward, never below 1.
type countdown struct {
	current int64
}

func (c *countdown) next(step int) []int64 {
	if c.current <= 0 {
		return nil
	}
	floor := c.current - int64(step)
	ids := make([]int64, 0, step)
	for id := c.current; id > floor && id > 0; id-- {
		ids = append(ids, id)
	}
	c.current = floor
	return ids
}

// listPlan walks an explicit identifier listing in order.
type listPlan struct {
	ids []int64
	pos int
}

func (l *listPlan) next(step int) []int64 {
	if l.pos >= len(l.ids) {
		return nil
	}
	end := l.pos + step
	if end > len(l.ids) {
		end = len(l.ids)
	}
	batch := l.ids[l.pos:end]
	l.pos = end
	return batch
}
