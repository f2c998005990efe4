package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"BriefScanner/internal/cache"
	"BriefScanner/internal/crawl"
	"BriefScanner/internal/domain"
	"BriefScanner/internal/pace"
	"BriefScanner/internal/ports"
	"BriefScanner/internal/report"
	"BriefScanner/internal/scanner"
	"BriefScanner/internal/summarize"
)

const dateLabelLayout = "2006-01-02"

// RunParams are the resolved tunables of one run.
type RunParams struct {
	Hours                 int
	MaxItems              int
	Model                 string
	MaxConcurrentRequests int
	MaxConcurrentAI       int
	BatchStep             int
	MinScore              int
	StallThreshold        int
	FetchTimeout          time.Duration
	ItemJitter            pace.Range
	BatchPause            pace.Range
	AIJitter              pace.Range
	AIMaxAttempts         int
	FallbackLatestID      int64
}

// Job is one scheduled or manual run of a source.
type Job struct {
	Source scanner.Source
	Title  string
	Params RunParams
	// DryRun renders the report without notifying or archiving.
	DryRun bool
}

// RunResult describes how a run ended.
type RunResult struct {
	RunID     string
	Source    string
	Status    domain.RunStatus
	Walk      crawl.WalkResult
	Cache     cache.Stats
	Collected int
	Report    domain.Report
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Fetcher   ports.Fetcher
	Completer ports.Completer
	Notifier  ports.Notifier
	Archive   ports.Archive
	Logger    *slog.Logger
	Sleep     pace.SleepFunc
	NewRunID  func() string
}

// Pipeline implements the crawl, summarize and deliver workflow. It keeps no
// state between runs.
type Pipeline struct {
	fetcher   ports.Fetcher
	completer ports.Completer
	notifier  ports.Notifier
	archive   ports.Archive
	logger    *slog.Logger
	sleep     pace.SleepFunc
	newRunID  func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = pace.Sleep
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Pipeline{
		fetcher:   deps.Fetcher,
		completer: deps.Completer,
		notifier:  deps.Notifier,
		archive:   deps.Archive,
		logger:    logger,
		sleep:     sleep,
		newRunID:  newRunID,
	}
}

// Run executes one end-to-end run for job with the window ending at now.
// Only cancellation and missing wiring are returned as errors; empty results
// end the run with StatusEmpty.
func (p *Pipeline) Run(ctx context.Context, job Job, now time.Time) (RunResult, error) {
	if job.Source == nil {
		return RunResult{}, fmt.Errorf("run: no source")
	}
	if p.fetcher == nil {
		return RunResult{}, fmt.Errorf("run %s: no fetcher", job.Source.Name())
	}

	params := job.Params
	result := RunResult{RunID: p.newRunID(), Source: job.Source.Name()}
	logger := p.logger.With("run_id", result.RunID, "source", result.Source)
	logger.Info("run started",
		"hours", params.Hours,
		"max_items", params.MaxItems,
		"batch_step", params.BatchStep,
		"dry_run", job.DryRun)

	itemCache := cache.New()
	batch := crawl.NewBatchFetcher(job.Source, p.fetcher, itemCache, crawl.BatchOptions{
		MaxConcurrent: params.MaxConcurrentRequests,
		Timeout:       params.FetchTimeout,
		Jitter:        params.ItemJitter,
		Sleep:         p.sleep,
	}, logger.With("component", "batch"))
	walker := crawl.NewWalker(job.Source, batch, crawl.WalkConfig{
		BatchStep:        params.BatchStep,
		MaxItems:         params.MaxItems,
		StallThreshold:   params.StallThreshold,
		BatchPause:       params.BatchPause,
		FallbackLatestID: params.FallbackLatestID,
	}, p.sleep, logger.With("component", "walker"))

	// Unranked sources carry no score, so the floor would reject everything.
	minScore := params.MinScore
	if !job.Source.Ranked() {
		minScore = 0
	}
	window := crawl.NewWindow(now, params.Hours, minScore)
	walk, err := walker.Walk(ctx, window)
	result.Walk = walk
	result.Cache = itemCache.Stats()
	if err != nil {
		return result, fmt.Errorf("walk %s: %w", result.Source, err)
	}

	items := crawl.DedupeAndSort(walk.Items, params.MaxItems, job.Source.Ranked())
	result.Collected = len(items)
	logger.Info("crawl finished",
		"collected", len(items),
		"raw", len(walk.Items),
		"batches", walk.Batches,
		"stop", walk.Stop,
		"cache_entries", itemCache.Len(),
		"cache_hits", result.Cache.Hits,
		"cache_loads", result.Cache.Loads)

	if len(items) == 0 {
		logger.Warn("no qualifying items, nothing to deliver")
		result.Status = domain.StatusEmpty
		result.Report = report.Build(job.Title, now.Format(dateLabelLayout), nil)
		return result, nil
	}

	stage := summarize.NewStage(p.completer, summarize.Options{
		Model:         params.Model,
		MaxConcurrent: params.MaxConcurrentAI,
		Policy:        summarize.DefaultPolicy(params.AIMaxAttempts),
		Jitter:        params.AIJitter,
		Sleep:         p.sleep,
	}, logger.With("component", "summarize"))
	summarized := stage.SummarizeAll(ctx, items)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("summarize %s: %w", result.Source, err)
	}

	result.Report = report.Build(job.Title, now.Format(dateLabelLayout), summarized)
	if job.DryRun {
		result.Status = domain.StatusDryRun
		logger.Info("dry run finished", "items", len(summarized))
		return result, nil
	}

	if p.notifier != nil {
		msg := ports.Message{Title: result.Report.Title + " " + result.Report.DateLabel, Content: result.Report.Content}
		if err := p.notifier.Notify(ctx, msg); err != nil {
			logger.Error("delivery failed", "error", err)
		}
	}
	if p.archive != nil {
		if err := p.archive.Record(ctx, result.RunID, result.Report); err != nil {
			logger.Error("archive failed", "error", err)
		}
	}

	result.Status = domain.StatusDelivered
	logger.Info("run finished", "items", len(summarized))
	return result, nil
}
