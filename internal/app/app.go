package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"BriefScanner/internal/config"
	"BriefScanner/internal/infrastructure/fetcher"
	"BriefScanner/internal/infrastructure/llm"
	"BriefScanner/internal/infrastructure/natspub"
	"BriefScanner/internal/infrastructure/notify"
	"BriefScanner/internal/infrastructure/ntfy"
	"BriefScanner/internal/infrastructure/parser"
	"BriefScanner/internal/infrastructure/scheduler"
	"BriefScanner/internal/infrastructure/storage"
	"BriefScanner/internal/infrastructure/telegram"
	"BriefScanner/internal/logging"
	"BriefScanner/internal/pace"
	"BriefScanner/internal/ports"
	"BriefScanner/internal/scanner"
	"BriefScanner/internal/usecase"
)

// Overrides are per-invocation run parameters from the command line.
// Zero values keep the configured ones.
type Overrides struct {
	Hours     int
	MaxItems  int
	Model     string
	BatchStep int
}

// SourceInfo describes a configured source.
type SourceInfo struct {
	Name  string
	Kind  string
	Title string
	Cron  string
}

type sourceRuntime struct {
	cfg      config.SourceConfig
	source   scanner.Source
	pipeline *usecase.Pipeline
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *scanner.Registry
	sources  map[string]*sourceRuntime
	closers  []func() error
}

// New builds the application. Optional adapters that fail to initialize are
// logged and left out; only configuration errors are returned.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		registry: scanner.NewRegistry(),
		sources:  map[string]*sourceRuntime{},
	}

	var completer ports.Completer
	if llm.Usable(cfg.AI) {
		completer = llm.NewClient(cfg.AI, baseLogger.With("component", "llm"))
	} else {
		baseLogger.Warn("AI key missing or invalid, summaries will be derived locally")
	}

	notifier := a.buildNotifier()
	archive := a.buildArchive(ctx)

	for _, sc := range cfg.Sources {
		run := cfg.RunFor(sc)
		fetch := fetcher.New(fetcher.Options{RequestsPerSecond: run.RequestsPerSecond})

		var source scanner.Source
		switch sc.Kind {
		case config.KindAIBase:
			source = parser.NewAIBaseSource(sc, fetch, cfg.Scheduler.Location(), run.FetchTimeout)
		case config.KindHackerNews:
			source = parser.NewHackerNewsSource(sc, fetch, run.FetchTimeout)
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", sc.Name, sc.Kind)
		}
		a.registry.Register(source)

		pipeline := usecase.NewPipeline(usecase.PipelineDeps{
			Fetcher:   fetch,
			Completer: completer,
			Notifier:  notifier,
			Archive:   archive,
			Logger:    baseLogger.With("component", "pipeline"),
		})
		a.sources[sc.Name] = &sourceRuntime{cfg: sc, source: source, pipeline: pipeline}
	}

	return a, nil
}

func (a *Application) buildNotifier() ports.Notifier {
	n := a.cfg.Notifications
	var sinks []notify.Named

	if n.Telegram.Enabled() {
		sinks = append(sinks, notify.Named{Name: "telegram", Notifier: telegram.NewNotifier(n.Telegram.APIURL, n.Telegram.BotToken, n.Telegram.ChatID)})
	}
	if n.Ntfy.Topic != "" {
		sinks = append(sinks, notify.Named{Name: "ntfy", Notifier: ntfy.New(n.Ntfy.Server, n.Ntfy.Topic, n.Ntfy.Token)})
	}
	if n.NATS.URL != "" {
		pub, err := natspub.Connect(n.NATS.URL, n.NATS.Subject)
		if err != nil {
			a.logger.Error("nats sink disabled", "error", err)
		} else {
			sinks = append(sinks, notify.Named{Name: "nats", Notifier: pub})
			a.closers = append(a.closers, pub.Close)
		}
	}
	if n.Log || len(sinks) == 0 {
		sinks = append(sinks, notify.Named{Name: "log", Notifier: notify.NewLog(a.logger.With("component", "report"))})
	}

	return notify.NewMulti(a.logger.With("component", "notify"), sinks...)
}

func (a *Application) buildArchive(ctx context.Context) ports.Archive {
	if a.cfg.Archive.Driver == "" {
		return nil
	}
	repo, err := storage.Open(ctx, a.cfg.Archive.Driver, a.cfg.Archive.DSN)
	if err != nil {
		a.logger.Error("archive disabled", "driver", a.cfg.Archive.Driver, "error", err)
		return nil
	}
	a.closers = append(a.closers, repo.Close)
	return repo
}

// Sources lists configured sources in name order.
func (a *Application) Sources() []SourceInfo {
	infos := make([]SourceInfo, 0, len(a.sources))
	for _, name := range a.registry.Names() {
		rt := a.sources[name]
		infos = append(infos, SourceInfo{Name: name, Kind: rt.cfg.Kind, Title: rt.cfg.Title, Cron: rt.cfg.Cron})
	}
	return infos
}

// RunOnce executes a single run of the named source.
func (a *Application) RunOnce(ctx context.Context, name string, overrides Overrides, dryRun bool) (usecase.RunResult, error) {
	source, err := a.registry.Resolve(name)
	if err != nil {
		return usecase.RunResult{}, err
	}
	rt := a.sources[name]
	job := a.job(rt, source, overrides)
	job.DryRun = dryRun

	now := time.Now().In(a.cfg.Scheduler.Location())
	return rt.pipeline.Run(ctx, job, now)
}

// Schedule runs every source on its cron expression until ctx is done.
func (a *Application) Schedule(ctx context.Context) error {
	loc := a.cfg.Scheduler.Location()
	var scheds []*usecase.Scheduler
	for _, name := range a.registry.Names() {
		rt := a.sources[name]
		if rt.cfg.Cron == "" {
			a.logger.Warn("source has no cron expression, not scheduled", "source", name)
			continue
		}
		driver, err := scheduler.NewCronScheduler(rt.cfg.Cron, loc)
		if err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		entry := usecase.Entry{Driver: driver, Job: a.job(rt, rt.source, Overrides{})}
		sched := usecase.NewScheduler(rt.pipeline, loc, a.logger.With("component", "scheduler"), entry)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		scheds = append(scheds, sched)
		a.logger.Info("next run", "source", name, "cron", rt.cfg.Cron, "at", driver.Next(time.Now()))
	}
	if len(scheds) == 0 {
		return fmt.Errorf("no schedulable sources")
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, sched := range scheds {
		if err := sched.Stop(stopCtx); err != nil {
			a.logger.Error("scheduler stop failed", "error", err)
		}
	}
	return nil
}

// Close releases connections held by optional adapters.
func (a *Application) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

func (a *Application) job(rt *sourceRuntime, source scanner.Source, o Overrides) usecase.Job {
	run := a.cfg.RunFor(rt.cfg).Merge(config.RunConfig{
		Hours:     o.Hours,
		MaxItems:  o.MaxItems,
		Model:     o.Model,
		BatchStep: o.BatchStep,
	})
	title := rt.cfg.Title
	if title == "" {
		title = rt.cfg.Name
	}
	return usecase.Job{Source: source, Title: title, Params: a.params(run, rt.cfg)}
}

func (a *Application) params(run config.RunConfig, sc config.SourceConfig) usecase.RunParams {
	model := run.Model
	if model == "" {
		model = a.cfg.AI.Model
	}
	return usecase.RunParams{
		Hours:                 run.Hours,
		MaxItems:              run.MaxItems,
		Model:                 model,
		MaxConcurrentRequests: run.MaxConcurrentRequests,
		MaxConcurrentAI:       run.MaxConcurrentAI,
		BatchStep:             run.BatchStep,
		MinScore:              run.MinScore,
		StallThreshold:        run.StallThreshold,
		FetchTimeout:          run.FetchTimeout,
		ItemJitter:            pace.Range(run.ItemJitter),
		BatchPause:            pace.Range(run.BatchPause),
		AIJitter:              pace.Range(run.AIJitter),
		AIMaxAttempts:         run.AIMaxAttempts,
		FallbackLatestID:      sc.FallbackLatestID,
	}
}
