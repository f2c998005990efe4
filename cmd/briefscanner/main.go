package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"BriefScanner/internal/app"
	"BriefScanner/internal/config"
	"BriefScanner/internal/infrastructure/notify"
	"BriefScanner/internal/logging"
	"BriefScanner/internal/ports"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "briefscanner",
		Short:         "Crawl news sources and deliver summarized briefs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config path (default $BRIEF_SCANNER_CONFIG)")

	setup := func(ctx context.Context) (*app.Application, error) {
		path := configPath
		if path == "" {
			path = os.Getenv("BRIEF_SCANNER_CONFIG")
		}
		cfg, err := config.LoadFile(path, os.Getenv)
		if err != nil {
			return nil, err
		}
		return app.New(ctx, cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
	}

	root.AddCommand(runCmd(setup), scheduleCmd(setup), sourcesCmd(setup))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type setupFunc func(ctx context.Context) (*app.Application, error)

func runCmd(setup setupFunc) *cobra.Command {
	var (
		source    string
		overrides app.Overrides
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one source once and deliver its brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.RunOnce(cmd.Context(), source, overrides, dryRun)
			if err != nil {
				return err
			}
			if !dryRun {
				return nil
			}
			return notify.NewWriter(cmd.OutOrStdout()).Notify(cmd.Context(), ports.Message{
				Title:   result.Report.Title,
				Content: result.Report.Content,
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source name (see `briefscanner sources`)")
	cmd.Flags().IntVar(&overrides.Hours, "hours", 0, "Trailing window in hours")
	cmd.Flags().IntVar(&overrides.MaxItems, "max-items", 0, "Maximum items in the brief")
	cmd.Flags().StringVar(&overrides.Model, "model", "", "Completion model")
	cmd.Flags().IntVar(&overrides.BatchStep, "batch-step", 0, "Identifiers per crawl batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the brief instead of delivering it")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func scheduleCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run every source on its cron expression until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Schedule(cmd.Context())
		},
	}
}

func sourcesCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()
			for _, s := range application.Sources() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-11s %-14s %s\n", s.Name, s.Kind, s.Cron, s.Title)
			}
			return nil
		},
	}
}
