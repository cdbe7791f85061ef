package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"learntracker/internal/config"
	"learntracker/internal/database"
	"learntracker/internal/report"
	"learntracker/internal/scheduler"
)

const defaultHistoryLimit = 10

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var errFailedItems = errors.New("some items failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "learntracker",
		Short:         "Summarize saved links, PDFs and notes into a knowledge store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Summarize every input once and exit",
		Long: `Resolve the inputs directory and RSS feeds, summarize every item with the
configured LLM provider and write new records to the knowledge store.

Exits with status 1 when any item failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.runOnce(ctx)
			if err != nil {
				return err
			}

			report.Print(cmd.OutOrStdout(), rep)

			if rep.Failed() > 0 {
				return errFailedItems
			}

			return nil
		},
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := scheduler.New(ctx, cfg.ScheduleSpec, cfg.ScheduleTimezone, cfg.ScheduleRunTimeout, a.scheduledRun, log)
			if err != nil {
				return fmt.Errorf("create scheduler: %w", err)
			}

			sched.Start()
			<-ctx.Done()

			log.InfoContext(ctx, "Shutdown signal is received",
				"error", ctx.Err())

			sched.Stop()
			log.InfoContext(ctx, "Scheduler is stopped")

			return nil
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := database.New(ctx, cfg.DBPath, log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				if err = db.Close(); err != nil {
					log.ErrorContext(ctx, "Failed to close db",
						"error", err,
						"dbPath", cfg.DBPath)
				}
			}()

			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}

			runs, err := db.RecentRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("load runs: %w", err)
			}

			report.PrintRuns(cmd.OutOrStdout(), runs)

			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "learntracker", version)
		},
	}

	for _, cmd := range []*cobra.Command{runCmd, scheduleCmd} {
		cmd.Flags().String("inputs", "", "inputs directory (overrides INPUTS_DIR)")
		cmd.Flags().String("provider", "", "LLM provider: openai, anthropic, gemini or compat")
		cmd.Flags().String("model", "", "model identifier (overrides LLM_MODEL)")
		cmd.Flags().String("store", "", "knowledge store: sqlite or notion")
		cmd.Flags().Int("workers", 0, "concurrent items (overrides WORKERS)")
		cmd.Flags().String("report", "", "write the run report as YAML to this path")
	}

	scheduleCmd.Flags().String("spec", "", "cron spec (overrides SCHEDULE_SPEC)")
	scheduleCmd.Flags().String("timezone", "", "IANA timezone (overrides SCHEDULE_TIMEZONE)")
	historyCmd.Flags().Int("limit", defaultHistoryLimit, "number of runs to show")

	root.AddCommand(runCmd, scheduleCmd, historyCmd, versionCmd)

	return root
}

// loadConfig reads the environment, applies command line overrides and
// replaces the bootstrap logger with one at the configured level.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	applyFlags(cmd, &cfg)

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	return cfg, log, nil
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	stringFlag := func(name string, target *string) {
		if flags.Changed(name) {
			*target, _ = flags.GetString(name)
		}
	}

	stringFlag("inputs", &cfg.InputsDir)
	stringFlag("report", &cfg.ReportPath)
	stringFlag("spec", &cfg.ScheduleSpec)
	stringFlag("timezone", &cfg.ScheduleTimezone)

	if flags.Changed("provider") {
		provider, _ := flags.GetString("provider")
		provider = strings.ToLower(strings.TrimSpace(provider))
		// A model set for another provider does not carry over.
		if provider != cfg.Provider {
			cfg.Provider = provider
			cfg.Model = config.DefaultModel(provider)
		}
	}
	stringFlag("model", &cfg.Model)

	if flags.Changed("store") {
		s, _ := flags.GetString("store")
		cfg.Store = strings.ToLower(strings.TrimSpace(s))
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
}
