package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"learntracker/internal/batch"
	"learntracker/internal/config"
	"learntracker/internal/database"
	"learntracker/internal/domain"
	"learntracker/internal/extract"
	"learntracker/internal/mapreduce"
	"learntracker/internal/notify"
	"learntracker/internal/notion"
	"learntracker/internal/ratelimiter"
	"learntracker/internal/report"
	"learntracker/internal/retry"
	"learntracker/internal/store"
	"learntracker/internal/summarizer"
)

const (
	storeRetryBaseDelay = time.Second
	storeRetryMaxDelay  = 10 * time.Second
	finishRunTimeout    = time.Minute
)

// app holds everything one or more batch runs need.
type app struct {
	cfg      config.Config
	db       *database.Database
	provider summarizer.Provider
	resolver *extract.Resolver
	runner   *batch.Runner
	notifier *notify.Notifier
	log      *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.db, err = database.New(ctx, cfg.DBPath, log); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	knowledgeStore, err := a.newStore()
	if err != nil {
		return nil, err
	}

	if a.provider, err = summarizer.New(ctx, cfg, log); err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	log.InfoContext(ctx, "Provider is initialized",
		"provider", a.provider.Name(),
		"model", cfg.Model)

	governed := summarizer.Governed(a.provider, retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Timeout:     cfg.ProviderTimeout,
	}, ratelimiter.PerMinute(cfg.ProviderRPM, log), log)

	orchestrator := mapreduce.New(governed, mapreduce.Options{
		ChunkSize:      cfg.ChunkSize,
		ChunkTolerance: cfg.ChunkTolerance,
		MapParallelism: cfg.MapParallelism,
	}, log)

	gate := store.NewGate(knowledgeStore, retry.Policy{
		MaxAttempts: cfg.StoreMaxAttempts,
		BaseDelay:   storeRetryBaseDelay,
		MaxDelay:    storeRetryMaxDelay,
		Timeout:     cfg.StoreTimeout,
	}, log)

	if a.runner, err = batch.New(orchestrator, gate, batch.Options{
		Workers:        cfg.Workers,
		MaxKeyInsights: cfg.MaxKeyInsights,
		ProviderName:   a.provider.Name(),
		StoreName:      knowledgeStore.Name(),
	}, log); err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}

	if a.resolver, err = extract.NewResolver(extract.Options{
		FetchTimeout:  cfg.FetchTimeout,
		RSSMaxEntries: cfg.RSSMaxEntries,
	}, log); err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	if cfg.NotifyEnabled() {
		if a.notifier, err = notify.New(cfg.TelegramToken, cfg.TelegramChatID, log); err != nil {
			return nil, fmt.Errorf("create notifier: %w", err)
		}
		log.InfoContext(ctx, "Notifier is initialized",
			"chatID", cfg.TelegramChatID)
	}

	return a, nil
}

func (a *app) newStore() (store.Store, error) {
	switch a.cfg.Store {
	case config.StoreSQLite:
		return a.db, nil
	case config.StoreNotion:
		s := notion.New(a.cfg.NotionToken, a.cfg.NotionDatabaseID, a.log)
		if err := s.Check(); err != nil {
			return nil, fmt.Errorf("check notion store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownStore, a.cfg.Store)
	}
}

// runOnce resolves the inputs, processes them and records the run. History,
// report file and notification failures are logged and do not fail the run.
func (a *app) runOnce(ctx context.Context) (*domain.Report, error) {
	extractions, err := a.resolver.Resolve(ctx, a.cfg.InputsDir, a.cfg.RSSFeeds)
	if err != nil {
		return nil, fmt.Errorf("resolve inputs: %w", err)
	}

	rep, err := a.runner.Run(ctx, extractions)
	if err != nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishRunTimeout)
	defer cancel()

	if err = a.db.SaveRun(finishCtx, rep); err != nil {
		a.log.ErrorContext(finishCtx, "Failed to save run",
			"error", err,
			"runID", rep.RunID)
	}

	if a.cfg.ReportPath != "" {
		if err = report.WriteFile(a.cfg.ReportPath, rep); err != nil {
			a.log.ErrorContext(finishCtx, "Failed to write report",
				"error", err,
				"reportPath", a.cfg.ReportPath)
		}
	}

	if a.notifier != nil && len(rep.Items) > 0 {
		if err = a.notifier.SendReport(finishCtx, rep); err != nil {
			a.log.ErrorContext(finishCtx, "Failed to send report",
				"error", err,
				"runID", rep.RunID)
		}
	}

	return rep, nil
}

func (a *app) scheduledRun(ctx context.Context) error {
	rep, err := a.runOnce(ctx)
	if err != nil {
		return err
	}

	if failed := rep.Failed(); failed > 0 {
		return fmt.Errorf("run %s: %d of %d items failed", rep.RunID, failed, len(rep.Items))
	}

	return nil
}

func (a *app) Close() {
	var errs []error

	if a.provider != nil {
		if err := summarizer.Close(a.provider); err != nil {
			errs = append(errs, fmt.Errorf("close provider: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.log.Error("Failed to close app",
			"error", err)
	}
}
