package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"learntracker/internal/domain"
	"learntracker/internal/summarizer"
	"learntracker/internal/validator"
)

const defaultWorkers = 4

var (
	ErrNoProvider = errors.New("no summarization provider configured")
	ErrNoStore    = errors.New("no knowledge store configured")

	errEmptyText = errors.New("extracted text is empty")
)

// Summarizer produces one candidate record per item. It is satisfied by
// *mapreduce.Orchestrator.
type Summarizer interface {
	Summarize(ctx context.Context, item domain.InputItem) (summarizer.Candidate, error)
}

// Persister writes a record unless its identity is already stored. It is
// satisfied by *store.Gate.
type Persister interface {
	Persist(ctx context.Context, record domain.SummaryRecord) (domain.Outcome, error)
}

type Options struct {
	Workers        int
	MaxKeyInsights int
	ProviderName   string
	StoreName      string
}

// Runner processes a batch of extracted items independently of each other
// and reports one outcome per item.
type Runner struct {
	summarizer Summarizer
	persister  Persister
	opts       Options
	log        *slog.Logger
}

func New(s Summarizer, p Persister, opts Options, log *slog.Logger) (*Runner, error) {
	var errs []error
	if s == nil {
		errs = append(errs, ErrNoProvider)
	}
	if p == nil {
		errs = append(errs, ErrNoStore)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	return &Runner{
		summarizer: s,
		persister:  p,
		opts:       opts,
		log:        log,
	}, nil
}

// Run processes every extraction and returns the run report. Canceling ctx
// stops dispatching new items; items already running finish with a context
// detached from ctx and are bounded by the provider and store timeouts.
func (r *Runner) Run(ctx context.Context, extractions []domain.Extraction) (*domain.Report, error) {
	report := &domain.Report{
		RunID:     uuid.NewString(),
		Provider:  r.opts.ProviderName,
		Store:     r.opts.StoreName,
		StartedAt: time.Now().UTC(),
		Counts:    make(map[domain.Outcome]int, len(domain.Outcomes)),
	}

	pool, err := ants.NewPool(r.opts.Workers, ants.WithPanicHandler(func(p any) {
		r.log.ErrorContext(ctx, "Worker panicked",
			"panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	r.log.InfoContext(ctx, "Run is started",
		"runID", report.RunID,
		"itemCount", len(extractions),
		"workers", r.opts.Workers)

	var (
		wg      sync.WaitGroup
		results = make([]*domain.ItemResult, len(extractions))
		semCh   = make(chan struct{}, r.opts.Workers)
	)

	workCtx := context.WithoutCancel(ctx)

	for i, extraction := range extractions {
		if result, ok := extractionFailure(extraction); ok {
			results[i] = result
			r.logResult(ctx, result)
			continue
		}

		if ctx.Err() != nil {
			report.NotDispatched++
			continue
		}

		select {
		case semCh <- struct{}{}:
		case <-ctx.Done():
			report.NotDispatched++
			continue
		}

		wg.Add(1)
		err = pool.Submit(func() {
			defer wg.Done()
			defer func() { <-semCh }()

			results[i] = r.process(workCtx, extraction.Item)
			r.logResult(workCtx, results[i])
		})
		if err != nil {
			wg.Done()
			<-semCh

			r.log.ErrorContext(ctx, "Failed to submit item",
				"error", err,
				"identity", extraction.Item.Identity)
			report.NotDispatched++
		}
	}

	wg.Wait()

	for _, result := range results {
		if result == nil {
			continue
		}
		report.Items = append(report.Items, *result)
		report.Counts[result.Outcome]++
	}

	report.Canceled = ctx.Err() != nil
	report.FinishedAt = time.Now().UTC()

	r.log.InfoContext(ctx, "Run is done",
		"runID", report.RunID,
		"itemCount", len(report.Items),
		"failedCount", report.Failed(),
		"notDispatched", report.NotDispatched,
		"canceled", report.Canceled,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

// process runs one item through summarization, validation and the dedup
// gate. It never panics: a panic anywhere in the item is a summarization
// failure of that item only.
func (r *Runner) process(ctx context.Context, item domain.InputItem) (result *domain.ItemResult) {
	start := time.Now()

	result = &domain.ItemResult{
		Identity: item.Identity,
		Kind:     item.Kind,
		Origin:   item.Origin,
	}

	defer func() {
		if p := recover(); p != nil {
			result.Outcome = domain.OutcomeFailedSummarization
			result.Error = fmt.Sprintf("panic: %v", p)
		}
		result.Duration = time.Since(start)
	}()

	candidate, err := r.summarizer.Summarize(ctx, item)
	if err != nil {
		result.Outcome = domain.OutcomeFailedSummarization
		result.Error = err.Error()
		return result
	}

	record, err := validator.Validate(candidate, item.Identity, validator.Options{
		MaxKeyInsights: r.opts.MaxKeyInsights,
		Kind:           item.Kind,
	})
	if err != nil {
		result.Outcome = domain.OutcomeFailedValidation
		result.Error = err.Error()
		result.Title = strings.TrimSpace(candidate.Title)
		return result
	}

	result.Title = record.Title

	outcome, err := r.persister.Persist(ctx, record)
	result.Outcome = outcome
	if err != nil {
		result.Error = err.Error()
	}

	return result
}

func (r *Runner) logResult(ctx context.Context, result *domain.ItemResult) {
	if result.Outcome.Failed() {
		r.log.WarnContext(ctx, "Failed to process item",
			"error", result.Error,
			"identity", result.Identity,
			"kind", result.Kind,
			"outcome", result.Outcome,
			"duration", result.Duration)
		return
	}

	r.log.InfoContext(ctx, "Item is done",
		"identity", result.Identity,
		"kind", result.Kind,
		"outcome", result.Outcome,
		"title", result.Title,
		"duration", result.Duration)
}

func extractionFailure(extraction domain.Extraction) (*domain.ItemResult, bool) {
	err := extraction.Err
	if err == nil && strings.TrimSpace(extraction.Item.RawText) == "" {
		err = errEmptyText
	}
	if err == nil {
		return nil, false
	}

	return &domain.ItemResult{
		Identity: extraction.Item.Identity,
		Kind:     extraction.Item.Kind,
		Origin:   extraction.Item.Origin,
		Outcome:  domain.OutcomeFailedExtraction,
		Title:    extraction.Item.TitleHint,
		Error:    err.Error(),
	}, true
}
