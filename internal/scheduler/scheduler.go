package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled batch run.
type Job func(ctx context.Context) error

type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	location *time.Location
	spec     string
	job      Job
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a scheduler that runs job on spec (standard five-field cron
// syntax or a descriptor such as @every 1h) in the given IANA timezone.
// A tick that fires while the previous run is still going is skipped.
func New(
	ctx context.Context,
	spec string,
	timezone string,
	timeout time.Duration,
	job Job,
	log *slog.Logger,
) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}

	logger := cronLogger{log: log}

	c := cron.New(
		cron.WithLocation(location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{
		ctx:      ctx,
		cron:     c,
		location: location,
		spec:     spec,
		job:      job,
		timeout:  timeout,
		log:      log,
	}

	if _, err = c.AddFunc(spec, s.runJob); err != nil {
		return nil, fmt.Errorf("add job: %w", err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()

	s.log.InfoContext(s.ctx, "Scheduler is started",
		"spec", s.spec,
		"next", s.Next())
}

// Stop prevents new runs and waits for a running one to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.location))
}

func (s *Scheduler) runJob() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	if err := s.job(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to run scheduled job",
			"error", err,
			"spec", s.spec)
		return
	}

	s.log.InfoContext(ctx, "Scheduled job is done",
		"spec", s.spec,
		"next", s.Next())
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("Cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("Cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
