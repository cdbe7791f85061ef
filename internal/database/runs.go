package database

import (
	"context"
	"fmt"
	"time"

	"learntracker/internal/domain"
)

// RunSummary is one stored run with its outcome counts.
type RunSummary struct {
	ID            string
	Provider      string
	Store         string
	StartedAt     time.Time
	FinishedAt    time.Time
	NotDispatched int
	Canceled      bool
	Counts        map[domain.Outcome]int
}

// SaveRun stores a finished run and its per-item outcomes in one transaction.
func (d *Database) SaveRun(ctx context.Context, report *domain.Report) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				d.log.ErrorContext(ctx, "Failed to rollback transaction",
					"error", rollbackErr,
					"runID", report.RunID)
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`insert into runs (id, provider, store, started_at, finished_at, not_dispatched, canceled)
values (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.Provider,
		report.Store,
		report.StartedAt.UTC(),
		report.FinishedAt.UTC(),
		report.NotDispatched,
		report.Canceled,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`insert into run_items (run_id, identity, kind, origin, outcome, title, error, duration_ms)
values (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare run item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range report.Items {
		_, err = stmt.ExecContext(ctx,
			report.RunID,
			item.Identity,
			string(item.Kind),
			item.Origin,
			string(item.Outcome),
			item.Title,
			item.Error,
			item.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert run item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *Database) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `select id, provider, store, started_at, finished_at, not_dispatched, canceled
from runs order by started_at desc limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "RecentRuns")
		}
	}()

	var runs []RunSummary
	for rows.Next() {
		run := RunSummary{Counts: make(map[domain.Outcome]int)}
		if err = rows.Scan(
			&run.ID,
			&run.Provider,
			&run.Store,
			&run.StartedAt,
			&run.FinishedAt,
			&run.NotDispatched,
			&run.Canceled,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	for i := range runs {
		if err = d.loadCounts(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}

	return runs, nil
}

func (d *Database) loadCounts(ctx context.Context, run *RunSummary) error {
	query := "select outcome, count(*) from run_items where run_id = ? group by outcome"

	rows, err := d.db.QueryContext(ctx, query, run.ID)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			outcome string
			count   int
		)
		if err = rows.Scan(&outcome, &count); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		run.Counts[domain.Outcome(outcome)] = count
	}

	return rows.Err()
}
