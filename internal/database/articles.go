package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"learntracker/internal/domain"
	"learntracker/internal/store"

	gosqlite3 "github.com/mattn/go-sqlite3"
)

var ErrDuplicate = errors.New("record with this identity already exists")

// Name identifies the SQLite knowledge store in logs and reports.
func (d *Database) Name() string {
	return "sqlite"
}

func (d *Database) Exists(ctx context.Context, identity string) (bool, error) {
	query := "select exists(select 1 from articles where identity = ?)"

	var exists bool
	if err := d.db.QueryRowContext(ctx, query, strings.TrimSpace(identity)).Scan(&exists); err != nil {
		return false, storeError(store.OpExists, fmt.Errorf("execute query: %w", err))
	}

	return exists, nil
}

func (d *Database) Write(ctx context.Context, record domain.SummaryRecord) error {
	keyInsights, err := json.Marshal(record.KeyInsights)
	if err != nil {
		return &store.Error{Op: store.OpWrite, Err: fmt.Errorf("marshal key insights: %w", err)}
	}

	tags, err := json.Marshal(nonNil(record.Tags))
	if err != nil {
		return &store.Error{Op: store.OpWrite, Err: fmt.Errorf("marshal tags: %w", err)}
	}

	query := `insert into articles (identity, kind, title, summary, key_insights, tags, source)
values (?, ?, ?, ?, ?, ?, ?)`

	_, err = d.db.ExecContext(ctx, query,
		record.Identity,
		string(record.Kind),
		record.Title,
		record.Summary,
		string(keyInsights),
		string(tags),
		record.Source,
	)
	if err != nil {
		return storeError(store.OpWrite, err)
	}

	return nil
}

// Article is a persisted record with its storage time.
type Article struct {
	domain.SummaryRecord
	CreatedAt time.Time
}

func (d *Database) GetArticle(ctx context.Context, identity string) (*Article, error) {
	query := `select identity, kind, title, summary, key_insights, tags, source, created_at
from articles where identity = ?`

	var (
		article     Article
		kind        string
		keyInsights string
		tags        string
	)

	err := d.db.QueryRowContext(ctx, query, identity).Scan(
		&article.Identity,
		&kind,
		&article.Title,
		&article.Summary,
		&keyInsights,
		&tags,
		&article.Source,
		&article.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	article.Kind = domain.Kind(kind)
	if err = json.Unmarshal([]byte(keyInsights), &article.KeyInsights); err != nil {
		return nil, fmt.Errorf("unmarshal key insights: %w", err)
	}
	if err = json.Unmarshal([]byte(tags), &article.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	return &article, nil
}

func storeError(op store.Op, err error) error {
	var sqliteErr gosqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == gosqlite3.ErrConstraintUnique:
			return &store.Error{Op: op, Err: fmt.Errorf("%w: %w", ErrDuplicate, err)}
		case sqliteErr.Code == gosqlite3.ErrBusy, sqliteErr.Code == gosqlite3.ErrLocked:
			return &store.Error{Op: op, Retryable: true, Err: err}
		}
	}

	return &store.Error{
		Op:        op,
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
