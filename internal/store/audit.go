package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

// RecordRun appends an ingestion run. Runs are never updated.
func (s *Store) RecordRun(ctx context.Context, run models.IngestionRun) error {
	if run.RanAt.IsZero() {
		run.RanAt = s.clock.Now()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ingestion_runs (id, ran_at, community, item_count, error_count)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, formatTime(run.RanAt), run.Community, run.ItemCount, run.ErrorCount)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		return nil
	})
}

// RecordError appends an ingestion error. Errors are observability only.
func (s *Store) RecordError(ctx context.Context, e models.IngestionError) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.clock.Now()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ingestion_errors (occurred_at, community, kind, message, item_id, item_kind)
			VALUES (?, ?, ?, ?, ?, ?)
		`, formatTime(e.OccurredAt), e.Community, e.Kind, e.Message,
			nullableString(e.ItemID), nullableString(string(e.ItemKind)))
		if err != nil {
			return fmt.Errorf("record error: %w", err)
		}
		return nil
	})
}

// RecentErrors returns the newest errors first.
func (s *Store) RecentErrors(ctx context.Context, limit int) ([]models.IngestionError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, community, kind, message, COALESCE(item_id, ''), COALESCE(item_kind, '')
		FROM ingestion_errors ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent errors: %w", err)
	}
	defer rows.Close()

	out := make([]models.IngestionError, 0)
	for rows.Next() {
		var (
			e      models.IngestionError
			at     string
			kindOf string
		)
		if err := rows.Scan(&e.ID, &at, &e.Community, &e.Kind, &e.Message, &e.ItemID, &kindOf); err != nil {
			return nil, fmt.Errorf("recent errors: scan: %w", err)
		}
		e.OccurredAt = parseTime(at)
		e.ItemKind = models.ItemKind(kindOf)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ErrorCountSince counts errors recorded at or after t.
func (s *Store) ErrorCountSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ingestion_errors WHERE occurred_at >= ?`, formatTime(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error count: %w", err)
	}
	return n, nil
}

// Runs returns the newest ingestion runs first.
func (s *Store) Runs(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ran_at, community, item_count, error_count
		FROM ingestion_runs ORDER BY ran_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.IngestionRun, 0)
	for rows.Next() {
		var (
			r  models.IngestionRun
			at string
		)
		if err := rows.Scan(&r.ID, &at, &r.Community, &r.ItemCount, &r.ErrorCount); err != nil {
			return nil, fmt.Errorf("runs: scan: %w", err)
		}
		r.RanAt = parseTime(at)
		out = append(out, r)
	}
	return out, rows.Err()
}
