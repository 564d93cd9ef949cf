package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wavelift/internal/stats"
)

// StatusRunning marks a batch whose final status is not yet known.
const StatusRunning = "Running"

// Batch is one recorded run.
type Batch struct {
	ID         int64
	ListID     string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Total      int
	Rejected   int
	Succeeded  int
	Skipped    int
	Failed     int
	ReportSent bool
}

// Item is one recorded pipeline outcome.
type Item struct {
	BatchID    int64
	ItemID     string
	Locator    string
	Owner      string
	Outcome    string
	Stage      string
	Detail     string
	StoredKey  string
	Duration   time.Duration
	RecordedAt time.Time
}

// BeginBatch records the start of a run and returns its id.
func (l *Ledger) BeginBatch(ctx context.Context, listID string, total, rejected int, startedAt time.Time) (int64, error) {
	res, err := l.exec(ctx,
		`INSERT INTO batches (list_id, started_at, status, total, rejected) VALUES (?, ?, ?, ?, ?)`,
		listID, formatTime(startedAt), StatusRunning, total, rejected,
	)
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("batch id: %w", err)
	}
	return id, nil
}

// RecordItem stores one terminal pipeline result.
func (l *Ledger) RecordItem(ctx context.Context, batchID int64, r stats.Result, recordedAt time.Time) error {
	_, err := l.exec(ctx,
		`INSERT INTO items (batch_id, item_id, locator, owner, outcome, stage, detail, stored_key, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, r.ItemID, r.Locator, r.Owner, r.Outcome.String(), r.Stage, r.Detail, r.StoredKey,
		r.Duration.Milliseconds(), formatTime(recordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// FinishBatch stores the final counts and status.
func (l *Ledger) FinishBatch(ctx context.Context, batchID int64, status string, snap stats.Snapshot, reportSent bool, finishedAt time.Time) error {
	res, err := l.exec(ctx,
		`UPDATE batches SET finished_at = ?, status = ?, succeeded = ?, skipped = ?, failed = ?, report_sent = ? WHERE id = ?`,
		formatTime(finishedAt), status, snap.Succeeded, snap.Skipped, snap.Failed, boolToInt(reportSent), batchID,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, batchID)
	}
	return nil
}

const batchColumns = `id, list_id, started_at, finished_at, status, total, rejected, succeeded, skipped, failed, report_sent`

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (Batch, error) {
	var (
		b          Batch
		started    sql.NullString
		finished   sql.NullString
		reportSent int
	)
	if err := row.Scan(&b.ID, &b.ListID, &started, &finished, &b.Status, &b.Total, &b.Rejected,
		&b.Succeeded, &b.Skipped, &b.Failed, &reportSent); err != nil {
		return Batch{}, err
	}
	b.StartedAt = parseTime(started)
	b.FinishedAt = parseTime(finished)
	b.ReportSent = reportSent != 0
	return b, nil
}

// RecentBatches returns up to limit batches, newest first.
func (l *Ledger) RecentBatches(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `SELECT `+batchColumns+` FROM batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindBatch resolves ref as a control-plane list id (latest run wins) or,
// failing that, a numeric ledger id.
func (l *Ledger) FindBatch(ctx context.Context, ref string) (Batch, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE list_id = ? ORDER BY id DESC LIMIT 1`, ref)
	b, err := scanBatch(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("query batch: %w", err)
	}
	id, convErr := strconv.ParseInt(ref, 10, 64)
	if convErr != nil {
		return Batch{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	row = l.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	b, err = scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("query batch: %w", err)
	}
	return b, nil
}

// Items returns the recorded items for a batch. When outcome is non-empty only
// matching items are returned.
func (l *Ledger) Items(ctx context.Context, batchID int64, outcome string) ([]Item, error) {
	query := `SELECT batch_id, item_id, locator, owner, outcome, stage, detail, stored_key, duration_ms, recorded_at
		FROM items WHERE batch_id = ?`
	args := []any{batchID}
	if outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, outcome)
	}
	query += ` ORDER BY id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it         Item
			durationMs int64
			recorded   sql.NullString
		)
		if err := rows.Scan(&it.BatchID, &it.ItemID, &it.Locator, &it.Owner, &it.Outcome, &it.Stage,
			&it.Detail, &it.StoredKey, &durationMs, &recorded); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Duration = time.Duration(durationMs) * time.Millisecond
		it.RecordedAt = parseTime(recorded)
		out = append(out, it)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
