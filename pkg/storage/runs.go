package storage

import (
	"context"
	"database/sql"
	"time"
)

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailed  = "failed"
)

// Run is one crawler-run audit row. A row left in "running" marks a cycle
// the process never finished.
type Run struct {
	ID            int64
	Region        int
	Status        string
	StartedAt     time.Time
	FinishedAt    *time.Time
	FetchedCount  int
	NewCount      int
	NotifiedCount int
	Error         string
}

// StartRun appends a running audit row and returns its id.
func (d *DB) StartRun(ctx context.Context, region int) (int64, error) {
	res, err := d.sql.ExecContext(ctx,
		"INSERT INTO crawler_runs (region, status) VALUES (?, ?)", region, RunRunning)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun closes an audit row with its final status and counts.
func (d *DB) FinishRun(ctx context.Context, id int64, status string, fetched, newCount, notified int, errText string) error {
	_, err := d.sql.ExecContext(ctx, `
UPDATE crawler_runs
SET status = ?, finished_at = CURRENT_TIMESTAMP, fetched_count = ?,
    new_count = ?, notified_count = ?, error = ?
WHERE id = ?`,
		status, fetched, newCount, notified, nullIfEmpty(errText), id)
	return err
}

// LatestRuns returns the most recent audit rows for a region, newest first.
func (d *DB) LatestRuns(ctx context.Context, region, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, region, status, started_at, finished_at, fetched_count, new_count,
  notified_count, error
FROM crawler_runs WHERE region = ? ORDER BY started_at DESC, id DESC LIMIT ?`,
		region, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
			errText  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Region, &r.Status, &r.StartedAt,
			&finished, &r.FetchedCount, &r.NewCount, &r.NotifiedCount,
			&errText); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
