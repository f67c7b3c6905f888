package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one row in the runs table.
type Run struct {
	ID           string        `json:"id"`
	Mode         string        `json:"mode"`
	Plan         []int         `json:"plan"`
	ExitCode     int           `json:"exit_code"`
	FailedStages []int         `json:"failed_stages,omitempty"`
	DiffOnly     bool          `json:"diff_only"`
	Duration     time.Duration `json:"duration_ns"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Passed reports whether the run exited zero.
func (r Run) Passed() bool { return r.ExitCode == 0 }

// LogRun inserts a run.
func (d *DB) LogRun(ctx context.Context, r Run) error {
	_, err := d.conn.ExecContext(ctx, d.rebind(
		`INSERT INTO runs (id, mode, plan, exit_code, failed_stages, diff_only, duration_ms, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.Mode, joinInts(r.Plan), r.ExitCode, joinInts(r.FailedStages), r.DiffOnly,
		r.Duration.Milliseconds(),
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. limit <= 0 means all.
func (d *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, mode, plan, exit_code, failed_stages, diff_only, duration_ms, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := d.conn.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("get recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var plan, failed, started, finished string
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.Mode, &plan, &r.ExitCode, &failed, &r.DiffOnly, &durationMs, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Plan = splitInts(plan)
		r.FailedStages = splitInts(failed)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	var ids []int
	for _, p := range strings.Split(s, ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
