package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `id, status, schedule, config, counts, started_at, finished_at, updated_at, last_error, last_path`

// JobStore persists scan jobs in the scan_jobs table.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a running job.
func (s *JobStore) Create(ctx context.Context, job *Job) error {
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal scan config: %w", err)
	}
	counts, err := json.Marshal(job.Counts)
	if err != nil {
		return fmt.Errorf("marshal scan counts: %w", err)
	}
	started := job.StartedAt.UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
INSERT INTO scan_jobs(id, status, schedule, config, counts, started_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, job.ID, job.Status, nullIfEmpty(job.Schedule), string(cfg), string(counts), started, started)
	if err != nil {
		return fmt.Errorf("insert scan job: %w", err)
	}
	return nil
}

// UpdateProgress records counters and the last path of a running job.
func (s *JobStore) UpdateProgress(ctx context.Context, id string, counts Counts, lastPath, lastError string) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal scan counts: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
UPDATE scan_jobs
SET counts = ?, last_path = COALESCE(?, last_path), last_error = COALESCE(?, last_error), updated_at = ?
WHERE id = ? AND status = ?;
`, string(raw), nullIfEmpty(lastPath), nullIfEmpty(lastError), now, id, StatusRunning)
	if err != nil {
		return fmt.Errorf("update scan progress: %w", err)
	}
	return nil
}

// Finish moves a running job to a terminal status. A job that already left
// running is not touched.
func (s *JobStore) Finish(ctx context.Context, id string, status Status, counts Counts, lastPath, lastError string, finishedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	raw, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal scan counts: %w", err)
	}
	fin := finishedAt.UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
UPDATE scan_jobs
SET status = ?, counts = ?, finished_at = ?, updated_at = ?,
    last_path = COALESCE(?, last_path), last_error = COALESCE(?, last_error)
WHERE id = ? AND status = ?;
`, status, string(raw), fin, fin, nullIfEmpty(lastPath), nullIfEmpty(lastError), id, StatusRunning)
	if err != nil {
		return fmt.Errorf("finish scan job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish scan job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish scan job %s: not running", id)
	}
	return nil
}

// Get loads one job. Live is left false; the Manager fills it in.
func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM scan_jobs WHERE id = ?;", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanNotFound
	}
	return job, err
}

// List returns up to limit jobs, newest first.
func (s *JobStore) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM scan_jobs ORDER BY started_at DESC, rowid DESC LIMIT ?;", limit)
	if err != nil {
		return nil, fmt.Errorf("list scan jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scan jobs: %w", err)
	}
	return out, nil
}

// RecoverOrphans marks jobs left running by a previous process as stopped.
func (s *JobStore) RecoverOrphans(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE scan_jobs
SET status = ?, finished_at = ?, updated_at = ?, last_error = COALESCE(last_error, 'interrupted by restart')
WHERE status = ?;
`, StatusStopped, now, now, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("recover orphaned scans: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j         Job
		statusS   string
		schedule  sql.NullString
		cfgRaw    string
		countsRaw string
		startedS  string
		finishedS sql.NullString
		updatedS  string
		lastError sql.NullString
		lastPath  sql.NullString
	)
	if err := row.Scan(&j.ID, &statusS, &schedule, &cfgRaw, &countsRaw, &startedS, &finishedS, &updatedS, &lastError, &lastPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job row: %w", err)
	}

	j.Status = Status(statusS)
	j.Schedule = schedule.String
	j.LastError = lastError.String
	j.LastPath = lastPath.String
	if err := json.Unmarshal([]byte(cfgRaw), &j.Config); err != nil {
		return nil, fmt.Errorf("decode scan config: %w", err)
	}
	j.Config.Schedule = j.Schedule
	if err := json.Unmarshal([]byte(countsRaw), &j.Counts); err != nil {
		return nil, fmt.Errorf("decode scan counts: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
		j.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedS); err == nil {
		j.UpdatedAt = t
	}
	if finishedS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedS.String); err == nil {
			j.FinishedAt = &t
		}
	}
	return &j, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
