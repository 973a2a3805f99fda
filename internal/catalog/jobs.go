package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmenanno/drive-catalog/internal/constants"
)

var (
	// ErrJobNotFound is returned when a job id does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotRunning is returned when progress is reported for a closed job
	ErrJobNotRunning = errors.New("job is not running")
)

// Job is one scan execution against one drive
type Job struct {
	ID          int64      `db:"id" json:"id"`
	DriveLabel  string     `db:"drive_label" json:"drive_label"`
	RunID       string     `db:"run_id" json:"run_id"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	HeartbeatAt *time.Time `db:"heartbeat_at" json:"heartbeat_at,omitempty"`
	Status      string     `db:"status" json:"status"`
	TotalFiles  int64      `db:"total_files" json:"total_files"`
	DoneFiles   int64      `db:"done_files" json:"done_files"`
	TotalAV     int64      `db:"total_av" json:"total_av"`
	TotalAll    int64      `db:"total_all" json:"total_all"`
	DoneAV      int64      `db:"done_av" json:"done_av"`
	DoneAll     int64      `db:"done_all" json:"done_all"`
	DurationSec *float64   `db:"duration_sec" json:"duration_sec,omitempty"`
	Message     string     `db:"message" json:"message"`
}

// Counts are the job counters. total_files/done_files mirror the A/V pair.
type Counts struct {
	DoneAV   int64
	TotalAV  int64
	DoneAll  int64
	TotalAll int64
}

const jobColumns = `id, drive_label, run_id, started_at, finished_at, heartbeat_at, status,
	total_files, done_files, total_av, total_all, done_av, done_all, duration_sec, message`

// CreateJob inserts a Running job and returns its id
func (db *DB) CreateJob(ctx context.Context, driveLabel, runID string) (int64, error) {
	now := time.Now().UTC()

	var id int64
	err := db.conn.QueryRowxContext(ctx, `
		INSERT INTO jobs (drive_label, run_id, started_at, heartbeat_at, status)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, driveLabel, runID, now, now, constants.JobRunning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create job for %s: %w", driveLabel, err)
	}

	return id, nil
}

// UpdateJobProgress records intermediate counters and refreshes the heartbeat
func (db *DB) UpdateJobProgress(ctx context.Context, jobID int64, c Counts, message string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE jobs SET
			done_av = ?, total_av = ?, done_all = ?, total_all = ?,
			done_files = ?, total_files = ?,
			message = ?, heartbeat_at = ?
		WHERE id = ? AND status = ?
	`, c.DoneAV, c.TotalAV, c.DoneAll, c.TotalAll,
		c.DoneAV, c.TotalAV,
		message, time.Now().UTC(),
		jobID, constants.JobRunning)
	if err != nil {
		return fmt.Errorf("failed to update job %d progress: %w", jobID, err)
	}
	return requireAffected(res, ErrJobNotRunning, jobID)
}

// Heartbeat marks a running job as alive
func (db *DB) Heartbeat(ctx context.Context, jobID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE jobs SET heartbeat_at = ? WHERE id = ? AND status = ?`,
		time.Now().UTC(), jobID, constants.JobRunning)
	if err != nil {
		return fmt.Errorf("failed to heartbeat job %d: %w", jobID, err)
	}
	return requireAffected(res, ErrJobNotRunning, jobID)
}

// CloseJob writes the terminal status, duration and final counts of a job
func (db *DB) CloseJob(ctx context.Context, jobID int64, status string, duration time.Duration, c Counts, message string) error {
	switch status {
	case constants.JobDone, constants.JobCanceled, constants.JobError:
	default:
		return fmt.Errorf("invalid terminal job status %q", status)
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE jobs SET
			status = ?, finished_at = ?, duration_sec = ?,
			done_av = ?, total_av = ?, done_all = ?, total_all = ?,
			done_files = ?, total_files = ?,
			message = ?
		WHERE id = ?
	`, status, time.Now().UTC(), duration.Seconds(),
		c.DoneAV, c.TotalAV, c.DoneAll, c.TotalAll,
		c.DoneAV, c.TotalAV,
		message, jobID)
	if err != nil {
		return fmt.Errorf("failed to close job %d: %w", jobID, err)
	}
	return requireAffected(res, ErrJobNotFound, jobID)
}

// GetJob returns a job by id
func (db *DB) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	var j Job
	err := db.conn.GetContext(ctx, &j, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", jobID, err)
	}
	return &j, nil
}

// ListJobs returns the newest jobs first, optionally filtered by drive label
func (db *DB) ListJobs(ctx context.Context, driveLabel string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = constants.DefaultJobsListLimit
	}

	var jobs []*Job
	var err error
	if driveLabel == "" {
		err = db.conn.SelectContext(ctx, &jobs,
			`SELECT `+jobColumns+` FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	} else {
		err = db.conn.SelectContext(ctx, &jobs,
			`SELECT `+jobColumns+` FROM jobs WHERE drive_label = ? ORDER BY id DESC LIMIT ?`, driveLabel, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// RunningJobForLabel returns the running job for a drive, or nil if there is none
func (db *DB) RunningJobForLabel(ctx context.Context, driveLabel string) (*Job, error) {
	var j Job
	err := db.conn.GetContext(ctx, &j,
		`SELECT `+jobColumns+` FROM jobs WHERE drive_label = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		driveLabel, constants.JobRunning)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check running job for %s: %w", driveLabel, err)
	}
	return &j, nil
}

// JobStatusCounts returns the number of jobs per status
func (db *DB) JobStatusCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int64  `db:"n"`
	}
	if err := db.conn.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM jobs GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// RecoverStaleJobs closes Running jobs whose heartbeat is older than staleAfter.
// A process that died mid-scan leaves such rows behind.
func (db *DB) RecoverStaleJobs(ctx context.Context, staleAfter time.Duration, now time.Time) (int, error) {
	var running []*Job
	if err := db.conn.SelectContext(ctx, &running,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ?`, constants.JobRunning); err != nil {
		return 0, fmt.Errorf("failed to list running jobs: %w", err)
	}

	recovered := 0
	for _, j := range running {
		last := j.StartedAt
		if j.HeartbeatAt != nil {
			last = *j.HeartbeatAt
		}
		if now.Sub(last) <= staleAfter {
			continue
		}

		counts := Counts{DoneAV: j.DoneAV, TotalAV: j.TotalAV, DoneAll: j.DoneAll, TotalAll: j.TotalAll}
		msg := "interrupted: process exited without closing the job"
		if err := db.CloseJob(ctx, j.ID, constants.JobError, last.Sub(j.StartedAt), counts, msg); err != nil {
			return recovered, err
		}
		recovered++
	}

	if recovered > 0 {
		db.logger.Warn("closed stale running jobs", "count", recovered)
	}
	return recovered, nil
}
