package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnqueueJob inserts a discovery job in the pending state. Pages count
// from 1; anything lower is clamped to the first page.
func (s *Store) EnqueueJob(ctx context.Context, mode, query string, page int) (*Job, error) {
	if query == "" {
		return nil, errors.New("job query is required")
	}
	if page <= 0 {
		page = 1
	}
	if mode == "" {
		mode = "search"
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO discovery_jobs (mode, query, page, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		mode,
		query,
		page,
		JobPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a discovery job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM discovery_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNextJob atomically moves the oldest pending job to processing and
// returns it. Returns nil when no pending job exists.
func (s *Store) ClaimNextJob(ctx context.Context) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE discovery_jobs
         SET status = ?, updated_at = ?
         WHERE id = (
             SELECT id FROM discovery_jobs WHERE status = ? ORDER BY created_at LIMIT 1
         )
         RETURNING `+jobColumns,
		JobProcessing,
		timestamp,
		JobPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// FinishJob records a job outcome.
func (s *Store) FinishJob(ctx context.Context, id int64, status JobStatus, message string) error {
	switch status {
	case JobCompleted, JobError:
	default:
		return fmt.Errorf("finish job: status %q is not terminal", status)
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE discovery_jobs SET status = ?, message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// ResetStuckJobs moves processing jobs back to pending (crash recovery).
func (s *Store) ResetStuckJobs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE discovery_jobs SET status = ?, updated_at = ? WHERE status = ?`,
		JobPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		JobProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// JobStats returns a count of discovery jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM discovery_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const jobColumns = "id, mode, query, page, status, message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id         int64
		mode       string
		query      string
		page       int
		statusStr  string
		message    sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &mode, &query, &page, &statusStr, &message, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	job := &Job{
		ID:      id,
		Mode:    mode,
		Query:   query,
		Page:    page,
		Status:  JobStatus(statusStr),
		Message: message.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
