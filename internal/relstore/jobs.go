package relstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sembank/memoryd/internal/apperr"
)

// ClaimNextPending claims one PENDING job whose next_run_at has elapsed,
// using SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never
// block on or double-claim the same row (spec.md §5.2).
func (s *Store) ClaimNextPending(ctx context.Context, workerIdentity string) (*Job, error) {
	var job *Job
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT job_id, artifact_uid, revision_id, job_type, status, attempts, max_attempts,
			       next_run_at, locked_at, locked_by, last_error_code, last_error_message,
			       created_at, updated_at
			FROM event_jobs
			WHERE status = 'PENDING' AND next_run_at <= now()
			ORDER BY next_run_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1`)

		j, err := scanJob(row)
		if err != nil {
			return err
		}
		if j == nil {
			return nil
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE event_jobs
			SET status = 'PROCESSING', attempts = attempts + 1, locked_at = $1, locked_by = $2, updated_at = $1
			WHERE job_id = $3`, now, workerIdentity, j.JobID); err != nil {
			return fmt.Errorf("relstore: lock job: %w", err)
		}
		j.Status = JobProcessing
		j.Attempts++
		j.LockedAt = &now
		j.LockedBy = workerIdentity
		job = j
		return nil
	})
	return job, err
}

// GetJobForRevision returns the extraction job for one (artifact_uid,
// revision_id) pair, used by the status operation's per-artifact detail
// (spec.md §4.9).
func (s *Store) GetJobForRevision(ctx context.Context, artifactUID, revisionID string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, artifact_uid, revision_id, job_type, status, attempts, max_attempts,
		       next_run_at, locked_at, locked_by, last_error_code, last_error_message,
		       created_at, updated_at
		FROM event_jobs
		WHERE artifact_uid = $1 AND revision_id = $2 AND job_type = $3`,
		artifactUID, revisionID, JobTypeExtractEvents)
	return scanJob(row)
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.JobID, &j.ArtifactUID, &j.RevisionID, &j.JobType, &j.Status, &j.Attempts,
		&j.MaxAttempts, &j.NextRunAt, &j.LockedAt, &j.LockedBy, &j.LastErrorCode, &j.LastErrorMessage,
		&j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Transient("relstore: scan event_jobs", err)
	}
	return &j, nil
}

// MarkDone transitions a job to DONE.
func (s *Store) MarkDone(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE event_jobs SET status = 'DONE', updated_at = now(), locked_at = NULL, locked_by = ''
		WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("relstore: mark job done: %w", err)
	}
	return nil
}

// MarkRetry records a transient failure and reschedules the job with
// exponential backoff, unless attempts has reached max_attempts, in which
// case it is marked FAILED instead (spec.md §4.5 / §7 MAX_ATTEMPTS_EXCEEDED).
// attempts itself is not touched here: ClaimNextPending already incremented
// it, in the same transaction as the PROCESSING transition, per spec.md
// §4.2. The returned bool reports whether the terminal transition
// happened, so callers (the worker's completion publisher) can tell a
// retry from a final failure.
func (s *Store) MarkRetry(ctx context.Context, jobID, errCode, errMsg string, backoff time.Duration) (terminal bool, err error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE event_jobs
		SET status = CASE WHEN attempts >= max_attempts THEN 'FAILED' ELSE 'PENDING' END,
		    next_run_at = now() + $2::interval,
		    last_error_code = $3,
		    last_error_message = $4,
		    locked_at = NULL,
		    locked_by = '',
		    updated_at = now()
		WHERE job_id = $1
		RETURNING status = 'FAILED'`, jobID, backoff, errCode, errMsg)
	if err := row.Scan(&terminal); err != nil {
		if err == pgx.ErrNoRows {
			return false, apperr.NotFound(jobID)
		}
		return false, fmt.Errorf("relstore: mark job retry: %w", err)
	}
	return terminal, nil
}

// MarkFailed marks a job permanently FAILED regardless of attempt count,
// used for PERMANENT_FAILURE classified errors (spec.md §7).
func (s *Store) MarkFailed(ctx context.Context, jobID, errCode, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE event_jobs
		SET status = 'FAILED', last_error_code = $2, last_error_message = $3,
		    locked_at = NULL, locked_by = '', updated_at = now()
		WHERE job_id = $1`, jobID, errCode, errMsg)
	if err != nil {
		return fmt.Errorf("relstore: mark job failed: %w", err)
	}
	return nil
}

// ForceReextract resets a job (found by artifact_uid/revision_id) back to
// PENDING with attempts=0, for the operator-triggered re-extraction path.
func (s *Store) ForceReextract(ctx context.Context, artifactUID, revisionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE event_jobs
		SET status = 'PENDING', attempts = 0, next_run_at = now(),
		    locked_at = NULL, locked_by = '', last_error_code = '', last_error_message = '',
		    updated_at = now()
		WHERE artifact_uid = $1 AND revision_id = $2 AND job_type = $3`,
		artifactUID, revisionID, JobTypeExtractEvents)
	if err != nil {
		return fmt.Errorf("relstore: force reextract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("%s/%s", artifactUID, revisionID))
	}
	return nil
}

// ReapStaleLocks reclaims jobs stuck PROCESSING past staleThreshold,
// returning them to PENDING so another worker can retry them. Grounded in
// the stale-lock sweep named in SPEC_FULL.md's supplemented features.
func (s *Store) ReapStaleLocks(ctx context.Context, staleThreshold time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE event_jobs
		SET status = 'PENDING', locked_at = NULL, locked_by = '', updated_at = now()
		WHERE status = 'PROCESSING' AND locked_at < now() - $1::interval`, staleThreshold)
	if err != nil {
		return 0, fmt.Errorf("relstore: reap stale locks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountJobsByStatus returns the number of jobs per status, for the status
// operation (spec.md §4.9).
func (s *Store) CountJobsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM event_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("relstore: count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{JobPending: 0, JobProcessing: 0, JobDone: 0, JobFailed: 0}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("relstore: scan job count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
