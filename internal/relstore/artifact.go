package relstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sembank/memoryd/internal/apperr"
)

// GetRevision looks up an exact (artifact_uid, revision_id) pair, used by
// the ingestion coordinator's duplicate check (spec.md §4.1 step 3).
func (s *Store) GetRevision(ctx context.Context, artifactUID, revisionID string) (*ArtifactRevision, error) {
	return getRevision(ctx, s.pool, artifactUID, revisionID)
}

func getRevision(ctx context.Context, q queryer, artifactUID, revisionID string) (*ArtifactRevision, error) {
	row := q.QueryRow(ctx, `
		SELECT artifact_uid, revision_id, artifact_id, artifact_type, source_system, source_id,
		       source_ts, content_hash, token_count, is_chunked, chunk_count,
		       sensitivity, visibility_scope, retention_policy, is_latest, ingested_at
		FROM artifact_revision WHERE artifact_uid = $1 AND revision_id = $2`,
		artifactUID, revisionID)
	return scanRevision(row)
}

// GetLatestRevision returns the row with is_latest=true for artifactUID.
func (s *Store) GetLatestRevision(ctx context.Context, artifactUID string) (*ArtifactRevision, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT artifact_uid, revision_id, artifact_id, artifact_type, source_system, source_id,
		       source_ts, content_hash, token_count, is_chunked, chunk_count,
		       sensitivity, visibility_scope, retention_policy, is_latest, ingested_at
		FROM artifact_revision WHERE artifact_uid = $1 AND is_latest = TRUE`,
		artifactUID)
	return scanRevision(row)
}

// GetRevisionByArtifactID looks up a revision by its vector-store
// cross-reference artifact_id (the "art_..." wire identifier), returning
// the latest matching row.
func (s *Store) GetRevisionByArtifactID(ctx context.Context, artifactID string) (*ArtifactRevision, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT artifact_uid, revision_id, artifact_id, artifact_type, source_system, source_id,
		       source_ts, content_hash, token_count, is_chunked, chunk_count,
		       sensitivity, visibility_scope, retention_policy, is_latest, ingested_at
		FROM artifact_revision WHERE artifact_id = $1 ORDER BY is_latest DESC, ingested_at DESC LIMIT 1`,
		artifactID)
	return scanRevision(row)
}

// ListRevisionsBySourceID returns every latest-revision artifact whose
// source_id matches, used by recall's conversation_id path (spec.md §4.6)
// to reassemble a conversation's turns in ingestion order.
func (s *Store) ListRevisionsBySourceID(ctx context.Context, sourceID string) ([]ArtifactRevision, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT artifact_uid, revision_id, artifact_id, artifact_type, source_system, source_id,
		       source_ts, content_hash, token_count, is_chunked, chunk_count,
		       sensitivity, visibility_scope, retention_policy, is_latest, ingested_at
		FROM artifact_revision WHERE source_id = $1 AND is_latest = TRUE ORDER BY ingested_at ASC`,
		sourceID)
	if err != nil {
		return nil, apperr.Transient("relstore: list revisions by source_id", err)
	}
	defer rows.Close()

	var out []ArtifactRevision
	for rows.Next() {
		var r ArtifactRevision
		if err := rows.Scan(&r.ArtifactUID, &r.RevisionID, &r.ArtifactID, &r.ArtifactType, &r.SourceSystem,
			&r.SourceID, &r.SourceTS, &r.ContentHash, &r.TokenCount, &r.IsChunked, &r.ChunkCount,
			&r.Sensitivity, &r.VisibilityScope, &r.RetentionPolicy, &r.IsLatest, &r.IngestedAt); err != nil {
			return nil, apperr.Transient("relstore: scan artifact_revision", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRevision(row pgx.Row) (*ArtifactRevision, error) {
	var r ArtifactRevision
	err := row.Scan(&r.ArtifactUID, &r.RevisionID, &r.ArtifactID, &r.ArtifactType, &r.SourceSystem,
		&r.SourceID, &r.SourceTS, &r.ContentHash, &r.TokenCount, &r.IsChunked, &r.ChunkCount,
		&r.Sensitivity, &r.VisibilityScope, &r.RetentionPolicy, &r.IsLatest, &r.IngestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Transient("relstore: scan artifact_revision", err)
	}
	return &r, nil
}

// InsertRevisionAndEnqueueJob performs ingestion step 7: demotes any
// existing is_latest row for the uid, inserts the new revision, and
// enqueues the extraction job with ON CONFLICT DO NOTHING, all atomically.
// Returns the job id, or "" if a job for this (uid, rev) already existed.
func (s *Store) InsertRevisionAndEnqueueJob(ctx context.Context, rev ArtifactRevision, jobID string, skipJob bool) (enqueuedJobID string, err error) {
	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE artifact_revision SET is_latest = FALSE
			WHERE artifact_uid = $1 AND is_latest = TRUE`, rev.ArtifactUID); err != nil {
			return fmt.Errorf("relstore: demote latest: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO artifact_revision
				(artifact_uid, revision_id, artifact_id, artifact_type, source_system, source_id,
				 source_ts, content_hash, token_count, is_chunked, chunk_count,
				 sensitivity, visibility_scope, retention_policy, is_latest, ingested_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,TRUE,$15)`,
			rev.ArtifactUID, rev.RevisionID, rev.ArtifactID, rev.ArtifactType, rev.SourceSystem, rev.SourceID,
			rev.SourceTS, rev.ContentHash, rev.TokenCount, rev.IsChunked, rev.ChunkCount,
			rev.Sensitivity, rev.VisibilityScope, rev.RetentionPolicy, rev.IngestedAt); err != nil {
			return fmt.Errorf("relstore: insert artifact_revision: %w", err)
		}

		if skipJob {
			return nil
		}

		now := time.Now().UTC()
		tag, err := tx.Exec(ctx, `
			INSERT INTO event_jobs
				(job_id, artifact_uid, revision_id, job_type, status, attempts, max_attempts, next_run_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,0,$6,$7,$7,$7)
			ON CONFLICT (artifact_uid, revision_id, job_type) DO NOTHING`,
			jobID, rev.ArtifactUID, rev.RevisionID, JobTypeExtractEvents, JobPending, 5, now)
		if err != nil {
			return fmt.Errorf("relstore: enqueue job: %w", err)
		}
		if tag.RowsAffected() > 0 {
			enqueuedJobID = jobID
		}
		return nil
	})
	return enqueuedJobID, err
}

// DeleteArtifact hard-deletes an artifact_uid's rows across every revision
// (cascading to event_jobs' dependents is not automatic via FK since jobs
// aren't FK-linked to artifact_revision; the job rows are deleted
// explicitly). Returns the set of revision ids that existed, so the caller
// can also clean up the vector store.
func (s *Store) DeleteArtifact(ctx context.Context, artifactUID string) ([]string, error) {
	var revisions []string
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT revision_id FROM artifact_revision WHERE artifact_uid = $1`, artifactUID)
		if err != nil {
			return fmt.Errorf("relstore: list revisions: %w", err)
		}
		for rows.Next() {
			var rev string
			if err := rows.Scan(&rev); err != nil {
				rows.Close()
				return fmt.Errorf("relstore: scan revision: %w", err)
			}
			revisions = append(revisions, rev)
		}
		rows.Close()

		if _, err := tx.Exec(ctx, `
			DELETE FROM semantic_event WHERE artifact_uid = $1`, artifactUID); err != nil {
			return fmt.Errorf("relstore: delete events: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM event_jobs WHERE artifact_uid = $1`, artifactUID); err != nil {
			return fmt.Errorf("relstore: delete jobs: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM artifact_revision WHERE artifact_uid = $1`, artifactUID); err != nil {
			return fmt.Errorf("relstore: delete artifact_revision: %w", err)
		}
		return nil
	})
	return revisions, err
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ queryer = (*pgxpool.Pool)(nil)
var _ queryer = (pgx.Tx)(nil)
