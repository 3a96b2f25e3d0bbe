package relstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sembank/memoryd/internal/ids"
)

// newTestStore spins up a disposable Postgres container, applies the
// migrations, and returns a ready Store.
func newTestStore(t *testing.T) *Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("memoryd_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))

	return New(pool)
}

func newRevision(uid string) ArtifactRevision {
	content := "hello world " + uid
	return ArtifactRevision{
		ArtifactUID:  uid,
		RevisionID:   ids.RevisionID(content),
		ArtifactID:   ids.ArtifactID(content),
		ArtifactType: "note",
		ContentHash:  ids.RevisionID(content),
		TokenCount:   3,
		IsLatest:     true,
		IngestedAt:   time.Now().UTC(),
	}
}

func TestInsertRevisionAndEnqueueJob_DemotesPriorLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uid := ids.ArtifactUID("test", "doc-1")
	rev1 := newRevision(uid)
	jobID1 := ids.NewUUID()

	got, err := s.InsertRevisionAndEnqueueJob(ctx, rev1, jobID1, false)
	require.NoError(t, err)
	require.Equal(t, jobID1, got)

	rev2 := rev1
	rev2.RevisionID = ids.RevisionID("hello world v2")
	rev2.ContentHash = rev2.RevisionID
	jobID2 := ids.NewUUID()

	got2, err := s.InsertRevisionAndEnqueueJob(ctx, rev2, jobID2, false)
	require.NoError(t, err)
	require.Equal(t, jobID2, got2)

	latest, err := s.GetLatestRevision(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, rev2.RevisionID, latest.RevisionID)

	prior, err := s.GetRevision(ctx, uid, rev1.RevisionID)
	require.NoError(t, err)
	require.NotNil(t, prior)
	require.False(t, prior.IsLatest)
}

func TestInsertRevisionAndEnqueueJob_EnqueuesOnePendingJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uid := ids.ArtifactUID("test", "doc-2")
	rev := newRevision(uid)
	jobID := ids.NewUUID()

	got, err := s.InsertRevisionAndEnqueueJob(ctx, rev, jobID, false)
	require.NoError(t, err)
	require.Equal(t, jobID, got)

	counts, err := s.CountJobsByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[JobPending])
}

func TestClaimNextPending_SkipsLockedRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uid := ids.ArtifactUID("test", "doc-3")
	rev := newRevision(uid)
	jobID := ids.NewUUID()
	_, err := s.InsertRevisionAndEnqueueJob(ctx, rev, jobID, false)
	require.NoError(t, err)

	job, err := s.ClaimNextPending(ctx, "worker-a")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, JobProcessing, job.Status)

	none, err := s.ClaimNextPending(ctx, "worker-b")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestMarkRetry_FailsAfterMaxAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uid := ids.ArtifactUID("test", "doc-4")
	rev := newRevision(uid)
	jobID := ids.NewUUID()
	_, err := s.InsertRevisionAndEnqueueJob(ctx, rev, jobID, false)
	require.NoError(t, err)

	_, err = s.pool.Exec(ctx, `UPDATE event_jobs SET max_attempts = 1 WHERE job_id = $1`, jobID)
	require.NoError(t, err)

	// Claiming is what counts the attempt; MarkRetry only compares it.
	_, err = s.ClaimNextPending(ctx, "worker-a")
	require.NoError(t, err)

	terminal, err := s.MarkRetry(ctx, jobID, "TRANSIENT_FAILURE", "boom", time.Millisecond)
	require.NoError(t, err)
	require.True(t, terminal)

	counts, err := s.CountJobsByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[JobFailed])
}

func TestReplaceEventsForRevision_ReplacesPriorSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uid := ids.ArtifactUID("test", "doc-5")
	rev := newRevision(uid)
	_, err := s.InsertRevisionAndEnqueueJob(ctx, rev, ids.NewUUID(), true)
	require.NoError(t, err)

	runID := ids.NewUUID()
	first := []Event{{
		EventID:         ids.NewUUID(),
		Category:        "Decision",
		Narrative:       "first pass",
		SubjectType:     "project",
		SubjectRef:      "proj-1",
		Confidence:      0.9,
		ExtractionRunID: runID,
		CreatedAt:       time.Now().UTC(),
	}}
	require.NoError(t, s.ReplaceEventsForRevision(ctx, uid, rev.RevisionID, first))

	got, err := s.GetEventsForRevision(ctx, uid, rev.RevisionID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	second := []Event{{
		EventID:         ids.NewUUID(),
		Category:        "Commitment",
		Narrative:       "second pass",
		SubjectType:     "project",
		SubjectRef:      "proj-1",
		Confidence:      0.8,
		ExtractionRunID: ids.NewUUID(),
		CreatedAt:       time.Now().UTC(),
	}}
	require.NoError(t, s.ReplaceEventsForRevision(ctx, uid, rev.RevisionID, second))

	got, err = s.GetEventsForRevision(ctx, uid, rev.RevisionID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "second pass", got[0].Narrative)
}

func TestEntityResolution_ExactNameThenAlias(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := Entity{
		EntityID:       ids.NewUUID(),
		EntityType:     "person",
		CanonicalName:  "Jordan Lee",
		NormalizedName: "jordan lee",
		FirstUID:       "uid_1",
		FirstRev:       "rev_1",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.InsertEntity(ctx, e))
	require.NoError(t, s.AddAlias(ctx, e.EntityID, "J. Lee", "j. lee"))

	byName, err := s.FindByNormalizedName(ctx, "person", "jordan lee")
	require.NoError(t, err)
	require.NotNil(t, byName)
	require.Equal(t, e.EntityID, byName.EntityID)

	byAlias, err := s.FindByAlias(ctx, "person", "j. lee")
	require.NoError(t, err)
	require.NotNil(t, byAlias)
	require.Equal(t, e.EntityID, byAlias.EntityID)
}

func TestDeleteArtifact_RemovesRevisionsAndEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uid := ids.ArtifactUID("test", "doc-6")
	rev := newRevision(uid)
	_, err := s.InsertRevisionAndEnqueueJob(ctx, rev, ids.NewUUID(), true)
	require.NoError(t, err)

	events := []Event{{
		EventID:         ids.NewUUID(),
		Category:        "Change",
		Narrative:       "to be deleted",
		SubjectType:     "object",
		SubjectRef:      "thing",
		Confidence:      0.5,
		ExtractionRunID: ids.NewUUID(),
		CreatedAt:       time.Now().UTC(),
	}}
	require.NoError(t, s.ReplaceEventsForRevision(ctx, uid, rev.RevisionID, events))

	revisions, err := s.DeleteArtifact(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, []string{rev.RevisionID}, revisions)

	gone, err := s.GetLatestRevision(ctx, uid)
	require.NoError(t, err)
	require.Nil(t, gone)
}
