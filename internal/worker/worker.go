// Package worker implements the extraction worker loop (spec.md §4.2,
// §4.5): claim a pending job, run two-phase LLM extraction over the
// artifact's stored text, resolve entities, and commit the canonical
// event set in a single replace-on-success transaction.
package worker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/graph"
	"github.com/sembank/memoryd/internal/ids"
	"github.com/sembank/memoryd/internal/llmclient"
	"github.com/sembank/memoryd/internal/relstore"
	"github.com/sembank/memoryd/internal/vectorstore"
)

const maxBackoffSeconds = 600

// Worker polls the job queue and runs extraction for one claimed job at a
// time. Multiple Workers may run concurrently against the same relational
// store; SKIP LOCKED claiming keeps them from double-processing a job.
type Worker struct {
	rel      *relstore.Store
	vec      vectorstore.Store
	extract  *llmclient.Extractor
	resolver *graph.Resolver
	cfg      config.WorkerConfig
	publish  CompletionPublisher

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Worker. publish may be nil, in which case job completions
// are not announced anywhere beyond the relational job row itself.
func New(rel *relstore.Store, vec vectorstore.Store, extract *llmclient.Extractor, resolver *graph.Resolver, cfg config.WorkerConfig, publish CompletionPublisher) *Worker {
	return &Worker{
		rel:      rel,
		vec:      vec,
		extract:  extract,
		resolver: resolver,
		cfg:      cfg,
		publish:  publish,
		stopCh:   make(chan struct{}),
	}
}

// Run starts the polling loop in the current goroutine, blocking until ctx
// is cancelled or Stop is called.
func (w *Worker) Run(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()
	log.Info().Str("worker_id", w.cfg.Identity).Msg("extraction worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		processed, err := w.pollOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("extraction worker: poll failed")
		}
		if !processed {
			w.sleep(w.cfg.PollInterval)
		}
	}
}

// Stop signals Run to return and waits for it to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) sleep(d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollOnce claims and processes at most one job, reporting whether a job
// was found so the caller can skip the poll-interval sleep and retry
// immediately (spec.md §4.2/§4.5 step 1).
func (w *Worker) pollOnce(ctx context.Context) (bool, error) {
	job, err := w.rel.ClaimNextPending(ctx, w.cfg.Identity)
	if err != nil {
		return false, fmt.Errorf("worker: claim: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.process(ctx, job); err != nil {
		w.handleFailure(ctx, job, err)
	} else {
		if err := w.rel.MarkDone(ctx, job.JobID); err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("worker: mark done failed")
		} else if w.publish != nil {
			w.publish.PublishDone(ctx, job.ArtifactUID, job.RevisionID, job.JobID)
		}
	}
	return true, nil
}

// process runs the full extraction state machine for one claimed job
// (spec.md §4.5 steps 2-7).
func (w *Worker) process(ctx context.Context, job *relstore.Job) error {
	rev, err := w.rel.GetRevision(ctx, job.ArtifactUID, job.RevisionID)
	if err != nil {
		return fmt.Errorf("worker: load revision: %w", err)
	}
	if rev == nil {
		return apperr.Permanent("worker: artifact_revision missing", fmt.Errorf("%s/%s", job.ArtifactUID, job.RevisionID))
	}

	pieces, err := w.loadText(ctx, rev)
	if err != nil {
		return err
	}
	if len(pieces) == 0 {
		return apperr.Permanent("worker: no text found in vector store for revision", fmt.Errorf("%s/%s", job.ArtifactUID, job.RevisionID))
	}

	chunkPayloads := make(map[string]llmclient.ChunkExtraction, len(pieces))
	for _, p := range pieces {
		result, err := w.extract.ExtractChunk(ctx, p.text)
		if err != nil {
			return err
		}
		chunkPayloads[p.chunkID] = *result
	}

	canon, err := w.extract.Canonicalize(ctx, chunkPayloads)
	if err != nil {
		return err
	}

	runID := ids.NewUUID()
	events, err := w.buildEvents(ctx, job.ArtifactUID, job.RevisionID, runID, canon)
	if err != nil {
		return err
	}

	if err := w.rel.ReplaceEventsForRevision(ctx, job.ArtifactUID, job.RevisionID, events); err != nil {
		return fmt.Errorf("worker: replace events: %w", err)
	}
	return nil
}

type textPiece struct {
	chunkID string // "" for the degenerate single-content case
	text    string
}

// loadText reads the artifact's text back out of the vector store: the
// whole-content row when unchunked, or every chunk row sorted by
// chunk_index when chunked (spec.md §4.5 step 3).
func (w *Worker) loadText(ctx context.Context, rev *relstore.ArtifactRevision) ([]textPiece, error) {
	filter := map[string]string{"artifact_uid": rev.ArtifactUID, "revision_id": rev.RevisionID}

	if !rev.IsChunked {
		hits, err := w.vec.GetByFilter(ctx, vectorstore.CollectionContent, filter, 1)
		if err != nil {
			return nil, fmt.Errorf("worker: load content row: %w", err)
		}
		if len(hits) == 0 {
			return nil, nil
		}
		return []textPiece{{chunkID: "", text: hits[0].Text}}, nil
	}

	hits, err := w.vec.GetByFilter(ctx, vectorstore.CollectionChunks, filter, rev.ChunkCount+10)
	if err != nil {
		return nil, fmt.Errorf("worker: load chunk rows: %w", err)
	}
	sort.Slice(hits, func(i, j int) bool {
		return chunkIndexOf(hits[i]) < chunkIndexOf(hits[j])
	})
	pieces := make([]textPiece, len(hits))
	for i, h := range hits {
		pieces[i] = textPiece{chunkID: h.ID, text: h.Text}
	}
	return pieces, nil
}

func chunkIndexOf(h vectorstore.Hit) int {
	n, _ := strconv.Atoi(h.Metadata["chunk_index"])
	return n
}

// buildEvents resolves entities for each actor/subject/entity reference in
// the canonical extraction and assembles relstore.Event rows ready for
// ReplaceEventsForRevision (spec.md §4.5 step 6).
func (w *Worker) buildEvents(ctx context.Context, artifactUID, revisionID, runID string, canon *llmclient.CanonicalExtraction) ([]relstore.Event, error) {
	events := make([]relstore.Event, 0, len(canon.Events))
	for _, ce := range canon.Events {
		eventID := ids.NewUUID()

		var actors []relstore.Actor
		for _, name := range ce.Actors {
			entityID, err := w.resolver.Resolve(ctx, graph.Mention{Name: name, Type: "person", ContextText: ce.Narrative}, artifactUID, revisionID)
			if err != nil {
				return nil, fmt.Errorf("worker: resolve actor %q: %w", name, err)
			}
			actors = append(actors, relstore.Actor{EntityID: entityID, Role: "contributor"})
		}

		var subjectEntityID string
		if ce.Subject != "" {
			entityID, err := w.resolver.Resolve(ctx, graph.Mention{Name: ce.Subject, Type: subjectEntityType(ce.Category), ContextText: ce.Narrative}, artifactUID, revisionID)
			if err != nil {
				return nil, fmt.Errorf("worker: resolve subject %q: %w", ce.Subject, err)
			}
			subjectEntityID = entityID
		}

		var evidence []relstore.Evidence
		for _, ed := range ce.Evidence {
			evidence = append(evidence, relstore.Evidence{
				EvidenceID: ids.NewUUID(),
				EventID:    eventID,
				ArtifactUID: artifactUID,
				RevisionID:  revisionID,
				ChunkID:     ed.ChunkID,
				StartChar:   ed.StartChar,
				EndChar:     ed.EndChar,
				Quote:       ed.Quote,
			})
		}

		var eventTime *time.Time
		if ce.EventTime != nil {
			if t, err := time.Parse(time.RFC3339, *ce.EventTime); err == nil {
				eventTime = &t
			}
		}

		events = append(events, relstore.Event{
			EventID:         eventID,
			ArtifactUID:     artifactUID,
			RevisionID:      revisionID,
			Category:        ce.Category,
			EventTime:       eventTime,
			Narrative:       ce.Narrative,
			SubjectType:     subjectEntityType(ce.Category),
			SubjectRef:      ce.Subject,
			SubjectEntityID: subjectEntityID,
			Confidence:      ce.Confidence,
			ExtractionRunID: runID,
			CreatedAt:       time.Now().UTC(),
			Actors:          actors,
			Evidence:        evidence,
		})
	}
	return events, nil
}

// subjectEntityType maps an event category to the subject_type enum value
// most events of that category describe; entity resolution's Mention.Type
// uses the same enum as the entity table (spec.md §3).
func subjectEntityType(category string) string {
	switch category {
	case "Decision", "Stakeholder":
		return "person"
	case "QualityRisk", "Change":
		return "object"
	default:
		return "project"
	}
}

// handleFailure classifies err and transitions the job accordingly
// (spec.md §4.2 retry policy, §4.5 failure behavior).
func (w *Worker) handleFailure(ctx context.Context, job *relstore.Job, err error) {
	code := apperr.CodeOf(err)
	log.Error().Err(err).Str("job_id", job.JobID).Str("code", string(code)).Msg("worker: job failed")

	if apperr.IsPermanent(err) {
		if err := w.rel.MarkFailed(ctx, job.JobID, string(code), err.Error()); err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("worker: mark failed failed")
		} else if w.publish != nil {
			w.publish.PublishFailed(ctx, job.ArtifactUID, job.RevisionID, job.JobID, string(code), err.Error())
		}
		return
	}

	backoff := backoffFor(job.Attempts)
	terminal, markErr := w.rel.MarkRetry(ctx, job.JobID, string(code), err.Error(), backoff)
	if markErr != nil {
		log.Error().Err(markErr).Str("job_id", job.JobID).Msg("worker: mark retry failed")
		return
	}
	if terminal && w.publish != nil {
		w.publish.PublishFailed(ctx, job.ArtifactUID, job.RevisionID, job.JobID, string(code), err.Error())
	}
}

// backoffFor computes min(30*2^(attempts-1), 600) seconds, per spec.md
// §4.2's retry policy. attempts is the post-increment count already
// reflecting this attempt, since relstore.ClaimNextPending increments it
// in the same transaction that claims the job.
func backoffFor(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	seconds := 30 << (attempts - 1)
	if seconds > maxBackoffSeconds || seconds <= 0 {
		seconds = maxBackoffSeconds
	}
	return time.Duration(seconds) * time.Second
}

// ReapLoop runs relstore.ReapStaleLocks once every interval, with
// cfg.StaleLockThreshold as the staleness cutoff, until ctx is cancelled or
// Stop is called, reclaiming jobs abandoned by a crashed worker
// (spec.md §4.2 "Cancellation/timeout" open question, resolved in
// DESIGN.md as a periodic sweep rather than leaving reaping out of scope).
func (w *Worker) ReapLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			n, err := w.rel.ReapStaleLocks(ctx, w.cfg.StaleLockThreshold)
			if err != nil {
				log.Error().Err(err).Msg("worker: reap stale locks failed")
				continue
			}
			if n > 0 {
				log.Warn().Int64("count", n).Msg("worker: reaped stale job locks")
			}
		}
	}
}
