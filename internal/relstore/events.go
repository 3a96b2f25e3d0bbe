package relstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ReplaceEventsForRevision implements the replace-on-success idiom (spec.md
// §4.2 step 6 / §9 design note): on a successful extraction run, every
// event/evidence/actor row previously attached to this (uid, rev) is
// deleted and the new set inserted, atomically, so a retried or re-run
// extraction never leaves duplicate or orphaned events behind.
func (s *Store) ReplaceEventsForRevision(ctx context.Context, artifactUID, revisionID string, events []Event) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM semantic_event WHERE artifact_uid = $1 AND revision_id = $2`,
			artifactUID, revisionID); err != nil {
			return fmt.Errorf("relstore: delete prior events: %w", err)
		}

		for _, ev := range events {
			if _, err := tx.Exec(ctx, `
				INSERT INTO semantic_event
					(event_id, artifact_uid, revision_id, category, event_time, narrative,
					 subject_type, subject_ref, confidence, extraction_run_id, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				ev.EventID, artifactUID, revisionID, ev.Category, ev.EventTime, ev.Narrative,
				ev.SubjectType, ev.SubjectRef, ev.Confidence, ev.ExtractionRunID, ev.CreatedAt); err != nil {
				return fmt.Errorf("relstore: insert event: %w", err)
			}

			for _, actor := range ev.Actors {
				if _, err := tx.Exec(ctx, `
					INSERT INTO event_actor (event_id, entity_id, role) VALUES ($1,$2,$3)`,
					ev.EventID, actor.EntityID, actor.Role); err != nil {
					return fmt.Errorf("relstore: insert event_actor: %w", err)
				}
			}

			if ev.SubjectEntityID != "" {
				if _, err := tx.Exec(ctx, `
					INSERT INTO event_subject (event_id, entity_id) VALUES ($1,$2)`,
					ev.EventID, ev.SubjectEntityID); err != nil {
					return fmt.Errorf("relstore: insert event_subject: %w", err)
				}
			}

			for _, ev2 := range ev.Evidence {
				if _, err := tx.Exec(ctx, `
					INSERT INTO event_evidence
						(evidence_id, event_id, artifact_uid, revision_id, chunk_id, start_char, end_char, quote)
					VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
					ev2.EvidenceID, ev.EventID, artifactUID, revisionID, ev2.ChunkID,
					ev2.StartChar, ev2.EndChar, ev2.Quote); err != nil {
					return fmt.Errorf("relstore: insert event_evidence: %w", err)
				}
			}
		}
		return nil
	})
}

// GetEventsForRevision loads every event attached to a revision along with
// its actors and evidence, for the recall path's detail expansion.
func (s *Store) GetEventsForRevision(ctx context.Context, artifactUID, revisionID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, artifact_uid, revision_id, category, event_time, narrative,
		       subject_type, subject_ref, confidence, extraction_run_id, created_at
		FROM semantic_event WHERE artifact_uid = $1 AND revision_id = $2
		ORDER BY event_time NULLS LAST, created_at`, artifactUID, revisionID)
	if err != nil {
		return nil, fmt.Errorf("relstore: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.EventID, &ev.ArtifactUID, &ev.RevisionID, &ev.Category, &ev.EventTime,
			&ev.Narrative, &ev.SubjectType, &ev.SubjectRef, &ev.Confidence, &ev.ExtractionRunID,
			&ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("relstore: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		if err := s.loadActorsAndEvidence(ctx, &events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// GetEventByID loads a single event by its raw (unprefixed) event_id, along
// with its actors and evidence, for recall's direct "evt_..." id path
// (spec.md §4.6). Returns nil, nil if no such event exists.
func (s *Store) GetEventByID(ctx context.Context, eventID string) (*Event, error) {
	var ev Event
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, artifact_uid, revision_id, category, event_time, narrative,
		       subject_type, subject_ref, confidence, extraction_run_id, created_at
		FROM semantic_event WHERE event_id = $1`, eventID).Scan(
		&ev.EventID, &ev.ArtifactUID, &ev.RevisionID, &ev.Category, &ev.EventTime,
		&ev.Narrative, &ev.SubjectType, &ev.SubjectRef, &ev.Confidence, &ev.ExtractionRunID,
		&ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("relstore: query event: %w", err)
	}
	if err := s.loadActorsAndEvidence(ctx, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) loadActorsAndEvidence(ctx context.Context, ev *Event) error {
	actorRows, err := s.pool.Query(ctx, `
		SELECT entity_id, role FROM event_actor WHERE event_id = $1`, ev.EventID)
	if err != nil {
		return fmt.Errorf("relstore: query event_actor: %w", err)
	}
	for actorRows.Next() {
		var a Actor
		if err := actorRows.Scan(&a.EntityID, &a.Role); err != nil {
			actorRows.Close()
			return fmt.Errorf("relstore: scan event_actor: %w", err)
		}
		ev.Actors = append(ev.Actors, a)
	}
	actorRows.Close()

	if err := s.pool.QueryRow(ctx, `
		SELECT entity_id FROM event_subject WHERE event_id = $1 LIMIT 1`, ev.EventID).Scan(&ev.SubjectEntityID); err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("relstore: query event_subject: %w", err)
	}

	evRows, err := s.pool.Query(ctx, `
		SELECT evidence_id, event_id, artifact_uid, revision_id, chunk_id, start_char, end_char, quote
		FROM event_evidence WHERE event_id = $1`, ev.EventID)
	if err != nil {
		return fmt.Errorf("relstore: query event_evidence: %w", err)
	}
	for evRows.Next() {
		var e Evidence
		if err := evRows.Scan(&e.EvidenceID, &e.EventID, &e.ArtifactUID, &e.RevisionID, &e.ChunkID,
			&e.StartChar, &e.EndChar, &e.Quote); err != nil {
			evRows.Close()
			return fmt.Errorf("relstore: scan event_evidence: %w", err)
		}
		ev.Evidence = append(ev.Evidence, e)
	}
	evRows.Close()
	return nil
}

// RelatedEvent is one event returned by graph expansion, carrying the
// reason it was pulled in (spec.md §4.8's "same_actor:{name}" /
// "same_subject:{name}" label).
type RelatedEvent struct {
	Event
	Reason string
}

// GraphExpand implements the 1-hop relational expansion step of hybrid
// retrieval (spec.md §4.8): given a seed set of event ids, find every
// other event that shares an actor or subject entity with a seed event,
// excluding the seeds themselves, optionally filtered to a set of
// categories, ordered by event_time desc and capped at budget.
func (s *Store) GraphExpand(ctx context.Context, seedEventIDs []string, categories []string, budget int) ([]RelatedEvent, error) {
	if len(seedEventIDs) == 0 {
		return nil, nil
	}
	var categoryFilter any
	if len(categories) > 0 {
		categoryFilter = categories
	}

	rows, err := s.pool.Query(ctx, `
		WITH seed_actor_entities AS (
			SELECT DISTINCT entity_id FROM event_actor WHERE event_id = ANY($1)
		), seed_subject_entities AS (
			SELECT DISTINCT entity_id FROM event_subject WHERE event_id = ANY($1)
		), via_actor AS (
			SELECT DISTINCT ev.event_id, 'same_actor' AS kind, e.canonical_name
			FROM semantic_event ev
			JOIN event_actor a ON a.event_id = ev.event_id
			JOIN entity e ON e.entity_id = a.entity_id
			WHERE a.entity_id IN (SELECT entity_id FROM seed_actor_entities)
			  AND ev.event_id != ALL($1)
		), via_subject AS (
			SELECT DISTINCT ev.event_id, 'same_subject' AS kind, e.canonical_name
			FROM semantic_event ev
			JOIN event_subject s ON s.event_id = ev.event_id
			JOIN entity e ON e.entity_id = s.entity_id
			WHERE s.entity_id IN (SELECT entity_id FROM seed_subject_entities)
			  AND ev.event_id != ALL($1)
		), combined AS (
			SELECT * FROM via_actor
			UNION ALL
			SELECT * FROM via_subject
		), ranked AS (
			SELECT DISTINCT ON (event_id) event_id, kind, canonical_name
			FROM combined
			ORDER BY event_id, kind
		)
		SELECT ev.event_id, ev.artifact_uid, ev.revision_id, ev.category, ev.event_time,
		       ev.narrative, ev.subject_type, ev.subject_ref, ev.confidence, ev.extraction_run_id,
		       ev.created_at, r.kind, r.canonical_name
		FROM ranked r
		JOIN semantic_event ev ON ev.event_id = r.event_id
		WHERE $2::text[] IS NULL OR ev.category = ANY($2::text[])
		ORDER BY ev.event_time DESC NULLS LAST
		LIMIT $3`, seedEventIDs, categoryFilter, budget)
	if err != nil {
		return nil, fmt.Errorf("relstore: graph expand: %w", err)
	}
	defer rows.Close()

	var events []RelatedEvent
	for rows.Next() {
		var ev Event
		var kind, name string
		if err := rows.Scan(&ev.EventID, &ev.ArtifactUID, &ev.RevisionID, &ev.Category, &ev.EventTime,
			&ev.Narrative, &ev.SubjectType, &ev.SubjectRef, &ev.Confidence, &ev.ExtractionRunID,
			&ev.CreatedAt, &kind, &name); err != nil {
			return nil, fmt.Errorf("relstore: scan graph event: %w", err)
		}
		events = append(events, RelatedEvent{Event: ev, Reason: fmt.Sprintf("%s:%s", kind, name)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range events {
		if err := s.loadActorsAndEvidence(ctx, &events[i].Event); err != nil {
			return nil, err
		}
	}
	return events, nil
}
