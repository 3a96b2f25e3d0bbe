package relstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sembank/memoryd/internal/apperr"
)

// FindByNormalizedName looks for an exact match on the entity's own
// normalized_name, the first step of entity resolution (spec.md §4.7).
// Aliases are not searched here; FindByAlias covers them.
func (s *Store) FindByNormalizedName(ctx context.Context, entityType, normalizedName string) (*Entity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT entity_id, entity_type, canonical_name, normalized_name, role, organization,
		       email, first_uid, first_rev, needs_review, created_at
		FROM entity WHERE entity_type = $1 AND normalized_name = $2
		LIMIT 1`, entityType, normalizedName)
	return scanEntity(row)
}

// FindByAlias looks up an entity via entity_alias.normalized_alias.
func (s *Store) FindByAlias(ctx context.Context, entityType, normalizedAlias string) (*Entity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT e.entity_id, e.entity_type, e.canonical_name, e.normalized_name, e.role, e.organization,
		       e.email, e.first_uid, e.first_rev, e.needs_review, e.created_at
		FROM entity e
		JOIN entity_alias a ON a.entity_id = e.entity_id
		WHERE e.entity_type = $1 AND a.normalized_alias = $2
		LIMIT 1`, entityType, normalizedAlias)
	return scanEntity(row)
}

// GetEntity loads a single entity by id.
func (s *Store) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT entity_id, entity_type, canonical_name, normalized_name, role, organization,
		       email, first_uid, first_rev, needs_review, created_at
		FROM entity WHERE entity_id = $1`, entityID)
	return scanEntity(row)
}

func scanEntity(row pgx.Row) (*Entity, error) {
	var e Entity
	err := row.Scan(&e.EntityID, &e.EntityType, &e.CanonicalName, &e.NormalizedName, &e.Role,
		&e.Organization, &e.Email, &e.FirstUID, &e.FirstRev, &e.NeedsReview, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Transient("relstore: scan entity", err)
	}
	return &e, nil
}

// InsertEntity creates a new entity row, used either when exact/candidate
// matching finds nothing or the LLM disambiguation step decides the
// mention refers to someone new (spec.md §4.7, create-new-with-review).
func (s *Store) InsertEntity(ctx context.Context, e Entity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity
			(entity_id, entity_type, canonical_name, normalized_name, role, organization,
			 email, first_uid, first_rev, needs_review, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.EntityID, e.EntityType, e.CanonicalName, e.NormalizedName, e.Role, e.Organization,
		e.Email, e.FirstUID, e.FirstRev, e.NeedsReview, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("relstore: insert entity: %w", err)
	}
	return nil
}

// AddAlias records an additional surface form an entity is known by.
func (s *Store) AddAlias(ctx context.Context, entityID, alias, normalizedAlias string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_alias (entity_id, alias, normalized_alias)
		VALUES ($1,$2,$3)
		ON CONFLICT (entity_id, normalized_alias) DO NOTHING`, entityID, alias, normalizedAlias)
	if err != nil {
		return fmt.Errorf("relstore: add alias: %w", err)
	}
	return nil
}

// AddMention records one surface-form occurrence of an entity within a
// specific artifact revision.
func (s *Store) AddMention(ctx context.Context, m Entity, mentionID, artifactUID, revisionID, surfaceForm string, startChar, endChar int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_mention
			(mention_id, entity_id, artifact_uid, revision_id, surface_form, start_char, end_char, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())`,
		mentionID, m.EntityID, artifactUID, revisionID, surfaceForm, startChar, endChar)
	if err != nil {
		return fmt.Errorf("relstore: add mention: %w", err)
	}
	return nil
}

// SetNeedsReview flips the needs_review flag, used when low-confidence
// disambiguation requires a human to confirm the match later.
func (s *Store) SetNeedsReview(ctx context.Context, entityID string, needsReview bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE entity SET needs_review = $2 WHERE entity_id = $1`, entityID, needsReview)
	if err != nil {
		return fmt.Errorf("relstore: set needs_review: %w", err)
	}
	return nil
}

// CandidateEntitiesByType returns every entity of a given type, used by the
// embedding-nearest-candidate step of resolution when an exact name/alias
// match fails (the caller narrows this further using vector similarity
// over the entity context-embedding collection before invoking the LLM).
func (s *Store) CandidateEntitiesByType(ctx context.Context, entityType string, limit int) ([]Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id, entity_type, canonical_name, normalized_name, role, organization,
		       email, first_uid, first_rev, needs_review, created_at
		FROM entity WHERE entity_type = $1
		ORDER BY created_at DESC LIMIT $2`, entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("relstore: candidate entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.EntityID, &e.EntityType, &e.CanonicalName, &e.NormalizedName, &e.Role,
			&e.Organization, &e.Email, &e.FirstUID, &e.FirstRev, &e.NeedsReview, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("relstore: scan candidate entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
