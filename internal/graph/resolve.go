// Package graph implements entity resolution and 1-hop graph expansion
// for the relational knowledge graph (spec.md §4.7, §4.8).
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/sembank/memoryd/internal/ids"
	"github.com/sembank/memoryd/internal/llmclient"
	"github.com/sembank/memoryd/internal/relstore"
	"github.com/sembank/memoryd/internal/vectorstore"
)

const candidateLimit = 5

// Mention is one entity reference surfaced by extraction, pending
// resolution to a canonical entity_id.
type Mention struct {
	Name       string
	Type       string
	Aliases    []string
	ContextText string // surrounding narrative, embedded for candidate search
}

// Resolver resolves mentions to canonical entities: exact match, then
// embedding-nearest candidates disambiguated by an LLM, then create-new,
// with needs_review set only when an unconfirmed near-miss candidate was
// seen (spec.md §4.7).
type Resolver struct {
	rel   *relstore.Store
	vec   vectorstore.Store
	embed Embedder
	llm   *llmclient.Extractor
}

// Embedder is the minimal surface Resolver needs from internal/embedclient.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

func NewResolver(rel *relstore.Store, vec vectorstore.Store, embed Embedder, llm *llmclient.Extractor) *Resolver {
	return &Resolver{rel: rel, vec: vec, embed: embed, llm: llm}
}

// Resolve returns the entity_id for m, creating a new entity when no
// confident match exists. artifactUID/revisionID attribute the mention for
// the entity_mention row written alongside.
func (r *Resolver) Resolve(ctx context.Context, m Mention, artifactUID, revisionID string) (entityID string, err error) {
	normalized := normalize(m.Name)

	if existing, err := r.rel.FindByNormalizedName(ctx, m.Type, normalized); err != nil {
		return "", err
	} else if existing != nil {
		return r.recordMention(ctx, existing, m, artifactUID, revisionID)
	}
	if existing, err := r.rel.FindByAlias(ctx, m.Type, normalized); err != nil {
		return "", err
	} else if existing != nil {
		return r.recordMention(ctx, existing, m, artifactUID, revisionID)
	}

	candidate, nearMiss, err := r.findCandidateByEmbedding(ctx, m)
	if err != nil {
		return "", err
	}
	if candidate != nil {
		entity, err := r.rel.GetEntity(ctx, candidate.ID)
		if err != nil {
			return "", err
		}
		if entity != nil {
			if err := r.rel.AddAlias(ctx, entity.EntityID, m.Name, normalized); err != nil {
				return "", err
			}
			return r.recordMention(ctx, entity, m, artifactUID, revisionID)
		}
	}

	entity := &relstore.Entity{
		EntityID:       ids.NewUUID(),
		EntityType:     m.Type,
		CanonicalName:  m.Name,
		NormalizedName: normalized,
		FirstUID:       artifactUID,
		FirstRev:       revisionID,
		// A near-miss embedding candidate (0.05-0.15 distance) that the LLM
		// could not confidently confirm flags the new entity for review
		// (spec.md §4.7 step 4), rather than silently merging or forking.
		NeedsReview: nearMiss,
	}
	if err := r.rel.InsertEntity(ctx, *entity); err != nil {
		return "", err
	}
	if err := r.embedEntityContext(ctx, entity.EntityID, m); err != nil {
		return "", err
	}
	return r.recordMention(ctx, entity, m, artifactUID, revisionID)
}

func (r *Resolver) recordMention(ctx context.Context, entity *relstore.Entity, m Mention, artifactUID, revisionID string) (string, error) {
	err := r.rel.AddMention(ctx, *entity, ids.NewUUID(), artifactUID, revisionID, m.Name, 0, len(m.Name))
	return entity.EntityID, err
}

type scoredCandidate struct {
	ID    string
	Score float64
}

// findCandidateByEmbedding embeds the mention's context and searches the
// entity collection for a near neighbor, then asks the LLM to confirm the
// match is the same real-world entity (spec.md §4.7's disambiguation
// step). nearMiss reports whether a 0.85-0.95 similarity candidate existed
// that could not be confirmed, so the caller can flag the new entity
// needs_review instead of silently creating an unrelated one.
func (r *Resolver) findCandidateByEmbedding(ctx context.Context, m Mention) (candidate *scoredCandidate, nearMiss bool, err error) {
	text := m.ContextText
	if text == "" {
		text = m.Name
	}
	vecs, err := r.embed.Embed(ctx, []string{text})
	if err != nil {
		return nil, false, err
	}
	if len(vecs) == 0 {
		return nil, false, nil
	}

	hits, err := r.vec.SimilaritySearch(ctx, vectorstore.CollectionEntity, vecs[0], candidateLimit, map[string]string{"entity_type": m.Type})
	if err != nil {
		return nil, false, err
	}
	// Only candidates at cosine similarity >= 0.85 (distance <= 0.15) are
	// considered at all (spec.md §4.7 step 2).
	if len(hits) == 0 || hits[0].Score < 0.85 {
		return nil, false, nil
	}

	best := hits[0]
	if best.Score >= 0.95 {
		// distance <= 0.05: accept directly without disambiguation.
		return &scoredCandidate{ID: best.ID, Score: best.Score}, false, nil
	}
	if r.llm == nil {
		return nil, true, nil
	}

	confirmed, err := r.confirmCandidate(ctx, m, best)
	if err != nil {
		return nil, false, err
	}
	if !confirmed {
		return nil, true, nil
	}
	return &scoredCandidate{ID: best.ID, Score: best.Score}, false, nil
}

// confirmCandidate asks the LLM whether the candidate entity is the same
// real-world referent as the mention, reusing the extractor's provider
// for a narrowly scoped yes/no style completion with a tiny JSON schema.
func (r *Resolver) confirmCandidate(ctx context.Context, m Mention, hit vectorstore.Hit) (bool, error) {
	prompt := fmt.Sprintf(
		`Mention name: %q (type %s), context: %q.
Candidate entity text: %q.
Does the mention refer to the same real-world entity as the candidate?`,
		m.Name, m.Type, m.ContextText, hit.Text)
	out, err := r.llm.ConfirmMatch(ctx, prompt)
	if err != nil {
		return false, err
	}
	return out, nil
}

func (r *Resolver) embedEntityContext(ctx context.Context, entityID string, m Mention) error {
	text := m.ContextText
	if text == "" {
		text = m.Name
	}
	vecs, err := r.embed.Embed(ctx, []string{text})
	if err != nil {
		return err
	}
	if len(vecs) == 0 {
		return nil
	}
	return r.vec.Upsert(ctx, vectorstore.CollectionEntity, []vectorstore.Point{{
		ID:     entityID,
		Vector: vecs[0],
		Text:   text,
		Metadata: map[string]string{
			"entity_type": m.Type,
			"entity_id":   entityID,
		},
	}})
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
