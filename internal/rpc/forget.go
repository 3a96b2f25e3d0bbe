package rpc

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/vectorstore"
)

type forgetRequest struct {
	ID      string `json:"id"`
	Confirm bool   `json:"confirm"`
}

type forgetResponse struct {
	ID               string   `json:"id"`
	RevisionsDeleted int      `json:"revisions_deleted"`
	Warnings         []string `json:"warnings,omitempty"`
}

// handleForget runs spec.md §4.9's forget operation: a hard, cascading
// delete for "art_..." ids, gated behind an explicit confirm=true. "evt_..."
// ids are rejected with a guidance error since events are derived from their
// source artifact's extraction, not independently authorable or deletable.
func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	var req forgetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if !req.Confirm {
		respondError(w, apperr.Validation("rpc: forget requires confirm=true"))
		return
	}
	if strings.HasPrefix(req.ID, "evt_") {
		respondError(w, apperr.Validation("rpc: events are derived from their source artifact and cannot be forgotten directly; forget the artifact instead"))
		return
	}
	if !strings.HasPrefix(req.ID, "art_") {
		respondError(w, apperr.Validation("rpc: id %q has no recognized prefix (art_)", req.ID))
		return
	}

	rev, err := s.rel.GetRevisionByArtifactID(r.Context(), req.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	if rev == nil {
		respondError(w, apperr.NotFound(req.ID))
		return
	}

	revisionIDs, err := s.rel.DeleteArtifact(r.Context(), rev.ArtifactUID)
	if err != nil {
		respondError(w, err)
		return
	}

	// The relational delete has already committed at this point, so every
	// vector-side cleanup below is best-effort: a failure here is logged and
	// surfaced as a warning, not a hard error, since re-running forget on the
	// same id is idempotent (spec.md §7) and the relational store is the
	// authoritative record of what has been forgotten.
	var warnings []string

	// The whole-content vector row is keyed by artifact_id, shared across
	// every revision; chunk rows are content-addressed per chunk and are
	// pruned below by artifact_uid/revision_id metadata filter instead.
	if err := s.vec.Delete(r.Context(), vectorstore.CollectionContent, []string{req.ID}); err != nil {
		log.Error().Err(err).Str("artifact_id", req.ID).Msg("rpc: forget: vector content delete failed")
		warnings = append(warnings, "failed to delete stored content vector; relational deletion already committed")
	}
	for _, revID := range revisionIDs {
		hits, err := s.vec.GetByFilter(r.Context(), vectorstore.CollectionChunks,
			map[string]string{"artifact_uid": rev.ArtifactUID, "revision_id": revID}, 10000)
		if err != nil {
			log.Error().Err(err).Str("artifact_id", req.ID).Str("revision_id", revID).Msg("rpc: forget: chunk lookup failed")
			warnings = append(warnings, "failed to look up chunk vectors for revision "+revID)
			continue
		}
		chunkIDs := make([]string, len(hits))
		for i, h := range hits {
			chunkIDs[i] = h.ID
		}
		if len(chunkIDs) > 0 {
			if err := s.vec.Delete(r.Context(), vectorstore.CollectionChunks, chunkIDs); err != nil {
				log.Error().Err(err).Str("artifact_id", req.ID).Str("revision_id", revID).Msg("rpc: forget: chunk vector delete failed")
				warnings = append(warnings, "failed to delete chunk vectors for revision "+revID)
			}
		}
	}

	respondJSON(w, http.StatusOK, forgetResponse{ID: req.ID, RevisionsDeleted: len(revisionIDs), Warnings: warnings})
}
