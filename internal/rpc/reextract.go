package rpc

import (
	"net/http"

	"github.com/sembank/memoryd/internal/apperr"
)

type reextractRequest struct {
	ArtifactID string `json:"artifact_id"`
}

// handleReextract implements spec.md §4.2's "forced re-extraction" as a
// callable operation: reset the latest revision's extraction job back to
// PENDING with next_run_at=now(), so the next worker poll picks it up
// regardless of its prior terminal state. Available for operator tooling
// (the outcome harness does not call it); not one of the four primary RPC
// operations, so it is not advertised alongside remember/recall/forget/
// status in spec.md §5's public surface.
func (s *Server) handleReextract(w http.ResponseWriter, r *http.Request) {
	var req reextractRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.ArtifactID == "" {
		respondError(w, apperr.Validation("rpc: artifact_id is required"))
		return
	}

	rev, err := s.rel.GetRevisionByArtifactID(r.Context(), req.ArtifactID)
	if err != nil {
		respondError(w, err)
		return
	}
	if rev == nil {
		respondError(w, apperr.NotFound(req.ArtifactID))
		return
	}
	if err := s.rel.ForceReextract(r.Context(), rev.ArtifactUID, rev.RevisionID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"artifact_id": req.ArtifactID, "status": "requeued"})
}
