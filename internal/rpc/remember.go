package rpc

import (
	"net/http"

	"github.com/sembank/memoryd/internal/ingest"
)

type rememberRequest struct {
	ArtifactType     string   `json:"artifact_type"`
	SourceSystem     string   `json:"source_system"`
	Content          string   `json:"content"`
	SourceID         string   `json:"source_id,omitempty"`
	Title            string   `json:"title,omitempty"`
	Author           string   `json:"author,omitempty"`
	Participants     []string `json:"participants,omitempty"`
	SourceTS         *string  `json:"source_ts,omitempty"`
	Sensitivity      string   `json:"sensitivity,omitempty"`
	VisibilityScope  string   `json:"visibility_scope,omitempty"`
	RetentionPolicy  string   `json:"retention_policy,omitempty"`
	Role             string   `json:"role,omitempty"`
	TurnIndex        *int     `json:"turn_index,omitempty"`
}

type rememberResponse struct {
	ArtifactID  string `json:"artifact_id"`
	ArtifactUID string `json:"artifact_uid"`
	RevisionID  string `json:"revision_id"`
	IsChunked   bool   `json:"is_chunked"`
	ChunkCount  int    `json:"chunk_count"`
	JobID       string `json:"job_id,omitempty"`
	Status      string `json:"status"`
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req rememberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := s.ingest.Ingest(r.Context(), ingest.Request{
		ArtifactType:     req.ArtifactType,
		SourceSystem:     req.SourceSystem,
		Content:          req.Content,
		SourceID:         req.SourceID,
		Title:            req.Title,
		Author:           req.Author,
		Participants:     req.Participants,
		SourceTS:         req.SourceTS,
		Sensitivity:      req.Sensitivity,
		VisibilityScope:  req.VisibilityScope,
		RetentionPolicy:  req.RetentionPolicy,
		ConversationTurn: req.Role != "" && req.TurnIndex != nil,
		Role:             req.Role,
		TurnIndex:        derefInt(req.TurnIndex),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rememberResponse{
		ArtifactID:  result.ArtifactID,
		ArtifactUID: result.ArtifactUID,
		RevisionID:  result.RevisionID,
		IsChunked:   result.IsChunked,
		ChunkCount:  result.ChunkCount,
		JobID:       result.JobID,
		Status:      result.Status,
	})
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
