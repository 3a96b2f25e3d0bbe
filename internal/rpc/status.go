package rpc

import (
	"net/http"
)

type componentHealth struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type jobStatus struct {
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	LastError   string `json:"last_error,omitempty"`
}

type statusResponse struct {
	Components  map[string]componentHealth `json:"components"`
	Artifacts   int64                      `json:"artifacts"`
	Revisions   int64                      `json:"revisions"`
	Events      int64                      `json:"events"`
	Entities    int64                      `json:"entities"`
	NeedsReview int64                      `json:"needs_review"`
	Jobs        map[string]int64           `json:"jobs"`
	Artifact    *jobStatus                 `json:"artifact,omitempty"`
}

// handleStatus runs spec.md §4.9's status operation: per-component
// reachability, relational counts, pending-job tallies, and (when
// artifact_id is given) that artifact's latest-revision extraction job.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statusResponse{Components: map[string]componentHealth{}}

	relHealth := componentHealth{Reachable: true}
	if err := s.rel.Ping(ctx); err != nil {
		relHealth = componentHealth{Reachable: false, Error: err.Error()}
	}
	resp.Components["relstore"] = relHealth

	vecHealth := componentHealth{Reachable: true}
	if err := s.vec.Ping(ctx); err != nil {
		vecHealth = componentHealth{Reachable: false, Error: err.Error()}
	}
	resp.Components["vectorstore"] = vecHealth

	if relHealth.Reachable {
		counts, err := s.rel.GetCounts(ctx)
		if err == nil {
			resp.Artifacts = counts.Artifacts
			resp.Revisions = counts.Revisions
			resp.Events = counts.Events
			resp.Entities = counts.Entities
			resp.NeedsReview = counts.NeedsReview
			resp.Jobs = counts.Jobs
		}
	}

	if artifactID := r.URL.Query().Get("artifact_id"); artifactID != "" && relHealth.Reachable {
		rev, err := s.rel.GetRevisionByArtifactID(ctx, artifactID)
		if err == nil && rev != nil {
			if job, err := s.rel.GetJobForRevision(ctx, rev.ArtifactUID, rev.RevisionID); err == nil && job != nil {
				resp.Artifact = &jobStatus{
					Status:      job.Status,
					Attempts:    job.Attempts,
					MaxAttempts: job.MaxAttempts,
					LastError:   job.LastErrorMessage,
				}
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
