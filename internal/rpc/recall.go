package rpc

import (
	"net/http"
	"sort"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/ids"
	"github.com/sembank/memoryd/internal/relstore"
	"github.com/sembank/memoryd/internal/retrieve"
	"github.com/sembank/memoryd/internal/vectorstore"
)

type recallRequest struct {
	Query          string   `json:"query,omitempty"`
	ID             string   `json:"id,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Expand         *bool    `json:"expand,omitempty"`
	IncludeEvents  *bool    `json:"include_events,omitempty"`
	GraphBudget    int      `json:"graph_budget,omitempty"`
	GraphFilters   []string `json:"graph_filters,omitempty"`
	Source         string   `json:"source,omitempty"`
	Sensitivity    string   `json:"sensitivity,omitempty"`
}

type resultItem struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Events     []relstore.Event  `json:"events,omitempty"`
}

type relatedItem struct {
	ID      string           `json:"id"`
	Reason  string           `json:"reason"`
	Content string           `json:"content"`
	Events  []relstore.Event `json:"events,omitempty"`
}

type recallResponse struct {
	Results    []resultItem  `json:"results"`
	Related    []relatedItem `json:"related"`
	TotalCount int           `json:"total_count"`
}

const (
	defaultLimit       = 10
	maxLimit           = 50
	defaultGraphBudget = 10
	maxGraphBudget     = 50
)

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req recallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	switch {
	case req.ConversationID != "":
		s.recallConversation(w, r, req.ConversationID)
	case req.ID != "":
		s.recallByID(w, r, req.ID)
	default:
		s.recallByQuery(w, r, req)
	}
}

func (s *Server) recallByQuery(w http.ResponseWriter, r *http.Request, req recallRequest) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	graphBudget := req.GraphBudget
	if graphBudget <= 0 {
		graphBudget = defaultGraphBudget
	}
	if graphBudget > maxGraphBudget {
		graphBudget = maxGraphBudget
	}
	expand := true
	if req.Expand != nil {
		expand = *req.Expand
	}
	includeEvents := true
	if req.IncludeEvents != nil {
		includeEvents = *req.IncludeEvents
	}

	filter := map[string]string{}
	if req.Source != "" {
		filter["source"] = req.Source
	}
	if req.Sensitivity != "" {
		filter["sensitivity"] = req.Sensitivity
	}

	results, related, err := s.retrieve.Query(r.Context(), req.Query, retrieve.Options{
		Limit:          limit,
		Expand:         expand,
		IncludeEvents:  includeEvents,
		GraphBudget:    graphBudget,
		CategoryFilter: req.GraphFilters,
		MetadataFilter: filter,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	resp := recallResponse{TotalCount: len(results)}
	for _, item := range results {
		resp.Results = append(resp.Results, resultItem{
			ID:         item.ArtifactID,
			Content:    item.Content,
			Similarity: item.Similarity,
			Metadata:   item.Metadata,
			Events:     item.Events,
		})
	}
	for _, rel := range related {
		resp.Related = append(resp.Related, relatedItem{
			ID:      ids.WireEventID(rel.Event.EventID),
			Reason:  rel.Reason,
			Content: rel.Event.Narrative,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// recallByID serves the direct "art_..." / "evt_..." lookup path (spec.md
// §4.6's "id path").
func (s *Server) recallByID(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case len(id) > 4 && id[:4] == "art_":
		s.recallArtifact(w, r, id)
	case len(id) > 4 && id[:4] == "evt_":
		s.recallEvent(w, r, id)
	default:
		respondError(w, apperr.Validation("rpc: id %q has no recognized prefix (art_/evt_)", id))
	}
}

func (s *Server) recallArtifact(w http.ResponseWriter, r *http.Request, artifactID string) {
	rev, err := s.rel.GetRevisionByArtifactID(r.Context(), artifactID)
	if err != nil {
		respondError(w, err)
		return
	}
	if rev == nil {
		respondError(w, apperr.NotFound(artifactID))
		return
	}
	events, err := s.rel.GetEventsForRevision(r.Context(), rev.ArtifactUID, rev.RevisionID)
	if err != nil {
		respondError(w, err)
		return
	}

	var content string
	if hits, err := s.vec.GetByFilter(r.Context(), vectorstore.CollectionContent,
		map[string]string{"artifact_uid": rev.ArtifactUID, "revision_id": rev.RevisionID}, 1); err == nil && len(hits) > 0 {
		content = hits[0].Text
	}

	respondJSON(w, http.StatusOK, recallResponse{
		Results: []resultItem{{
			ID:      artifactID,
			Content: content,
			Events:  events,
		}},
		TotalCount: 1,
	})
}

// recallEvent serves the direct "evt_..." lookup path (spec.md §4.6):
// fetch that one event by id and return it with its actors and evidence.
func (s *Server) recallEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	rawID, err := ids.ParseWireEventID(eventID)
	if err != nil {
		respondError(w, apperr.Validation("rpc: %v", err))
		return
	}
	ev, err := s.rel.GetEventByID(r.Context(), rawID)
	if err != nil {
		respondError(w, err)
		return
	}
	if ev == nil {
		respondError(w, apperr.NotFound(eventID))
		return
	}
	respondJSON(w, http.StatusOK, recallResponse{
		Results: []resultItem{{
			ID:      eventID,
			Content: ev.Narrative,
			Events:  []relstore.Event{*ev},
		}},
		TotalCount: 1,
	})
}

func (s *Server) recallConversation(w http.ResponseWriter, r *http.Request, conversationID string) {
	revisions, err := s.rel.ListRevisionsBySourceID(r.Context(), conversationID)
	if err != nil {
		respondError(w, err)
		return
	}
	sort.Slice(revisions, func(i, j int) bool { return revisions[i].IngestedAt.Before(revisions[j].IngestedAt) })

	type turn struct {
		TurnIndex int    `json:"turn_index"`
		Content   string `json:"content"`
	}
	turns := make([]turn, 0, len(revisions))
	for i, rev := range revisions {
		var content string
		if hits, err := s.vec.GetByFilter(r.Context(), vectorstore.CollectionContent,
			map[string]string{"artifact_uid": rev.ArtifactUID, "revision_id": rev.RevisionID}, 1); err == nil && len(hits) > 0 {
			content = hits[0].Text
		}
		turns = append(turns, turn{TurnIndex: i, Content: content})
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}
