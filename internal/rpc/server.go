// Package rpc exposes the four-operation wire surface named in spec.md
// §4.9/§5.2: remember, recall, forget, status, each one JSON object in and
// one JSON object (or typed error) out, over HTTP.
package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/ingest"
	"github.com/sembank/memoryd/internal/relstore"
	"github.com/sembank/memoryd/internal/retrieve"
	"github.com/sembank/memoryd/internal/vectorstore"
)

// Server wires the four RPC operations to their backing services.
type Server struct {
	mux      *http.ServeMux
	ingest   *ingest.Coordinator
	retrieve *retrieve.Service
	rel      *relstore.Store
	vec      vectorstore.Store
}

func NewServer(ing *ingest.Coordinator, ret *retrieve.Service, rel *relstore.Store, vec vectorstore.Store) *Server {
	s := &Server{ingest: ing, retrieve: ret, rel: rel, vec: vec}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /remember", s.handleRemember)
	s.mux.HandleFunc("POST /recall", s.handleRecall)
	s.mux.HandleFunc("POST /forget", s.handleForget)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /reextract", s.handleReextract)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// errorBody is the wire shape every RPC error takes (spec.md §5.2).
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func respondError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	var details map[string]any
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		details = appErr.Details
	}
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeMaxAttempts, apperr.CodeTransient:
		status = http.StatusConflict
	}
	msg := err.Error()
	if appErr != nil {
		msg = appErr.Message
	}
	if code == "" {
		code = apperr.CodeTransient
	}
	respondJSON(w, status, errorBody{Code: string(code), Message: msg, Details: details})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("rpc: malformed JSON body: %v", err)
	}
	return nil
}
