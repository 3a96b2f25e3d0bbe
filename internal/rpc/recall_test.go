package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	s := &Server{}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandleRecall_UnrecognizedIDPrefixIsRejected(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/recall", map[string]any{"id": "xyz_123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestHandleRecall_MalformedEventIDIsRejected(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/recall", map[string]any{"id": "evt_not-32-hex-chars"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestHandleRecall_MalformedBodyIsRejected(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/recall", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
