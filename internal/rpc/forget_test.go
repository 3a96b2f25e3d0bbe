package rpc

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleForget_RequiresConfirm(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/forget", map[string]any{"id": "art_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Message, "confirm=true")
}

func TestHandleForget_RejectsEventID(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/forget", map[string]any{"id": "evt_1", "confirm": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Message, "forget the artifact instead")
}

func TestHandleForget_RejectsUnrecognizedPrefix(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/forget", map[string]any{"id": "xyz_1", "confirm": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
