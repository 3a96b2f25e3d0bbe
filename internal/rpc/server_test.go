package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sembank/memoryd/internal/apperr"
)

func TestRespondError_MapsCodesToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Validation("bad input"), http.StatusBadRequest, string(apperr.CodeValidation)},
		{apperr.NotFound("art_1"), http.StatusNotFound, string(apperr.CodeNotFound)},
		{apperr.Transient("db", assertErr{}), http.StatusConflict, string(apperr.CodeTransient)},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code)

		var body errorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.code, body.Code)
		assert.NotEmpty(t, body.Message)
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestDecodeJSON_RejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/remember", bytes.NewReader([]byte("{not json")))
	var v map[string]any
	err := decodeJSON(req, &v)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestRegisterRoutes_UnknownRouteReturns404(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
