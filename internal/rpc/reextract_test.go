package rpc

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleReextract_RequiresArtifactID(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/reextract", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
