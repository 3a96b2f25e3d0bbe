package rpc

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerefInt(t *testing.T) {
	assert.Equal(t, 0, derefInt(nil))
	n := 3
	assert.Equal(t, 3, derefInt(&n))
}

func TestHandleRemember_NonObjectBodyIsRejected(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/remember", "not-an-object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
