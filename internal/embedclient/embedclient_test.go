package embedclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("500 Internal Server Error"), true},
		{"bad gateway", errors.New("502 Bad Gateway"), true},
		{"context deadline", errors.New("context deadline exceeded"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"bad request", errors.New("400 invalid input"), false},
		{"auth failure", errors.New("401 Unauthorized"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, isTransient(c.err))
		})
	}
}

func TestEmbed_EmptyInputReturnsNil(t *testing.T) {
	c := &Client{}
	out, err := c.Embed(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}
