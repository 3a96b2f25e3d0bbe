package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "jordan lee", normalize("  Jordan Lee  "))
	assert.Equal(t, "j. lee", normalize("J. Lee"))
}
