package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sembank/memoryd/internal/vectorstore"
)

func TestBackoffFor_DoublesUntilCap(t *testing.T) {
	assert.Equal(t, 30*1, int(backoffFor(1).Seconds()))
	assert.Equal(t, 30*2, int(backoffFor(2).Seconds()))
	assert.Equal(t, 30*4, int(backoffFor(3).Seconds()))
	assert.Equal(t, maxBackoffSeconds, int(backoffFor(20).Seconds()))
}

func TestBackoffFor_ClampsBelowOne(t *testing.T) {
	assert.Equal(t, 30, int(backoffFor(0).Seconds()))
}

func TestChunkIndexOf_ParsesMetadata(t *testing.T) {
	h := vectorstore.Hit{Metadata: map[string]string{"chunk_index": "3"}}
	assert.Equal(t, 3, chunkIndexOf(h))
}

func TestChunkIndexOf_DefaultsZeroOnMissing(t *testing.T) {
	h := vectorstore.Hit{Metadata: map[string]string{}}
	assert.Equal(t, 0, chunkIndexOf(h))
}

func TestSubjectEntityType_MapsKnownCategories(t *testing.T) {
	assert.Equal(t, "person", subjectEntityType("Decision"))
	assert.Equal(t, "object", subjectEntityType("QualityRisk"))
	assert.Equal(t, "project", subjectEntityType("Execution"))
}
