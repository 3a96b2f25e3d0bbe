package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixture_ParsesDocumentsAndQueries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outcomes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
documents:
  - name: doc1
    artifact_type: note
    source_system: test
    source_id: "1"
    content: "hello world"
queries:
  - name: q1
    query: "hello"
    expected_documents: [doc1]
    expected_narrative: "something happened"
`), 0o644))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Len(t, f.Documents, 1)
	assert.Equal(t, "doc1", f.Documents[0].Name)
	assert.Len(t, f.Queries, 1)
	assert.Equal(t, []string{"doc1"}, f.Queries[0].ExpectedDocuments)
}

func TestLoadFixture_MissingFileReturnsError(t *testing.T) {
	_, err := LoadFixture("/nonexistent/path.yaml")
	assert.Error(t, err)
}
