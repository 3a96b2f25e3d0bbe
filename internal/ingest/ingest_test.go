package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sembank/memoryd/internal/apperr"
)

func TestValidate_RejectsUnknownArtifactType(t *testing.T) {
	err := validate(Request{ArtifactType: "spreadsheet", Content: "hi"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestValidate_RejectsEmptyContent(t *testing.T) {
	err := validate(Request{ArtifactType: "note", Content: ""})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestValidate_RejectsOversizedContent(t *testing.T) {
	big := strings.Repeat("a", maxContentBytes+1)
	err := validate(Request{ArtifactType: "note", Content: big})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestValidate_RejectsInvalidUTF8(t *testing.T) {
	err := validate(Request{ArtifactType: "note", Content: string([]byte{0xff, 0xfe, 0xfd})})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestValidate_AcceptsEveryEnumeratedArtifactType(t *testing.T) {
	for _, at := range []string{"email", "doc", "chat", "transcript", "note"} {
		err := validate(Request{ArtifactType: at, Content: "hello"})
		assert.NoError(t, err, "artifact_type %q should be valid", at)
	}
}
