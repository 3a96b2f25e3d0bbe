// Package harness implements the outcome harness: load a fixed set of
// documents, queries, and expected outcomes, drive them through the live
// remember/recall RPC facade, and score how well recall surfaced what was
// remembered.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is one fixture artifact to remember before querying.
type Document struct {
	Name         string `yaml:"name"`
	ArtifactType string `yaml:"artifact_type"`
	SourceSystem string `yaml:"source_system"`
	SourceID     string `yaml:"source_id"`
	Content      string `yaml:"content"`
}

// Query is one recall call plus the outcome expected of it.
type Query struct {
	Name              string   `yaml:"name"`
	Text              string   `yaml:"query"`
	ExpectedDocuments []string `yaml:"expected_documents"` // Document.Name values expected among results
	ExpectedNarrative string   `yaml:"expected_narrative"` // free-text fact expected in an event narrative, scored by Judge
}

// Fixture is one benchmark run's full input.
type Fixture struct {
	Documents []Document `yaml:"documents"`
	Queries   []Query    `yaml:"queries"`
}

// LoadFixture reads and parses a YAML fixture file (component 11's
// documents/queries/expected-outcomes file).
func LoadFixture(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: read fixture %q: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("harness: parse fixture %q: %w", path, err)
	}
	return &f, nil
}
