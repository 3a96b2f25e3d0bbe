// Package ingest implements the remember operation (spec.md §4.1): validate
// an incoming artifact, compute its content-addressed identity, dedup
// against an already stored (artifact_uid, revision_id) pair, chunk and
// embed it, and commit both
// stores in the order that keeps the relational store authoritative.
package ingest

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sembank/memoryd/internal/apperr"
	"github.com/sembank/memoryd/internal/chunk"
	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/ids"
	"github.com/sembank/memoryd/internal/relstore"
	"github.com/sembank/memoryd/internal/tokenizer"
	"github.com/sembank/memoryd/internal/vectorstore"
)

const maxContentBytes = 10 * 1024 * 1024

var validArtifactTypes = map[string]bool{
	"email": true, "doc": true, "chat": true, "transcript": true, "note": true,
}

// Request is the remember operation's input (spec.md §4.1's public contract).
type Request struct {
	ArtifactType    string
	SourceSystem    string
	Content         string
	SourceID        string
	Title           string
	Author          string
	Participants    []string
	SourceTS        *string
	Sensitivity     string
	VisibilityScope string
	RetentionPolicy string

	// ConversationTurn is set when content is tagged as a single turn of a
	// live conversation (Role/TurnIndex both populated). A turn under 100
	// tokens skips extraction job enqueueing entirely (spec.md §4.9's
	// remember optimization): it is stored for recall but never queued for
	// event extraction, since a single short turn rarely carries an
	// extractable fact on its own.
	ConversationTurn bool
	Role             string
	TurnIndex        int
}

// Result is the remember operation's output.
type Result struct {
	ArtifactID  string
	ArtifactUID string
	RevisionID  string
	IsChunked   bool
	ChunkCount  int
	JobID       string
	Status      string // "stored" | "unchanged"
}

// Embedder is the minimal surface Coordinator needs from internal/embedclient.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Coordinator runs the ingestion algorithm end to end.
type Coordinator struct {
	rel     *relstore.Store
	vec     vectorstore.Store
	embed   Embedder
	chunker chunk.Chunker
	tok     tokenizer.Tokenizer
	cfg     config.ChunkConfig
}

func NewCoordinator(rel *relstore.Store, vec vectorstore.Store, embed Embedder, cfg config.ChunkConfig) *Coordinator {
	return &Coordinator{
		rel:     rel,
		vec:     vec,
		embed:   embed,
		chunker: chunk.SlidingWindow{},
		tok:     tokenizer.Default,
		cfg:     cfg,
	}
}

// Ingest runs spec.md §4.1's eight-step algorithm.
func (c *Coordinator) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	artifactUID := ids.ArtifactUID(req.SourceSystem, req.SourceID)
	revisionID := ids.RevisionID(req.Content)
	artifactID := ids.ArtifactID(req.Content)

	if existing, err := c.rel.GetRevision(ctx, artifactUID, revisionID); err != nil {
		return nil, fmt.Errorf("ingest: idempotency check: %w", err)
	} else if existing != nil {
		return &Result{
			ArtifactID:  existing.ArtifactID,
			ArtifactUID: existing.ArtifactUID,
			RevisionID:  existing.RevisionID,
			IsChunked:   existing.IsChunked,
			ChunkCount:  existing.ChunkCount,
			Status:      "unchanged",
		}, nil
	}

	tokenCount := c.tok.Count(req.Content)
	isChunked := chunk.ShouldChunk(tokenCount, c.cfg.SinglePieceMax)

	var chunks []chunk.Chunk
	if isChunked {
		var err error
		chunks, err = c.chunker.Chunk(artifactID, req.Content, chunk.Options{
			Target:    c.cfg.Target,
			Overlap:   c.cfg.Overlap,
			Tokenizer: c.tok,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.CodePermanent, "ingest: chunking failed", err)
		}
	}

	if err := c.embedAndWrite(ctx, artifactID, artifactUID, revisionID, req.Content, isChunked, chunks); err != nil {
		return nil, err
	}

	rev := relstore.ArtifactRevision{
		ArtifactUID:     artifactUID,
		RevisionID:      revisionID,
		ArtifactID:      artifactID,
		ArtifactType:    req.ArtifactType,
		SourceSystem:    req.SourceSystem,
		SourceID:        req.SourceID,
		ContentHash:     revisionID,
		TokenCount:      tokenCount,
		IsChunked:       isChunked,
		ChunkCount:      len(chunks),
		Sensitivity:     req.Sensitivity,
		VisibilityScope: req.VisibilityScope,
		RetentionPolicy: req.RetentionPolicy,
		IsLatest:        true,
		IngestedAt:      time.Now().UTC(),
	}

	skipJob := req.ConversationTurn && tokenCount < 100
	jobID := ids.NewUUID()
	enqueuedJobID, err := c.rel.InsertRevisionAndEnqueueJob(ctx, rev, jobID, skipJob)
	if err != nil {
		// Steps 5-6 already landed in the vector store; this revision row
		// did not, so those rows are orphaned per spec.md §4.1's atomicity
		// note. The caller sees the error and may retry ingestion.
		return nil, fmt.Errorf("ingest: relational write failed: %w", err)
	}

	return &Result{
		ArtifactID:  artifactID,
		ArtifactUID: artifactUID,
		RevisionID:  revisionID,
		IsChunked:   isChunked,
		ChunkCount:  len(chunks),
		JobID:       enqueuedJobID,
		Status:      "stored",
	}, nil
}

// embedAndWrite generates embeddings for every piece and writes them to the
// vector store (spec.md §4.1 steps 5-6). Any embedding failure aborts with
// no writes in either store.
func (c *Coordinator) embedAndWrite(ctx context.Context, artifactID, artifactUID, revisionID, content string, isChunked bool, chunks []chunk.Chunk) error {
	texts := []string{content}
	if isChunked {
		texts = make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
	}

	vecs, err := c.embed.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingest: embedding failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return apperr.Wrap(apperr.CodePermanent, "ingest: embedding count mismatch", fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts)))
	}

	contentPoint := vectorstore.Point{
		ID:   artifactID,
		Text: content,
		Metadata: map[string]string{
			"artifact_uid": artifactUID,
			"revision_id":  revisionID,
		},
	}
	if isChunked {
		// Whole-content row carries no text when chunked; chunk rows carry it.
		contentPoint.Text = ""
		contentPoint.Vector = vecs[0]
	} else {
		contentPoint.Vector = vecs[0]
	}
	if err := c.vec.Upsert(ctx, vectorstore.CollectionContent, []vectorstore.Point{contentPoint}); err != nil {
		return fmt.Errorf("ingest: vector write failed: %w", err)
	}

	if !isChunked {
		return nil
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, ch := range chunks {
		points[i] = vectorstore.Point{
			ID:   ch.ID,
			Text: ch.Text,
			Vector: vecs[i],
			Metadata: map[string]string{
				"artifact_uid": artifactUID,
				"revision_id":  revisionID,
				"chunk_index":  fmt.Sprintf("%d", ch.Index),
				"start_char":   fmt.Sprintf("%d", ch.StartChar),
				"end_char":     fmt.Sprintf("%d", ch.EndChar),
			},
		}
	}
	if err := c.vec.Upsert(ctx, vectorstore.CollectionChunks, points); err != nil {
		return fmt.Errorf("ingest: vector write failed: %w", err)
	}
	return nil
}

func validate(req Request) error {
	if !validArtifactTypes[req.ArtifactType] {
		return apperr.Validation("ingest: invalid artifact_type %q", req.ArtifactType)
	}
	if req.Content == "" {
		return apperr.Validation("ingest: content is empty")
	}
	if len(req.Content) > maxContentBytes {
		return apperr.Validation("ingest: content exceeds %d bytes", maxContentBytes)
	}
	if !utf8.ValidString(req.Content) {
		return apperr.Validation("ingest: content is not valid UTF-8")
	}
	return nil
}
