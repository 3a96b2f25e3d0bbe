package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the caller's original string id in the point
// payload, since Qdrant point ids must be UUIDs or positive integers.
const payloadIDField = "_original_id"

// QdrantStore is the primary ANN backend, one Qdrant collection per logical
// vectorstore collection (content/chunks/entity), each created lazily on
// first use with the configured dimension and distance metric.
type QdrantStore struct {
	client     *qdrant.Client
	dimension  int
	metric     string // cosine|l2|euclidean|ip|dot|manhattan

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantStore connects to Qdrant's gRPC API (port 6334 by default). An
// API key may be supplied as a query parameter on host:
// "http://localhost:6334?api_key=...".
func NewQdrantStore(host string, dimension int, metric string) (*QdrantStore, error) {
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse qdrant host: %w", err)
	}
	h := parsed.Hostname()
	if h == "" {
		h = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: h, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}
	return &QdrantStore{
		client:    client,
		dimension: dimension,
		metric:    strings.ToLower(strings.TrimSpace(metric)),
		ensured:   make(map[string]bool),
	}, nil
}

func (q *QdrantStore) ensureCollection(ctx context.Context, collection string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensured[collection] {
		return nil
	}
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %q: %w", collection, err)
	}
	if !exists {
		if q.dimension <= 0 {
			return fmt.Errorf("vectorstore: dimension must be > 0 to create collection %q", collection)
		}
		var distance qdrant.Distance
		switch q.metric {
		case "l2", "euclidean":
			distance = qdrant.Distance_Euclid
		case "ip", "dot":
			distance = qdrant.Distance_Dot
		case "manhattan":
			distance = qdrant.Distance_Manhattan
		default:
			distance = qdrant.Distance_Cosine
		}
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dimension),
				Distance: distance,
			}),
		})
		if err != nil {
			return fmt.Errorf("vectorstore: create collection %q: %w", collection, err)
		}
	}
	q.ensured[collection] = true
	return nil
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, collection); err != nil {
		return err
	}
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		uuidStr := pointUUID(p.ID)
		metadataAny := make(map[string]any, len(p.Metadata)+2)
		for k, v := range p.Metadata {
			metadataAny[k] = v
		}
		if p.Text != "" {
			metadataAny["_text"] = p.Text
		}
		if uuidStr != p.ID {
			metadataAny[payloadIDField] = p.ID
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metadataAny),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert into %q: %w", collection, err)
	}
	return nil
}

func (q *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, collection); err != nil {
		return err
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointUUID(id)))
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pointIDs[0], pointIDs[1:]...),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete from %q: %w", collection, err)
	}
	return nil
}

func (q *QdrantStore) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	if err := q.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search %q: %w", collection, err)
	}
	hits := make([]Hit, 0, len(results))
	for _, hit := range results {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]string)
		var originalID, text string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case payloadIDField:
					originalID = v.GetStringValue()
				case "_text":
					text = v.GetStringValue()
				default:
					metadata[k] = v.GetStringValue()
				}
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		hits = append(hits, Hit{ID: id, Score: float64(hit.Score), Text: text, Metadata: metadata})
	}
	return hits, nil
}

// GetByFilter scrolls a collection for every point matching filter exactly,
// with no vector comparison. Qdrant's scroll API paginates internally; a
// single page of size limit is sufficient for the worker's use (a revision
// has at most a few hundred chunks).
func (q *QdrantStore) GetByFilter(ctx context.Context, collection string, filter map[string]string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 1000
	}
	if err := q.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}
	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: must}
	}
	lim := uint32(limit)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         qf,
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scroll %q: %w", collection, err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		uuidStr := p.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = p.Id.String()
		}
		metadata := make(map[string]string)
		var originalID, text string
		if p.Payload != nil {
			for k, v := range p.Payload {
				switch k {
				case payloadIDField:
					originalID = v.GetStringValue()
				case "_text":
					text = v.GetStringValue()
				default:
					metadata[k] = v.GetStringValue()
				}
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		hits = append(hits, Hit{ID: id, Text: text, Metadata: metadata})
	}
	return hits, nil
}

// Ping reports whether the Qdrant cluster is reachable, used by the status
// operation's per-component health summary (spec.md §4.9). CollectionExists
// is the cheapest round-trip the client exposes; its result is discarded,
// only reachability matters here.
func (q *QdrantStore) Ping(ctx context.Context) error {
	if _, err := q.client.CollectionExists(ctx, CollectionContent); err != nil {
		return fmt.Errorf("vectorstore: ping: %w", err)
	}
	return nil
}

func (q *QdrantStore) Close() error {
	return q.client.Close()
}
