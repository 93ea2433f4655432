package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"askmydocs/model"
	"askmydocs/types"
)

// QdrantIndex keeps records in a Qdrant collection with cosine
// distance. Qdrant scores cosine as similarity (higher is better), so
// results are normalized to distance = 1 - score before they leave
// this package.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	embedder   model.Embedder
	dim        uint64
	logger     *slog.Logger
}

func NewQdrantIndex(host string, port int, collection string, dim int, embedder model.Embedder) (*QdrantIndex, error) {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}
	if dim <= 0 {
		dim = defaultEmbeddingDim
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, err
	}

	return &QdrantIndex{
		client:     client,
		collection: collection,
		embedder:   embedder,
		dim:        uint64(dim),
		logger:     slog.Default().With("component", "qdrant"),
	}, nil
}

func (q *QdrantIndex) Init(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return &types.IndexWriteError{Op: "init", Err: err}
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     q.dim,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return &types.IndexWriteError{Op: "init", Err: fmt.Errorf("create collection: %w", err)}
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, records []types.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	prepared, err := prepareRecords(ctx, q.embedder, records)
	if err != nil {
		return err
	}

	pts := make([]*qdrant.PointStruct, len(prepared))
	for i, rec := range prepared {
		payload := map[string]any{"text": rec.Text}
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	// Wait makes the write visible to queries issued after this call
	// returns.
	wait := true
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         pts,
		Wait:           &wait,
	})
	if err != nil {
		return &types.IndexWriteError{Op: "upsert", Err: err}
	}

	q.logger.Info("records upserted", "collection", q.collection, "count", len(pts))
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, queries []string, k int) ([][]types.RetrievalResult, error) {
	if k < 1 {
		k = types.DefaultTopK
	}

	vectors, err := embedQueries(ctx, q.embedder, queries)
	if err != nil {
		return nil, err
	}

	limit := uint64(k)
	out := make([][]types.RetrievalResult, len(queries))
	for i, vec := range vectors {
		resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.collection,
			Limit:          &limit,
			Query:          qdrant.NewQuery(vec...),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, &types.IndexQueryError{Err: err}
		}

		results := make([]types.RetrievalResult, 0, len(resp))
		for _, pt := range resp {
			results = append(results, scoredPointToResult(pt))
		}
		out[i] = results
	}
	return out, nil
}

func scoredPointToResult(pt *qdrant.ScoredPoint) types.RetrievalResult {
	r := types.RetrievalResult{
		Metadata: types.Metadata{},
		Distance: 1 - float64(pt.Score),
	}
	for key, v := range pt.Payload {
		val := v.GetStringValue()
		if key == "text" {
			r.Text = val
			continue
		}
		r.Metadata[key] = val
	}
	return r
}

// DeleteBySource counts the matching points, then deletes them by
// filter. The two steps are not transactional; a failure between them
// is reported and the caller retries, which is safe because the delete
// is idempotent.
func (q *QdrantIndex) DeleteBySource(ctx context.Context, sourceID string) (int64, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(types.MetaSourceID, sourceID)},
	}

	exact := true
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, &types.IndexWriteError{Op: "delete", Err: fmt.Errorf("count: %w", err)}
	}
	if count == 0 {
		return 0, nil
	}

	wait := true
	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           &wait,
	})
	if err != nil {
		return 0, &types.IndexWriteError{Op: "delete", Err: err}
	}
	return int64(count), nil
}

func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.CollectionExists(ctx, q.collection); err != nil {
		return &types.IndexQueryError{Err: err}
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

var _ Indexer = (*QdrantIndex)(nil)
