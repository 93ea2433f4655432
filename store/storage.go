package store

import (
	"context"

	"github.com/google/uuid"

	"askmydocs/model"
	"askmydocs/types"
)

// Indexer owns a named collection of index records. Implementations
// must be safe for concurrent Upsert, Query and DeleteBySource, and a
// successful Upsert's records must be visible to a Query issued after
// the call returns.
type Indexer interface {
	// Init opens the collection lazily: a missing collection is
	// created, an existing one is attached without truncation. Calling
	// it twice is harmless.
	Init(ctx context.Context) error

	// Upsert embeds records lacking a vector, assigns ids to records
	// lacking one, and replaces records with matching ids. The batch is
	// atomic from the caller's point of view: on error nothing from it
	// becomes visible to queries.
	Upsert(ctx context.Context, records []types.IndexRecord) error

	// Query embeds each query text and returns its k nearest records,
	// best-first by ascending distance. An empty collection yields
	// empty result sets, not an error.
	Query(ctx context.Context, queries []string, k int) ([][]types.RetrievalResult, error)

	// DeleteBySource removes every record whose metadata source_id
	// matches and reports how many were removed. Deleting an unknown
	// source is a no-op success.
	DeleteBySource(ctx context.Context, sourceID string) (int64, error)

	// Ping performs a round-trip to the backend so health probes can
	// tell a dead store from a live one.
	Ping(ctx context.Context) error

	Close() error
}

// prepareRecords fills in missing ids and embeddings. It runs before
// any write so an embedding failure leaves the collection untouched;
// the embedder's error (EmbeddingError) passes through unwrapped.
func prepareRecords(ctx context.Context, embedder model.Embedder, records []types.IndexRecord) ([]types.IndexRecord, error) {
	out := make([]types.IndexRecord, len(records))
	copy(out, records)

	var missing []int
	var texts []string
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.New().String()
		}
		if out[i].Embedding == nil {
			missing = append(missing, i)
			texts = append(texts, out[i].Text)
		}
	}

	if len(missing) > 0 {
		vectors, err := embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, err
		}
		for n, i := range missing {
			out[i].Embedding = vectors[n]
		}
	}
	return out, nil
}

// embedQueries maps query texts to vectors for the search path.
func embedQueries(ctx context.Context, embedder model.Embedder, queries []string) ([][]float32, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	return embedder.EmbedTexts(ctx, queries)
}
