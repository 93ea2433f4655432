package store

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmydocs/types"
)

// vocabEmbedder is a deterministic test embedder: each known word is
// one axis, vectors are L2-normalized, unknown words are ignored.
type vocabEmbedder struct {
	failing bool
}

var vocabAxes = []string{"alpha", "beta", "gamma", "status", "green", "red", "project"}

func (e *vocabEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if e.failing {
		return nil, &types.EmbeddingError{Err: errors.New("embedder down")}
	}
	if len(texts) == 0 {
		return nil, &types.EmbeddingError{Err: errors.New("no texts")}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(vocabAxes))
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,:;!?\"'")
			for axis, known := range vocabAxes {
				if word == known {
					vec[axis]++
				}
			}
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		out[i] = vec
	}
	return out, nil
}

func statusRecords() []types.IndexRecord {
	return []types.IndexRecord{
		{
			Text:     "Alpha project status: green.",
			Metadata: types.Metadata{types.MetaSourceID: "doc1", types.MetaPosition: "0"},
		},
		{
			Text:     "Beta project status: red.",
			Metadata: types.Metadata{types.MetaSourceID: "doc1", types.MetaPosition: "1"},
		},
		{
			Text:     "Gamma project status: green.",
			Metadata: types.Metadata{types.MetaSourceID: "doc2", types.MetaPosition: "0"},
		},
	}
}

func TestMemoryIndexQueryRanking(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&vocabEmbedder{})
	require.NoError(t, idx.Init(ctx))
	require.NoError(t, idx.Upsert(ctx, statusRecords()))

	res, err := idx.Query(ctx, []string{"What is the status of Beta?"}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Len(t, res[0], 3)

	assert.Contains(t, res[0][0].Text, "Beta project status: red")
	for i := 1; i < len(res[0]); i++ {
		assert.LessOrEqual(t, res[0][i-1].Distance, res[0][i].Distance,
			"results must be ordered ascending by distance")
	}
}

func TestMemoryIndexQueryEmptyCollection(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&vocabEmbedder{})

	res, err := idx.Query(ctx, []string{"anything about alpha"}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Empty(t, res[0])
}

func TestMemoryIndexUpsertAssignsIDsAndReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&vocabEmbedder{})

	recs := statusRecords()
	recs[0].ID = "fixed-id"
	require.NoError(t, idx.Upsert(ctx, recs))
	assert.Len(t, idx.records, 3)
	for _, rec := range idx.records {
		assert.NotEmpty(t, rec.ID)
	}

	// Same id again replaces instead of duplicating.
	require.NoError(t, idx.Upsert(ctx, []types.IndexRecord{{
		ID:       "fixed-id",
		Text:     "Alpha project status: red.",
		Metadata: types.Metadata{types.MetaSourceID: "doc1"},
	}}))
	assert.Len(t, idx.records, 3)
}

func TestMemoryIndexUpsertAtomicOnEmbedFailure(t *testing.T) {
	ctx := context.Background()
	emb := &vocabEmbedder{}
	idx := NewMemoryIndex(emb)
	require.NoError(t, idx.Upsert(ctx, statusRecords()))

	emb.failing = true
	err := idx.Upsert(ctx, []types.IndexRecord{{
		Text:     "Delta project status: green.",
		Metadata: types.Metadata{types.MetaSourceID: "doc3"},
	}})

	var embErr *types.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Len(t, idx.records, 3, "failed batch must not leave partial records")
}

func TestMemoryIndexDeleteBySourceIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&vocabEmbedder{})
	require.NoError(t, idx.Upsert(ctx, statusRecords()))

	removed, err := idx.DeleteBySource(ctx, "doc1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	removed, err = idx.DeleteBySource(ctx, "doc1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, removed, "second delete must be a no-op success")

	removed, err = idx.DeleteBySource(ctx, "never-ingested")
	require.NoError(t, err)
	assert.EqualValues(t, 0, removed)
}

func TestMemoryIndexDeleteRemovesFromQueries(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&vocabEmbedder{})
	require.NoError(t, idx.Upsert(ctx, statusRecords()))

	_, err := idx.DeleteBySource(ctx, "doc1")
	require.NoError(t, err)

	res, err := idx.Query(ctx, []string{"What is the status of Beta?"}, 3)
	require.NoError(t, err)
	for _, r := range res[0] {
		assert.NotEqual(t, "doc1", r.Metadata[types.MetaSourceID],
			"deleted source must not appear in results")
	}
	require.Len(t, res[0], 1)
	assert.Contains(t, res[0][0].Text, "Gamma")
}

func TestMemoryIndexIsolation(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&vocabEmbedder{})
	require.NoError(t, idx.Upsert(ctx, statusRecords()))

	res, err := idx.Query(ctx, []string{"project status"}, 10)
	require.NoError(t, err)

	ingested := map[string]bool{"doc1": true, "doc2": true}
	for _, r := range res[0] {
		assert.True(t, ingested[r.Metadata[types.MetaSourceID]],
			"query returned a source that was never ingested")
	}
}
