package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmydocs/types"
)

// fakeIndexer returns canned results and records the requested k.
type fakeIndexer struct {
	results []types.RetrievalResult
	err     error
	lastK   int
}

func (f *fakeIndexer) Init(context.Context) error { return nil }

func (f *fakeIndexer) Upsert(context.Context, []types.IndexRecord) error { return nil }

func (f *fakeIndexer) Query(_ context.Context, queries []string, k int) ([][]types.RetrievalResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastK = k
	out := make([][]types.RetrievalResult, len(queries))
	for i := range queries {
		out[i] = append([]types.RetrievalResult(nil), f.results...)
	}
	return out, nil
}

func (f *fakeIndexer) DeleteBySource(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeIndexer) Ping(context.Context) error { return nil }

func (f *fakeIndexer) Close() error { return nil }

func TestRetrieveOrdersAscending(t *testing.T) {
	idx := &fakeIndexer{results: []types.RetrievalResult{
		{Text: "mid", Distance: 0.5},
		{Text: "best", Distance: 0.1},
		{Text: "worst", Distance: 0.7},
	}}
	r := New(idx, 3, 0)

	results, err := r.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "best", results[0].Text)
	assert.Equal(t, "mid", results[1].Text)
	assert.Equal(t, "worst", results[2].Text)
}

func TestRetrieveAppliesDistanceCutoff(t *testing.T) {
	idx := &fakeIndexer{results: []types.RetrievalResult{
		{Text: "relevant", Distance: 0.2},
		{Text: "borderline", Distance: 0.8},
		{Text: "noise", Distance: 0.95},
	}}
	r := New(idx, 3, 0.8)

	results, err := r.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 2, "results past the cutoff are dropped even below k")
	assert.Equal(t, "relevant", results[0].Text)
	assert.Equal(t, "borderline", results[1].Text)
}

func TestRetrieveDefaultsK(t *testing.T) {
	idx := &fakeIndexer{}
	r := New(idx, 0, 0)

	_, err := r.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTopK, idx.lastK)

	_, err = r.Retrieve(context.Background(), "q", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, idx.lastK)
}

func TestRetrievePropagatesQueryError(t *testing.T) {
	wrapped := &types.IndexQueryError{Err: errors.New("index offline")}
	idx := &fakeIndexer{err: wrapped}
	r := New(idx, 3, 0)

	_, err := r.Retrieve(context.Background(), "q", 3)
	var qErr *types.IndexQueryError
	require.True(t, errors.As(err, &qErr))
}
