package retriever

import (
	"context"
	"log/slog"
	"sort"

	"askmydocs/store"
	"askmydocs/types"
)

// Retriever turns a question into ranked context. Whatever convention
// the index backend reports natively, results leave here ordered by
// ascending distance (most relevant first), with neighbours beyond
// MaxDistance dropped as noise even if that leaves fewer than k.
type Retriever struct {
	index       store.Indexer
	topK        int
	maxDistance float64
	logger      *slog.Logger
}

// New builds a Retriever. topK falls back to the default (3) when not
// positive; maxDistance <= 0 disables the relevance cutoff.
func New(index store.Indexer, topK int, maxDistance float64) *Retriever {
	if topK < 1 {
		topK = types.DefaultTopK
	}
	return &Retriever{
		index:       index,
		topK:        topK,
		maxDistance: maxDistance,
		logger:      slog.Default().With("component", "retriever"),
	}
}

// Retrieve returns up to k neighbours for query, best-first. k <= 0
// means the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]types.RetrievalResult, error) {
	if k < 1 {
		k = r.topK
	}

	perQuery, err := r.index.Query(ctx, []string{query}, k)
	if err != nil {
		return nil, err
	}

	results := perQuery[0]
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if r.maxDistance > 0 {
		kept := results[:0]
		for _, res := range results {
			if res.Distance <= r.maxDistance {
				kept = append(kept, res)
			}
		}
		if dropped := len(results) - len(kept); dropped > 0 {
			r.logger.Debug("low-relevance results dropped",
				"dropped", dropped, "max_distance", r.maxDistance)
		}
		results = kept
	}
	return results, nil
}
