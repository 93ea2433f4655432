package store

import (
	"context"
	"sort"
	"sync"

	"askmydocs/model"
	"askmydocs/types"
)

// MemoryIndex is a brute-force in-process index over normalized
// vectors. It backs tests and the dependency-free dev mode; the
// ranking convention matches the other backends (cosine distance,
// ascending).
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder model.Embedder
	records  []types.IndexRecord
}

func NewMemoryIndex(embedder model.Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder}
}

func (m *MemoryIndex) Init(ctx context.Context) error {
	return nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, records []types.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Embedding happens before the lock is taken, so a failed batch
	// leaves the collection untouched and queries never observe a
	// partial write.
	prepared, err := prepareRecords(ctx, m.embedder, records)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[string]int, len(m.records))
	for i, rec := range m.records {
		byID[rec.ID] = i
	}
	for _, rec := range prepared {
		if i, ok := byID[rec.ID]; ok {
			m.records[i] = rec
			continue
		}
		byID[rec.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, queries []string, k int) ([][]types.RetrievalResult, error) {
	if k < 1 {
		k = types.DefaultTopK
	}

	vectors, err := embedQueries(ctx, m.embedder, queries)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]types.RetrievalResult, len(queries))
	for qi, vec := range vectors {
		results := make([]types.RetrievalResult, 0, len(m.records))
		for _, rec := range m.records {
			results = append(results, types.RetrievalResult{
				Text:     rec.Text,
				Metadata: rec.Metadata.Clone(),
				Distance: 1 - dot(rec.Embedding, vec),
			})
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Distance < results[j].Distance
		})
		if len(results) > k {
			results = results[:k]
		}
		out[qi] = results
	}
	return out, nil
}

func (m *MemoryIndex) DeleteBySource(ctx context.Context, sourceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var removed int64
	for _, rec := range m.records {
		if rec.Metadata[types.MetaSourceID] == sourceID {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return removed, nil
}

func (m *MemoryIndex) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryIndex) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

var _ Indexer = (*MemoryIndex)(nil)
