package loader

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmydocs/chunker"
	"askmydocs/store"
	"askmydocs/types"
)

type fakeFile struct {
	name string
	data []byte
}

type fakeStorage struct {
	files map[string]fakeFile
}

func (s *fakeStorage) Save(ctx context.Context, name string, r io.Reader) (FileMetadata, error) {
	panic("not used")
}

func (s *fakeStorage) FetchBytes(ctx context.Context, id string) ([]byte, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", id, types.ErrNotFound)
	}
	return f.data, nil
}

func (s *fakeStorage) FetchMetadata(ctx context.Context, id string) (FileMetadata, error) {
	f, ok := s.files[id]
	if !ok {
		return FileMetadata{}, fmt.Errorf("source %q: %w", id, types.ErrNotFound)
	}
	return FileMetadata{ID: id, Name: f.name, Size: int64(len(f.data))}, nil
}

// countEmbedder maps texts onto fixed axes by keyword so relevance
// ordering in tests is deterministic.
type countEmbedder struct{}

var axes = []string{"alpha", "beta", "gamma"}

func (countEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(axes))
		lower := strings.ToLower(text)
		var norm float32
		for j, axis := range axes {
			n := float32(strings.Count(lower, axis))
			vec[j] = n
			norm += n * n
		}
		if norm > 0 {
			inv := 1 / float32(math.Sqrt(float64(norm)))
			for j := range vec {
				vec[j] *= inv
			}
		}
		out[i] = vec
	}
	return out, nil
}

// flakyEmbedder embeds like countEmbedder until fail is set.
type flakyEmbedder struct {
	fail bool
}

func (f *flakyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, &types.EmbeddingError{Err: fmt.Errorf("embedder offline")}
	}
	return countEmbedder{}.EmbedTexts(ctx, texts)
}

func newTestService(files map[string]fakeFile) (*Service, store.Indexer) {
	index := store.NewMemoryIndex(countEmbedder{})
	splitter, err := chunker.NewSplitter(200, 20)
	if err != nil {
		panic(err)
	}
	return NewService(&fakeStorage{files: files}, index, countEmbedder{}, splitter), index
}

func TestIngestAndQuery(t *testing.T) {
	svc, index := newTestService(map[string]fakeFile{
		"doc-1": {name: "status.txt", data: []byte("Project Alpha is on track.\n\nProject Beta status: red, the launch slipped.")},
	})

	summary, err := svc.Ingest(context.Background(), []string{"doc-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, summary.Succeeded)
	assert.Empty(t, summary.Skipped)
	assert.Empty(t, summary.Failed)

	results, err := index.Query(context.Background(), []string{"what is the status of project Beta?"}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results[0])
	assert.Contains(t, results[0][0].Text, "Beta")
	assert.Equal(t, "doc-1", results[0][0].Metadata[types.MetaSourceID])
	assert.Equal(t, "status.txt", results[0][0].Metadata[types.MetaSourceName])
}

func TestIngestMixedBatch(t *testing.T) {
	svc, _ := newTestService(map[string]fakeFile{
		"good": {name: "notes.md", data: []byte("Gamma review notes.")},
		"bin":  {name: "photo.jpg", data: []byte{0xff, 0xd8, 0xff}},
	})

	summary, err := svc.Ingest(context.Background(), []string{"good", "bin", "ghost"})
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, summary.Succeeded)
	assert.Equal(t, []string{"bin"}, summary.Skipped)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "ghost", summary.Failed[0].SourceID)
}

func TestIngestInvalidUTF8Skipped(t *testing.T) {
	svc, _ := newTestService(map[string]fakeFile{
		"bad": {name: "garbled.txt", data: []byte{0x80, 0x81, 0x82}},
	})

	summary, err := svc.Ingest(context.Background(), []string{"bad"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, summary.Skipped)
	assert.Empty(t, summary.Failed)
}

func TestIngestEmptyFileSkipped(t *testing.T) {
	svc, _ := newTestService(map[string]fakeFile{
		"blank": {name: "blank.txt", data: []byte("   \n\t ")},
	})

	summary, err := svc.Ingest(context.Background(), []string{"blank"})
	require.NoError(t, err)
	assert.Equal(t, []string{"blank"}, summary.Skipped)
	assert.Empty(t, summary.Succeeded)
}

func TestReingestReplacesChunks(t *testing.T) {
	files := map[string]fakeFile{
		"doc-1": {name: "status.txt", data: []byte("Project Beta status: red.")},
	}
	svc, index := newTestService(files)

	_, err := svc.Ingest(context.Background(), []string{"doc-1"})
	require.NoError(t, err)

	files["doc-1"] = fakeFile{name: "status.txt", data: []byte("Project Beta status: green.")}
	_, err = svc.Ingest(context.Background(), []string{"doc-1"})
	require.NoError(t, err)

	results, err := index.Query(context.Background(), []string{"Beta status"}, 10)
	require.NoError(t, err)
	require.Len(t, results[0], 1)
	assert.Contains(t, results[0][0].Text, "green")
}

func TestReingestEmbedFailureKeepsOldChunks(t *testing.T) {
	files := map[string]fakeFile{
		"doc-1": {name: "status.txt", data: []byte("Project Beta status: red.")},
	}
	index := store.NewMemoryIndex(countEmbedder{})
	splitter, err := chunker.NewSplitter(200, 20)
	require.NoError(t, err)
	emb := &flakyEmbedder{}
	svc := NewService(&fakeStorage{files: files}, index, emb, splitter)

	_, err = svc.Ingest(context.Background(), []string{"doc-1"})
	require.NoError(t, err)

	files["doc-1"] = fakeFile{name: "status.txt", data: []byte("Project Beta status: green.")}
	emb.fail = true

	summary, err := svc.Ingest(context.Background(), []string{"doc-1"})
	require.NoError(t, err)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "doc-1", summary.Failed[0].SourceID)

	// The previous version must still be queryable.
	results, err := index.Query(context.Background(), []string{"Beta status"}, 10)
	require.NoError(t, err)
	require.Len(t, results[0], 1)
	assert.Contains(t, results[0][0].Text, "red")
}

func TestRemoveDeletesFromIndex(t *testing.T) {
	svc, index := newTestService(map[string]fakeFile{
		"doc-1": {name: "alpha.txt", data: []byte("Project Alpha is on track.")},
		"doc-2": {name: "beta.txt", data: []byte("Project Beta status: red.")},
	})

	_, err := svc.Ingest(context.Background(), []string{"doc-1", "doc-2"})
	require.NoError(t, err)

	summary, err := svc.Remove(context.Background(), []string{"doc-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, summary.Removed)
	assert.Equal(t, int64(1), summary.RemovedChunks)
	assert.Empty(t, summary.Failed)

	results, err := index.Query(context.Background(), []string{"Project Alpha"}, 10)
	require.NoError(t, err)
	for _, r := range results[0] {
		assert.NotContains(t, r.Text, "Alpha")
	}
}

func TestRemoveUnknownSourceIsSuccess(t *testing.T) {
	svc, _ := newTestService(nil)

	summary, err := svc.Remove(context.Background(), []string{"never-seen"})
	require.NoError(t, err)
	assert.Equal(t, []string{"never-seen"}, summary.Removed)
	assert.Zero(t, summary.RemovedChunks)
}
