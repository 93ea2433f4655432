package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"askmydocs/chunker"
	"askmydocs/model"
	"askmydocs/store"
	"askmydocs/types"
)

// Service drives documents from file storage into the vector index.
type Service struct {
	files    FileStorage
	index    store.Indexer
	embedder model.Embedder
	splitter *chunker.Splitter
	logger   *slog.Logger
}

func NewService(files FileStorage, index store.Indexer, embedder model.Embedder, splitter *chunker.Splitter) *Service {
	return &Service{
		files:    files,
		index:    index,
		embedder: embedder,
		splitter: splitter,
		logger:   slog.Default().With("component", "loader"),
	}
}

// batchItem holds one source's chunks while the batch is assembled.
type batchItem struct {
	id      string
	records []types.IndexRecord
}

// Ingest fetches, decodes, chunks and indexes the given files. Each
// file succeeds or fails on its own: a missing file or a decode error
// is recorded in the summary without stopping the batch. Re-ingesting
// a known id replaces its previous chunks; the previous chunks are
// only dropped once the new batch has embedded successfully, so a
// failed re-ingest leaves the old version queryable.
func (s *Service) Ingest(ctx context.Context, fileIDs []string) (types.IngestSummary, error) {
	summary := types.IngestSummary{}
	var batch []batchItem

	for _, id := range fileIDs {
		chunks, err := s.loadChunks(ctx, id)
		if err != nil {
			if errors.Is(err, types.ErrUnsupportedFormat) {
				s.logger.Info("skipping unsupported file", "file_id", id, "error", err)
				summary.Skipped = append(summary.Skipped, id)
				continue
			}
			s.logger.Error("ingest failed for file", "file_id", id, "error", err)
			summary.Failed = append(summary.Failed, types.IngestFailure{SourceID: id, Reason: err.Error()})
			continue
		}
		if len(chunks) == 0 {
			s.logger.Info("file produced no chunks", "file_id", id)
			summary.Skipped = append(summary.Skipped, id)
			continue
		}

		records := make([]types.IndexRecord, len(chunks))
		for i, c := range chunks {
			records[i] = types.IndexRecord{Text: c.Text, Metadata: c.Metadata}
		}
		batch = append(batch, batchItem{id: id, records: records})
	}

	if len(batch) == 0 {
		return summary, nil
	}

	// Embed the whole batch up front: nothing destructive happens
	// until every new chunk has a vector.
	if err := s.embedBatch(ctx, batch); err != nil {
		s.logger.Error("batch embedding failed", "error", err)
		for _, item := range batch {
			summary.Failed = append(summary.Failed, types.IngestFailure{SourceID: item.id, Reason: err.Error()})
		}
		return summary, nil
	}

	var pending []types.IndexRecord
	var pendingIDs []string
	for _, item := range batch {
		// Drop the source's previous chunks so stale content never
		// survives a re-ingest.
		if _, err := s.index.DeleteBySource(ctx, item.id); err != nil {
			s.logger.Error("failed to clear previous chunks", "file_id", item.id, "error", err)
			summary.Failed = append(summary.Failed, types.IngestFailure{SourceID: item.id, Reason: err.Error()})
			continue
		}
		pending = append(pending, item.records...)
		pendingIDs = append(pendingIDs, item.id)
	}

	if len(pending) > 0 {
		if err := s.index.Upsert(ctx, pending); err != nil {
			s.logger.Error("index upsert failed", "records", len(pending), "error", err)
			for _, id := range pendingIDs {
				summary.Failed = append(summary.Failed, types.IngestFailure{SourceID: id, Reason: err.Error()})
			}
			return summary, nil
		}
		summary.Succeeded = append(summary.Succeeded, pendingIDs...)
		s.logger.Info("ingest complete", "files", len(pendingIDs), "chunks", len(pending))
	}

	return summary, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []batchItem) error {
	var texts []string
	for _, item := range batch {
		for _, rec := range item.records {
			texts = append(texts, rec.Text)
		}
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}

	n := 0
	for _, item := range batch {
		for i := range item.records {
			item.records[i].Embedding = vectors[n]
			n++
		}
	}
	return nil
}

func (s *Service) loadChunks(ctx context.Context, fileID string) ([]types.Chunk, error) {
	meta, err := s.files.FetchMetadata(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	data, err := s.files.FetchBytes(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	doc, err := decodeDocument(meta, data)
	if err != nil {
		return nil, err
	}
	return s.splitter.Split(doc), nil
}

// Remove deletes every chunk of each given source from the index.
// Unknown ids count as removed with zero chunks; per-id index errors
// are collected without stopping the batch.
func (s *Service) Remove(ctx context.Context, fileIDs []string) (types.RemoveSummary, error) {
	summary := types.RemoveSummary{}

	for _, id := range fileIDs {
		n, err := s.index.DeleteBySource(ctx, id)
		if err != nil {
			s.logger.Error("delete failed for source", "file_id", id, "error", err)
			summary.Failed = append(summary.Failed, types.IngestFailure{SourceID: id, Reason: err.Error()})
			continue
		}
		summary.Removed = append(summary.Removed, id)
		summary.RemovedChunks += n
	}

	if len(summary.Removed) > 0 {
		s.logger.Info("remove complete", "files", len(summary.Removed), "chunks", summary.RemovedChunks)
	}
	return summary, nil
}
