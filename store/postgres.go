package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"askmydocs/model"
	"askmydocs/types"
)

const defaultEmbeddingDim = 768

// PostgresIndex stores records in a pgvector-backed table, one table
// per collection. Cosine distance (the <=> operator) is the native
// metric; results are already in the ascending-is-better convention.
type PostgresIndex struct {
	pool     *pgxpool.Pool
	embedder model.Embedder
	table    string
	dim      int
	logger   *slog.Logger
}

func NewPostgresIndex(ctx context.Context, connStr, collection string, dim int, embedder model.Embedder) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if dim <= 0 {
		dim = defaultEmbeddingDim
	}

	return &PostgresIndex{
		pool:     pool,
		embedder: embedder,
		table:    tableName(collection),
		dim:      dim,
		logger:   slog.Default().With("component", "pgindex"),
	}, nil
}

// tableName derives a safe identifier from the collection name; the
// name is interpolated into DDL and queries so it must never carry
// anything but [a-z0-9_].
func tableName(collection string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(collection) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "chunks"
	}
	return b.String()
}

// Init creates the extension, table and indexes if they do not exist
// yet. An existing collection is attached as-is.
func (p *PostgresIndex) Init(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		id UUID PRIMARY KEY,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		embedding vector(%[2]d) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_source_id ON %[1]s ((metadata->>'source_id'));
	`, p.table, p.dim)

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return &types.IndexWriteError{Op: "init", Err: err}
	}
	return nil
}

func (p *PostgresIndex) Upsert(ctx context.Context, records []types.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	prepared, err := prepareRecords(ctx, p.embedder, records)
	if err != nil {
		return err
	}

	// One transaction per batch: a query that runs concurrently sees
	// either all of the batch or none of it.
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return &types.IndexWriteError{Op: "upsert", Err: err}
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
	INSERT INTO %s (id, content, metadata, embedding)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding
	`, p.table)

	for _, rec := range prepared {
		if _, err := tx.Exec(ctx, query, rec.ID, rec.Text, rec.Metadata, pgvector.NewVector(rec.Embedding)); err != nil {
			return &types.IndexWriteError{Op: "upsert", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &types.IndexWriteError{Op: "upsert", Err: err}
	}

	p.logger.Info("records upserted", "table", p.table, "count", len(prepared))
	return nil
}

func (p *PostgresIndex) Query(ctx context.Context, queries []string, k int) ([][]types.RetrievalResult, error) {
	if k < 1 {
		k = types.DefaultTopK
	}

	vectors, err := embedQueries(ctx, p.embedder, queries)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT content, metadata, embedding <=> $1 AS distance
	FROM %s
	ORDER BY embedding <=> $1
	LIMIT $2
	`, p.table)

	out := make([][]types.RetrievalResult, len(queries))
	for i, vec := range vectors {
		results, err := p.queryOne(ctx, query, vec, k)
		if err != nil {
			return nil, err
		}
		out[i] = results
	}
	return out, nil
}

func (p *PostgresIndex) queryOne(ctx context.Context, query string, vec []float32, k int) ([]types.RetrievalResult, error) {
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, &types.IndexQueryError{Err: err}
	}
	defer rows.Close()

	results := []types.RetrievalResult{}
	for rows.Next() {
		var r types.RetrievalResult
		if err := rows.Scan(&r.Text, &r.Metadata, &r.Distance); err != nil {
			return nil, &types.IndexQueryError{Err: err}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.IndexQueryError{Err: err}
	}
	return results, nil
}

func (p *PostgresIndex) DeleteBySource(ctx context.Context, sourceID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE metadata->>'source_id' = $1`, p.table)

	tag, err := p.pool.Exec(ctx, query, sourceID)
	if err != nil {
		return 0, &types.IndexWriteError{Op: "delete", Err: err}
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresIndex) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return &types.IndexQueryError{Err: err}
	}
	return nil
}

func (p *PostgresIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

var _ Indexer = (*PostgresIndex)(nil)
