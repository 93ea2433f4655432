package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"askmydocs/types"
)

// Embedder maps texts to fixed-dimension vectors, one per input, in
// input order. The dimension is constant for the lifetime of a given
// embedding model.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	DefaultEmbeddingURL   = "http://localhost:11434"
	DefaultEmbeddingModel = "nomic-embed-text"
	embedTimeout          = 30 * time.Second
)

// OllamaEmbedder computes embeddings through the Ollama embeddings
// endpoint. Vectors are L2-normalized so cosine distance behaves the
// same across index backends.
type OllamaEmbedder struct {
	client  *http.Client
	baseURL string
	model   string

	dimension int
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = DefaultEmbeddingURL
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OllamaEmbedder{
		client:  &http.Client{Timeout: embedTimeout},
		baseURL: baseURL,
		model:   model,
	}
}

// EmbedTexts embeds every text in order. Any failure, including an
// empty input slice or a dimension change mid-run, surfaces as an
// EmbeddingError; a partial result is never returned.
func (e *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &types.EmbeddingError{Err: fmt.Errorf("no texts to embed")}
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, &types.EmbeddingError{Err: err}
		}
		if e.dimension == 0 {
			e.dimension = len(vec)
		} else if len(vec) != e.dimension {
			return nil, &types.EmbeddingError{
				Err: fmt.Errorf("dimension changed from %d to %d", e.dimension, len(vec)),
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(msg))
	}

	var embResp ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding for %q", truncate(text, 40))
	}

	return normalize(embResp.Embedding), nil
}

// normalize converts to float32 with the vector scaled to unit length.
func normalize(vec []float64) []float32 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
